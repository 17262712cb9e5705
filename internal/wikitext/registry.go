package wikitext

import (
	"errors"
	"fmt"
	"sort"
)

// Registered format selectors.
const (
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// ErrUnsupportedFormat indicates an unknown target format selector.
var ErrUnsupportedFormat = errors.New("unsupported output format")

// Renderer turns a parsed wikitext tree into target-format text.
// Renderers are stateless; a single value is shared across goroutines.
type Renderer interface {
	// Render serializes the document tree. It is total: every tree renders.
	Render(doc *Node) string
	// Extension returns the output file extension, including the dot.
	Extension() string
}

var renderers = map[string]Renderer{
	FormatMarkdown: MarkdownRenderer{},
	FormatHTML:     HTMLRenderer{},
}

// Lookup resolves a format selector to its renderer.
func Lookup(format string) (Renderer, error) {
	r, ok := renderers[format]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnsupportedFormat, format, Formats())
	}

	return r, nil
}

// Formats returns the registered format selectors in sorted order.
func Formats() []string {
	names := make([]string, 0, len(renderers))
	for name := range renderers {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Convert parses wikitext and renders it in the given format. The only
// possible error is an unknown format; conversion itself is total.
func Convert(src, format string) (string, error) {
	r, err := Lookup(format)
	if err != nil {
		return "", err
	}

	return r.Render(Parse(src)), nil
}
