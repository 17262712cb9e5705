package wikitext

import "strings"

// Marker lengths for apostrophe emphasis runs.
const (
	italicRun     = 2
	boldRun       = 3
	boldItalicRun = 5
)

// maxHeadingLevel caps heading nesting at HTML's h6.
const maxHeadingLevel = 6

// Parse builds a node tree from raw wikitext. It never fails: malformed
// markup degrades to literal text nodes.
func Parse(src string) *Node {
	doc := &Node{Kind: KindDocument}
	lines := strings.Split(strings.ReplaceAll(src, "\r\n", "\n"), "\n")

	for i := 0; i < len(lines); {
		line := strings.TrimRight(lines[i], " \t")
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "":
			i++
		case isHeadingLine(trimmed):
			doc.Children = append(doc.Children, parseHeading(trimmed))
			i++
		case strings.HasPrefix(trimmed, "{|"):
			table, next := parseTable(lines, i)
			doc.Children = append(doc.Children, table)
			i = next
		case listDepth(trimmed) > 0:
			list, next := parseListRun(lines, i)
			doc.Children = append(doc.Children, list)
			i = next
		default:
			para, next := parseParagraph(lines, i)
			doc.Children = append(doc.Children, para)
			i = next
		}
	}

	return doc
}

// isHeadingLine reports whether the line is a `= ... =` heading.
func isHeadingLine(line string) bool {
	if !strings.HasPrefix(line, "=") || !strings.HasSuffix(line, "=") {
		return false
	}

	return len(line) > runLen(line, '=')
}

// runLen counts the leading run of ch in s.
func runLen(s string, ch byte) int {
	n := 0
	for n < len(s) && s[n] == ch {
		n++
	}

	return n
}

// parseHeading derives the level from the shorter of the leading and trailing
// `=` runs. Exact run length decides the level; content never does.
func parseHeading(line string) *Node {
	lead := runLen(line, '=')

	trail := 0
	for i := len(line) - 1; i >= 0 && line[i] == '='; i-- {
		trail++
	}

	level := min(lead, trail)
	level = min(level, maxHeadingLevel)

	content := strings.TrimSpace(line[level : len(line)-level])

	return &Node{
		Kind:     KindHeading,
		Level:    level,
		Children: parseInline(content),
	}
}

// listDepth returns the number of leading `*`/`#` markers, 0 for non-list lines.
func listDepth(line string) int {
	n := 0
	for n < len(line) && (line[n] == '*' || line[n] == '#') {
		n++
	}

	return n
}

type listLine struct {
	markers string
	text    string
}

// parseListRun consumes the maximal run of consecutive list lines starting at
// index start and returns the resulting nested list plus the next line index.
func parseListRun(lines []string, start int) (*Node, int) {
	var items []listLine

	first := strings.TrimSpace(lines[start])[0]

	i := start
	for i < len(lines) {
		trimmed := strings.TrimSpace(lines[i])

		depth := listDepth(trimmed)
		if depth == 0 || trimmed[0] != first {
			break
		}

		items = append(items, listLine{
			markers: trimmed[:depth],
			text:    strings.TrimSpace(trimmed[depth:]),
		})
		i++
	}

	return buildList(items, 1), i
}

// buildList assembles a (possibly nested) list from marker-prefixed lines.
// Depth is 1-based; items deeper than the current depth attach to the most
// recent item as a child list.
func buildList(items []listLine, depth int) *Node {
	list := &Node{
		Kind:    KindList,
		Level:   depth,
		Ordered: items[0].markers[depth-1] == '#',
	}

	for i := 0; i < len(items); {
		if len(items[i].markers) == depth {
			item := &Node{Kind: KindListItem, Children: parseInline(items[i].text)}
			list.Children = append(list.Children, item)
			i++

			continue
		}

		// Deeper run: gather it and recurse.
		j := i
		for j < len(items) && len(items[j].markers) > depth {
			j++
		}

		sub := buildList(items[i:j], depth+1)

		if len(list.Children) == 0 {
			// Dump starts deeper than expected; wrap in an empty item.
			list.Children = append(list.Children, &Node{Kind: KindListItem})
		}

		last := list.Children[len(list.Children)-1]
		last.Children = append(last.Children, sub)
		i = j
	}

	return list
}

// parseTable consumes a `{| ... |}` block and returns the table node plus the
// next line index. A missing `|}` terminator ends the table at end of input.
func parseTable(lines []string, start int) (*Node, int) {
	table := &Node{Kind: KindTable}
	row := &Node{Kind: KindTableRow}

	flushRow := func() {
		if len(row.Children) > 0 {
			table.Children = append(table.Children, row)
		}

		row = &Node{Kind: KindTableRow}
	}

	i := start + 1
	for ; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])

		switch {
		case strings.HasPrefix(trimmed, "|}"):
			flushRow()

			return table, i + 1
		case strings.HasPrefix(trimmed, "|+"):
			table.Text = strings.TrimSpace(trimmed[2:])
		case strings.HasPrefix(trimmed, "|-"):
			flushRow()
		case strings.HasPrefix(trimmed, "!"):
			appendCells(row, trimmed[1:], "!!", true)
		case strings.HasPrefix(trimmed, "|"):
			appendCells(row, trimmed[1:], "||", false)
		default:
			// Continuation of the previous cell.
			if len(row.Children) > 0 {
				last := row.Children[len(row.Children)-1]
				last.Children = append(last.Children, parseInline(" "+trimmed)...)
			}
		}
	}

	flushRow()

	return table, i
}

// appendCells splits a cell line on its separator and appends cell nodes,
// stripping any leading attribute segment (`style=... |` prefixes).
func appendCells(row *Node, content, sep string, header bool) {
	for _, cell := range strings.Split(content, sep) {
		cell = stripCellAttributes(strings.TrimSpace(cell))
		row.Children = append(row.Children, &Node{
			Kind:     KindTableCell,
			Header:   header,
			Children: parseInline(cell),
		})
	}
}

// stripCellAttributes drops a `attr="..." |` prefix from a cell. The prefix is
// only treated as attributes when it contains `=` and no wiki markup.
func stripCellAttributes(cell string) string {
	idx := strings.Index(cell, "|")
	if idx < 0 {
		return cell
	}

	prefix := cell[:idx]
	if strings.Contains(prefix, "=") && !strings.ContainsAny(prefix, "[{'") {
		return strings.TrimSpace(cell[idx+1:])
	}

	return cell
}

// parseParagraph collects consecutive plain lines into one paragraph.
func parseParagraph(lines []string, start int) (*Node, int) {
	var parts []string

	i := start
	for i < len(lines) {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" || isHeadingLine(trimmed) || listDepth(trimmed) > 0 || strings.HasPrefix(trimmed, "{|") {
			break
		}

		parts = append(parts, trimmed)
		i++
	}

	return &Node{
		Kind:     KindParagraph,
		Children: parseInline(strings.Join(parts, " ")),
	}, i
}

// parseInline parses span-level markup: links, templates, emphasis.
func parseInline(src string) []*Node {
	var nodes []*Node

	var text strings.Builder

	flush := func() {
		if text.Len() > 0 {
			nodes = append(nodes, textNode(text.String()))
			text.Reset()
		}
	}

	i := 0
	for i < len(src) {
		switch {
		case strings.HasPrefix(src[i:], "[["):
			end := findClose(src, i+2, "[[", "]]")
			if end < 0 {
				text.WriteString("[[")
				i += 2

				continue
			}

			flush()
			nodes = append(nodes, parseWikiLink(src[i+2:end]))
			i = end + 2
		case strings.HasPrefix(src[i:], "{{"):
			end := findClose(src, i+2, "{{", "}}")
			if end < 0 {
				text.WriteString("{{")
				i += 2

				continue
			}

			flush()
			nodes = append(nodes, &Node{Kind: KindTemplate, Text: src[i+2 : end]})
			i = end + 2
		case src[i] == '[':
			node, next := parseExternalLink(src, i)
			if node == nil {
				text.WriteByte('[')
				i++

				continue
			}

			flush()
			nodes = append(nodes, node)
			i = next
		case strings.HasPrefix(src[i:], "''"):
			node, next := parseEmphasis(src, i)
			if node == nil {
				run := runLen(src[i:], '\'')
				text.WriteString(src[i : i+run])
				i += run

				continue
			}

			flush()
			nodes = append(nodes, node)
			i = next
		default:
			text.WriteByte(src[i])
			i++
		}
	}

	flush()

	return nodes
}

// findClose returns the index of the matching close delimiter, honoring
// nested open/close pairs, or -1 when unterminated.
func findClose(s string, start int, open, close string) int {
	depth := 1

	i := start
	for i < len(s) {
		switch {
		case strings.HasPrefix(s[i:], open):
			depth++
			i += len(open)
		case strings.HasPrefix(s[i:], close):
			depth--
			if depth == 0 {
				return i
			}

			i += len(close)
		default:
			i++
		}
	}

	return -1
}

// parseWikiLink builds a KindLink node from the inner `target|label` text.
func parseWikiLink(inner string) *Node {
	target, label, piped := strings.Cut(inner, "|")
	target = strings.TrimSpace(target)

	node := &Node{Kind: KindLink, Text: target}
	if piped {
		node.Children = parseInline(strings.TrimSpace(label))
	}

	return node
}

// parseExternalLink parses `[url label]` starting at the `[`. Returns nil
// when the bracket does not open a URL.
func parseExternalLink(src string, start int) (*Node, int) {
	end := strings.IndexByte(src[start:], ']')
	if end < 0 {
		return nil, start
	}

	end += start
	inner := src[start+1 : end]

	url, label, _ := strings.Cut(inner, " ")
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") &&
		!strings.HasPrefix(url, "ftp://") && !strings.HasPrefix(url, "//") {
		return nil, start
	}

	node := &Node{Kind: KindExternalLink, Text: url}
	if label != "" {
		node.Children = parseInline(strings.TrimSpace(label))
	}

	return node, end + 1
}

// parseEmphasis parses an apostrophe run at start. The marker length is
// resolved purely by run length (5, 3, or 2); extra apostrophes beyond the
// marker are emitted as literal text by the caller. Returns nil when no
// matching closing run exists.
func parseEmphasis(src string, start int) (*Node, int) {
	run := runLen(src[start:], '\'')

	marker := italicRun

	switch {
	case run >= boldItalicRun:
		marker = boldItalicRun
	case run >= boldRun:
		marker = boldRun
	}

	open := start + marker

	closeIdx := findEmphasisClose(src, open, marker)
	if closeIdx < 0 {
		return nil, start
	}

	inner := parseInline(src[open:closeIdx])

	var node *Node

	switch marker {
	case boldItalicRun:
		node = &Node{Kind: KindBold, Children: []*Node{{Kind: KindItalic, Children: inner}}}
	case boldRun:
		node = &Node{Kind: KindBold, Children: inner}
	default:
		node = &Node{Kind: KindItalic, Children: inner}
	}

	return node, closeIdx + marker
}

// findEmphasisClose locates the next apostrophe run of at least marker length.
func findEmphasisClose(src string, from, marker int) int {
	i := from
	for i < len(src) {
		if src[i] != '\'' {
			i++

			continue
		}

		run := runLen(src[i:], '\'')
		if run >= marker {
			return i
		}

		i += run
	}

	return -1
}
