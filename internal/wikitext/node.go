// Package wikitext converts MediaWiki markup into target formats through a
// small tagged node tree. Parsing is total: any input string produces a tree,
// with unrecognized constructs preserved as literal text.
package wikitext

// NodeKind discriminates the node tree variants.
type NodeKind int

// Node tree variants.
const (
	KindDocument NodeKind = iota
	KindText
	KindParagraph
	KindHeading
	KindList
	KindListItem
	KindTable
	KindTableRow
	KindTableCell
	KindLink
	KindExternalLink
	KindBold
	KindItalic
	KindTemplate
)

// Node is one vertex of the parsed wikitext tree. Field use depends on Kind:
// Text holds literal content for KindText, the link target for KindLink, the
// URL for KindExternalLink, the raw inner content for KindTemplate, and the
// caption for KindTable. Level holds the heading level or list nesting depth.
type Node struct {
	Kind     NodeKind
	Text     string
	Level    int
	Ordered  bool
	Header   bool
	Children []*Node
}

// textNode wraps a literal string.
func textNode(s string) *Node {
	return &Node{Kind: KindText, Text: s}
}

// PlainText flattens the subtree into its unformatted text content.
func (n *Node) PlainText() string {
	if n.Kind == KindText || n.Kind == KindTemplate {
		return n.Text
	}

	var out string
	for _, c := range n.Children {
		out += c.PlainText()
	}

	if out == "" && (n.Kind == KindLink || n.Kind == KindExternalLink) {
		return n.Text
	}

	return out
}
