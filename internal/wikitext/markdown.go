package wikitext

import "strings"

// indentPerLevel is the list indentation unit in spaces.
const indentPerLevel = 2

// MarkdownRenderer emits GitHub-flavored Markdown.
type MarkdownRenderer struct{}

// Extension implements Renderer.Extension for Markdown output.
func (MarkdownRenderer) Extension() string {
	return ".md"
}

// Render implements Renderer.Render by walking the document tree and joining
// block-level nodes with blank lines.
func (r MarkdownRenderer) Render(doc *Node) string {
	blocks := make([]string, 0, len(doc.Children))
	for _, b := range doc.Children {
		blocks = append(blocks, r.renderBlock(b))
	}

	return strings.Join(blocks, "\n\n")
}

func (r MarkdownRenderer) renderBlock(n *Node) string {
	switch n.Kind {
	case KindHeading:
		return strings.Repeat("#", n.Level) + " " + r.renderInline(n.Children)
	case KindParagraph:
		return r.renderInline(n.Children)
	case KindList:
		return strings.Join(r.renderList(n), "\n")
	case KindTable:
		return r.renderTable(n)
	default:
		return r.renderInline([]*Node{n})
	}
}

// renderList returns one output line per item, indented by nesting depth.
func (r MarkdownRenderer) renderList(list *Node) []string {
	indent := strings.Repeat(" ", (list.Level-1)*indentPerLevel)

	var lines []string

	counter := 0
	for _, item := range list.Children {
		counter++

		marker := "- "
		if list.Ordered {
			marker = "1. "
		}

		var inline []*Node

		var subs []*Node

		for _, c := range item.Children {
			if c.Kind == KindList {
				subs = append(subs, c)
			} else {
				inline = append(inline, c)
			}
		}

		if len(inline) > 0 || len(subs) == 0 {
			lines = append(lines, indent+marker+r.renderInline(inline))
		}

		for _, sub := range subs {
			lines = append(lines, r.renderList(sub)...)
		}
	}

	return lines
}

// renderTable emits a GFM pipe table. When the table has no header row, the
// first row doubles as one so the table stays valid Markdown.
func (r MarkdownRenderer) renderTable(table *Node) string {
	var lines []string

	if table.Text != "" {
		lines = append(lines, "**"+table.Text+"**", "")
	}

	for i, row := range table.Children {
		cells := make([]string, 0, len(row.Children))
		for _, cell := range row.Children {
			cells = append(cells, r.renderInline(cell.Children))
		}

		lines = append(lines, "| "+strings.Join(cells, " | ")+" |")

		if i == 0 {
			seps := make([]string, len(cells))
			for j := range seps {
				seps[j] = "---"
			}

			lines = append(lines, "| "+strings.Join(seps, " | ")+" |")
		}
	}

	return strings.Join(lines, "\n")
}

func (r MarkdownRenderer) renderInline(nodes []*Node) string {
	var out strings.Builder

	for _, n := range nodes {
		switch n.Kind {
		case KindText:
			out.WriteString(n.Text)
		case KindBold:
			out.WriteString("**" + r.renderInline(n.Children) + "**")
		case KindItalic:
			out.WriteString("*" + r.renderInline(n.Children) + "*")
		case KindLink:
			label := r.renderInline(n.Children)
			if label == "" {
				label = n.Text
			}

			out.WriteString("[" + label + "](" + linkTarget(n.Text) + ")")
		case KindExternalLink:
			label := r.renderInline(n.Children)
			if label == "" {
				out.WriteString("<" + n.Text + ">")
			} else {
				out.WriteString("[" + label + "](" + n.Text + ")")
			}
		case KindTemplate:
			// Best effort: unsupported templates keep their literal content.
			out.WriteString(n.Text)
		default:
			out.WriteString(r.renderInline(n.Children))
		}
	}

	return out.String()
}

// linkTarget normalizes an internal link target into a page slug.
func linkTarget(target string) string {
	return strings.ReplaceAll(target, " ", "_")
}
