package wikitext

import (
	"fmt"
	"html"
	"strings"
)

// HTMLRenderer emits a plain HTML fragment per article.
type HTMLRenderer struct{}

// Extension implements Renderer.Extension for HTML output.
func (HTMLRenderer) Extension() string {
	return ".html"
}

// Render implements Renderer.Render by walking the document tree.
func (r HTMLRenderer) Render(doc *Node) string {
	blocks := make([]string, 0, len(doc.Children))
	for _, b := range doc.Children {
		blocks = append(blocks, r.renderBlock(b))
	}

	return strings.Join(blocks, "\n")
}

func (r HTMLRenderer) renderBlock(n *Node) string {
	switch n.Kind {
	case KindHeading:
		return fmt.Sprintf("<h%d>%s</h%d>", n.Level, r.renderInline(n.Children), n.Level)
	case KindParagraph:
		return "<p>" + r.renderInline(n.Children) + "</p>"
	case KindList:
		return r.renderList(n)
	case KindTable:
		return r.renderTable(n)
	default:
		return r.renderInline([]*Node{n})
	}
}

func (r HTMLRenderer) renderList(list *Node) string {
	tag := "ul"
	if list.Ordered {
		tag = "ol"
	}

	var out strings.Builder

	out.WriteString("<" + tag + ">")

	for _, item := range list.Children {
		out.WriteString("<li>")

		for _, c := range item.Children {
			if c.Kind == KindList {
				out.WriteString(r.renderList(c))
			} else {
				out.WriteString(r.renderInline([]*Node{c}))
			}
		}

		out.WriteString("</li>")
	}

	out.WriteString("</" + tag + ">")

	return out.String()
}

func (r HTMLRenderer) renderTable(table *Node) string {
	var out strings.Builder

	out.WriteString("<table>")

	if table.Text != "" {
		out.WriteString("<caption>" + html.EscapeString(table.Text) + "</caption>")
	}

	for _, row := range table.Children {
		out.WriteString("<tr>")

		for _, cell := range row.Children {
			tag := "td"
			if cell.Header {
				tag = "th"
			}

			out.WriteString("<" + tag + ">" + r.renderInline(cell.Children) + "</" + tag + ">")
		}

		out.WriteString("</tr>")
	}

	out.WriteString("</table>")

	return out.String()
}

func (r HTMLRenderer) renderInline(nodes []*Node) string {
	var out strings.Builder

	for _, n := range nodes {
		switch n.Kind {
		case KindText:
			out.WriteString(html.EscapeString(n.Text))
		case KindBold:
			out.WriteString("<strong>" + r.renderInline(n.Children) + "</strong>")
		case KindItalic:
			out.WriteString("<em>" + r.renderInline(n.Children) + "</em>")
		case KindLink:
			label := r.renderInline(n.Children)
			if label == "" {
				label = html.EscapeString(n.Text)
			}

			out.WriteString(`<a href="` + html.EscapeString(linkTarget(n.Text)) + `">` + label + "</a>")
		case KindExternalLink:
			label := r.renderInline(n.Children)
			if label == "" {
				label = html.EscapeString(n.Text)
			}

			out.WriteString(`<a href="` + html.EscapeString(n.Text) + `">` + label + "</a>")
		case KindTemplate:
			out.WriteString(html.EscapeString(n.Text))
		default:
			out.WriteString(r.renderInline(n.Children))
		}
	}

	return out.String()
}
