package wikitext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_HeadingLevels_ByRunLength(t *testing.T) {
	t.Parallel()

	doc := Parse("= One =\n== Two ==\n=== Three ===\n====== Six ======")
	require.Len(t, doc.Children, 4)

	levels := []int{1, 2, 3, 6}
	for i, want := range levels {
		assert.Equal(t, KindHeading, doc.Children[i].Kind)
		assert.Equal(t, want, doc.Children[i].Level)
	}
}

func TestParse_HeadingLevel_TiesResolveByExactCount(t *testing.T) {
	t.Parallel()

	// Mismatched runs take the shorter side, never content inference.
	doc := Parse("=== Lopsided =")
	require.Len(t, doc.Children, 1)
	assert.Equal(t, 1, doc.Children[0].Level)
	assert.Equal(t, "== Lopsided", doc.Children[0].PlainText())
}

func TestParse_NestedLists(t *testing.T) {
	t.Parallel()

	doc := Parse("* a\n* b\n** b1\n** b2\n* c")
	require.Len(t, doc.Children, 1)

	list := doc.Children[0]
	assert.Equal(t, KindList, list.Kind)
	assert.False(t, list.Ordered)
	require.Len(t, list.Children, 3)

	b := list.Children[1]
	require.Len(t, b.Children, 2) // Inline text + nested list.
	sub := b.Children[1]
	assert.Equal(t, KindList, sub.Kind)
	assert.Equal(t, 2, sub.Level)
	require.Len(t, sub.Children, 2)
}

func TestParse_OrderedListAfterUnordered_SplitsLists(t *testing.T) {
	t.Parallel()

	doc := Parse("* bullet\n# first\n# second")
	require.Len(t, doc.Children, 2)
	assert.False(t, doc.Children[0].Ordered)
	assert.True(t, doc.Children[1].Ordered)
}

func TestParse_Table_RowsAndHeaders(t *testing.T) {
	t.Parallel()

	src := "{| class=\"wikitable\"\n|+ Caption\n|-\n! H1 !! H2\n|-\n| a || b\n|-\n| c || d\n|}"
	doc := Parse(src)
	require.Len(t, doc.Children, 1)

	table := doc.Children[0]
	assert.Equal(t, KindTable, table.Kind)
	assert.Equal(t, "Caption", table.Text)
	require.Len(t, table.Children, 3)

	header := table.Children[0]
	require.Len(t, header.Children, 2)
	assert.True(t, header.Children[0].Header)
	assert.Equal(t, "H1", header.Children[0].PlainText())

	assert.Equal(t, "a", table.Children[1].Children[0].PlainText())
	assert.False(t, table.Children[1].Children[0].Header)
}

func TestParse_TableCell_AttributePrefixStripped(t *testing.T) {
	t.Parallel()

	doc := Parse("{|\n|-\n| style=\"vertical-align: top;\" | content\n|}")
	table := doc.Children[0]
	require.Len(t, table.Children, 1)
	assert.Equal(t, "content", table.Children[0].Children[0].PlainText())
}

func TestParse_UnterminatedTable_EndsAtEOF(t *testing.T) {
	t.Parallel()

	doc := Parse("{|\n|-\n| lonely cell")
	require.Len(t, doc.Children, 1)
	assert.Equal(t, KindTable, doc.Children[0].Kind)
}

func TestParseInline_WikiLinks(t *testing.T) {
	t.Parallel()

	nodes := parseInline("see [[Main Page|the main page]] and [[Other]]")
	require.Len(t, nodes, 4)

	piped := nodes[1]
	assert.Equal(t, KindLink, piped.Kind)
	assert.Equal(t, "Main Page", piped.Text)
	assert.Equal(t, "the main page", piped.PlainText())

	bare := nodes[3]
	assert.Equal(t, "Other", bare.Text)
	assert.Empty(t, bare.Children)
}

func TestParseInline_ExternalLink(t *testing.T) {
	t.Parallel()

	nodes := parseInline("[https://example.org Example site] rest")
	require.Len(t, nodes, 2)
	assert.Equal(t, KindExternalLink, nodes[0].Kind)
	assert.Equal(t, "https://example.org", nodes[0].Text)
	assert.Equal(t, "Example site", nodes[0].PlainText())
}

func TestParseInline_BracketWithoutURL_IsLiteral(t *testing.T) {
	t.Parallel()

	nodes := parseInline("a [note] b")
	require.Len(t, nodes, 1)
	assert.Equal(t, "a [note] b", nodes[0].Text)
}

func TestParseInline_Emphasis(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		kind NodeKind
	}{
		{name: "italic", src: "''x''", kind: KindItalic},
		{name: "bold", src: "'''x'''", kind: KindBold},
		{name: "bold italic", src: "'''''x'''''", kind: KindBold},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			nodes := parseInline(tt.src)
			require.Len(t, nodes, 1)
			assert.Equal(t, tt.kind, nodes[0].Kind)
			assert.Equal(t, "x", nodes[0].PlainText())
		})
	}
}

func TestParseInline_UnterminatedEmphasis_IsLiteral(t *testing.T) {
	t.Parallel()

	nodes := parseInline("'''no closer")
	require.Len(t, nodes, 1)
	assert.Equal(t, KindText, nodes[0].Kind)
	assert.Equal(t, "'''no closer", nodes[0].Text)
}

func TestParseInline_NestedTemplates(t *testing.T) {
	t.Parallel()

	nodes := parseInline("{{outer|{{inner}}}}")
	require.Len(t, nodes, 1)
	assert.Equal(t, KindTemplate, nodes[0].Kind)
	assert.Equal(t, "outer|{{inner}}", nodes[0].Text)
}

func TestParseInline_UnterminatedTemplate_IsLiteral(t *testing.T) {
	t.Parallel()

	nodes := parseInline("{{broken")
	require.Len(t, nodes, 1)
	assert.Equal(t, "{{broken", nodes[0].Text)
}

func TestParse_Total_NeverPanics(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"", "=", "==", "[[", "]]", "{{", "}}", "{|", "|}", "'''''",
		"[[a|b|c]]", "{|\n", "* \n** \n*** deep", "'''''x''", "\x00\xff",
	}

	for _, src := range inputs {
		doc := Parse(src)
		require.NotNil(t, doc)
	}
}
