// Package dump reads MediaWiki XML exports incrementally, yielding one
// article record at a time while tracking byte offsets for checkpointed
// resume. The dump is consumed strictly left-to-right; no DOM is built.
package dump

import "encoding/xml"

// ArticleRecord is one decoded page from the dump. Immutable once produced.
type ArticleRecord struct {
	// Title is the page title as written in the dump.
	Title string

	// Namespace is the MediaWiki namespace key (0 = article).
	Namespace int

	// Redirect reports whether the page carries a <redirect/> element.
	Redirect bool

	// Text is the raw wikitext of the page's revision.
	Text string

	// ByteOffsetAfter is the stream position immediately following this
	// record's closing tag. Valid as a resume offset once committed.
	ByteOffsetAfter int64
}

// pageElement mirrors the <page> element of a MediaWiki export.
type pageElement struct {
	XMLName  xml.Name `xml:"page"`
	Title    string   `xml:"title"`
	Ns       int      `xml:"ns"`
	Redirect *struct {
		Title string `xml:"title,attr"`
	} `xml:"redirect"`
	Revision struct {
		Text string `xml:"text"`
	} `xml:"revision"`
}
