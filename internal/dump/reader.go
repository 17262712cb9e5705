package dump

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

// DefaultMaxRecordSize is the default look-back ceiling for a single record.
// Generous enough for the largest real-world articles.
const DefaultMaxRecordSize = 64 << 20

// readChunkSize is the fill granularity of the scan window.
const readChunkSize = 64 << 10

// Sentinel errors for dump scanning.
var (
	// ErrMalformedDump indicates a record start with no matching end within
	// the look-back ceiling. Fatal: the input is static, retrying cannot help.
	ErrMalformedDump = errors.New("malformed dump")

	// ErrInvalidResumeOffset indicates a resume offset that does not land on
	// a record boundary. Only offsets previously committed as checkpoints
	// (or 0) are valid.
	ErrInvalidResumeOffset = errors.New("invalid resume offset")
)

var (
	pageOpen  = []byte("<page")
	pageClose = []byte("</page>")
	rootClose = []byte("</mediawiki")
)

// Reader scans a dump forward, producing one ArticleRecord per Next call.
// The scan window is bounded by the configured max record size, so memory
// use never depends on the dump size. Not restartable mid-sequence except by
// reopening at a committed offset.
type Reader struct {
	src       io.ReadCloser
	window    []byte
	base      int64 // Absolute stream offset of window[0].
	maxRecord int
	eof       bool
}

// Open positions the dump at resumeOffset and returns a Reader. Offset 0
// means start of file; the scanner naturally skips the root element and
// siteinfo preamble while searching for the first record. A non-zero offset
// must be a previously committed record boundary; anything else fails fast
// with ErrInvalidResumeOffset.
func Open(path string, resumeOffset int64, maxRecordSize int) (*Reader, error) {
	if maxRecordSize <= 0 {
		maxRecordSize = DefaultMaxRecordSize
	}

	src, err := openAt(path, resumeOffset)
	if err != nil {
		return nil, err
	}

	r := &Reader{
		src:       src,
		base:      resumeOffset,
		maxRecord: maxRecordSize,
	}

	if resumeOffset > 0 {
		err = r.validateBoundary()
		if err != nil {
			src.Close()

			return nil, err
		}
	}

	return r, nil
}

// Close releases the underlying stream.
func (r *Reader) Close() error {
	return r.src.Close()
}

// Offset returns the absolute offset of the first byte the scanner has not
// ruled out yet. Monotonically non-decreasing; never behind the last
// record's ByteOffsetAfter.
func (r *Reader) Offset() int64 {
	return r.base
}

// Next returns the next article record, or io.EOF at end of sequence. A
// truncated trailing fragment at true EOF ends the sequence; a record
// exceeding the look-back ceiling mid-stream fails with ErrMalformedDump.
func (r *Reader) Next() (*ArticleRecord, error) {
	for {
		start := r.findRecordStart()
		if start >= 0 {
			rec, err := r.extractRecord(start)
			if rec != nil || err != nil {
				return rec, err
			}
		} else if r.eof {
			return nil, io.EOF
		}

		err := r.fill()
		if err != nil {
			return nil, err
		}
	}
}

// findRecordStart locates the next `<page>` start tag in the window,
// discarding scanned bytes that cannot begin a record.
func (r *Reader) findRecordStart() int {
	idx := bytes.Index(r.window, pageOpen)
	for idx >= 0 {
		after := idx + len(pageOpen)
		if after < len(r.window) {
			if c := r.window[after]; c == '>' || c == ' ' || c == '\t' || c == '\n' || c == '\r' {
				// Preceding bytes can never start a record; drop them so the
				// window stays bounded by the record size, not the dump size.
				r.discard(idx)

				return 0
			}

			next := bytes.Index(r.window[after:], pageOpen)
			if next < 0 {
				idx = -1

				break
			}

			idx = after + next

			continue
		}

		// Tag boundary not buffered yet; keep from idx and refill.
		r.discard(idx)

		return -1
	}

	// No candidate: keep a small tail in case a tag spans the chunk boundary.
	if keep := len(pageOpen) - 1; len(r.window) > keep {
		r.discard(len(r.window) - keep)
	}

	return -1
}

// extractRecord decodes the record starting at window[start], returning nil
// when the closing tag is not buffered yet.
func (r *Reader) extractRecord(start int) (*ArticleRecord, error) {
	end := bytes.Index(r.window[start:], pageClose)
	if end < 0 {
		if len(r.window)-start > r.maxRecord {
			return nil, fmt.Errorf(
				"%w: record at offset %d has no closing tag within %d bytes (corrupt dump or max-record-size too small)",
				ErrMalformedDump, r.base+int64(start), r.maxRecord,
			)
		}

		return nil, nil
	}

	recordEnd := start + end + len(pageClose)
	fragment := r.window[start:recordEnd]

	var page pageElement

	err := xml.Unmarshal(fragment, &page)
	if err != nil {
		return nil, fmt.Errorf("%w: decode record at offset %d: %v", ErrMalformedDump, r.base+int64(start), err)
	}

	record := &ArticleRecord{
		Title:           page.Title,
		Namespace:       page.Ns,
		Redirect:        page.Redirect != nil,
		Text:            page.Revision.Text,
		ByteOffsetAfter: r.base + int64(recordEnd),
	}

	r.discard(recordEnd)

	return record, nil
}

// fill appends one chunk from the stream, returning io.EOF only once the
// window is also exhausted of complete records.
func (r *Reader) fill() error {
	if r.eof {
		// Whatever remains is a truncated trailing fragment. A well-formed
		// dump only truncates at true EOF, so this ends the sequence.
		return io.EOF
	}

	chunk := make([]byte, readChunkSize)

	n, err := r.src.Read(chunk)
	if n > 0 {
		r.window = append(r.window, chunk[:n]...)
	}

	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			r.eof = true

			return nil
		}

		return fmt.Errorf("read dump: %w", err)
	}

	return nil
}

// discard drops n consumed bytes from the window head.
func (r *Reader) discard(n int) {
	r.window = r.window[n:]
	r.base += int64(n)
}

// validateBoundary checks that the bytes at a non-zero resume offset start a
// record (or close the root element, for a resume at the very end).
func (r *Reader) validateBoundary() error {
	need := len(rootClose) + 1

	for len(bytes.TrimLeft(r.window, " \t\r\n")) < need && !r.eof {
		err := r.fill()
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}

		if errors.Is(err, io.EOF) {
			break
		}
	}

	rest := bytes.TrimLeft(r.window, " \t\r\n")
	if len(rest) == 0 {
		// Resume offset at clean end of stream: empty sequence.
		return nil
	}

	if hasTagPrefix(rest, pageOpen) || bytes.HasPrefix(rest, rootClose) {
		return nil
	}

	return fmt.Errorf("%w: offset %d does not start a record", ErrInvalidResumeOffset, r.base)
}

// hasTagPrefix reports whether b starts with the tag name followed by a
// terminator, so `<page>` matches but `<pages>` does not.
func hasTagPrefix(b, tag []byte) bool {
	if !bytes.HasPrefix(b, tag) {
		return false
	}

	if len(b) == len(tag) {
		return true
	}

	c := b[len(tag)]

	return c == '>' || c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
