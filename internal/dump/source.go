package dump

import (
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pierrec/lz4/v4"
)

// source couples a decompressed reader with the file handle owning it.
type source struct {
	io.Reader
	file  *os.File
	extra io.Closer
}

// Close closes the decompressor (when it needs closing) and the file.
func (s *source) Close() error {
	if s.extra != nil {
		s.extra.Close()
	}

	return s.file.Close()
}

// openAt opens the dump at path positioned at the given decompressed offset.
// Plain XML files seek directly; compressed inputs (.bz2, .gz, .lz4) decode
// and discard up to the offset, since their streams are not seekable.
func openAt(path string, offset int64) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dump: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".bz2":
		return discardTo(&source{Reader: bzip2.NewReader(file), file: file}, offset)
	case ".gz":
		gz, gzErr := gzip.NewReader(file)
		if gzErr != nil {
			file.Close()

			return nil, fmt.Errorf("open gzip dump: %w", gzErr)
		}

		return discardTo(&source{Reader: gz, file: file, extra: gz}, offset)
	case ".lz4":
		return discardTo(&source{Reader: lz4.NewReader(file), file: file}, offset)
	default:
		_, seekErr := file.Seek(offset, io.SeekStart)
		if seekErr != nil {
			file.Close()

			return nil, fmt.Errorf("seek to resume offset %d: %w", offset, seekErr)
		}

		return file, nil
	}
}

// discardTo advances a non-seekable stream to the resume offset.
func discardTo(src *source, offset int64) (io.ReadCloser, error) {
	if offset <= 0 {
		return src, nil
	}

	n, err := io.CopyN(io.Discard, src, offset)
	if err != nil || n != offset {
		src.Close()

		return nil, fmt.Errorf("%w: stream ends before offset %d", ErrInvalidResumeOffset, offset)
	}

	return src, nil
}
