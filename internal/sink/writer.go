package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Sumatoshi-tech/wikimill/internal/batch"
)

// Error kinds recorded per failed article in a WriteResult.
const (
	ErrorKindCreate = "create"
	ErrorKindWrite  = "write"
	ErrorKindSync   = "sync"
)

// WriteResult reports per-article outcomes of one batch flush. One article's
// failure never aborts its siblings.
type WriteResult struct {
	// Succeeded holds the titles written durably, in batch order.
	Succeeded []string

	// Failed maps title to error kind for articles that could not be written.
	Failed map[string]string

	// BytesWritten is the total output size of the succeeded articles.
	BytesWritten int64
}

// AllSucceeded reports whether every article in the batch is durable.
func (r WriteResult) AllSucceeded() bool {
	return len(r.Failed) == 0
}

// Writer stores one file per article under the output directory. Filenames
// come from the shared NameAllocator; the extension from the target format.
// Writes are synced before being reported as succeeded, since the checkpoint
// advances on our word.
type Writer struct {
	dir   string
	ext   string
	names *NameAllocator

	// FrontMatter enables a YAML front matter header carrying the article
	// title and permalink, matching the published site layout.
	FrontMatter bool
}

// NewWriter creates a writer for the given output directory and extension.
func NewWriter(dir, ext string, names *NameAllocator) *Writer {
	return &Writer{
		dir:   dir,
		ext:   ext,
		names: names,
	}
}

// Write flushes one batch, attempting every article independently. A file
// claimed by the same title in a previous interrupted run is overwritten;
// different titles never share a filename.
func (w *Writer) Write(articles []batch.ConvertedArticle) WriteResult {
	result := WriteResult{Failed: make(map[string]string)}

	for _, article := range articles {
		stem := w.names.Claim(article.Title)
		path := filepath.Join(w.dir, stem+w.ext)

		n, err := w.writeFile(path, article)
		if err != nil {
			result.Failed[article.Title] = classify(err)

			continue
		}

		result.Succeeded = append(result.Succeeded, article.Title)
		result.BytesWritten += n
	}

	return result
}

// writeFile stores one article durably, returning the bytes written.
func (w *Writer) writeFile(path string, article batch.ConvertedArticle) (int64, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", ErrorKindCreate, err)
	}

	var total int64

	if w.FrontMatter {
		n, headerErr := file.WriteString(frontMatter(article.Title))
		total += int64(n)

		if headerErr != nil {
			file.Close()

			return total, fmt.Errorf("%s: %w", ErrorKindWrite, headerErr)
		}
	}

	n, err := file.WriteString(article.Body)
	total += int64(n)

	if err != nil {
		file.Close()

		return total, fmt.Errorf("%s: %w", ErrorKindWrite, err)
	}

	err = file.Sync()
	if err != nil {
		file.Close()

		return total, fmt.Errorf("%s: %w", ErrorKindSync, err)
	}

	err = file.Close()
	if err != nil {
		return total, fmt.Errorf("%s: %w", ErrorKindSync, err)
	}

	return total, nil
}

// frontMatter renders the YAML header for one article.
func frontMatter(title string) string {
	slug := strings.ReplaceAll(title, " ", "_")

	return fmt.Sprintf("---\ntitle: %s\npermalink: /%s/\n---\n\n", title, slug)
}

// classify extracts the error kind prefix attached by writeFile.
func classify(err error) string {
	msg := err.Error()

	kind, _, found := strings.Cut(msg, ":")
	if !found {
		return ErrorKindWrite
	}

	return kind
}
