package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/wikimill/internal/checkpoint"
)

func pageXML(title string, ns int, text string) string {
	return fmt.Sprintf(`  <page>
    <title>%s</title>
    <ns>%d</ns>
    <revision>
      <text>%s</text>
    </revision>
  </page>
`, title, ns, text)
}

func redirectPageXML(title, target string) string {
	return fmt.Sprintf(`  <page>
    <title>%s</title>
    <ns>0</ns>
    <redirect title="%s" />
    <revision>
      <text>#REDIRECT [[%s]]</text>
    </revision>
  </page>
`, title, target, target)
}

func writeDump(t *testing.T, pages ...string) string {
	t.Helper()

	content := `<mediawiki xmlns="http://www.mediawiki.org/xml/export-0.10/" version="0.10">
  <siteinfo>
    <sitename>Testpedia</sitename>
  </siteinfo>
` + strings.Join(pages, "") + "</mediawiki>\n"

	path := filepath.Join(t.TempDir(), "dump.xml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func testOptions(t *testing.T, dumpPath string) Options {
	t.Helper()

	return Options{
		DumpPath:      dumpPath,
		OutputDir:     t.TempDir(),
		Format:        "markdown",
		BatchSize:     2,
		Workers:       2,
		SkipRedirects: true,
		ResumeOffset:  -1,
	}
}

func runPipeline(t *testing.T, opts Options) (*Report, error) {
	t.Helper()

	r, err := New(opts)
	require.NoError(t, err)

	return r.Run(context.Background())
}

func readOutput(t *testing.T, dir, name string) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)

	return string(data)
}

func TestRunner_ConvertsWholeDump(t *testing.T) {
	t.Parallel()

	dumpPath := writeDump(t,
		pageXML("Ada Lovelace", 0, "== Title ==\n'''bold''' and [[Link]]"),
		pageXML("Alan Turing", 0, "plain text"),
		pageXML("Grace Hopper", 0, "more text"),
	)
	opts := testOptions(t, dumpPath)

	report, err := runPipeline(t, opts)
	require.NoError(t, err)

	assert.Equal(t, int64(3), report.ArticlesConverted)
	assert.Equal(t, int64(0), report.ArticlesFailed)
	assert.Equal(t, int64(2), report.BatchesFlushed)
	assert.False(t, report.Interrupted)

	assert.Equal(t, "## Title\n\n**bold** and [Link](Link)",
		readOutput(t, opts.OutputDir, "Ada_Lovelace.md"))
	assert.Equal(t, "plain text", readOutput(t, opts.OutputDir, "Alan_Turing.md"))
	assert.Equal(t, "more text", readOutput(t, opts.OutputDir, "Grace_Hopper.md"))

	// Checkpoint lands on the final record boundary.
	mgr := checkpoint.NewManager(checkpoint.DefaultDir(opts.OutputDir))
	state, err := mgr.Load()
	require.NoError(t, err)
	assert.Equal(t, report.FinalOffset, state.LastCommittedOffset)
	assert.Equal(t, int64(3), state.ArticlesWritten)

	// The run report is persisted alongside the output.
	saved, err := LoadReport(opts.OutputDir)
	require.NoError(t, err)
	assert.Equal(t, int64(3), saved.ArticlesConverted)
}

func TestRunner_BatchBoundsAndDuplicateTitles(t *testing.T) {
	t.Parallel()

	dumpPath := writeDump(t,
		pageXML("Mercury", 0, "planet"),
		pageXML("Venus", 0, "planet"),
		pageXML("Mercury", 0, "element"),
	)
	opts := testOptions(t, dumpPath)

	report, err := runPipeline(t, opts)
	require.NoError(t, err)

	// Batch size 2 over three articles yields two flushes.
	assert.Equal(t, int64(2), report.BatchesFlushed)

	assert.Equal(t, "planet", readOutput(t, opts.OutputDir, "Mercury.md"))
	assert.Equal(t, "element", readOutput(t, opts.OutputDir, "Mercury-2.md"))
}

func TestRunner_FrontMatter(t *testing.T) {
	t.Parallel()

	dumpPath := writeDump(t, pageXML("Ada Lovelace", 0, "body"))
	opts := testOptions(t, dumpPath)
	opts.FrontMatter = true

	_, err := runPipeline(t, opts)
	require.NoError(t, err)

	assert.Equal(t, "---\ntitle: Ada Lovelace\npermalink: /Ada_Lovelace/\n---\n\nbody",
		readOutput(t, opts.OutputDir, "Ada_Lovelace.md"))
}

func TestRunner_SkipsRedirectsNamespacesAndEmpty(t *testing.T) {
	t.Parallel()

	dumpPath := writeDump(t,
		pageXML("Keep", 0, "kept"),
		redirectPageXML("Old Name", "Keep"),
		pageXML("Talk:Keep", 1, "chatter"),
		pageXML("Blank", 0, "   "),
	)
	opts := testOptions(t, dumpPath)
	opts.Namespaces = []int{0}

	report, err := runPipeline(t, opts)
	require.NoError(t, err)

	assert.Equal(t, int64(1), report.ArticlesConverted)
	assert.Equal(t, int64(1), report.Skipped.Redirect)
	assert.Equal(t, int64(1), report.Skipped.Namespace)
	assert.Equal(t, int64(1), report.Skipped.Empty)

	entries, err := os.ReadDir(opts.OutputDir)
	require.NoError(t, err)

	var files []string

	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, e.Name())
		}
	}

	assert.Equal(t, []string{"Keep.md"}, files)
}

func TestRunner_ResumeAfterCompletionIsNoOp(t *testing.T) {
	t.Parallel()

	dumpPath := writeDump(t,
		pageXML("Alpha", 0, "one"),
		pageXML("Beta", 0, "two"),
	)
	opts := testOptions(t, dumpPath)

	first, err := runPipeline(t, opts)
	require.NoError(t, err)
	require.Equal(t, int64(2), first.ArticlesConverted)

	second, err := runPipeline(t, opts)
	require.NoError(t, err)
	assert.Equal(t, int64(0), second.ArticlesConverted)
	assert.Equal(t, first.FinalOffset, second.ResumedFromOffset)
	assert.Equal(t, first.FinalOffset, second.FinalOffset)
}

func TestRunner_FailedBatchKeepsCheckpointAtBatchStart(t *testing.T) {
	t.Parallel()

	dumpPath := writeDump(t,
		pageXML("Alpha", 0, "one"),
		pageXML("Beta", 0, "two"),
		pageXML("Gamma", 0, "three"),
		pageXML("Blocked", 0, "four"),
	)
	opts := testOptions(t, dumpPath)

	// A directory squatting on Blocked's filename fails its write. Batch one
	// is {Alpha, Beta}; batch two {Gamma, Blocked} fails.
	require.NoError(t, os.MkdirAll(filepath.Join(opts.OutputDir, "Blocked.md"), 0o750))

	report, err := runPipeline(t, opts)
	require.ErrorIs(t, err, ErrArticleWrite)
	assert.Equal(t, int64(3), report.ArticlesConverted)
	assert.Equal(t, int64(1), report.ArticlesFailed)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "Blocked", report.Failures[0].Title)

	// The checkpoint still points at the end of batch one.
	mgr := checkpoint.NewManager(checkpoint.DefaultDir(opts.OutputDir))
	state, err := mgr.Load()
	require.NoError(t, err)
	assert.Equal(t, int64(2), state.ArticlesWritten)
	assert.Equal(t, report.FinalOffset, state.LastCommittedOffset)

	// Clearing the obstruction and resuming replays the whole failed batch.
	require.NoError(t, os.Remove(filepath.Join(opts.OutputDir, "Blocked.md")))

	resumed, err := runPipeline(t, opts)
	require.NoError(t, err)
	assert.Equal(t, int64(2), resumed.ArticlesConverted)
	assert.Equal(t, state.LastCommittedOffset, resumed.ResumedFromOffset)

	assert.Equal(t, "three", readOutput(t, opts.OutputDir, "Gamma.md"))
	assert.Equal(t, "four", readOutput(t, opts.OutputDir, "Blocked.md"))

	// Replay is idempotent: exactly one file per article.
	entries, err := os.ReadDir(opts.OutputDir)
	require.NoError(t, err)

	var files int

	for _, e := range entries {
		if !e.IsDir() {
			files++
		}
	}

	assert.Equal(t, 4, files)
}

func TestRunner_ExplicitResumeOffset(t *testing.T) {
	t.Parallel()

	dumpPath := writeDump(t,
		pageXML("Alpha", 0, "one"),
		pageXML("Beta", 0, "two"),
	)
	opts := testOptions(t, dumpPath)
	opts.BatchSize = 1

	first, err := runPipeline(t, opts)
	require.NoError(t, err)
	require.Equal(t, int64(2), first.BatchesFlushed)

	// Wipe the output but replay explicitly from offset zero.
	require.NoError(t, os.RemoveAll(opts.OutputDir))

	opts.ResumeOffset = 0

	second, err := runPipeline(t, opts)
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.ArticlesConverted)
	assert.Equal(t, int64(0), second.ResumedFromOffset)
	assert.Equal(t, "one", readOutput(t, opts.OutputDir, "Alpha.md"))
}

func TestRunner_FormatMismatchedCheckpointFails(t *testing.T) {
	t.Parallel()

	dumpPath := writeDump(t, pageXML("Alpha", 0, "one"))
	opts := testOptions(t, dumpPath)

	_, err := runPipeline(t, opts)
	require.NoError(t, err)

	// Same checkpoint, different target format.
	opts.Format = "html"

	_, err = runPipeline(t, opts)
	require.ErrorIs(t, err, checkpoint.ErrFormatMismatch)
}

func TestRunner_ClearCheckpointStartsFresh(t *testing.T) {
	t.Parallel()

	dumpPath := writeDump(t,
		pageXML("Alpha", 0, "one"),
		pageXML("Beta", 0, "two"),
	)
	opts := testOptions(t, dumpPath)

	first, err := runPipeline(t, opts)
	require.NoError(t, err)
	require.Equal(t, int64(2), first.ArticlesConverted)

	opts.ClearCheckpoint = true

	second, err := runPipeline(t, opts)
	require.NoError(t, err)
	assert.Equal(t, int64(0), second.ResumedFromOffset)
	assert.Equal(t, int64(2), second.ArticlesConverted)
}

func TestRunner_MemoryBoundSplitsBatches(t *testing.T) {
	t.Parallel()

	big := strings.Repeat("x", 400)

	dumpPath := writeDump(t,
		pageXML("One", 0, big),
		pageXML("Two", 0, big),
		pageXML("Three", 0, big),
	)
	opts := testOptions(t, dumpPath)
	opts.BatchSize = 100
	opts.MemLimit = 500

	report, err := runPipeline(t, opts)
	require.NoError(t, err)

	// Each article alone exceeds the remaining headroom, so every flush holds
	// exactly one article.
	assert.Equal(t, int64(3), report.ArticlesConverted)
	assert.Equal(t, int64(3), report.BatchesFlushed)
}

func TestRunner_WarnsOnCriticalMemoryPressure(t *testing.T) {
	t.Parallel()

	// One article filling 95% of the ceiling accumulates without sealing, so
	// the critical pressure level must surface in the log.
	big := strings.Repeat("x", 950)

	dumpPath := writeDump(t, pageXML("One", 0, big))
	opts := testOptions(t, dumpPath)
	opts.BatchSize = 100
	opts.MemLimit = 1000

	var logs bytes.Buffer

	opts.Logger = slog.New(slog.NewTextHandler(&logs, nil))

	report, err := runPipeline(t, opts)
	require.NoError(t, err)
	require.Equal(t, int64(1), report.ArticlesConverted)

	assert.Contains(t, logs.String(), "batch memory pressure critical")
}

func TestRunner_UnknownFormatRejected(t *testing.T) {
	t.Parallel()

	_, err := New(Options{Format: "pdf"})
	require.Error(t, err)
}
