// Package pipeline drives the conversion run: dump records in, converted
// article files out, with batched flushes and checkpointed progress.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/Sumatoshi-tech/wikimill/internal/batch"
	"github.com/Sumatoshi-tech/wikimill/internal/checkpoint"
	"github.com/Sumatoshi-tech/wikimill/internal/dump"
	"github.com/Sumatoshi-tech/wikimill/internal/observability"
	"github.com/Sumatoshi-tech/wikimill/internal/sink"
	"github.com/Sumatoshi-tech/wikimill/internal/wikitext"
)

// ErrArticleWrite indicates a batch flush with at least one failed article.
// The checkpoint stays at the batch's start offset so a later run replays the
// whole batch.
var ErrArticleWrite = errors.New("article write failed")

// defaultBatchSize bounds a batch's article count when the caller passes zero.
const defaultBatchSize = 1000

// outputDirPerm is the permission for the created output directory.
const outputDirPerm = 0o750

// Options configures a conversion run.
type Options struct {
	DumpPath  string
	OutputDir string

	// Format is a registered wikitext format selector.
	Format string

	// BatchSize bounds the article count per flush.
	BatchSize int

	// MemLimit bounds the estimated buffered batch size in bytes. Zero means
	// unbounded.
	MemLimit int64

	// Workers sizes the transform pool. Zero means runtime.NumCPU.
	Workers int

	// MaxRecordSize bounds the extraction scan window in bytes.
	MaxRecordSize int64

	// Namespaces restricts conversion to the listed namespace ids. Empty means
	// every namespace.
	Namespaces []int

	SkipRedirects bool
	FrontMatter   bool

	// ResumeOffset of -1 resumes from the checkpoint when one exists. Zero or
	// a previously committed offset positions the dump explicitly.
	ResumeOffset int64

	// CheckpointDir overrides the default <output>/.wikimill location.
	CheckpointDir string

	// ClearCheckpoint discards any prior checkpoint before starting.
	ClearCheckpoint bool

	Logger  *slog.Logger
	Metrics *observability.ConverterMetrics
}

// Runner executes the conversion pipeline. One goroutine reads the dump, a
// worker pool transforms wikitext, and the control loop reassembles results in
// record order for batching, writing, and checkpointing.
type Runner struct {
	opts       Options
	renderer   wikitext.Renderer
	namespaces map[int]struct{}
	manager    *checkpoint.Manager
	log        *slog.Logger
	metrics    *observability.ConverterMetrics
}

// New validates options and creates a runner.
func New(opts Options) (*Runner, error) {
	renderer, err := wikitext.Lookup(opts.Format)
	if err != nil {
		return nil, err
	}

	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}

	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}

	if opts.Logger == nil {
		opts.Logger = slog.New(discardHandler{})
	}

	dir := opts.CheckpointDir
	if dir == "" {
		dir = checkpoint.DefaultDir(opts.OutputDir)
	}

	r := &Runner{
		opts:     opts,
		renderer: renderer,
		manager:  checkpoint.NewManager(dir),
		log:      opts.Logger,
		metrics:  opts.Metrics,
	}

	if len(opts.Namespaces) > 0 {
		r.namespaces = make(map[int]struct{}, len(opts.Namespaces))
		for _, ns := range opts.Namespaces {
			r.namespaces[ns] = struct{}{}
		}
	}

	return r, nil
}

// job pairs a dump record with the channel its conversion result arrives on.
type job struct {
	record *dump.ArticleRecord
	out    chan batch.ConvertedArticle
}

// producerState carries the read goroutine's outcome to the control loop. It
// is written before the futures channel closes and read only after.
type producerState struct {
	err     error
	stopped bool
	skips   SkipCounts
}

// Run converts the dump until end of input, a write failure, or context
// cancellation. The report is non-nil on every return and is also persisted
// to the output logs directory.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	started := time.Now()

	report := &Report{
		DumpPath:  r.opts.DumpPath,
		OutputDir: r.opts.OutputDir,
		Format:    r.opts.Format,
		StartedAt: started.UTC().Format(time.RFC3339),
	}

	runErr := r.execute(ctx, report)

	report.FinishedAt = time.Now().UTC().Format(time.RFC3339)
	report.Duration = time.Since(started).Round(time.Millisecond).String()

	saveErr := SaveReport(r.opts.OutputDir, report)
	if saveErr != nil {
		if runErr == nil {
			runErr = saveErr
		} else {
			r.log.Warn("save run report", "error", saveErr)
		}
	}

	r.log.Info("conversion finished",
		"converted", report.ArticlesConverted,
		"failed", report.ArticlesFailed,
		"skipped", report.Skipped.Total(),
		"batches", report.BatchesFlushed,
		"final_offset", report.FinalOffset,
		"interrupted", report.Interrupted,
		"duration", report.Duration,
	)

	return report, runErr
}

func (r *Runner) execute(ctx context.Context, report *Report) error {
	if r.opts.ClearCheckpoint {
		err := r.manager.Clear()
		if err != nil {
			return err
		}
	}

	start, seedCounts, priorWritten, err := r.resolveStart()
	if err != nil {
		return err
	}

	report.ResumedFromOffset = start
	report.FinalOffset = start

	err = os.MkdirAll(r.opts.OutputDir, outputDirPerm)
	if err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	reader, err := dump.Open(r.opts.DumpPath, start, int(r.opts.MaxRecordSize))
	if err != nil {
		return err
	}
	defer reader.Close()

	names := sink.NewNameAllocator(seedCounts)
	writer := sink.NewWriter(r.opts.OutputDir, r.renderer.Extension(), names)
	writer.FrontMatter = r.opts.FrontMatter && r.opts.Format == wikitext.FormatMarkdown

	exec := &execution{
		runner:       r,
		sched:        batch.NewScheduler(r.opts.BatchSize, batch.Governor{Ceiling: r.opts.MemLimit}, start),
		writer:       writer,
		names:        names,
		report:       report,
		priorWritten: priorWritten,
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan job)
	futures := make(chan chan batch.ConvertedArticle, r.opts.Workers*2)

	var wg sync.WaitGroup
	for i := 0; i < r.opts.Workers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()
			r.transform(jobs)
		}()
	}

	prod := &producerState{}

	go r.produce(runCtx, reader, jobs, futures, prod)

	var flushErr error

	interrupted := false

	for out := range futures {
		article := <-out

		flushErr = exec.place(ctx, article)
		if flushErr != nil {
			break
		}

		if ctx.Err() != nil {
			interrupted = true

			break
		}
	}

	// Unblock the producer on early exit, then wait for the channel to close
	// so reading prod is race-free.
	cancel()

	for range futures { //nolint:revive // drain to closure
	}

	wg.Wait()

	if flushErr == nil && prod.err == nil {
		// End of dump or graceful stop: flush whatever is buffered so the
		// checkpoint lands on a durable boundary.
		flushErr = exec.flush(ctx, exec.sched.Drain())
	}

	report.Interrupted = interrupted || prod.stopped
	report.Skipped = prod.skips

	if r.metrics != nil {
		r.metrics.RecordBytesRead(ctx, reader.Offset()-start)
	}

	if prod.err != nil {
		return prod.err
	}

	return flushErr
}

// resolveStart determines the starting offset and, when resuming, the name
// counts and article total committed by the previous run.
func (r *Runner) resolveStart() (int64, map[string]int, int64, error) {
	if r.opts.ResumeOffset >= 0 {
		if r.opts.ResumeOffset > 0 && r.manager.Exists() {
			// An explicit offset matching the checkpoint keeps filename
			// continuity; any other offset starts with fresh counts.
			state, err := r.manager.Load()
			if err == nil && state.LastCommittedOffset == r.opts.ResumeOffset &&
				r.manager.Validate(state, r.opts.DumpPath, r.opts.Format) == nil {
				return r.opts.ResumeOffset, state.NameCounts, state.ArticlesWritten, nil
			}
		}

		return r.opts.ResumeOffset, nil, 0, nil
	}

	if !r.manager.Exists() {
		return 0, nil, 0, nil
	}

	state, err := r.manager.Load()
	if err != nil {
		return 0, nil, 0, fmt.Errorf("load checkpoint: %w", err)
	}

	err = r.manager.Validate(state, r.opts.DumpPath, r.opts.Format)
	if err != nil {
		return 0, nil, 0, err
	}

	r.log.Info("resuming from checkpoint",
		"offset", state.LastCommittedOffset,
		"articles_written", state.ArticlesWritten,
	)

	return state.LastCommittedOffset, state.NameCounts, state.ArticlesWritten, nil
}

// produce reads dump records, filters skips, and dispatches the rest to the
// worker pool. Result channels enter futures in record order, which is all
// the control loop needs to reassemble output deterministically.
func (r *Runner) produce(
	ctx context.Context,
	reader *dump.Reader,
	jobs chan<- job,
	futures chan<- chan batch.ConvertedArticle,
	prod *producerState,
) {
	defer close(futures)
	defer close(jobs)

	for {
		if ctx.Err() != nil {
			prod.stopped = true

			return
		}

		record, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return
		}

		if err != nil {
			prod.err = err

			return
		}

		if reason := r.skipReason(record); reason != "" {
			r.countSkip(ctx, prod, reason)

			continue
		}

		out := make(chan batch.ConvertedArticle, 1)

		select {
		case jobs <- job{record: record, out: out}:
		case <-ctx.Done():
			prod.stopped = true

			return
		}

		select {
		case futures <- out:
		case <-ctx.Done():
			prod.stopped = true

			return
		}
	}
}

// transform converts queued records until the jobs channel closes.
func (r *Runner) transform(jobs <-chan job) {
	for j := range jobs {
		body := r.renderer.Render(wikitext.Parse(j.record.Text))

		j.out <- batch.ConvertedArticle{
			Title:              j.record.Title,
			Body:               body,
			SourceOffset:       j.record.ByteOffsetAfter,
			EstimatedSizeBytes: batch.EstimateSize(j.record.Title, body),
		}
	}
}

// skipReason classifies records excluded from conversion, or returns "".
func (r *Runner) skipReason(record *dump.ArticleRecord) string {
	if r.namespaces != nil {
		_, ok := r.namespaces[record.Namespace]
		if !ok {
			return observability.SkipReasonNamespace
		}
	}

	if r.opts.SkipRedirects && record.Redirect {
		return observability.SkipReasonRedirect
	}

	if strings.TrimSpace(record.Text) == "" {
		return observability.SkipReasonEmpty
	}

	return ""
}

func (r *Runner) countSkip(ctx context.Context, prod *producerState, reason string) {
	switch reason {
	case observability.SkipReasonNamespace:
		prod.skips.Namespace++
	case observability.SkipReasonRedirect:
		prod.skips.Redirect++
	case observability.SkipReasonEmpty:
		prod.skips.Empty++
	}

	if r.metrics != nil {
		r.metrics.RecordSkipped(ctx, reason)
	}
}

// execution holds the per-run mutable state shared by place and flush.
type execution struct {
	runner       *Runner
	sched        *batch.Scheduler
	writer       *sink.Writer
	names        *sink.NameAllocator
	report       *Report
	priorWritten int64
}

// place offers one converted article to the scheduler, flushing as many
// batches as the bounds demand.
func (e *execution) place(ctx context.Context, article batch.ConvertedArticle) error {
	for {
		accepted, sealedNow := e.sched.Offer(article)
		if accepted {
			if sealedNow {
				return e.flush(ctx, e.sched.Take())
			}

			switch e.sched.Pressure() {
			case batch.PressureCritical:
				e.runner.log.Warn("batch memory pressure critical",
					"buffered_bytes", e.sched.BufferedSize(),
				)
			case batch.PressureWarning:
				e.runner.log.Debug("batch memory pressure",
					"buffered_bytes", e.sched.BufferedSize(),
				)
			case batch.PressureNone:
			}

			return nil
		}

		// Memory ceiling sealed the batch without the candidate; flush and
		// re-offer.
		err := e.flush(ctx, e.sched.Take())
		if err != nil {
			return err
		}
	}
}

// flush writes one sealed batch and advances the checkpoint when every
// article in it is durable.
func (e *execution) flush(ctx context.Context, b *batch.Batch) error {
	if b == nil || len(b.Articles) == 0 {
		return nil
	}

	started := time.Now()
	result := e.writer.Write(b.Articles)

	e.report.BatchesFlushed++
	e.report.BytesWritten += result.BytesWritten
	e.report.ArticlesConverted += int64(len(result.Succeeded))

	if e.runner.metrics != nil {
		e.runner.metrics.RecordConverted(ctx, int64(len(result.Succeeded)))
		e.runner.metrics.RecordFlush(ctx, b.EstimatedSizeBytes, time.Since(started))
	}

	if !result.AllSucceeded() {
		e.report.ArticlesFailed += int64(len(result.Failed))

		for title, kind := range result.Failed {
			e.report.Failures = append(e.report.Failures, Failure{Title: title, Kind: kind})

			if e.runner.metrics != nil {
				e.runner.metrics.RecordFailed(ctx, kind)
			}
		}

		e.runner.log.Error("batch flush failed",
			"batch", b.Seq,
			"failed", len(result.Failed),
			"total", len(b.Articles),
			"checkpoint_offset", b.StartOffset,
		)

		return fmt.Errorf("%w: batch %d: %d of %d articles failed, checkpoint stays at offset %d",
			ErrArticleWrite, b.Seq, len(result.Failed), len(b.Articles), b.StartOffset)
	}

	err := e.runner.manager.Commit(checkpoint.State{
		DumpPath:            e.runner.opts.DumpPath,
		Format:              e.runner.opts.Format,
		LastCommittedOffset: b.EndOffset,
		ArticlesWritten:     e.priorWritten + e.report.ArticlesConverted,
		NameCounts:          e.names.Counts(),
	})
	if err != nil {
		return fmt.Errorf("commit checkpoint: %w", err)
	}

	e.sched.Committed(b.EndOffset)
	e.report.FinalOffset = b.EndOffset

	e.runner.log.Info("batch committed",
		"batch", b.Seq,
		"articles", len(b.Articles),
		"batch_bytes", b.EstimatedSizeBytes,
		"offset", b.EndOffset,
	)

	return nil
}

// discardHandler backports slog.DiscardHandler (Go 1.24) for the Go 1.21
// toolchain: it discards all log output and reports every level disabled.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (discardHandler) WithAttrs([]slog.Attr) slog.Handler        { return discardHandler{} }
func (discardHandler) WithGroup(string) slog.Handler             { return discardHandler{} }
