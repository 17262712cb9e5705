// Package commands implements CLI command handlers for wikimill.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/wikimill/internal/config"
	"github.com/Sumatoshi-tech/wikimill/internal/observability"
	"github.com/Sumatoshi-tech/wikimill/internal/pipeline"
)

// metricsReadHeaderTimeout bounds slow scrape clients.
const metricsReadHeaderTimeout = 5 * time.Second

// metricsShutdownTimeout bounds the scrape endpoint drain on exit.
const metricsShutdownTimeout = 2 * time.Second

// ConvertCommand holds configuration for the convert command.
type ConvertCommand struct {
	output        string
	format        string
	batchSize     int
	memLimit      string
	workers       int
	maxRecordSize string
	namespaces    []int
	skipRedirects bool
	frontMatter   bool

	resumeFrom      int64
	checkpointDir   string
	clearCheckpoint bool

	metricsAddr string
	configPath  string
	silent      bool
	noColor     bool
}

// NewConvertCommand creates the convert command.
func NewConvertCommand() *cobra.Command {
	cc := &ConvertCommand{}

	cmd := &cobra.Command{
		Use:   "convert <dump-file>",
		Short: "Convert a MediaWiki XML dump into per-article files",
		Long: `Convert streams a MediaWiki XML dump (plain, .bz2, .gz, or .lz4) into one
output file per article, flushing in batches and checkpointing after every
durable batch so an interrupted run resumes where it left off.

Examples:
  wikimill convert enwiki-latest-pages-articles.xml.bz2 -o articles/
  wikimill convert dump.xml --format html --batch-size 500
  wikimill convert dump.xml --resume-from -1   # resume from checkpoint`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cc.run(cmd, args[0])
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&cc.output, "output", "o", "output", "output directory for article files")
	flags.StringVarP(&cc.format, "format", "f", config.DefaultFormat, "output format (markdown, html)")
	flags.IntVarP(&cc.batchSize, "batch-size", "b", config.DefaultBatchSize, "max articles per flushed batch")
	flags.StringVar(&cc.memLimit, "mem-limit", config.DefaultMemLimit, "batch memory ceiling (e.g. 256MB, 1GiB)")
	flags.IntVarP(&cc.workers, "workers", "w", config.DefaultWorkers, "transform workers (0 = all CPUs)")
	flags.StringVar(&cc.maxRecordSize, "max-record-size", config.DefaultMaxRecordSize, "per-record scan ceiling")
	flags.IntSliceVar(&cc.namespaces, "namespaces", []int{0}, "namespace ids to convert")
	flags.BoolVar(&cc.skipRedirects, "skip-redirects", config.DefaultSkipRedirects, "skip redirect pages")
	flags.BoolVar(&cc.frontMatter, "front-matter", config.DefaultFrontMatter, "prepend YAML front matter (markdown only)")
	flags.Int64Var(&cc.resumeFrom, "resume-from", -1, "resume offset (-1 = from checkpoint, 0 = fresh start)")
	flags.StringVar(&cc.checkpointDir, "checkpoint-dir", "", "checkpoint directory (default <output>/.wikimill)")
	flags.BoolVar(&cc.clearCheckpoint, "clear-checkpoint", false, "discard any prior checkpoint before starting")
	flags.StringVar(&cc.metricsAddr, "metrics-addr", config.DefaultMetricsAddr, "Prometheus scrape address (empty = disabled)")
	flags.StringVarP(&cc.configPath, "config", "c", "", "config file path")
	flags.BoolVarP(&cc.silent, "silent", "s", false, "suppress progress logging")
	flags.BoolVar(&cc.noColor, "no-color", false, "disable colored output")

	return cmd
}

func (cc *ConvertCommand) run(cmd *cobra.Command, dumpPath string) error {
	if cc.noColor {
		color.NoColor = true //nolint:reassign // intentional override of library global
	}

	cfg, err := config.LoadConfig(cc.configPath)
	if err != nil {
		return err
	}

	cc.applyConfig(cmd, cfg)

	validateErr := cfg.Validate()
	if validateErr != nil {
		return validateErr
	}

	memLimit, err := cfg.MemLimitBytes()
	if err != nil {
		return err
	}

	maxRecord, err := cfg.MaxRecordSizeBytes()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Logging.Level, cfg.Logging.Silent)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics, stopMetrics, err := cc.startMetrics(logger)
	if err != nil {
		return err
	}
	defer stopMetrics()

	runner, err := pipeline.New(pipeline.Options{
		DumpPath:        dumpPath,
		OutputDir:       cc.output,
		Format:          cfg.Convert.Format,
		BatchSize:       cfg.Convert.BatchSize,
		MemLimit:        memLimit,
		Workers:         cfg.Convert.Workers,
		MaxRecordSize:   maxRecord,
		Namespaces:      cfg.Convert.Namespaces,
		SkipRedirects:   cfg.Convert.SkipRedirects,
		FrontMatter:     cfg.Convert.FrontMatter,
		ResumeOffset:    cc.resumeFrom,
		CheckpointDir:   cc.checkpointDir,
		ClearCheckpoint: cc.clearCheckpoint,
		Logger:          logger,
		Metrics:         metrics,
	})
	if err != nil {
		return err
	}

	report, runErr := runner.Run(ctx)
	if report != nil {
		cc.printSummary(report, runErr)
	}

	return runErr
}

// applyConfig fills unset flags from the loaded config. Explicit flags win.
func (cc *ConvertCommand) applyConfig(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	if flags.Changed("format") {
		cfg.Convert.Format = cc.format
	}

	if flags.Changed("batch-size") {
		cfg.Convert.BatchSize = cc.batchSize
	}

	if flags.Changed("mem-limit") {
		cfg.Convert.MemLimit = cc.memLimit
	}

	if flags.Changed("workers") {
		cfg.Convert.Workers = cc.workers
	}

	if flags.Changed("max-record-size") {
		cfg.Convert.MaxRecordSize = cc.maxRecordSize
	}

	if flags.Changed("namespaces") {
		cfg.Convert.Namespaces = cc.namespaces
	}

	if flags.Changed("skip-redirects") {
		cfg.Convert.SkipRedirects = cc.skipRedirects
	}

	if flags.Changed("front-matter") {
		cfg.Convert.FrontMatter = cc.frontMatter
	}

	if flags.Changed("metrics-addr") {
		cfg.Metrics.Addr = cc.metricsAddr
	}

	if flags.Changed("silent") {
		cfg.Logging.Silent = cc.silent
	}

	if cc.checkpointDir == "" {
		cc.checkpointDir = cfg.Checkpoint.Dir
	}

	if cfg.Checkpoint.ClearPrev {
		cc.clearCheckpoint = true
	}

	cc.metricsAddr = cfg.Metrics.Addr
}

// startMetrics serves the Prometheus scrape endpoint when an address is
// configured. The returned stop function is always safe to call.
func (cc *ConvertCommand) startMetrics(logger *slog.Logger) (*observability.ConverterMetrics, func(), error) {
	if cc.metricsAddr == "" {
		return nil, func() {}, nil
	}

	handler, meter, err := observability.PrometheusHandler()
	if err != nil {
		return nil, nil, err
	}

	metrics, err := observability.NewConverterMetrics(meter)
	if err != nil {
		return nil, nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	srv := &http.Server{
		Addr:              cc.metricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: metricsReadHeaderTimeout,
	}

	go func() {
		serveErr := srv.ListenAndServe()
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Warn("metrics endpoint stopped", "addr", cc.metricsAddr, "error", serveErr)
		}
	}()

	stop := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
	}

	return metrics, stop, nil
}

func (cc *ConvertCommand) printSummary(report *pipeline.Report, runErr error) {
	switch {
	case runErr != nil:
		color.New(color.FgRed).Fprintf(os.Stdout, "Conversion failed: %v\n\n", runErr)
	case report.Interrupted:
		color.New(color.FgYellow).Fprintf(os.Stdout, "Conversion interrupted; progress checkpointed\n\n")
	default:
		color.New(color.FgGreen).Fprintf(os.Stdout, "Conversion complete\n\n")
	}

	tbl := table.NewWriter()
	tbl.SetOutputMirror(os.Stdout)
	tbl.SetStyle(table.StyleLight)

	tbl.AppendRows([]table.Row{
		{"Dump", report.DumpPath},
		{"Output", report.OutputDir},
		{"Format", report.Format},
		{"Articles converted", report.ArticlesConverted},
		{"Articles failed", report.ArticlesFailed},
		{"Articles skipped", report.Skipped.Total()},
		{"Batches flushed", report.BatchesFlushed},
		{"Bytes written", humanize.Bytes(uint64(report.BytesWritten))},
		{"Final offset", report.FinalOffset},
		{"Duration", report.Duration},
	})

	tbl.Render()

	fmt.Fprintf(os.Stdout, "\nRun report: %s\n", pipeline.ReportPath(report.OutputDir))
}

// newLogger builds the run logger. Silent mode discards everything.
func newLogger(level string, silent bool) *slog.Logger {
	if silent {
		return slog.New(discardHandler{})
	}

	var lvl slog.Level

	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// discardHandler backports slog.DiscardHandler (Go 1.24) for the Go 1.21
// toolchain: it discards all log output and reports every level disabled.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (discardHandler) WithAttrs([]slog.Attr) slog.Handler        { return discardHandler{} }
func (discardHandler) WithGroup(string) slog.Handler             { return discardHandler{} }
