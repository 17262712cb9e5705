// Package observability exposes conversion pipeline metrics through OTel
// instruments with a Prometheus scrape endpoint.
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricArticlesConverted = "wikimill.articles.converted"
	metricArticlesSkipped   = "wikimill.articles.skipped"
	metricArticlesFailed    = "wikimill.articles.failed"
	metricBatchesFlushed    = "wikimill.batches.flushed"
	metricDumpBytesRead     = "wikimill.dump.bytes.read"
	metricFlushDuration     = "wikimill.batch.flush.duration.seconds"
	metricBatchSizeBytes    = "wikimill.batch.size.bytes"

	attrReason = "reason"
	attrKind   = "kind"
)

// Skip reasons recorded on the skipped-articles counter.
const (
	SkipReasonNamespace = "namespace"
	SkipReasonRedirect  = "redirect"
	SkipReasonEmpty     = "empty"
)

// flushBucketBoundaries covers 1ms to 30s; a flush is bounded by batch size,
// not dump size.
var flushBucketBoundaries = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// batchSizeBucketBoundaries covers 64KiB to 1GiB of buffered output.
var batchSizeBucketBoundaries = []float64{
	64 << 10, 256 << 10, 1 << 20, 4 << 20, 16 << 20, 64 << 20, 256 << 20, 1 << 30,
}

// ConverterMetrics holds the OTel instruments for the conversion pipeline.
type ConverterMetrics struct {
	articlesConverted metric.Int64Counter
	articlesSkipped   metric.Int64Counter
	articlesFailed    metric.Int64Counter
	batchesFlushed    metric.Int64Counter
	dumpBytesRead     metric.Int64Counter
	flushDuration     metric.Float64Histogram
	batchSizeBytes    metric.Float64Histogram
}

// NewConverterMetrics creates pipeline metric instruments from the given meter.
func NewConverterMetrics(mt metric.Meter) (*ConverterMetrics, error) {
	b := newMetricBuilder(mt)

	cm := &ConverterMetrics{
		articlesConverted: b.counter(metricArticlesConverted, "Articles converted and durably written", "{article}"),
		articlesSkipped:   b.counter(metricArticlesSkipped, "Articles skipped before conversion", "{article}"),
		articlesFailed:    b.counter(metricArticlesFailed, "Articles whose output write failed", "{article}"),
		batchesFlushed:    b.counter(metricBatchesFlushed, "Batches flushed to the output directory", "{batch}"),
		dumpBytesRead:     b.counter(metricDumpBytesRead, "Decompressed dump bytes consumed", "By"),
		flushDuration:     b.histogram(metricFlushDuration, "Batch flush duration in seconds", "s", flushBucketBoundaries...),
		batchSizeBytes:    b.histogram(metricBatchSizeBytes, "Estimated batch size at flush", "By", batchSizeBucketBoundaries...),
	}

	if b.err != nil {
		return nil, b.err
	}

	return cm, nil
}

// RecordConverted counts articles written durably in a flush.
func (cm *ConverterMetrics) RecordConverted(ctx context.Context, n int64) {
	cm.articlesConverted.Add(ctx, n)
}

// RecordSkipped counts an article skipped for the given reason.
func (cm *ConverterMetrics) RecordSkipped(ctx context.Context, reason string) {
	cm.articlesSkipped.Add(ctx, 1, metric.WithAttributes(attribute.String(attrReason, reason)))
}

// RecordFailed counts an article whose write failed, by error kind.
func (cm *ConverterMetrics) RecordFailed(ctx context.Context, kind string) {
	cm.articlesFailed.Add(ctx, 1, metric.WithAttributes(attribute.String(attrKind, kind)))
}

// RecordFlush records one completed batch flush.
func (cm *ConverterMetrics) RecordFlush(ctx context.Context, sizeBytes int64, duration time.Duration) {
	cm.batchesFlushed.Add(ctx, 1)
	cm.batchSizeBytes.Record(ctx, float64(sizeBytes))
	cm.flushDuration.Record(ctx, duration.Seconds())
}

// RecordBytesRead counts decompressed dump bytes advanced by the reader.
func (cm *ConverterMetrics) RecordBytesRead(ctx context.Context, n int64) {
	cm.dumpBytesRead.Add(ctx, n)
}
