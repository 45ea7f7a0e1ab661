package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/spool/ext"
	"github.com/xraph/spool/job"
	"github.com/xraph/spool/printer"
)

// meterName is the instrumentation scope of the lifecycle metrics.
const meterName = "github.com/xraph/spool/observability"

// Compile-time interface checks.
var (
	_ ext.Extension            = (*MetricsExtension)(nil)
	_ ext.JobSubmitted         = (*MetricsExtension)(nil)
	_ ext.JobPrinting          = (*MetricsExtension)(nil)
	_ ext.JobCompleted         = (*MetricsExtension)(nil)
	_ ext.JobFailed            = (*MetricsExtension)(nil)
	_ ext.JobRetrying          = (*MetricsExtension)(nil)
	_ ext.JobExhausted         = (*MetricsExtension)(nil)
	_ ext.JobCancelled         = (*MetricsExtension)(nil)
	_ ext.JobBatched           = (*MetricsExtension)(nil)
	_ ext.PrinterStatusChanged = (*MetricsExtension)(nil)
	_ ext.QueueProcessed       = (*MetricsExtension)(nil)
)

// MetricsExtension records system-wide lifecycle metrics through an OTel
// meter. Register it as an extension to track submission rates,
// completion and failure counts, retries, batches and queue passes.
type MetricsExtension struct {
	JobSubmitted  metric.Int64Counter
	JobPrinting   metric.Int64Counter
	JobCompleted  metric.Int64Counter
	JobFailed     metric.Int64Counter
	JobRetried    metric.Int64Counter
	JobExhausted  metric.Int64Counter
	JobCancelled  metric.Int64Counter
	JobsBatched   metric.Int64Counter
	PrintLatency  metric.Float64Histogram
	PrinterStatus metric.Int64Counter
	QueuePasses   metric.Int64Counter
	QueueDuration metric.Float64Histogram
}

// NewMetricsExtension creates a MetricsExtension on the global
// MeterProvider.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the provided
// meter. Instrument creation errors fall back to noop instruments.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	counter := func(name, desc string) metric.Int64Counter {
		c, _ := meter.Int64Counter(name, metric.WithDescription(desc))
		return c
	}
	latency, _ := meter.Float64Histogram("spool.job.latency",
		metric.WithDescription("Time from submission to completion in seconds"),
		metric.WithUnit("s"),
	)
	queueDuration, _ := meter.Float64Histogram("spool.queue.duration",
		metric.WithDescription("Duration of queue processing passes in seconds"),
		metric.WithUnit("s"),
	)

	return &MetricsExtension{
		JobSubmitted:  counter("spool.job.submitted", "Jobs submitted"),
		JobPrinting:   counter("spool.job.printing", "Jobs handed to a print sink"),
		JobCompleted:  counter("spool.job.completed", "Jobs printed successfully"),
		JobFailed:     counter("spool.job.failed", "Jobs failed permanently"),
		JobRetried:    counter("spool.job.retried", "Retry attempts"),
		JobExhausted:  counter("spool.job.exhausted", "Jobs failed after exhausting retries"),
		JobCancelled:  counter("spool.job.cancelled", "Jobs cancelled or merged into a batch"),
		JobsBatched:   counter("spool.job.batched", "Label jobs merged into batches"),
		PrintLatency:  latency,
		PrinterStatus: counter("spool.printer.status_changes", "Printer activation changes"),
		QueuePasses:   counter("spool.queue.passes", "Queue processing passes"),
		QueueDuration: queueDuration,
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

func jobAttrs(j *job.Job) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("document_type", j.DocumentType),
		attribute.String("format", string(j.Format)),
	)
}

// ── Job lifecycle hooks ─────────────────────────────

// OnJobSubmitted implements ext.JobSubmitted.
func (m *MetricsExtension) OnJobSubmitted(ctx context.Context, j *job.Job) error {
	m.JobSubmitted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("document_type", j.DocumentType),
		attribute.String("format", string(j.Format)),
		attribute.Bool("offline", j.Offline),
	))
	return nil
}

// OnJobPrinting implements ext.JobPrinting.
func (m *MetricsExtension) OnJobPrinting(ctx context.Context, j *job.Job) error {
	m.JobPrinting.Add(ctx, 1, jobAttrs(j))
	return nil
}

// OnJobCompleted implements ext.JobCompleted.
func (m *MetricsExtension) OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error {
	m.JobCompleted.Add(ctx, 1, jobAttrs(j))
	m.PrintLatency.Record(ctx, elapsed.Seconds(), jobAttrs(j))
	return nil
}

// OnJobFailed implements ext.JobFailed.
func (m *MetricsExtension) OnJobFailed(ctx context.Context, j *job.Job, _ error) error {
	m.JobFailed.Add(ctx, 1, jobAttrs(j))
	return nil
}

// OnJobRetrying implements ext.JobRetrying.
func (m *MetricsExtension) OnJobRetrying(ctx context.Context, j *job.Job, _ int, _ time.Time) error {
	m.JobRetried.Add(ctx, 1, jobAttrs(j))
	return nil
}

// OnJobExhausted implements ext.JobExhausted.
func (m *MetricsExtension) OnJobExhausted(ctx context.Context, j *job.Job) error {
	m.JobExhausted.Add(ctx, 1, jobAttrs(j))
	return nil
}

// OnJobCancelled implements ext.JobCancelled.
func (m *MetricsExtension) OnJobCancelled(ctx context.Context, j *job.Job) error {
	m.JobCancelled.Add(ctx, 1, jobAttrs(j))
	return nil
}

// OnJobBatched implements ext.JobBatched.
func (m *MetricsExtension) OnJobBatched(ctx context.Context, _ *job.Job, merged int) error {
	m.JobsBatched.Add(ctx, int64(merged))
	return nil
}

// ── Printer and queue hooks ─────────────────────────

// OnPrinterStatusChanged implements ext.PrinterStatusChanged.
func (m *MetricsExtension) OnPrinterStatusChanged(ctx context.Context, p *printer.Printer) error {
	m.PrinterStatus.Add(ctx, 1, metric.WithAttributes(
		attribute.String("printer", p.Name),
		attribute.Bool("active", p.Active),
	))
	return nil
}

// OnQueueProcessed implements ext.QueueProcessed.
func (m *MetricsExtension) OnQueueProcessed(ctx context.Context, s ext.QueueSummary) error {
	m.QueuePasses.Add(ctx, 1)
	m.QueueDuration.Record(ctx, s.Elapsed.Seconds())
	return nil
}
