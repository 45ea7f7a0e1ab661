package observability_test

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/xraph/spool/ext"
	"github.com/xraph/spool/id"
	"github.com/xraph/spool/job"
	"github.com/xraph/spool/observability"
	"github.com/xraph/spool/printer"
)

func newTestExtension() (*observability.MetricsExtension, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return observability.NewMetricsExtensionWithMeter(mp.Meter("test")), reader
}

func newTestJob() *job.Job {
	return &job.Job{
		ID:           id.NewJobID(),
		Name:         "receipt-front-desk-00001",
		DocumentType: job.DocTypeReceipt,
		Format:       job.FormatHTML,
		Copies:       1,
	}
}

// sum returns the total of the named Int64 counter across data points, or
// -1 when the counter has not been recorded.
func sum(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			data, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s: unexpected data type %T", name, m.Data)
			}
			var total int64
			for _, dp := range data.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return -1
}

func TestMetricsExtension_Name(t *testing.T) {
	e, _ := newTestExtension()
	if e.Name() != "observability-metrics" {
		t.Errorf("expected name %q, got %q", "observability-metrics", e.Name())
	}
}

func TestMetricsExtension_JobHooks(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		metric string
		fire   func(e *observability.MetricsExtension, j *job.Job) error
	}{
		{"submitted", "spool.job.submitted", func(e *observability.MetricsExtension, j *job.Job) error {
			return e.OnJobSubmitted(ctx, j)
		}},
		{"printing", "spool.job.printing", func(e *observability.MetricsExtension, j *job.Job) error {
			return e.OnJobPrinting(ctx, j)
		}},
		{"completed", "spool.job.completed", func(e *observability.MetricsExtension, j *job.Job) error {
			return e.OnJobCompleted(ctx, j, 100*time.Millisecond)
		}},
		{"failed", "spool.job.failed", func(e *observability.MetricsExtension, j *job.Job) error {
			return e.OnJobFailed(ctx, j, errors.New("paper jam"))
		}},
		{"retrying", "spool.job.retried", func(e *observability.MetricsExtension, j *job.Job) error {
			return e.OnJobRetrying(ctx, j, 1, time.Now().Add(5*time.Second))
		}},
		{"exhausted", "spool.job.exhausted", func(e *observability.MetricsExtension, j *job.Job) error {
			return e.OnJobExhausted(ctx, j)
		}},
		{"cancelled", "spool.job.cancelled", func(e *observability.MetricsExtension, j *job.Job) error {
			return e.OnJobCancelled(ctx, j)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, reader := newTestExtension()
			if err := tt.fire(e, newTestJob()); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := sum(t, reader, tt.metric); got != 1 {
				t.Errorf("%s = %d, want 1", tt.metric, got)
			}
		})
	}
}

func TestMetricsExtension_Batched(t *testing.T) {
	e, reader := newTestExtension()
	if err := e.OnJobBatched(context.Background(), newTestJob(), 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := sum(t, reader, "spool.job.batched"); got != 3 {
		t.Errorf("spool.job.batched = %d, want 3", got)
	}
}

func TestMetricsExtension_PrinterAndQueue(t *testing.T) {
	e, reader := newTestExtension()
	ctx := context.Background()

	p := printer.New("front-desk", printer.TypeReceipt)
	if err := e.OnPrinterStatusChanged(ctx, p); err != nil {
		t.Fatalf("OnPrinterStatusChanged: %v", err)
	}
	if err := e.OnQueueProcessed(ctx, ext.QueueSummary{Processed: 2, Elapsed: time.Second}); err != nil {
		t.Fatalf("OnQueueProcessed: %v", err)
	}
	if err := e.OnQueueProcessed(ctx, ext.QueueSummary{}); err != nil {
		t.Fatalf("OnQueueProcessed: %v", err)
	}

	if got := sum(t, reader, "spool.printer.status_changes"); got != 1 {
		t.Errorf("status changes = %d, want 1", got)
	}
	if got := sum(t, reader, "spool.queue.passes"); got != 2 {
		t.Errorf("queue passes = %d, want 2", got)
	}
}

func TestMetricsExtension_DefaultNoopSafe(t *testing.T) {
	e := observability.NewMetricsExtension()
	ctx := context.Background()
	j := newTestJob()

	// Global provider is noop unless configured; hooks must not panic.
	_ = e.OnJobSubmitted(ctx, j)
	_ = e.OnJobCompleted(ctx, j, time.Second)
	_ = e.OnQueueProcessed(ctx, ext.QueueSummary{})
}

func TestMetricsExtension_RegistryDispatch(t *testing.T) {
	e, reader := newTestExtension()
	reg := ext.NewRegistry(nil)
	reg.Register(e)

	reg.EmitJobSubmitted(context.Background(), newTestJob())
	reg.EmitJobSubmitted(context.Background(), newTestJob())

	if got := sum(t, reader, "spool.job.submitted"); got != 2 {
		t.Errorf("spool.job.submitted = %d, want 2", got)
	}
}
