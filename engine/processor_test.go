package engine_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/xraph/spool/engine"
	"github.com/xraph/spool/job"
	"github.com/xraph/spool/printer"
	"github.com/xraph/spool/sink"
	sinkmem "github.com/xraph/spool/sink/memory"
)

func TestProcessQueueFIFO(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	eng, s := newSyncEngine(t)
	p := registerPrinter(t, eng, "Office", printer.TypeDocument, true)

	var names []string
	for _, data := range []string{"one", "two", "three"} {
		names = append(names, submit(t, eng, p, "", job.FormatPDF, data).Name)
	}

	sum, err := eng.Processor().ProcessQueue(ctx)
	if err != nil {
		t.Fatalf("ProcessQueue: %v", err)
	}
	if sum.Processed != 3 || sum.Failed != 0 || sum.PrintersScanned != 1 {
		t.Fatalf("summary = %+v", sum)
	}

	reqs := s.Requests()
	if len(reqs) != len(names) {
		t.Fatalf("requests = %d, want %d", len(reqs), len(names))
	}
	for i, req := range reqs {
		if req.JobName != names[i] {
			t.Errorf("request %d = %s, want %s", i, req.JobName, names[i])
		}
	}
}

func TestProcessQueueSkipsInactivePrinters(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	eng, s := newSyncEngine(t)
	online := registerPrinter(t, eng, "Online", printer.TypeDocument, true)
	offline := registerPrinter(t, eng, "Offline", printer.TypeDocument, false)

	submit(t, eng, online, "", job.FormatPDF, "a")
	parked := submit(t, eng, offline, "", job.FormatPDF, "b")

	sum, err := eng.Processor().ProcessQueue(ctx)
	if err != nil {
		t.Fatalf("ProcessQueue: %v", err)
	}
	if sum.Processed != 1 || sum.PrintersScanned != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if s.Count() != 1 {
		t.Errorf("sink requests = %d, want 1", s.Count())
	}
	if got := mustGet(t, eng, parked.ID); got.State != job.StateQueued {
		t.Errorf("offline printer job state = %s, want queued", got.State)
	}
}

func TestProcessQueueBatchesLabels(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	eng := newEngine(t)
	p := registerPrinter(t, eng, "Shipping", printer.TypeLabel, true)

	var labels []*job.Job
	for _, data := range []string{"^XA1^XZ", "^XA2^XZ", "^XA3^XZ"} {
		labels = append(labels, submit(t, eng, p, job.DocTypeLabel, job.FormatZPL, data))
	}

	sum, err := eng.Processor().ProcessQueue(ctx)
	if err != nil {
		t.Fatalf("ProcessQueue: %v", err)
	}
	if sum.Processed != 1 {
		t.Fatalf("summary = %+v, want a single processed batch", sum)
	}

	for _, l := range labels {
		got := mustGet(t, eng, l.ID)
		if got.State != job.StateCancelled {
			t.Errorf("label %s state = %s, want cancelled", got.Name, got.State)
		}
		if !strings.HasPrefix(got.Error, "Combined into batch job ") {
			t.Errorf("label %s error = %q", got.Name, got.Error)
		}
	}

	printing, err := eng.List(ctx, job.ListOpts{State: job.StatePrinting, PrinterID: p.ID})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(printing) != 1 {
		t.Fatalf("printing jobs = %d, want 1", len(printing))
	}
	b := printing[0]
	if b.DocumentType != job.DocTypeLabelBatch {
		t.Errorf("batch document type = %q", b.DocumentType)
	}
	if want := "^XA1^XZ\n^XA2^XZ\n^XA3^XZ\n"; string(b.Data) != want {
		t.Errorf("batch data = %q, want %q", b.Data, want)
	}
	if b.ParentID != labels[0].ID.String() {
		t.Errorf("batch parent = %q, want first label", b.ParentID)
	}
}

func TestProcessQueueLeavesReceiptsUnbatched(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	eng, s := newSyncEngine(t)
	p := registerPrinter(t, eng, "Till", printer.TypeReceipt, true)

	submit(t, eng, p, job.DocTypeReceipt, job.FormatESCPOS, "r1")
	submit(t, eng, p, job.DocTypeReceipt, job.FormatESCPOS, "r2")

	sum, err := eng.Processor().ProcessQueue(ctx)
	if err != nil {
		t.Fatalf("ProcessQueue: %v", err)
	}
	if sum.Processed != 2 || s.Count() != 2 {
		t.Fatalf("summary = %+v, sink requests = %d; want 2 each", sum, s.Count())
	}
}

func TestProcessQueueSkipsBusyPrinter(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	eng, s := newSyncEngine(t)
	p := registerPrinter(t, eng, "Office", printer.TypeDocument, true)
	submit(t, eng, p, "", job.FormatPDF, "doc")

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	s.OnSend(func(ctx context.Context, _ *sink.Request) error {
		once.Do(func() { close(entered) })
		<-release
		return nil
	})

	done := make(chan error, 1)
	go func() {
		_, err := eng.Processor().DrainPrinter(ctx, p.ID)
		done <- err
	}()
	<-entered

	sum, err := eng.Processor().ProcessQueue(ctx)
	if err != nil {
		t.Fatalf("ProcessQueue: %v", err)
	}
	if sum.Skipped != 1 || sum.PrintersScanned != 0 {
		t.Fatalf("summary = %+v, want the busy printer skipped", sum)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("DrainPrinter: %v", err)
	}
	if s.Count() != 1 {
		t.Errorf("sink requests = %d, want 1", s.Count())
	}
}

func TestDrainPrinterInactive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	eng, s := newSyncEngine(t)
	p := registerPrinter(t, eng, "Office", printer.TypeDocument, false)
	submit(t, eng, p, "", job.FormatPDF, "doc")

	sum, err := eng.Processor().DrainPrinter(ctx, p.ID)
	if err != nil {
		t.Fatalf("DrainPrinter: %v", err)
	}
	if sum.Processed != 0 || s.Count() != 0 {
		t.Fatalf("summary = %+v, sink requests = %d; want nothing processed", sum, s.Count())
	}
}

func TestProcessQueueDoesNotRetryInline(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	eng, s := newSyncEngine(t)
	p := registerPrinter(t, eng, "Office", printer.TypeDocument, true)
	s.FailPrinter(p.DeviceName(), sink.NewTransient("send", p.DeviceName(), errors.New("connection refused")))
	j := submit(t, eng, p, "", job.FormatPDF, "doc")

	sum, err := eng.Processor().ProcessQueue(ctx)
	if err != nil {
		t.Fatalf("ProcessQueue: %v", err)
	}
	if sum.Processed != 0 || sum.Failed != 1 {
		t.Fatalf("summary = %+v, want one failure", sum)
	}
	if s.Count() != 1 {
		t.Errorf("sink requests = %d, want 1", s.Count())
	}

	got := mustGet(t, eng, j.ID)
	if got.State != job.StateFailed || got.RetryCount != 0 || got.CompletedAt != nil {
		t.Fatalf("job = state %s retries %d completed %v, want retryable failure",
			got.State, got.RetryCount, got.CompletedAt)
	}
	if !strings.Contains(got.Error, "connection refused") {
		t.Errorf("error = %q", got.Error)
	}

	// The printer recovers; an explicit retry prints the job.
	s.FailPrinter(p.DeviceName(), nil)
	ok, err := eng.Retry(ctx, j.ID)
	if err != nil || !ok {
		t.Fatalf("Retry = %v, %v; want true, nil", ok, err)
	}
	got = mustGet(t, eng, j.ID)
	if got.State != job.StateCompleted || got.RetryCount != 1 {
		t.Fatalf("job = state %s retries %d, want completed after one retry", got.State, got.RetryCount)
	}
}

func TestProcessQueueWithStoppedPool(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := sinkmem.New()
	eng := newEngine(t, engine.WithSink(s))
	p := registerPrinter(t, eng, "Office", printer.TypeDocument, true)
	j := submit(t, eng, p, "", job.FormatPDF, "doc")

	sum, err := eng.Processor().ProcessQueue(ctx)
	if err != nil {
		t.Fatalf("ProcessQueue: %v", err)
	}
	if sum.Failed != 1 {
		t.Fatalf("summary = %+v, want one failure", sum)
	}
	got := mustGet(t, eng, j.ID)
	if got.State != job.StateFailed || got.RetryCount != 0 || got.CompletedAt != nil {
		t.Fatalf("job = state %s retries %d completed %v, want retryable failure",
			got.State, got.RetryCount, got.CompletedAt)
	}
	if s.Count() != 0 {
		t.Errorf("sink requests = %d, want 0", s.Count())
	}
}
