package ext_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/spool/ext"
	"github.com/xraph/spool/job"
	"github.com/xraph/spool/printer"
)

// ──────────────────────────────────────────────────
// Test extensions
// ──────────────────────────────────────────────────

// allHooksExt implements every lifecycle hook for testing.
type allHooksExt struct {
	calls []string
}

func (e *allHooksExt) Name() string { return "all-hooks" }

func (e *allHooksExt) OnJobSubmitted(_ context.Context, _ *job.Job) error {
	e.calls = append(e.calls, "OnJobSubmitted")
	return nil
}

func (e *allHooksExt) OnJobPrinting(_ context.Context, _ *job.Job) error {
	e.calls = append(e.calls, "OnJobPrinting")
	return nil
}

func (e *allHooksExt) OnJobCompleted(_ context.Context, _ *job.Job, _ time.Duration) error {
	e.calls = append(e.calls, "OnJobCompleted")
	return nil
}

func (e *allHooksExt) OnJobFailed(_ context.Context, _ *job.Job, _ error) error {
	e.calls = append(e.calls, "OnJobFailed")
	return nil
}

func (e *allHooksExt) OnJobRetrying(_ context.Context, _ *job.Job, _ int, _ time.Time) error {
	e.calls = append(e.calls, "OnJobRetrying")
	return nil
}

func (e *allHooksExt) OnJobExhausted(_ context.Context, _ *job.Job) error {
	e.calls = append(e.calls, "OnJobExhausted")
	return nil
}

func (e *allHooksExt) OnJobCancelled(_ context.Context, _ *job.Job) error {
	e.calls = append(e.calls, "OnJobCancelled")
	return nil
}

func (e *allHooksExt) OnJobBatched(_ context.Context, _ *job.Job, _ int) error {
	e.calls = append(e.calls, "OnJobBatched")
	return nil
}

func (e *allHooksExt) OnPrinterStatusChanged(_ context.Context, _ *printer.Printer) error {
	e.calls = append(e.calls, "OnPrinterStatusChanged")
	return nil
}

func (e *allHooksExt) OnQueueProcessed(_ context.Context, _ ext.QueueSummary) error {
	e.calls = append(e.calls, "OnQueueProcessed")
	return nil
}

func (e *allHooksExt) OnShutdown(_ context.Context) error {
	e.calls = append(e.calls, "OnShutdown")
	return nil
}

// jobOnlyExt only implements two job hooks.
type jobOnlyExt struct {
	calls []string
}

func (e *jobOnlyExt) Name() string { return "job-only" }

func (e *jobOnlyExt) OnJobSubmitted(_ context.Context, _ *job.Job) error {
	e.calls = append(e.calls, "OnJobSubmitted")
	return nil
}

func (e *jobOnlyExt) OnJobCompleted(_ context.Context, _ *job.Job, _ time.Duration) error {
	e.calls = append(e.calls, "OnJobCompleted")
	return nil
}

// failingExt returns errors from hooks.
type failingExt struct{}

func (e *failingExt) Name() string { return "failing" }

func (e *failingExt) OnJobSubmitted(_ context.Context, _ *job.Job) error {
	return errors.New("boom")
}

func (e *failingExt) OnShutdown(_ context.Context) error {
	return errors.New("shutdown boom")
}

// ──────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────

func TestRegistry_RegisterDiscoversInterfaces(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	r.Register(&allHooksExt{})

	if got := len(r.Extensions()); got != 1 {
		t.Fatalf("expected 1 extension, got %d", got)
	}
	if got := r.Extensions()[0].Name(); got != "all-hooks" {
		t.Fatalf("expected name 'all-hooks', got %q", got)
	}
}

func TestRegistry_EmitFiresOnlyImplementors(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	jo := &jobOnlyExt{}
	r.Register(all)
	r.Register(jo)

	ctx := context.Background()
	j := &job.Job{Name: "receipt-front-00001"}

	r.EmitJobSubmitted(ctx, j)
	if len(all.calls) != 1 || all.calls[0] != "OnJobSubmitted" {
		t.Fatalf("all: expected [OnJobSubmitted], got %v", all.calls)
	}
	if len(jo.calls) != 1 || jo.calls[0] != "OnJobSubmitted" {
		t.Fatalf("jo: expected [OnJobSubmitted], got %v", jo.calls)
	}

	// Only all implements OnJobPrinting.
	r.EmitJobPrinting(ctx, j)
	if len(all.calls) != 2 || all.calls[1] != "OnJobPrinting" {
		t.Fatalf("all: expected OnJobPrinting as 2nd, got %v", all.calls)
	}
	if len(jo.calls) != 1 {
		t.Fatalf("jo: should still have 1 call, got %v", jo.calls)
	}
}

func TestRegistry_AllHooksFire(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	r.Register(all)

	ctx := context.Background()
	j := &job.Job{Name: "label-zebra-00001"}

	r.EmitJobSubmitted(ctx, j)
	r.EmitJobPrinting(ctx, j)
	r.EmitJobCompleted(ctx, j, time.Second)
	r.EmitJobFailed(ctx, j, errors.New("paper jam"))
	r.EmitJobRetrying(ctx, j, 1, time.Now())
	r.EmitJobExhausted(ctx, j)
	r.EmitJobCancelled(ctx, j)
	r.EmitJobBatched(ctx, j, 3)
	r.EmitPrinterStatusChanged(ctx, printer.New("zebra", printer.TypeLabel))
	r.EmitQueueProcessed(ctx, ext.QueueSummary{Processed: 1})
	r.EmitShutdown(ctx)

	expected := []string{
		"OnJobSubmitted", "OnJobPrinting", "OnJobCompleted", "OnJobFailed",
		"OnJobRetrying", "OnJobExhausted", "OnJobCancelled", "OnJobBatched",
		"OnPrinterStatusChanged", "OnQueueProcessed", "OnShutdown",
	}
	if len(all.calls) != len(expected) {
		t.Fatalf("expected %d calls, got %d: %v", len(expected), len(all.calls), all.calls)
	}
	for i, want := range expected {
		if all.calls[i] != want {
			t.Errorf("call[%d] = %q, want %q", i, all.calls[i], want)
		}
	}
}

func TestRegistry_HookErrorsLoggedNotPropagated(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}

	// Register failing first, then all-hooks. Both should be called.
	r.Register(&failingExt{})
	r.Register(all)

	ctx := context.Background()
	r.EmitJobSubmitted(ctx, &job.Job{})
	r.EmitShutdown(ctx)

	if len(all.calls) != 2 || all.calls[0] != "OnJobSubmitted" {
		t.Fatalf("all: expected hooks to fire despite failing ext, got %v", all.calls)
	}
}

func TestRegistry_EmptyRegistryNoOp(_ *testing.T) {
	r := ext.NewRegistry(nil)
	ctx := context.Background()

	r.EmitJobSubmitted(ctx, &job.Job{})
	r.EmitJobPrinting(ctx, &job.Job{})
	r.EmitJobCompleted(ctx, &job.Job{}, time.Second)
	r.EmitJobFailed(ctx, &job.Job{}, errors.New("x"))
	r.EmitJobRetrying(ctx, &job.Job{}, 1, time.Now())
	r.EmitJobExhausted(ctx, &job.Job{})
	r.EmitJobCancelled(ctx, &job.Job{})
	r.EmitJobBatched(ctx, &job.Job{}, 2)
	r.EmitPrinterStatusChanged(ctx, &printer.Printer{})
	r.EmitQueueProcessed(ctx, ext.QueueSummary{})
	r.EmitShutdown(ctx)
}

func TestRegistry_MultipleExtensionsOrderPreserved(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	ext1 := &allHooksExt{}
	ext2 := &allHooksExt{}
	r.Register(ext1)
	r.Register(ext2)

	r.EmitJobSubmitted(context.Background(), &job.Job{})

	if len(ext1.calls) != 1 {
		t.Errorf("ext1: expected 1 call, got %d", len(ext1.calls))
	}
	if len(ext2.calls) != 1 {
		t.Errorf("ext2: expected 1 call, got %d", len(ext2.calls))
	}
}
