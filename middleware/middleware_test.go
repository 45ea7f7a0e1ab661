package middleware_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/xraph/spool/id"
	"github.com/xraph/spool/job"
	"github.com/xraph/spool/middleware"
	"github.com/xraph/spool/queue"
	"github.com/xraph/spool/sink"
)

func newTestRequest() *sink.Request {
	return &sink.Request{
		JobID:     id.NewJobID(),
		JobName:   "label-zebra-00003",
		PrinterID: id.NewPrinterID(),
		Printer:   "zebra",
		Format:    job.FormatZPL,
		Copies:    2,
		Attempt:   3,
		Data:      []byte("^XA^XZ"),
	}
}

func TestChain_ExecutionOrder(t *testing.T) {
	var order []string

	mw1 := func(ctx context.Context, _ *sink.Request, next middleware.Handler) error {
		order = append(order, "mw1-before")
		err := next(ctx)
		order = append(order, "mw1-after")
		return err
	}

	mw2 := func(ctx context.Context, _ *sink.Request, next middleware.Handler) error {
		order = append(order, "mw2-before")
		err := next(ctx)
		order = append(order, "mw2-after")
		return err
	}

	chain := middleware.Chain(mw1, mw2)
	handler := func(_ context.Context) error {
		order = append(order, "handler")
		return nil
	}

	err := chain(context.Background(), newTestRequest(), handler)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []string{"mw1-before", "mw2-before", "handler", "mw2-after", "mw1-after"}
	if len(order) != len(expected) {
		t.Fatalf("expected %d calls, got %d: %v", len(expected), len(order), order)
	}
	for i, want := range expected {
		if order[i] != want {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want)
		}
	}
}

func TestChain_Empty(t *testing.T) {
	chain := middleware.Chain()
	called := false
	handler := func(_ context.Context) error {
		called = true
		return nil
	}

	err := chain(context.Background(), newTestRequest(), handler)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("handler not called with empty chain")
	}
}

func TestChain_PropagatesError(t *testing.T) {
	mw := func(ctx context.Context, _ *sink.Request, next middleware.Handler) error {
		return next(ctx)
	}
	chain := middleware.Chain(mw)
	want := errors.New("handler error")

	err := chain(context.Background(), newTestRequest(), func(_ context.Context) error {
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func TestRecover_CatchesPanic(t *testing.T) {
	logger := slog.Default()
	mw := middleware.Recover(logger)

	err := mw(context.Background(), newTestRequest(), func(_ context.Context) error {
		panic("test panic")
	})
	if err == nil {
		t.Fatal("expected error from panic recovery")
	}
	if got, want := err.Error(), "printer zebra rejected job: send: panic: test panic"; got != want {
		t.Errorf("unexpected error message: %q, want %q", got, want)
	}
	if !sink.IsPermanent(err) {
		t.Error("recovered panic should be permanent")
	}
}

func TestRecover_PassesThrough(t *testing.T) {
	logger := slog.Default()
	mw := middleware.Recover(logger)

	called := false
	err := mw(context.Background(), newTestRequest(), func(_ context.Context) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("handler not called")
	}
}

func TestLogging_Success(t *testing.T) {
	logger := slog.Default()
	mw := middleware.Logging(logger)

	called := false
	err := mw(context.Background(), newTestRequest(), func(_ context.Context) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("handler not called")
	}
}

func TestLogging_Error(t *testing.T) {
	logger := slog.Default()
	mw := middleware.Logging(logger)
	want := errors.New("fail")

	err := mw(context.Background(), newTestRequest(), func(_ context.Context) error {
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func TestTimeout_DeadlineIsTransient(t *testing.T) {
	mw := middleware.Timeout(20*time.Millisecond, slog.Default())

	err := mw(context.Background(), newTestRequest(), func(ctx context.Context) error {
		<-ctx.Done()
		return errors.New("printer hung up")
	})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !sink.IsTransient(err) {
		t.Errorf("timeout should be transient, got %v", err)
	}
	if !strings.Contains(err.Error(), "timeout") {
		t.Errorf("timeout error should mention timeout: %q", err.Error())
	}
}

func TestTimeout_ZeroDisables(t *testing.T) {
	mw := middleware.Timeout(0, slog.Default())

	err := mw(context.Background(), newTestRequest(), func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); ok {
			return errors.New("unexpected deadline")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestTimeout_FastCallUntouched(t *testing.T) {
	mw := middleware.Timeout(time.Second, slog.Default())
	want := errors.New("paper jam")

	err := mw(context.Background(), newTestRequest(), func(_ context.Context) error {
		return want
	})
	if !errors.Is(err, want) || sink.IsTransient(err) {
		t.Fatalf("expected untouched permanent error, got %v", err)
	}
}

func TestRateLimit_HoldsSlotDuringDelivery(t *testing.T) {
	m := queue.NewManager(queue.Config{MaxConcurrency: 1})
	mw := middleware.RateLimit(m)
	req := newTestRequest()

	err := mw(context.Background(), req, func(_ context.Context) error {
		if got := m.ActiveCount(req.PrinterID.String()); got != 1 {
			t.Errorf("active during delivery = %d, want 1", got)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := m.ActiveCount(req.PrinterID.String()); got != 0 {
		t.Errorf("active after delivery = %d, want 0", got)
	}
}

func TestRateLimit_CancelledWaitIsTransient(t *testing.T) {
	m := queue.NewManager(queue.Config{MaxConcurrency: 1})
	req := newTestRequest()
	if !m.TryAcquire(req.PrinterID.String()) {
		t.Fatal("TryAcquire should succeed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	called := false
	err := middleware.RateLimit(m)(ctx, req, func(_ context.Context) error {
		called = true
		return nil
	})
	if called {
		t.Fatal("handler ran without a slot")
	}
	if !sink.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}
