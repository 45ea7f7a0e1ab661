package cron_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/spool/cron"
)

func TestScheduler_FiresOnSchedule(t *testing.T) {
	sched := cron.NewScheduler(nil)

	var fired atomic.Int32
	if err := sched.Register("tick", "@every 1s", func(context.Context) error {
		fired.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	ctx := context.Background()
	if err := sched.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for fired.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}

	if err := sched.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if fired.Load() == 0 {
		t.Fatal("task never fired")
	}
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	sched := cron.NewScheduler(nil)
	err := sched.Register("bad", "not-a-cron", func(context.Context) error { return nil })
	if err == nil {
		t.Fatal("expected error for invalid schedule")
	}
	if len(sched.Entries()) != 0 {
		t.Errorf("entries = %d, want 0", len(sched.Entries()))
	}
}

func TestScheduler_Trigger(t *testing.T) {
	sched := cron.NewScheduler(nil)

	var ran bool
	if err := sched.Register("process-queue", "@every 30s", func(context.Context) error {
		ran = true
		return nil
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := sched.Trigger(context.Background(), "process-queue"); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if !ran {
		t.Error("task did not run")
	}

	err := sched.Trigger(context.Background(), "missing")
	if !errors.Is(err, cron.ErrUnknownTask) {
		t.Errorf("Trigger(missing) = %v, want ErrUnknownTask", err)
	}
}

func TestScheduler_RegisterReplacesAndRemove(t *testing.T) {
	sched := cron.NewScheduler(nil)
	noop := func(context.Context) error { return nil }

	if err := sched.Register("monitor", "@every 1m", noop); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := sched.Register("monitor", "@every 2m", noop); err != nil {
		t.Fatalf("Register again: %v", err)
	}
	if err := sched.Register("process-queue", "@every 30s", noop); err != nil {
		t.Fatalf("Register: %v", err)
	}

	entries := sched.Entries()
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Name != "monitor" || entries[0].Schedule != "@every 2m" {
		t.Errorf("entries[0] = %+v, want monitor @every 2m", entries[0])
	}

	sched.Remove("monitor")
	sched.Remove("unknown")
	if got := sched.Entries(); len(got) != 1 || got[0].Name != "process-queue" {
		t.Errorf("entries after remove = %+v", got)
	}
}

func TestScheduler_StopIdempotent(t *testing.T) {
	sched := cron.NewScheduler(nil)
	ctx := context.Background()

	if err := sched.Stop(ctx); err != nil {
		t.Fatalf("Stop before Start: %v", err)
	}
	if err := sched.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := sched.Start(ctx); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if err := sched.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := sched.Stop(ctx); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestParseSchedule(t *testing.T) {
	now := time.Now().UTC()

	sched, err := cron.ParseSchedule("@every 30s")
	if err != nil {
		t.Fatalf("ParseSchedule(@every 30s): %v", err)
	}
	if next := sched.Next(now); !next.After(now) {
		t.Errorf("Next(%v) = %v, expected future time", now, next)
	}

	sched2, err := cron.ParseSchedule("*/5 * * * *")
	if err != nil {
		t.Fatalf("ParseSchedule(*/5 * * * *): %v", err)
	}
	if next := sched2.Next(now); !next.After(now) {
		t.Errorf("Next(%v) = %v, expected future time", now, next)
	}

	if _, err := cron.ParseSchedule("not-a-cron"); err == nil {
		t.Error("expected error for invalid cron expression")
	}
}
