package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// Manager basics
// ---------------------------------------------------------------------------

func TestNewManager_Empty(t *testing.T) {
	m := NewManager()
	// No configs; TryAcquire/Release should always succeed.
	if !m.TryAcquire("prn_any") {
		t.Fatal("expected TryAcquire to succeed for unconfigured printer")
	}
	m.Release("prn_any")
	if err := m.Acquire(context.Background(), "prn_any"); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	m.Release("prn_any")
}

func TestNewManager_WithConfig(t *testing.T) {
	m := NewManager(Config{
		Key:            "zebra",
		MaxConcurrency: 2,
	})
	if m.ActiveCount("zebra") != 0 {
		t.Fatal("expected 0 active deliveries initially")
	}
}

// ---------------------------------------------------------------------------
// Concurrency limits
// ---------------------------------------------------------------------------

func TestManager_MaxConcurrency(t *testing.T) {
	m := NewManager(Config{
		Key:            "zebra",
		MaxConcurrency: 2,
	})

	if !m.TryAcquire("zebra") {
		t.Fatal("first TryAcquire should succeed")
	}
	if !m.TryAcquire("zebra") {
		t.Fatal("second TryAcquire should succeed")
	}
	// Third should be blocked.
	if m.TryAcquire("zebra") {
		t.Fatal("third TryAcquire should fail (max concurrency 2)")
	}

	// Release one slot.
	m.Release("zebra")
	if !m.TryAcquire("zebra") {
		t.Fatal("TryAcquire should succeed after Release")
	}
}

func TestManager_AcquireBlocksUntilRelease(t *testing.T) {
	m := NewManager(Config{
		Key:            "zebra",
		MaxConcurrency: 1,
	})
	ctx := context.Background()

	if err := m.Acquire(ctx, "zebra"); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- m.Acquire(ctx, "zebra") }()

	select {
	case err := <-done:
		t.Fatalf("second Acquire returned early: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	m.Release("zebra")
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("second Acquire: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second Acquire did not wake after Release")
	}
	if m.ActiveCount("zebra") != 1 {
		t.Fatalf("expected 1 active, got %d", m.ActiveCount("zebra"))
	}
}

func TestManager_AcquireHonoursContext(t *testing.T) {
	m := NewManager(Config{
		Key:            "zebra",
		MaxConcurrency: 1,
	})
	if !m.TryAcquire("zebra") {
		t.Fatal("TryAcquire should succeed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := m.Acquire(ctx, "zebra"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if m.ActiveCount("zebra") != 1 {
		t.Fatalf("timed-out Acquire leaked a slot: active=%d", m.ActiveCount("zebra"))
	}
}

// ---------------------------------------------------------------------------
// Rate limiting
// ---------------------------------------------------------------------------

func TestManager_RateLimit_Throttles(t *testing.T) {
	m := NewManager(Config{
		Key:       "limited",
		RateLimit: 1.0, // 1 per second
		RateBurst: 1,
	})

	// First should succeed (burst allows it).
	if !m.TryAcquire("limited") {
		t.Fatal("first TryAcquire should succeed (within burst)")
	}
	m.Release("limited")

	// Immediately after, token bucket is empty.
	if m.TryAcquire("limited") {
		t.Fatal("second TryAcquire should fail (rate limited)")
	}

	// Wait for token refill.
	time.Sleep(1100 * time.Millisecond)
	if !m.TryAcquire("limited") {
		t.Fatal("TryAcquire should succeed after token refill")
	}
	m.Release("limited")
}

func TestManager_RateLimit_AcquireWaits(t *testing.T) {
	m := NewManager(Config{
		Key:       "limited",
		RateLimit: 20,
		RateBurst: 1,
	})
	ctx := context.Background()

	start := time.Now()
	for range 3 {
		if err := m.Acquire(ctx, "limited"); err != nil {
			t.Fatalf("Acquire: %v", err)
		}
		m.Release("limited")
	}
	// Two refills at 20/s take at least ~100ms.
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Fatalf("expected throttling, three acquires took %v", elapsed)
	}
}

func TestManager_RateLimit_BurstAllows(t *testing.T) {
	m := NewManager(Config{
		Key:       "bursty",
		RateLimit: 10.0,
		RateBurst: 3,
	})

	// Three immediate acquires should succeed (burst = 3).
	for i := range 3 {
		if !m.TryAcquire("bursty") {
			t.Fatalf("TryAcquire %d should succeed (within burst)", i)
		}
		m.Release("bursty")
	}
}

// ---------------------------------------------------------------------------
// Defaults
// ---------------------------------------------------------------------------

func TestManager_DefaultAppliesPerPrinter(t *testing.T) {
	m := NewManager(Config{MaxConcurrency: 1})

	if !m.TryAcquire("a") {
		t.Fatal("printer a should get its own slot")
	}
	if !m.TryAcquire("b") {
		t.Fatal("printer b should get its own slot")
	}
	if m.TryAcquire("a") {
		t.Fatal("printer a should be capped by the default")
	}
}

func TestManager_OwnConfigOverridesDefault(t *testing.T) {
	m := NewManager(
		Config{MaxConcurrency: 1},
		Config{Key: "big", MaxConcurrency: 3},
	)

	for i := range 3 {
		if !m.TryAcquire("big") {
			t.Fatalf("TryAcquire %d on big should succeed", i)
		}
	}
	if m.TryAcquire("big") {
		t.Fatal("big should be capped at 3")
	}
}

// ---------------------------------------------------------------------------
// Dynamic reconfiguration
// ---------------------------------------------------------------------------

func TestManager_SetConfig(t *testing.T) {
	m := NewManager(Config{
		Key:            "dyn",
		MaxConcurrency: 1,
	})

	m.TryAcquire("dyn")
	if m.TryAcquire("dyn") {
		t.Fatal("should be blocked at concurrency 1")
	}

	// Raise the limit dynamically.
	m.SetConfig(Config{
		Key:            "dyn",
		MaxConcurrency: 3,
	})

	// Now should succeed.
	if !m.TryAcquire("dyn") {
		t.Fatal("should succeed after raising concurrency")
	}
	if m.ActiveCount("dyn") != 2 {
		t.Fatalf("active count not preserved across SetConfig: %d", m.ActiveCount("dyn"))
	}
	m.Release("dyn")
	m.Release("dyn")
}

func TestManager_SetDefaultConfig(t *testing.T) {
	m := NewManager(Config{MaxConcurrency: 1})

	m.TryAcquire("p")
	if m.TryAcquire("p") {
		t.Fatal("should be blocked by default concurrency 1")
	}

	m.SetConfig(Config{MaxConcurrency: 2})
	if !m.TryAcquire("p") {
		t.Fatal("should succeed after raising the default")
	}
}

// ---------------------------------------------------------------------------
// Concurrency safety
// ---------------------------------------------------------------------------

func TestManager_ConcurrentAccess(t *testing.T) {
	m := NewManager(Config{
		Key:            "concurrent",
		MaxConcurrency: 5,
	})

	var (
		inFlight atomic.Int64
		peak     atomic.Int64
		wg       sync.WaitGroup
	)

	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.Acquire(context.Background(), "concurrent"); err != nil {
				t.Error(err)
				return
			}
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			// Simulate work.
			time.Sleep(time.Millisecond)
			inFlight.Add(-1)
			m.Release("concurrent")
		}()
	}

	wg.Wait()

	if peak.Load() > 5 {
		t.Fatalf("peak in-flight %d exceeded limit 5", peak.Load())
	}

	// Active should be back to 0.
	if m.ActiveCount("concurrent") != 0 {
		t.Fatalf("expected 0 active after all goroutines, got %d", m.ActiveCount("concurrent"))
	}
}

func TestManager_ReleaseUnderflow(t *testing.T) {
	m := NewManager(Config{
		Key:            "q",
		MaxConcurrency: 5,
	})

	// Release without Acquire should not go negative.
	m.Release("q")
	if m.ActiveCount("q") != 0 {
		t.Fatal("active count should not go below 0")
	}
}
