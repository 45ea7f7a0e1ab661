package backoff_test

import (
	"testing"
	"time"

	"github.com/xraph/spool/backoff"
)

func TestConstant_ReturnsFixedDelay(t *testing.T) {
	c := backoff.NewConstant(5 * time.Second)
	for attempt := 1; attempt <= 10; attempt++ {
		if got := c.Delay(attempt); got != 5*time.Second {
			t.Errorf("Delay(%d) = %v, want %v", attempt, got, 5*time.Second)
		}
	}
}

func TestExponential_DoublesEachAttempt(t *testing.T) {
	e := backoff.NewExponential(5*time.Second, 0)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 5 * time.Second},
		{1, 5 * time.Second},  // 5 * 2^0
		{2, 10 * time.Second}, // 5 * 2^1
		{3, 20 * time.Second}, // 5 * 2^2
		{4, 40 * time.Second}, // 5 * 2^3
	}
	for _, tt := range tests {
		if got := e.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestExponential_CapsAtMax(t *testing.T) {
	e := backoff.NewExponential(time.Second, 10*time.Second)

	if got := e.Delay(5); got != 10*time.Second {
		t.Errorf("Delay(5) = %v, want %v (capped at Max)", got, 10*time.Second)
	}
	if got := e.Delay(20); got != 10*time.Second {
		t.Errorf("Delay(20) = %v, want %v (capped at Max)", got, 10*time.Second)
	}
}

func TestExponential_DoesNotOverflow(t *testing.T) {
	e := backoff.NewExponential(time.Hour, 0)

	if got := e.Delay(200); got <= 0 {
		t.Errorf("Delay(200) = %v, want a positive duration", got)
	}
}

func TestWithJitter_WithinBounds(t *testing.T) {
	s := backoff.WithJitter(backoff.NewExponential(time.Second, 10*time.Second))

	for attempt := 1; attempt <= 5; attempt++ {
		for range 100 {
			got := s.Delay(attempt)
			if got < 0 || got > 10*time.Second {
				t.Errorf("Delay(%d) = %v, want within [0, 10s]", attempt, got)
			}
		}
	}
}

func TestWithJitter_ProducesVariance(t *testing.T) {
	s := backoff.WithJitter(backoff.NewExponential(time.Second, time.Minute))

	seen := make(map[time.Duration]bool)
	for range 100 {
		seen[s.Delay(3)] = true
	}
	if len(seen) < 2 {
		t.Errorf("expected variance in jitter, got only %d distinct values", len(seen))
	}
}

func TestWithJitter_ZeroDelay(t *testing.T) {
	s := backoff.WithJitter(backoff.NewConstant(0))
	if got := s.Delay(1); got != 0 {
		t.Errorf("Delay(1) = %v, want 0", got)
	}
}
