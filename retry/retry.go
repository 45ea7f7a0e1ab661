// Package retry decides what happens to a failed print job: another attempt
// with exponential backoff, or a terminal failure.
//
// Failures are classified by message. A message is transient when it
// contains one of the keywords in TransientKeywords (case-insensitive);
// anything else is permanent and never retried.
package retry

import (
	"fmt"
	"strings"
	"time"

	"github.com/xraph/spool"
	"github.com/xraph/spool/backoff"
	"github.com/xraph/spool/job"
)

// TransientKeywords mark a failure message as likely to succeed on retry.
var TransientKeywords = []string{
	"timeout",
	"connection",
	"network",
	"offline",
	"unavailable",
	"busy",
}

// IsTransient reports whether msg describes a recoverable failure.
func IsTransient(msg string) bool {
	lower := strings.ToLower(msg)
	for _, kw := range TransientKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Action is the outcome of a retry decision.
type Action int

const (
	// Skip means the job is not eligible: it is not failed, it already
	// reached a terminal failure, or retry is disabled.
	Skip Action = iota
	// Permanent means the failure is not transient. The job becomes
	// terminal with its retry count unchanged.
	Permanent
	// Exhausted means the job used every allowed retry.
	Exhausted
	// Retry means the job should be re-queued for another attempt.
	Retry
)

func (a Action) String() string {
	switch a {
	case Skip:
		return "skip"
	case Permanent:
		return "permanent"
	case Exhausted:
		return "exhausted"
	case Retry:
		return "retry"
	}
	return "unknown"
}

// Decision is the result of Policy.Decide.
type Decision struct {
	Action Action
	// Attempt is the retry number about to run (1-indexed). Only set for
	// Retry.
	Attempt int
	// Delay is the backoff before Attempt. Only set for Retry.
	Delay time.Duration
}

// ExhaustedMessage is appended to a job's error when it runs out of retries.
const ExhaustedMessage = "Maximum retry count exceeded"

// Policy holds the global retry configuration.
type Policy struct {
	Enabled    bool
	MaxRetries int
	Backoff    backoff.Strategy
}

// Option configures a Policy.
type Option func(*Policy)

// WithBackoff replaces the default exponential strategy.
func WithBackoff(s backoff.Strategy) Option {
	return func(p *Policy) { p.Backoff = s }
}

// New builds a policy from cfg. The default backoff is
// RetryDelay * 2^(attempt-1) with no cap.
func New(cfg spool.Config, opts ...Option) *Policy {
	p := &Policy{
		Enabled:    cfg.RetryEnabled,
		MaxRetries: cfg.MaxRetries,
		Backoff:    backoff.NewExponential(cfg.RetryDelay.Duration(), 0),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Decide classifies j. The checks run in order: eligibility, permanence,
// exhaustion.
func (p *Policy) Decide(j *job.Job) Decision {
	if j.State != job.StateFailed || j.CompletedAt != nil || !p.Enabled {
		return Decision{Action: Skip}
	}
	if !IsTransient(j.Error) {
		return Decision{Action: Permanent}
	}
	if j.RetryCount >= p.MaxRetries {
		return Decision{Action: Exhausted}
	}
	attempt := j.RetryCount + 1
	return Decision{
		Action:  Retry,
		Attempt: attempt,
		Delay:   p.Backoff.Delay(attempt),
	}
}

// AttemptMessage is the history line recorded on a job for each retry.
func AttemptMessage(attempt int, at time.Time) string {
	return fmt.Sprintf("Retry attempt %d at %s", attempt, at.UTC().Format(time.DateTime))
}
