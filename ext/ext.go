// Package ext defines the extension system for spool.
// Extensions are notified of print lifecycle events (job submitted,
// printing, completed, failed, etc.) and can react to them: logging,
// metrics, audit, notifications.
//
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
package ext

import (
	"context"
	"time"

	"github.com/xraph/spool/job"
	"github.com/xraph/spool/printer"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Job lifecycle hooks
// ──────────────────────────────────────────────────

// JobSubmitted is called after a job is queued, including jobs queued for
// an offline printer (j.Offline is set).
type JobSubmitted interface {
	OnJobSubmitted(ctx context.Context, j *job.Job) error
}

// JobPrinting is called after a job is claimed and handed to the sink.
type JobPrinting interface {
	OnJobPrinting(ctx context.Context, j *job.Job) error
}

// JobCompleted is called after the sink reports a successful print.
// elapsed is measured from submission.
type JobCompleted interface {
	OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error
}

// JobFailed is called when a job fails permanently.
type JobFailed interface {
	OnJobFailed(ctx context.Context, j *job.Job, err error) error
}

// JobRetrying is called when a failed job is re-queued for another attempt.
type JobRetrying interface {
	OnJobRetrying(ctx context.Context, j *job.Job, attempt int, nextAttemptAt time.Time) error
}

// JobExhausted is called when a job fails after using every retry.
type JobExhausted interface {
	OnJobExhausted(ctx context.Context, j *job.Job) error
}

// JobCancelled is called after a job is cancelled, including constituents
// merged into a batch.
type JobCancelled interface {
	OnJobCancelled(ctx context.Context, j *job.Job) error
}

// JobBatched is called after label jobs are merged into a batch job.
type JobBatched interface {
	OnJobBatched(ctx context.Context, batch *job.Job, merged int) error
}

// ──────────────────────────────────────────────────
// Printer and queue hooks
// ──────────────────────────────────────────────────

// PrinterStatusChanged is called after a printer goes online or offline.
type PrinterStatusChanged interface {
	OnPrinterStatusChanged(ctx context.Context, p *printer.Printer) error
}

// QueueProcessed is called after a queue processing pass.
type QueueProcessed interface {
	OnQueueProcessed(ctx context.Context, s QueueSummary) error
}

// QueueSummary reports the outcome of a queue processing pass.
type QueueSummary struct {
	Processed       int           `json:"processed"`
	Failed          int           `json:"failed"`
	PrintersScanned int           `json:"printers_scanned"`
	Skipped         int           `json:"skipped"`
	Elapsed         time.Duration `json:"elapsed"`
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
