package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/spool/job"
	"github.com/xraph/spool/printer"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type jobSubmittedEntry struct {
	name string
	hook JobSubmitted
}

type jobPrintingEntry struct {
	name string
	hook JobPrinting
}

type jobCompletedEntry struct {
	name string
	hook JobCompleted
}

type jobFailedEntry struct {
	name string
	hook JobFailed
}

type jobRetryingEntry struct {
	name string
	hook JobRetrying
}

type jobExhaustedEntry struct {
	name string
	hook JobExhausted
}

type jobCancelledEntry struct {
	name string
	hook JobCancelled
}

type jobBatchedEntry struct {
	name string
	hook JobBatched
}

type printerStatusEntry struct {
	name string
	hook PrinterStatusChanged
}

type queueProcessedEntry struct {
	name string
	hook QueueProcessed
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	jobSubmitted   []jobSubmittedEntry
	jobPrinting    []jobPrintingEntry
	jobCompleted   []jobCompletedEntry
	jobFailed      []jobFailedEntry
	jobRetrying    []jobRetryingEntry
	jobExhausted   []jobExhaustedEntry
	jobCancelled   []jobCancelledEntry
	jobBatched     []jobBatchedEntry
	printerStatus  []printerStatusEntry
	queueProcessed []queueProcessedEntry
	shutdown       []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(JobSubmitted); ok {
		r.jobSubmitted = append(r.jobSubmitted, jobSubmittedEntry{name, h})
	}
	if h, ok := e.(JobPrinting); ok {
		r.jobPrinting = append(r.jobPrinting, jobPrintingEntry{name, h})
	}
	if h, ok := e.(JobCompleted); ok {
		r.jobCompleted = append(r.jobCompleted, jobCompletedEntry{name, h})
	}
	if h, ok := e.(JobFailed); ok {
		r.jobFailed = append(r.jobFailed, jobFailedEntry{name, h})
	}
	if h, ok := e.(JobRetrying); ok {
		r.jobRetrying = append(r.jobRetrying, jobRetryingEntry{name, h})
	}
	if h, ok := e.(JobExhausted); ok {
		r.jobExhausted = append(r.jobExhausted, jobExhaustedEntry{name, h})
	}
	if h, ok := e.(JobCancelled); ok {
		r.jobCancelled = append(r.jobCancelled, jobCancelledEntry{name, h})
	}
	if h, ok := e.(JobBatched); ok {
		r.jobBatched = append(r.jobBatched, jobBatchedEntry{name, h})
	}
	if h, ok := e.(PrinterStatusChanged); ok {
		r.printerStatus = append(r.printerStatus, printerStatusEntry{name, h})
	}
	if h, ok := e.(QueueProcessed); ok {
		r.queueProcessed = append(r.queueProcessed, queueProcessedEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// ──────────────────────────────────────────────────
// Job event emitters
// ──────────────────────────────────────────────────

// EmitJobSubmitted notifies all extensions that implement JobSubmitted.
func (r *Registry) EmitJobSubmitted(ctx context.Context, j *job.Job) {
	for _, e := range r.jobSubmitted {
		if err := e.hook.OnJobSubmitted(ctx, j); err != nil {
			r.logHookError("OnJobSubmitted", e.name, err)
		}
	}
}

// EmitJobPrinting notifies all extensions that implement JobPrinting.
func (r *Registry) EmitJobPrinting(ctx context.Context, j *job.Job) {
	for _, e := range r.jobPrinting {
		if err := e.hook.OnJobPrinting(ctx, j); err != nil {
			r.logHookError("OnJobPrinting", e.name, err)
		}
	}
}

// EmitJobCompleted notifies all extensions that implement JobCompleted.
func (r *Registry) EmitJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) {
	for _, e := range r.jobCompleted {
		if err := e.hook.OnJobCompleted(ctx, j, elapsed); err != nil {
			r.logHookError("OnJobCompleted", e.name, err)
		}
	}
}

// EmitJobFailed notifies all extensions that implement JobFailed.
func (r *Registry) EmitJobFailed(ctx context.Context, j *job.Job, jobErr error) {
	for _, e := range r.jobFailed {
		if err := e.hook.OnJobFailed(ctx, j, jobErr); err != nil {
			r.logHookError("OnJobFailed", e.name, err)
		}
	}
}

// EmitJobRetrying notifies all extensions that implement JobRetrying.
func (r *Registry) EmitJobRetrying(ctx context.Context, j *job.Job, attempt int, nextAttemptAt time.Time) {
	for _, e := range r.jobRetrying {
		if err := e.hook.OnJobRetrying(ctx, j, attempt, nextAttemptAt); err != nil {
			r.logHookError("OnJobRetrying", e.name, err)
		}
	}
}

// EmitJobExhausted notifies all extensions that implement JobExhausted.
func (r *Registry) EmitJobExhausted(ctx context.Context, j *job.Job) {
	for _, e := range r.jobExhausted {
		if err := e.hook.OnJobExhausted(ctx, j); err != nil {
			r.logHookError("OnJobExhausted", e.name, err)
		}
	}
}

// EmitJobCancelled notifies all extensions that implement JobCancelled.
func (r *Registry) EmitJobCancelled(ctx context.Context, j *job.Job) {
	for _, e := range r.jobCancelled {
		if err := e.hook.OnJobCancelled(ctx, j); err != nil {
			r.logHookError("OnJobCancelled", e.name, err)
		}
	}
}

// EmitJobBatched notifies all extensions that implement JobBatched.
func (r *Registry) EmitJobBatched(ctx context.Context, batch *job.Job, merged int) {
	for _, e := range r.jobBatched {
		if err := e.hook.OnJobBatched(ctx, batch, merged); err != nil {
			r.logHookError("OnJobBatched", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Printer and queue event emitters
// ──────────────────────────────────────────────────

// EmitPrinterStatusChanged notifies all extensions that implement
// PrinterStatusChanged.
func (r *Registry) EmitPrinterStatusChanged(ctx context.Context, p *printer.Printer) {
	for _, e := range r.printerStatus {
		if err := e.hook.OnPrinterStatusChanged(ctx, p); err != nil {
			r.logHookError("OnPrinterStatusChanged", e.name, err)
		}
	}
}

// EmitQueueProcessed notifies all extensions that implement QueueProcessed.
func (r *Registry) EmitQueueProcessed(ctx context.Context, s QueueSummary) {
	for _, e := range r.queueProcessed {
		if err := e.hook.OnQueueProcessed(ctx, s); err != nil {
			r.logHookError("OnQueueProcessed", e.name, err)
		}
	}
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
