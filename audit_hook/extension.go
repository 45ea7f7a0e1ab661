package audithook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/spool/ext"
	"github.com/xraph/spool/job"
	"github.com/xraph/spool/printer"
)

// Compile-time interface checks.
var (
	_ ext.Extension            = (*Extension)(nil)
	_ ext.JobSubmitted         = (*Extension)(nil)
	_ ext.JobPrinting          = (*Extension)(nil)
	_ ext.JobCompleted         = (*Extension)(nil)
	_ ext.JobFailed            = (*Extension)(nil)
	_ ext.JobRetrying          = (*Extension)(nil)
	_ ext.JobExhausted         = (*Extension)(nil)
	_ ext.JobCancelled         = (*Extension)(nil)
	_ ext.JobBatched           = (*Extension)(nil)
	_ ext.PrinterStatusChanged = (*Extension)(nil)
	_ ext.QueueProcessed       = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	// Record persists a fully-formed audit event.
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a single audit trail entry.
type AuditEvent struct {
	// What happened
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	// Who did it. Empty for system-driven events.
	Actor string `json:"actor,omitempty"`

	// Details
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record calls f(ctx, event).
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// LogRecorder writes audit events to logger, one record per event. It is
// the default backend for deployments without a dedicated audit store.
func LogRecorder(logger *slog.Logger) Recorder {
	return RecorderFunc(func(ctx context.Context, evt *AuditEvent) error {
		level := slog.LevelInfo
		switch evt.Severity {
		case SeverityWarning:
			level = slog.LevelWarn
		case SeverityCritical:
			level = slog.LevelError
		}

		attrs := []slog.Attr{
			slog.String("action", evt.Action),
			slog.String("resource", evt.Resource),
			slog.String("resource_id", evt.ResourceID),
			slog.String("category", evt.Category),
			slog.String("outcome", evt.Outcome),
		}
		if evt.Actor != "" {
			attrs = append(attrs, slog.String("actor", evt.Actor))
		}
		if evt.Reason != "" {
			attrs = append(attrs, slog.String("reason", evt.Reason))
		}
		for k, v := range evt.Metadata {
			attrs = append(attrs, slog.Any(k, v))
		}
		logger.LogAttrs(ctx, level, "audit", attrs...)
		return nil
	})
}

// Severity levels.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Extension bridges spool lifecycle events to an audit trail backend.
// Each lifecycle hook emits a structured audit event through the [Recorder].
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
	now      func() time.Time
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit-hook" }

// ── Job lifecycle hooks ─────────────────────────────

// OnJobSubmitted implements ext.JobSubmitted.
func (e *Extension) OnJobSubmitted(ctx context.Context, j *job.Job) error {
	return e.recordJob(ctx, ActionJobSubmitted, SeverityInfo, OutcomeSuccess, j, nil,
		"document_type", j.DocumentType,
		"format", string(j.Format),
		"copies", j.Copies,
		"offline", j.Offline,
	)
}

// OnJobPrinting implements ext.JobPrinting.
func (e *Extension) OnJobPrinting(ctx context.Context, j *job.Job) error {
	return e.recordJob(ctx, ActionJobPrinting, SeverityInfo, OutcomeSuccess, j, nil)
}

// OnJobCompleted implements ext.JobCompleted.
func (e *Extension) OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error {
	return e.recordJob(ctx, ActionJobCompleted, SeverityInfo, OutcomeSuccess, j, nil,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnJobFailed implements ext.JobFailed.
func (e *Extension) OnJobFailed(ctx context.Context, j *job.Job, jobErr error) error {
	return e.recordJob(ctx, ActionJobFailed, SeverityWarning, OutcomeFailure, j, jobErr,
		"retry_count", j.RetryCount,
	)
}

// OnJobRetrying implements ext.JobRetrying.
func (e *Extension) OnJobRetrying(ctx context.Context, j *job.Job, attempt int, nextAttemptAt time.Time) error {
	return e.recordJob(ctx, ActionJobRetrying, SeverityWarning, OutcomeFailure, j, nil,
		"attempt", attempt,
		"next_attempt_at", nextAttemptAt.Format(time.RFC3339),
	)
}

// OnJobExhausted implements ext.JobExhausted.
func (e *Extension) OnJobExhausted(ctx context.Context, j *job.Job) error {
	var reason error
	if j.Error != "" {
		reason = errors.New(j.Error)
	}
	return e.recordJob(ctx, ActionJobExhausted, SeverityCritical, OutcomeFailure, j, reason,
		"retry_count", j.RetryCount,
	)
}

// OnJobCancelled implements ext.JobCancelled.
func (e *Extension) OnJobCancelled(ctx context.Context, j *job.Job) error {
	return e.recordJob(ctx, ActionJobCancelled, SeverityWarning, OutcomeSuccess, j, nil)
}

// OnJobBatched implements ext.JobBatched.
func (e *Extension) OnJobBatched(ctx context.Context, batch *job.Job, merged int) error {
	return e.recordJob(ctx, ActionJobBatched, SeverityInfo, OutcomeSuccess, batch, nil,
		"merged", merged,
	)
}

// ── Printer and queue hooks ─────────────────────────

// OnPrinterStatusChanged implements ext.PrinterStatusChanged.
func (e *Extension) OnPrinterStatusChanged(ctx context.Context, p *printer.Printer) error {
	severity := SeverityInfo
	if !p.Active {
		severity = SeverityWarning
	}
	return e.record(ctx, &AuditEvent{
		Action:     ActionPrinterStatusChanged,
		Resource:   ResourcePrinter,
		Category:   CategoryPrinter,
		ResourceID: p.ID.String(),
		Outcome:    OutcomeSuccess,
		Severity:   severity,
	}, nil,
		"printer", p.Name,
		"active", p.Active,
	)
}

// OnQueueProcessed implements ext.QueueProcessed.
func (e *Extension) OnQueueProcessed(ctx context.Context, s ext.QueueSummary) error {
	outcome := OutcomeSuccess
	if s.Failed > 0 {
		outcome = OutcomeFailure
	}
	return e.record(ctx, &AuditEvent{
		Action:   ActionQueueProcessed,
		Resource: ResourceQueue,
		Category: CategoryQueue,
		Outcome:  outcome,
		Severity: SeverityInfo,
	}, nil,
		"processed", s.Processed,
		"failed", s.Failed,
		"printers_scanned", s.PrintersScanned,
		"skipped", s.Skipped,
		"elapsed_ms", s.Elapsed.Milliseconds(),
	)
}

// ── Internal helpers ────────────────────────────────

func (e *Extension) recordJob(
	ctx context.Context,
	action, severity, outcome string,
	j *job.Job,
	err error,
	kvPairs ...any,
) error {
	kvPairs = append([]any{
		"job_name", j.Name,
		"printer_id", j.PrinterID.String(),
		"state", string(j.State),
	}, kvPairs...)
	return e.record(ctx, &AuditEvent{
		Action:     action,
		Resource:   ResourceJob,
		Category:   CategoryJob,
		Actor:      j.User,
		ResourceID: j.ID.String(),
		Outcome:    outcome,
		Severity:   severity,
	}, err, kvPairs...)
}

// record fills in metadata and sends evt if its action is enabled. The
// kvPairs argument is a list of key-value pairs added to Metadata.
// Recorder failures are logged, never returned.
func (e *Extension) record(ctx context.Context, evt *AuditEvent, err error, kvPairs ...any) error {
	if e.enabled != nil && !e.enabled[evt.Action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}
	if err != nil {
		evt.Reason = err.Error()
		meta["error"] = err.Error()
	}
	evt.Metadata = meta
	evt.Timestamp = e.now().UTC()

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", evt.Action,
			"resource_id", evt.ResourceID,
			"error", recErr,
		)
	}
	return nil
}
