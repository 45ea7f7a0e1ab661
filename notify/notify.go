// Package notify delivers print job notifications to administrators.
//
// A [Sink] receives submission and failure notices. [Extension] plugs a
// Sink into the engine's lifecycle hooks and applies the
// email_notifications_enabled gate: failure notices only fire for terminal
// failures (permanent errors and exhausted retries).
package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/xraph/spool"
	"github.com/xraph/spool/ext"
	"github.com/xraph/spool/job"
)

// Sink receives job notifications.
type Sink interface {
	NotifyJobSubmitted(ctx context.Context, j *job.Job) error
	NotifyJobFailed(ctx context.Context, j *job.Job) error
}

// Compile-time interface checks.
var (
	_ ext.Extension    = (*Extension)(nil)
	_ ext.JobSubmitted = (*Extension)(nil)
	_ ext.JobFailed    = (*Extension)(nil)
	_ ext.JobExhausted = (*Extension)(nil)
)

// Extension forwards lifecycle events to a Sink.
type Extension struct {
	sink    Sink
	enabled bool
	logger  *slog.Logger
}

// ExtensionOption configures an Extension.
type ExtensionOption func(*Extension)

// WithLogger sets the extension logger.
func WithLogger(l *slog.Logger) ExtensionOption {
	return func(e *Extension) { e.logger = l }
}

// NewExtension wraps sink, gated by cfg.EmailNotificationsEnabled.
func NewExtension(sink Sink, cfg spool.Config, opts ...ExtensionOption) *Extension {
	e := &Extension{
		sink:    sink,
		enabled: cfg.EmailNotificationsEnabled,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "notify" }

// OnJobSubmitted implements ext.JobSubmitted.
func (e *Extension) OnJobSubmitted(ctx context.Context, j *job.Job) error {
	if !e.enabled {
		return nil
	}
	return e.sink.NotifyJobSubmitted(ctx, j)
}

// OnJobFailed implements ext.JobFailed.
func (e *Extension) OnJobFailed(ctx context.Context, j *job.Job, _ error) error {
	return e.failed(ctx, j)
}

// OnJobExhausted implements ext.JobExhausted.
func (e *Extension) OnJobExhausted(ctx context.Context, j *job.Job) error {
	return e.failed(ctx, j)
}

func (e *Extension) failed(ctx context.Context, j *job.Job) error {
	if !e.enabled {
		e.logger.Debug("notifications disabled, skipping failure notice",
			slog.String("job_name", j.Name),
		)
		return nil
	}
	return e.sink.NotifyJobFailed(ctx, j)
}

// ──────────────────────────────────────────────────
// LogSink
// ──────────────────────────────────────────────────

// LogSink writes notifications to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink returns a LogSink writing to logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// NotifyJobSubmitted implements Sink.
func (s *LogSink) NotifyJobSubmitted(_ context.Context, j *job.Job) error {
	s.logger.Info("print job submitted",
		slog.String("job_id", j.ID.String()),
		slog.String("job_name", j.Name),
		slog.String("printer_id", j.PrinterID.String()),
		slog.Bool("offline", j.Offline),
	)
	return nil
}

// NotifyJobFailed implements Sink.
func (s *LogSink) NotifyJobFailed(_ context.Context, j *job.Job) error {
	s.logger.Error("print job failed",
		slog.String("job_id", j.ID.String()),
		slog.String("job_name", j.Name),
		slog.String("printer_id", j.PrinterID.String()),
		slog.Int("retry_count", j.RetryCount),
		slog.String("error", j.Error),
	)
	return nil
}

// ──────────────────────────────────────────────────
// Multi
// ──────────────────────────────────────────────────

// Multi fans a notification out to several sinks and joins their errors.
type Multi []Sink

// NotifyJobSubmitted implements Sink.
func (m Multi) NotifyJobSubmitted(ctx context.Context, j *job.Job) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.NotifyJobSubmitted(ctx, j))
	}
	return errors.Join(errs...)
}

// NotifyJobFailed implements Sink.
func (m Multi) NotifyJobFailed(ctx context.Context, j *job.Job) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.NotifyJobFailed(ctx, j))
	}
	return errors.Join(errs...)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.DateTime)
}
