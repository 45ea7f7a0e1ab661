// Package worker delivers claimed print jobs to their printers. An
// Executor runs one delivery through middleware and the sink and reports
// the outcome; a Pool runs deliveries on a fixed set of goroutines so the
// queue processor never blocks on a slow device.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xraph/spool/id"
	"github.com/xraph/spool/job"
	"github.com/xraph/spool/middleware"
	"github.com/xraph/spool/printer"
	"github.com/xraph/spool/sink"
)

// Reporter records delivery outcomes. The engine implements it: success
// completes the job, failure routes it through the retry policy.
type Reporter interface {
	MarkCompleted(ctx context.Context, jobID id.JobID) (*job.Job, error)
	MarkFailed(ctx context.Context, jobID id.JobID, msg string) (*job.Job, error)
}

// Renderer produces the payload of template-only jobs.
type Renderer interface {
	Render(ctx context.Context, ref string, data map[string]any) ([]byte, error)
}

// Executor runs a single delivery through middleware and the sink, then
// reports the outcome.
type Executor struct {
	sink     sink.Sink
	reporter Reporter
	renderer Renderer
	mw       middleware.Middleware
	logger   *slog.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithRenderer sets the renderer used for jobs that carry a template
// reference instead of raw data.
func WithRenderer(r Renderer) ExecutorOption {
	return func(e *Executor) { e.renderer = r }
}

// WithMiddleware sets the middleware chain wrapped around every sink call.
func WithMiddleware(mws ...middleware.Middleware) ExecutorOption {
	return func(e *Executor) { e.mw = middleware.Chain(mws...) }
}

// WithLogger sets the executor logger.
func WithLogger(l *slog.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = l }
}

// NewExecutor creates an Executor delivering to s and reporting to r.
func NewExecutor(s sink.Sink, r Reporter, opts ...ExecutorOption) *Executor {
	e := &Executor{
		sink:     s,
		reporter: r,
		mw:       middleware.Chain(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Deliver runs the delivery synchronously. It lets an Executor stand in
// for a Pool where deliveries should finish before the caller continues.
func (e *Executor) Deliver(ctx context.Context, j *job.Job, p *printer.Printer) error {
	return e.Execute(ctx, j, p)
}

// Execute delivers j to p and reports the outcome. The returned error is
// the reporting error, if any; delivery failures are recorded on the job
// through the Reporter.
func (e *Executor) Execute(ctx context.Context, j *job.Job, p *printer.Printer) error {
	req, err := e.request(ctx, j, p)
	if err == nil {
		err = e.mw(ctx, req, func(ctx context.Context) error {
			return e.sink.Send(ctx, req)
		})
	}

	// The outcome is recorded even when the delivery context was cancelled
	// by a shutdown.
	rctx := context.WithoutCancel(ctx)
	if err != nil {
		return e.reportFailure(rctx, j, p, err)
	}
	if _, repErr := e.reporter.MarkCompleted(rctx, j.ID); repErr != nil {
		e.logger.Error("failed to record completed delivery",
			slog.String("job_id", j.ID.String()),
			slog.String("job_name", j.Name),
			slog.String("error", repErr.Error()),
		)
		return repErr
	}
	return nil
}

func (e *Executor) reportFailure(ctx context.Context, j *job.Job, p *printer.Printer, deliveryErr error) error {
	msg := deliveryErr.Error()
	// Unclassified context errors carry no keyword the retry policy
	// recognises.
	var se *sink.Error
	if !errors.As(deliveryErr, &se) && sink.IsTransient(deliveryErr) {
		msg = sink.NewTransient("deliver", p.DeviceName(), deliveryErr).Error()
	}

	if _, repErr := e.reporter.MarkFailed(ctx, j.ID, msg); repErr != nil {
		e.logger.Error("failed to record failed delivery",
			slog.String("job_id", j.ID.String()),
			slog.String("job_name", j.Name),
			slog.String("delivery_error", msg),
			slog.String("error", repErr.Error()),
		)
		return repErr
	}
	return nil
}

// request builds the sink request, rendering the payload when the job
// only carries a template.
func (e *Executor) request(ctx context.Context, j *job.Job, p *printer.Printer) (*sink.Request, error) {
	data := j.Data
	if len(data) == 0 {
		if j.TemplateRef == "" {
			return nil, sink.NewPermanent("prepare", p.DeviceName(), errors.New("job has no payload"))
		}
		if e.renderer == nil {
			return nil, sink.NewPermanent("prepare", p.DeviceName(), fmt.Errorf("no renderer for template %q", j.TemplateRef))
		}
		rendered, err := e.renderer.Render(ctx, j.TemplateRef, j.TemplateData)
		if err != nil {
			return nil, sink.NewPermanent("render", p.DeviceName(), err)
		}
		data = rendered
	}

	return &sink.Request{
		JobID:     j.ID,
		JobName:   j.Name,
		PrinterID: p.ID,
		Printer:   p.DeviceName(),
		Address:   p.Address,
		Format:    j.Format,
		Copies:    j.Copies,
		Data:      data,
		User:      j.User,
		Attempt:   j.RetryCount + 1,
	}, nil
}
