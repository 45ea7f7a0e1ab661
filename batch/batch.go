// Package batch merges queued label jobs bound for the same printer into a
// single print job, so a label printer receives one payload instead of many.
package batch

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/xraph/spool"
	"github.com/xraph/spool/id"
	"github.com/xraph/spool/job"
	"github.com/xraph/spool/printer"
)

// ParentModel is the provenance model recorded on a batch job.
const ParentModel = "print_job"

// Separator returns the bytes written after each label of the given format:
// a newline for ZPL (every ZPL label is self-terminating) and a full paper
// cut (GS V 0) for ESC/POS. Other formats have no separator.
func Separator(f job.Format) []byte {
	switch f {
	case job.FormatZPL:
		return []byte("\n")
	case job.FormatESCPOS:
		return []byte{0x1d, 'V', 0x00}
	}
	return nil
}

// Join concatenates label payloads, writing the format separator after
// each one.
func Join(f job.Format, payloads ...[]byte) []byte {
	sep := Separator(f)
	var buf bytes.Buffer
	for _, p := range payloads {
		buf.Write(p)
		buf.Write(sep)
	}
	return buf.Bytes()
}

// Target is the engine surface the batcher needs: the normal submission
// path for the merged job and a way to retire the constituents.
type Target interface {
	Submit(ctx context.Context, j *job.Job) (*job.Job, error)
	Supersede(ctx context.Context, jobID id.JobID, reason string) error
	Printer(ctx context.Context, printerID id.PrinterID) (*printer.Printer, error)
}

// Renderer produces the payload of template-only jobs.
type Renderer interface {
	Render(ctx context.Context, ref string, data map[string]any) ([]byte, error)
}

// Batcher merges label jobs.
type Batcher struct {
	target   Target
	renderer Renderer
	logger   *slog.Logger
}

// Option configures a Batcher.
type Option func(*Batcher)

// WithLogger sets the batcher logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Batcher) { b.logger = l }
}

// WithRenderer lets the batcher merge jobs that carry a template instead
// of raw data. Without one, such jobs are left out of the batch.
func WithRenderer(r Renderer) Option {
	return func(b *Batcher) { b.renderer = r }
}

// New creates a Batcher submitting through target.
func New(target Target, opts ...Option) *Batcher {
	b := &Batcher{
		target: target,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Batch merges jobs into one label_batch job and cancels the constituents.
// A single job is returned unchanged. Jobs for different printers are
// rejected with a ValidationError naming the printers. Non-label jobs, and
// jobs with no payload, are dropped with a warning; if nothing is left the
// call fails with a ValidationError. So does a label job that can no longer
// be cancelled, since it is either printed or already retired.
func (b *Batcher) Batch(ctx context.Context, jobs []*job.Job) (*job.Job, error) {
	switch len(jobs) {
	case 0:
		return nil, spool.NewValidationError("jobs", "no label jobs provided for batching")
	case 1:
		return jobs[0], nil
	}

	if err := b.checkSinglePrinter(ctx, jobs); err != nil {
		return nil, err
	}

	labels := make([]*job.Job, 0, len(jobs))
	var skipped []string
	for _, j := range jobs {
		if job.IsLabelCategory(j.DocumentType) {
			labels = append(labels, j)
		} else {
			skipped = append(skipped, j.Name)
		}
	}
	if len(skipped) > 0 {
		b.logger.Warn("skipping non-label jobs in batch", slog.String("jobs", strings.Join(skipped, ", ")))
	}
	if len(labels) == 0 {
		return nil, spool.NewValidationError("jobs", "no valid label jobs to batch")
	}

	labels = slices.Clone(labels)
	job.SortFIFO(labels)

	format := labels[0].Format
	payloads := make([][]byte, 0, len(labels))
	merged := make([]*job.Job, 0, len(labels))
	priority := 0
	mixed := false
	for _, j := range labels {
		data, err := b.payload(ctx, j)
		if err != nil || len(data) == 0 {
			b.logger.Warn("skipping label job without payload",
				slog.String("job_id", j.ID.String()),
				slog.String("job_name", j.Name),
			)
			continue
		}
		if j.Format != format {
			mixed = true
		}
		for range max(j.Copies, 1) {
			payloads = append(payloads, data)
		}
		priority = max(priority, j.Priority)
		merged = append(merged, j)
	}
	if len(merged) == 0 {
		return nil, spool.NewValidationError("jobs", "no valid label jobs to batch")
	}
	if mixed {
		b.logger.Warn("multiple formats in label batch, using format of first job",
			slog.String("format", string(format)),
		)
	}

	for _, j := range merged {
		if !job.CanTransition(j.State, job.StateCancelled) {
			return nil, spool.NewValidationError("jobs", "job %s is %s and cannot be batched", j.Name, j.State)
		}
	}

	first := merged[0]
	batchJob, err := b.target.Submit(ctx, &job.Job{
		DocumentType: job.DocTypeLabelBatch,
		PrinterID:    first.PrinterID,
		User:         first.User,
		Data:         Join(format, payloads...),
		Format:       format,
		Copies:       1,
		Priority:     priority,
		ParentModel:  ParentModel,
		ParentID:     first.ID.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("spool: submit batch job: %w", err)
	}

	reason := "Combined into batch job " + batchJob.Name
	for _, j := range merged {
		if err := b.target.Supersede(ctx, j.ID, reason); err != nil {
			// A constituent changed state under us; don't leave a second
			// copy of its label queued.
			if abortErr := b.target.Supersede(ctx, batchJob.ID, "Batch aborted: "+err.Error()); abortErr != nil {
				b.logger.Error("failed to cancel aborted batch job",
					slog.String("job_id", batchJob.ID.String()),
					slog.String("error", abortErr.Error()),
				)
			}
			return nil, fmt.Errorf("spool: cancel batched job %s: %w", j.Name, err)
		}
	}

	b.logger.Info("label batch created",
		slog.String("job_id", batchJob.ID.String()),
		slog.String("job_name", batchJob.Name),
		slog.Int("labels", len(merged)),
		slog.String("printer_id", first.PrinterID.String()),
	)
	return batchJob, nil
}

func (b *Batcher) checkSinglePrinter(ctx context.Context, jobs []*job.Job) error {
	var ids []id.PrinterID
	for _, j := range jobs {
		if !slices.Contains(ids, j.PrinterID) {
			ids = append(ids, j.PrinterID)
		}
	}
	if len(ids) == 1 {
		return nil
	}

	names := make([]string, 0, len(ids))
	for _, pid := range ids {
		name := pid.String()
		if p, err := b.target.Printer(ctx, pid); err == nil {
			name = p.Name
		}
		names = append(names, name)
	}
	return spool.NewValidationError("printer_id", "cannot batch labels for different printers: %s", strings.Join(names, ", "))
}

func (b *Batcher) payload(ctx context.Context, j *job.Job) ([]byte, error) {
	if len(j.Data) > 0 {
		return j.Data, nil
	}
	if j.TemplateRef == "" || b.renderer == nil {
		return nil, nil
	}
	return b.renderer.Render(ctx, j.TemplateRef, j.TemplateData)
}
