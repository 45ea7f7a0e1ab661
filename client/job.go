package client

import (
	"context"

	"github.com/xraph/spool/ext"
	"github.com/xraph/spool/job"
	"github.com/xraph/spool/printer"
	"github.com/xraph/spool/wire"
)

// JobResult contains the result of a submission.
type JobResult = wire.JobSubmitResponse

// Print submits a payload already encoded in a printer language
// ("pdf", "html", "escpos" or "zpl").
func (c *Client) Print(ctx context.Context, data []byte, format string, opts ...SubmitOption) (*JobResult, error) {
	req := wire.JobSubmitRequest{Data: data, Format: format}
	for _, opt := range opts {
		opt(&req)
	}
	return c.Submit(ctx, req)
}

// PrintTemplate renders a server-side template with data and prints it.
func (c *Client) PrintTemplate(ctx context.Context, template string, data map[string]any, opts ...SubmitOption) (*JobResult, error) {
	req := wire.JobSubmitRequest{Template: template, TemplateData: data}
	for _, opt := range opts {
		opt(&req)
	}
	return c.Submit(ctx, req)
}

// Submit sends a fully built submission request.
func (c *Client) Submit(ctx context.Context, req wire.JobSubmitRequest) (*JobResult, error) {
	var result JobResult
	if err := c.call(ctx, wire.MethodJobSubmit, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetJob retrieves a job by ID.
func (c *Client) GetJob(ctx context.Context, jobID string) (*job.Job, error) {
	var j job.Job
	if err := c.call(ctx, wire.MethodJobGet, wire.JobRequest{JobID: jobID}, &j); err != nil {
		return nil, err
	}
	return &j, nil
}

// ListJobs lists jobs, optionally filtered by state and printer.
func (c *Client) ListJobs(ctx context.Context, req wire.JobListRequest) ([]*job.Job, error) {
	var jobs []*job.Job
	if err := c.call(ctx, wire.MethodJobList, req, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// CancelJob cancels a job. It reports false when the job was already
// finished.
func (c *Client) CancelJob(ctx context.Context, jobID string) (bool, error) {
	var resp wire.JobActionResponse
	if err := c.call(ctx, wire.MethodJobCancel, wire.JobRequest{JobID: jobID}, &resp); err != nil {
		return false, err
	}
	return resp.OK, nil
}

// RetryJob retries a failed job and reports whether it was handed to its
// printer again.
func (c *Client) RetryJob(ctx context.Context, jobID string) (bool, error) {
	var resp wire.JobActionResponse
	if err := c.call(ctx, wire.MethodJobRetry, wire.JobRequest{JobID: jobID}, &resp); err != nil {
		return false, err
	}
	return resp.OK, nil
}

// Printers lists the server's printers.
func (c *Client) Printers(ctx context.Context, activeOnly bool) ([]*printer.Printer, error) {
	var printers []*printer.Printer
	if err := c.call(ctx, wire.MethodPrinterList, wire.PrinterListRequest{ActiveOnly: activeOnly}, &printers); err != nil {
		return nil, err
	}
	return printers, nil
}

// ProcessQueue runs one queue pass on the server.
func (c *Client) ProcessQueue(ctx context.Context) (ext.QueueSummary, error) {
	var sum ext.QueueSummary
	err := c.call(ctx, wire.MethodQueueProcess, nil, &sum)
	return sum, err
}

// SubmitOption configures a submission request.
type SubmitOption func(*wire.JobSubmitRequest)

// WithPrinter targets a printer by ID or name.
func WithPrinter(ref string) SubmitOption {
	return func(r *wire.JobSubmitRequest) { r.Printer = ref }
}

// WithDocumentType sets the document type used for printer selection and
// label batching.
func WithDocumentType(documentType string) SubmitOption {
	return func(r *wire.JobSubmitRequest) { r.DocumentType = documentType }
}

// WithLocation prefers printers at location.
func WithLocation(location string) SubmitOption {
	return func(r *wire.JobSubmitRequest) { r.Location = location }
}

// WithDepartment prefers printers in department.
func WithDepartment(department string) SubmitOption {
	return func(r *wire.JobSubmitRequest) { r.Department = department }
}

// WithCopies sets the number of copies.
func WithCopies(copies int) SubmitOption {
	return func(r *wire.JobSubmitRequest) { r.Copies = copies }
}

// WithPriority sets the job priority.
func WithPriority(priority int) SubmitOption {
	return func(r *wire.JobSubmitRequest) { r.Priority = priority }
}

// WithUser records the submitting user.
func WithUser(user string) SubmitOption {
	return func(r *wire.JobSubmitRequest) { r.User = user }
}
