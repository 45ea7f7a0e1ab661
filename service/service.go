// Package service is the application-facing print API. It resolves the
// target printer, renders templates and formats receipts and labels, then
// submits the resulting job to the broker.
//
//	svc := service.New(eng, eng.Printers(), templates)
//	j, err := svc.PrintReceipt(ctx, receipt, render.ReceiptOptions{}, service.Options{Location: "store-12"})
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/spool"
	"github.com/xraph/spool/batch"
	"github.com/xraph/spool/job"
	"github.com/xraph/spool/printer"
	"github.com/xraph/spool/render"
)

// Submitter queues jobs. engine.Engine implements it.
type Submitter interface {
	Submit(ctx context.Context, j *job.Job) (*job.Job, error)
}

// Printers resolves target printers. printer.Registry implements it.
type Printers interface {
	Select(ctx context.Context, c printer.Criteria) (*printer.Printer, error)
	SelectExplicit(ctx context.Context, ref string) (*printer.Printer, error)
}

// Options are the per-call print settings. Zero values take the job
// defaults.
type Options struct {
	// Printer names the target printer by ID or name. Empty selects one
	// from DocumentType, Location and Department.
	Printer      string
	DocumentType string
	Location     string
	Department   string

	// Copies defaults to job.DefaultCopies.
	Copies int
	// Priority defaults to job.DefaultPriority.
	Priority int

	User        string
	ParentModel string
	ParentID    string
}

// Preview is a rendered document that was not printed.
type Preview struct {
	Template string     `json:"template"`
	Format   job.Format `json:"format"`
	Data     []byte     `json:"data"`
}

// Service is the print API.
type Service struct {
	submitter Submitter
	printers  Printers
	renderer  *render.Registry
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a Service. A nil renderer gets a registry with the built-in
// templates only.
func New(submitter Submitter, printers Printers, renderer *render.Registry, opts ...Option) *Service {
	if renderer == nil {
		renderer = render.NewRegistry()
	}
	s := &Service{
		submitter: submitter,
		printers:  printers,
		renderer:  renderer,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Renderer returns the template registry.
func (s *Service) Renderer() *render.Registry { return s.renderer }

// PrintDocument renders template with data and submits the output. The
// job keeps the template reference and data for provenance.
func (s *Service) PrintDocument(ctx context.Context, template string, data map[string]any, opts Options) (*job.Job, error) {
	format, err := s.renderer.Format(template)
	if err != nil {
		return nil, err
	}
	out, err := s.renderer.Render(ctx, template, data)
	if err != nil {
		return nil, err
	}

	p, err := s.resolvePrinter(ctx, opts)
	if err != nil {
		return nil, err
	}

	j := s.newJob(p, format, out, opts)
	j.TemplateRef = template
	j.TemplateData = data
	return s.submit(ctx, j, p)
}

// PrintRaw submits a payload that is already in a printer language. The
// printer must support format.
func (s *Service) PrintRaw(ctx context.Context, data []byte, format job.Format, opts Options) (*job.Job, error) {
	f, err := job.ParseFormat(string(format))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, spool.NewValidationError("data", "print data cannot be empty")
	}

	p, err := s.resolvePrinter(ctx, opts)
	if err != nil {
		return nil, err
	}
	if !p.Supports(f) {
		return nil, spool.NewValidationError("format", "printer %q does not support format %q", p.Name, f)
	}
	return s.submit(ctx, s.newJob(p, f, data, opts), p)
}

// PrintPDF submits a PDF document.
func (s *Service) PrintPDF(ctx context.Context, pdf []byte, opts Options) (*job.Job, error) {
	if len(pdf) == 0 {
		return nil, spool.NewValidationError("data", "PDF data cannot be empty")
	}
	return s.PrintRaw(ctx, pdf, job.FormatPDF, opts)
}

// Preview renders template with data without printing.
func (s *Service) Preview(ctx context.Context, template string, data map[string]any) (*Preview, error) {
	format, err := s.renderer.Format(template)
	if err != nil {
		return nil, err
	}
	out, err := s.renderer.Render(ctx, template, data)
	if err != nil {
		return nil, err
	}
	return &Preview{Template: template, Format: format, Data: out}, nil
}

// PrinterFor selects the printer for a document type at a location and
// department.
func (s *Service) PrinterFor(ctx context.Context, documentType, location, department string) (*printer.Printer, error) {
	return s.printers.Select(ctx, printer.Criteria{
		Type:       printer.TypeForDocument(documentType),
		Location:   location,
		Department: department,
	})
}

// FormatReceipt prepares r for the receipt template.
func (s *Service) FormatReceipt(r render.Receipt, ropts render.ReceiptOptions) (*render.Document, error) {
	return render.FormatReceipt(r, ropts)
}

// PrintReceipt formats and prints r, on a receipt printer unless
// opts.Printer says otherwise.
func (s *Service) PrintReceipt(ctx context.Context, r render.Receipt, ropts render.ReceiptOptions, opts Options) (*job.Job, error) {
	doc, err := render.FormatReceipt(r, ropts)
	if err != nil {
		return nil, err
	}
	opts.DocumentType = job.DocTypeReceipt
	return s.PrintDocument(ctx, doc.Template, doc.Data, opts)
}

// FormatLabel prepares l for the label printer it will be printed on and
// returns that printer.
func (s *Service) FormatLabel(ctx context.Context, l render.Label, opts Options) (*render.Document, *printer.Printer, error) {
	if l.IsZero() {
		return nil, nil, spool.NewValidationError("label", "label data cannot be empty")
	}
	opts.DocumentType = job.DocTypeLabel
	p, err := s.resolvePrinter(ctx, opts)
	if err != nil {
		return nil, nil, err
	}
	doc, err := render.FormatLabel(l, p)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Debug("label format detected",
		slog.String("printer", p.Name),
		slog.String("format", string(doc.Format)),
	)
	return doc, p, nil
}

// PrintLabel formats and prints one label.
func (s *Service) PrintLabel(ctx context.Context, l render.Label, opts Options) (*job.Job, error) {
	doc, p, err := s.FormatLabel(ctx, l, opts)
	if err != nil {
		return nil, err
	}
	opts.Printer = p.ID.String()
	opts.DocumentType = job.DocTypeLabel
	return s.PrintDocument(ctx, doc.Template, doc.Data, opts)
}

// PrintLabels prints several labels as one job. Raw label languages are
// joined with their batch separator; HTML labels share one page-per-label
// document.
func (s *Service) PrintLabels(ctx context.Context, labels []render.Label, opts Options) (*job.Job, error) {
	if len(labels) == 0 {
		return nil, spool.NewValidationError("labels", "labels data cannot be empty")
	}

	docs := make([]*render.Document, 0, len(labels))
	var target *printer.Printer
	for _, l := range labels {
		doc, p, err := s.FormatLabel(ctx, l, opts)
		if err != nil {
			return nil, err
		}
		if target == nil {
			target = p
			opts.Printer = p.ID.String()
		}
		docs = append(docs, doc)
	}
	opts.DocumentType = job.DocTypeLabelBatch

	format := docs[0].Format
	switch format {
	case job.FormatZPL, job.FormatESCPOS:
		payloads := make([][]byte, 0, len(docs))
		for _, doc := range docs {
			out, err := s.renderer.Render(ctx, doc.Template, doc.Data)
			if err != nil {
				return nil, err
			}
			payloads = append(payloads, out)
		}
		return s.submit(ctx, s.newJob(target, format, batch.Join(format, payloads...), opts), target)
	default:
		all := make([]map[string]any, 0, len(docs))
		for _, doc := range docs {
			all = append(all, doc.Data)
		}
		return s.PrintDocument(ctx, render.RefLabelBatchHTML, map[string]any{"labels": all}, opts)
	}
}

// resolvePrinter picks the explicit printer when one is named, otherwise
// the best printer for the document.
func (s *Service) resolvePrinter(ctx context.Context, opts Options) (*printer.Printer, error) {
	if opts.Printer != "" {
		p, err := s.printers.SelectExplicit(ctx, opts.Printer)
		if err != nil {
			return nil, err
		}
		s.logger.Debug("using explicitly specified printer", slog.String("printer", p.Name))
		return p, nil
	}
	return s.PrinterFor(ctx, opts.DocumentType, opts.Location, opts.Department)
}

func (s *Service) newJob(p *printer.Printer, format job.Format, data []byte, opts Options) *job.Job {
	copies := opts.Copies
	if copies == 0 {
		copies = job.DefaultCopies
	}
	priority := opts.Priority
	if priority == 0 {
		priority = job.DefaultPriority
	}
	return &job.Job{
		PrinterID:    p.ID,
		DocumentType: opts.DocumentType,
		User:         opts.User,
		Data:         data,
		Format:       format,
		Copies:       copies,
		Priority:     priority,
		ParentModel:  opts.ParentModel,
		ParentID:     opts.ParentID,
	}
}

func (s *Service) submit(ctx context.Context, j *job.Job, p *printer.Printer) (*job.Job, error) {
	submitted, err := s.submitter.Submit(ctx, j)
	if err != nil {
		return nil, fmt.Errorf("spool: submit to %s: %w", p.Name, err)
	}
	s.logger.Info("print job created",
		slog.String("job_id", submitted.ID.String()),
		slog.String("job_name", submitted.Name),
		slog.String("printer", p.Name),
		slog.String("format", string(submitted.Format)),
	)
	return submitted, nil
}
