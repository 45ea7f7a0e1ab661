package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"

	"github.com/xraph/spool/id"
	"github.com/xraph/spool/job"
	"github.com/xraph/spool/printer"
)

// Message is a composed email.
type Message struct {
	To       string
	Subject  string
	HTMLBody string
}

// Mailer transports composed messages. SMTP or API transports live
// outside this module.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Printers resolves printer names for message bodies.
type Printers interface {
	Get(ctx context.Context, printerID id.PrinterID) (*printer.Printer, error)
}

var failureBody = template.Must(template.New("failure").Parse(`<div style="font-family: Arial, sans-serif;">
<h2 style="color: #dc3545;">Print Job Failed</h2>
<p>Print job <strong>{{.Name}}</strong> has failed after {{.RetryCount}} retry attempts.</p>
<h3>Details:</h3>
<ul>
<li><strong>Document Type:</strong> {{.DocumentType}}</li>
<li><strong>Printer:</strong> {{.Printer}}</li>
<li><strong>User:</strong> {{.User}}</li>
<li><strong>Submitted:</strong> {{.Submitted}}</li>
<li><strong>Error:</strong> {{.Error}}</li>
</ul>
<p>Please check the printer status and configuration.</p>
</div>`))

// MailSink composes failure emails for every administrator address and
// hands them to a Mailer. Submissions are not mailed.
type MailSink struct {
	mailer   Mailer
	admins   []string
	printers Printers
	logger   *slog.Logger
}

// MailOption configures a MailSink.
type MailOption func(*MailSink)

// WithPrinters lets the sink print printer names instead of IDs.
func WithPrinters(p Printers) MailOption {
	return func(s *MailSink) { s.printers = p }
}

// WithMailLogger sets the sink logger.
func WithMailLogger(l *slog.Logger) MailOption {
	return func(s *MailSink) { s.logger = l }
}

// NewMailSink creates a MailSink sending to admins.
func NewMailSink(mailer Mailer, admins []string, opts ...MailOption) *MailSink {
	s := &MailSink{
		mailer: mailer,
		admins: admins,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NotifyJobSubmitted implements Sink. Submissions are not mailed.
func (s *MailSink) NotifyJobSubmitted(context.Context, *job.Job) error { return nil }

// NotifyJobFailed implements Sink. A failed send to one address does not
// stop the others; all errors are joined.
func (s *MailSink) NotifyJobFailed(ctx context.Context, j *job.Job) error {
	if len(s.admins) == 0 {
		s.logger.Warn("no administrator addresses for failure notification",
			slog.String("job_name", j.Name),
		)
		return nil
	}

	subject, body, err := s.Compose(ctx, j)
	if err != nil {
		return err
	}

	var errs []error
	for _, to := range s.admins {
		if err := s.mailer.Send(ctx, Message{To: to, Subject: subject, HTMLBody: body}); err != nil {
			s.logger.Error("failed to send failure notification",
				slog.String("to", to),
				slog.String("job_name", j.Name),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("notify %s: %w", to, err))
			continue
		}
		s.logger.Info("failure notification sent",
			slog.String("to", to),
			slog.String("job_name", j.Name),
		)
	}
	return errors.Join(errs...)
}

// Compose renders the subject and HTML body of a failure notice.
func (s *MailSink) Compose(ctx context.Context, j *job.Job) (subject, body string, err error) {
	printerName := j.PrinterID.String()
	if s.printers != nil {
		if p, lookupErr := s.printers.Get(ctx, j.PrinterID); lookupErr == nil {
			printerName = p.Name
		}
	}

	errMsg := j.Error
	if errMsg == "" {
		errMsg = "No error message available"
	}

	var buf bytes.Buffer
	err = failureBody.Execute(&buf, map[string]any{
		"Name":         j.Name,
		"RetryCount":   j.RetryCount,
		"DocumentType": j.DocumentType,
		"Printer":      printerName,
		"User":         j.User,
		"Submitted":    formatTime(j.SubmittedAt),
		"Error":        errMsg,
	})
	if err != nil {
		return "", "", fmt.Errorf("notify: render failure body: %w", err)
	}
	return "Print Job Failed: " + j.Name, buf.String(), nil
}
