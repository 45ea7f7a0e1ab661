// Package ipp delivers payloads with an IPP Print-Job request over HTTP.
package ipp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	goipp "github.com/OpenPrinting/goipp"

	"github.com/xraph/spool/job"
	"github.com/xraph/spool/sink"
)

// DefaultPort is the IPP port used when an ipp:// address has none.
const DefaultPort = "631"

// Sink submits Print-Job requests.
type Sink struct {
	client    *http.Client
	user      string
	requestID atomic.Uint32
	logger    *slog.Logger
}

var _ sink.Sink = (*Sink)(nil)

// Option configures a Sink.
type Option func(*Sink)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Sink) { s.client = c }
}

// WithUser sets the requesting-user-name sent when a request carries no
// user. Default: "spool".
func WithUser(user string) Option {
	return func(s *Sink) { s.user = user }
}

// WithLogger sets the sink logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sink) { s.logger = l }
}

// New creates an IPP sink.
func New(opts ...Option) *Sink {
	s := &Sink{
		client: &http.Client{Timeout: 60 * time.Second},
		user:   "spool",
		logger: slog.Default(),
	}
	s.requestID.Store(uint32(time.Now().UnixNano()))
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MimeType maps a payload format to its IPP document-format.
func MimeType(f job.Format) string {
	switch f {
	case job.FormatPDF:
		return "application/pdf"
	case job.FormatHTML:
		return "text/html"
	}
	return "application/octet-stream"
}

// Send encodes a Print-Job request followed by the payload and checks the
// IPP status of the response.
func (s *Sink) Send(ctx context.Context, req *sink.Request) error {
	printerURI, endpoint, err := Endpoint(req.Address)
	if err != nil {
		return sink.NewPermanent("address", req.Printer, err)
	}

	msg := s.printJob(printerURI, req)
	head, err := msg.EncodeBytes()
	if err != nil {
		return sink.NewPermanent("encode", req.Printer, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		io.MultiReader(bytes.NewReader(head), bytes.NewReader(req.Data)))
	if err != nil {
		return sink.NewPermanent("request", req.Printer, err)
	}
	httpReq.Header.Set("Content-Type", goipp.ContentType)
	httpReq.Header.Set("Accept", goipp.ContentType)

	resp, err := s.client.Do(httpReq)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		return sink.NewTransient("post", req.Printer, err)
	}
	if resp.StatusCode/100 != 2 {
		err := errors.New(resp.Status)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return sink.NewTransient("post", req.Printer, err)
		}
		return sink.NewPermanent("post", req.Printer, err)
	}

	var ippResp goipp.Message
	if err := ippResp.Decode(resp.Body); err != nil {
		return sink.NewTransient("decode response", req.Printer, err)
	}
	if status := goipp.Status(ippResp.Code); status >= goipp.StatusRedirectionOtherSite {
		return classify(req.Printer, status)
	}

	s.logger.Debug("ipp delivery",
		slog.String("printer", req.Printer),
		slog.String("printer_uri", printerURI),
		slog.Int("bytes", len(req.Data)),
	)
	return nil
}

func (s *Sink) printJob(printerURI string, req *sink.Request) *goipp.Message {
	user := req.User
	if user == "" {
		user = s.user
	}
	name := req.JobName
	if name == "" {
		name = "Untitled"
	}

	msg := goipp.NewRequest(goipp.DefaultVersion, goipp.OpPrintJob, s.requestID.Add(1))
	msg.Operation.Add(goipp.MakeAttribute("attributes-charset", goipp.TagCharset, goipp.String("utf-8")))
	msg.Operation.Add(goipp.MakeAttribute("attributes-natural-language", goipp.TagLanguage, goipp.String("en-US")))
	msg.Operation.Add(goipp.MakeAttribute("printer-uri", goipp.TagURI, goipp.String(printerURI)))
	msg.Operation.Add(goipp.MakeAttribute("requesting-user-name", goipp.TagName, goipp.String(user)))
	msg.Operation.Add(goipp.MakeAttribute("job-name", goipp.TagName, goipp.String(name)))
	msg.Operation.Add(goipp.MakeAttribute("document-format", goipp.TagMimeType, goipp.String(MimeType(req.Format))))
	if req.Copies > 1 {
		msg.Job.Add(goipp.MakeAttribute("copies", goipp.TagInteger, goipp.Integer(req.Copies)))
	}
	return msg
}

// printerStateStopped is the printer-state value of a halted printer.
const printerStateStopped = 5

// Probe sends Get-Printer-Attributes to address and reports an error when
// the printer cannot be reached, answers with an error status, or reports
// itself stopped.
func (s *Sink) Probe(ctx context.Context, address string) error {
	printerURI, endpoint, err := Endpoint(address)
	if err != nil {
		return err
	}

	msg := goipp.NewRequest(goipp.DefaultVersion, goipp.OpGetPrinterAttributes, s.requestID.Add(1))
	msg.Operation.Add(goipp.MakeAttribute("attributes-charset", goipp.TagCharset, goipp.String("utf-8")))
	msg.Operation.Add(goipp.MakeAttribute("attributes-natural-language", goipp.TagLanguage, goipp.String("en-US")))
	msg.Operation.Add(goipp.MakeAttribute("printer-uri", goipp.TagURI, goipp.String(printerURI)))
	msg.Operation.Add(goipp.MakeAttribute("requested-attributes", goipp.TagKeyword, goipp.String("printer-state")))
	body, err := msg.EncodeBytes()
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", goipp.ContentType)
	httpReq.Header.Set("Accept", goipp.ContentType)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("ipp probe: %s", resp.Status)
	}

	var ippResp goipp.Message
	if err := ippResp.Decode(resp.Body); err != nil {
		return fmt.Errorf("ipp probe: decode response: %w", err)
	}
	if status := goipp.Status(ippResp.Code); status >= goipp.StatusRedirectionOtherSite {
		return fmt.Errorf("ipp probe: status %s", status)
	}
	for _, attr := range ippResp.Printer {
		if attr.Name != "printer-state" || len(attr.Values) == 0 {
			continue
		}
		if state, ok := attr.Values[0].V.(goipp.Integer); ok && int(state) == printerStateStopped {
			return errors.New("ipp probe: printer stopped")
		}
	}
	return nil
}

// Printers that are busy or temporarily refusing jobs are retried.
func classify(printer string, status goipp.Status) error {
	err := fmt.Errorf("ipp status %s", status)
	switch status {
	case goipp.StatusErrorBusy,
		goipp.StatusErrorServiceUnavailable,
		goipp.StatusErrorNotAcceptingJobs,
		goipp.StatusErrorTemporary:
		return sink.NewTransient("print-job", printer, err)
	}
	return sink.NewPermanent("print-job", printer, err)
}

// Endpoint resolves a printer address to the printer-uri attribute value
// and the HTTP URL the request is posted to. ipp:// maps to http:// and
// ipps:// to https://, with port 631 when none is given.
func Endpoint(address string) (printerURI, endpoint string, err error) {
	u, err := url.Parse(strings.TrimSpace(address))
	if err != nil {
		return "", "", fmt.Errorf("invalid ipp address %q: %w", address, err)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("invalid ipp address %q: missing host", address)
	}

	httpURL := *u
	switch strings.ToLower(u.Scheme) {
	case "ipp":
		httpURL.Scheme = "http"
	case "ipps":
		httpURL.Scheme = "https"
	case "http", "https":
	default:
		return "", "", fmt.Errorf("unsupported ipp scheme %q", u.Scheme)
	}
	if u.Port() == "" && (u.Scheme == "ipp" || u.Scheme == "ipps") {
		httpURL.Host = u.Host + ":" + DefaultPort
	}
	if httpURL.Path == "" {
		httpURL.Path = "/ipp/print"
	}

	ippURL := httpURL
	switch httpURL.Scheme {
	case "http":
		ippURL.Scheme = "ipp"
	case "https":
		ippURL.Scheme = "ipps"
	}
	return ippURL.String(), httpURL.String(), nil
}
