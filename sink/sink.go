// Package sink defines the print sink contract: the component that actually
// puts a payload on a printer. Concrete sinks live in sub-packages: raw
// AppSocket (socket), IPP Print-Job (ipp), spool directory (file) and an
// in-memory recorder for tests (memory).
//
// Sinks report failures as *Error values classified Transient or Permanent.
// Errors of any other type are classified by the retry keyword heuristic.
package sink

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"

	"github.com/xraph/spool/id"
	"github.com/xraph/spool/job"
	"github.com/xraph/spool/retry"
)

// Request is one delivery of a job payload to a printer.
type Request struct {
	JobID     id.JobID
	JobName   string
	PrinterID id.PrinterID
	// Printer is the device name the sink addresses (the printer's
	// system name when set).
	Printer string
	Address string
	Format  job.Format
	Copies  int
	Data    []byte
	User    string
	// Attempt is 1 for the first delivery and grows with each retry.
	Attempt int
}

// Sink delivers payloads to printers.
type Sink interface {
	Send(ctx context.Context, req *Request) error
}

// Func adapts a function to the Sink interface.
type Func func(ctx context.Context, req *Request) error

// Send calls f(ctx, req).
func (f Func) Send(ctx context.Context, req *Request) error { return f(ctx, req) }

// ──────────────────────────────────────────────────
// Errors
// ──────────────────────────────────────────────────

// Kind classifies a delivery failure.
type Kind string

const (
	// Transient failures may succeed on retry: the device is busy,
	// unreachable or timed out.
	Transient Kind = "transient"
	// Permanent failures will fail again: the device rejected the job.
	Permanent Kind = "permanent"
)

// Error is a classified delivery failure.
type Error struct {
	Kind    Kind
	Op      string
	Printer string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	var verb string
	switch e.Kind {
	case Transient:
		verb = "unavailable"
	default:
		verb = "rejected job"
	}
	msg := fmt.Sprintf("printer %s %s", e.Printer, verb)
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewTransient wraps err as a transient failure.
func NewTransient(op, printer string, err error) error {
	if err == nil {
		err = errors.New("temporary failure")
	}
	return &Error{Kind: Transient, Op: op, Printer: printer, Err: err}
}

// NewPermanent wraps err as a permanent failure.
func NewPermanent(op, printer string, err error) error {
	if err == nil {
		err = errors.New("permanent failure")
	}
	return &Error{Kind: Permanent, Op: op, Printer: printer, Err: err}
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Kind == Transient
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return retry.IsTransient(err.Error())
}

// IsPermanent reports whether err will fail again on retry.
func IsPermanent(err error) bool {
	return err != nil && !IsTransient(err)
}

// ──────────────────────────────────────────────────
// Router
// ──────────────────────────────────────────────────

// Router dispatches each request to a sink chosen by the scheme of the
// printer address. A bare "host:port" address uses the "socket" scheme;
// an empty address goes to the fallback sink.
type Router struct {
	mu       sync.RWMutex
	sinks    map[string]Sink
	fallback Sink
}

var _ Sink = (*Router)(nil)

// NewRouter returns an empty router.
func NewRouter() *Router {
	return &Router{sinks: make(map[string]Sink)}
}

// Handle registers s for the given address schemes.
func (r *Router) Handle(s Sink, schemes ...string) *Router {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, scheme := range schemes {
		r.sinks[strings.ToLower(scheme)] = s
	}
	return r
}

// Fallback sets the sink used for printers without an address or with an
// unrecognised scheme.
func (r *Router) Fallback(s Sink) *Router {
	r.mu.Lock()
	r.fallback = s
	r.mu.Unlock()
	return r
}

// Send implements Sink.
func (r *Router) Send(ctx context.Context, req *Request) error {
	scheme := Scheme(req.Address)

	r.mu.RLock()
	s, ok := r.sinks[scheme]
	if !ok {
		s = r.fallback
	}
	r.mu.RUnlock()

	if s == nil {
		return NewPermanent("route", req.Printer, fmt.Errorf("no sink for address %q", req.Address))
	}
	return s.Send(ctx, req)
}

// Scheme returns the lower-cased scheme of a printer address: "" for an
// empty address and "socket" for a bare host or host:port.
func Scheme(address string) string {
	address = strings.TrimSpace(address)
	if address == "" {
		return ""
	}
	if !strings.Contains(address, "://") {
		return "socket"
	}
	u, err := url.Parse(address)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Scheme)
}
