// Package socket delivers raw payloads to printers over a plain TCP
// connection (AppSocket/JetDirect, port 9100 by default). ZPL, ESC/POS and
// PDF pass through unchanged; HTML needs a rendering driver and is
// rejected.
package socket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/xraph/spool/job"
	"github.com/xraph/spool/sink"
)

// DefaultPort is the raw printing port.
const DefaultPort = "9100"

// Sink writes payloads to a TCP socket.
type Sink struct {
	dialer       net.Dialer
	writeTimeout time.Duration
	logger       *slog.Logger
}

var _ sink.Sink = (*Sink)(nil)

// Option configures a Sink.
type Option func(*Sink)

// WithDialTimeout bounds connection setup. Default: 5s.
func WithDialTimeout(d time.Duration) Option {
	return func(s *Sink) { s.dialer.Timeout = d }
}

// WithWriteTimeout bounds each payload write. Default: 30s.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Sink) { s.writeTimeout = d }
}

// WithLogger sets the sink logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sink) { s.logger = l }
}

// New creates a socket sink.
func New(opts ...Option) *Sink {
	s := &Sink{
		dialer:       net.Dialer{Timeout: 5 * time.Second},
		writeTimeout: 30 * time.Second,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send dials the printer and writes the payload once per copy.
func (s *Sink) Send(ctx context.Context, req *sink.Request) error {
	if req.Format == job.FormatHTML {
		return sink.NewPermanent("send", req.Printer, errors.New("html payloads cannot be sent to a raw socket"))
	}
	addr, err := HostPort(req.Address)
	if err != nil {
		return sink.NewPermanent("address", req.Printer, err)
	}

	conn, err := s.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return sink.NewTransient("dial", req.Printer, err)
	}
	defer conn.Close()

	// Unblock writes when the context ends before the write deadline.
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	copies := max(req.Copies, 1)
	for i := range copies {
		if s.writeTimeout > 0 {
			_ = conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
		}
		if _, err := conn.Write(req.Data); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = ctxErr
			}
			return sink.NewTransient(fmt.Sprintf("write copy %d", i+1), req.Printer, err)
		}
	}

	s.logger.Debug("socket delivery",
		slog.String("printer", req.Printer),
		slog.String("address", addr),
		slog.Int("bytes", len(req.Data)),
		slog.Int("copies", copies),
	)
	return nil
}

// Probe reports whether a TCP connection to address can be opened.
func (s *Sink) Probe(ctx context.Context, address string) error {
	addr, err := HostPort(address)
	if err != nil {
		return err
	}
	conn, err := s.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	return conn.Close()
}

// HostPort normalizes a printer address ("host", "host:port" or
// "socket://host[:port]") to a dialable host:port.
func HostPort(address string) (string, error) {
	address = strings.TrimSpace(address)
	if strings.Contains(address, "://") {
		u, err := url.Parse(address)
		if err != nil {
			return "", fmt.Errorf("invalid socket address %q: %w", address, err)
		}
		address = u.Host
	}
	if address == "" {
		return "", errors.New("empty socket address")
	}
	if _, _, err := net.SplitHostPort(address); err != nil {
		return net.JoinHostPort(address, DefaultPort), nil
	}
	return address, nil
}
