// Package file spools payloads into a directory, one file per copy. It
// serves "file://" printer addresses and virtual printers whose output is
// collected by another process.
package file

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/xraph/spool/job"
	"github.com/xraph/spool/sink"
)

// Sink writes payloads under a root directory.
type Sink struct {
	root   string
	logger *slog.Logger
}

var _ sink.Sink = (*Sink)(nil)

// Option configures a Sink.
type Option func(*Sink)

// WithLogger sets the sink logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sink) { s.logger = l }
}

// New creates a file sink. Requests whose address is a file:// URL are
// written to that directory; all others go to root/<printer>.
func New(root string, opts ...Option) *Sink {
	s := &Sink{root: root, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Extension returns the file extension used for a payload format.
func Extension(f job.Format) string {
	switch f {
	case job.FormatPDF:
		return ".pdf"
	case job.FormatHTML:
		return ".html"
	case job.FormatZPL:
		return ".zpl"
	case job.FormatESCPOS:
		return ".bin"
	}
	return ".dat"
}

// Send writes one file per copy. Files are written to a temporary name and
// renamed so a collector never sees a partial payload.
func (s *Sink) Send(ctx context.Context, req *sink.Request) error {
	dir, err := s.dir(req)
	if err != nil {
		return sink.NewPermanent("address", req.Printer, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return sink.NewTransient("mkdir", req.Printer, err)
	}

	for i := range max(req.Copies, 1) {
		if err := ctx.Err(); err != nil {
			return sink.NewTransient("write", req.Printer, err)
		}
		name := fmt.Sprintf("%s-%d-%s%s", sanitize(req.JobName), i+1, uuid.NewString(), Extension(req.Format))
		path := filepath.Join(dir, name)
		tmp := path + ".tmp"
		if err := os.WriteFile(tmp, req.Data, 0o644); err != nil {
			return sink.NewTransient("write", req.Printer, err)
		}
		if err := os.Rename(tmp, path); err != nil {
			_ = os.Remove(tmp)
			return sink.NewTransient("rename", req.Printer, err)
		}
	}

	s.logger.Debug("file delivery",
		slog.String("printer", req.Printer),
		slog.String("dir", dir),
		slog.Int("copies", max(req.Copies, 1)),
	)
	return nil
}

func (s *Sink) dir(req *sink.Request) (string, error) {
	if strings.HasPrefix(req.Address, "file://") {
		u, err := url.Parse(req.Address)
		if err != nil {
			return "", err
		}
		if u.Path == "" {
			return "", fmt.Errorf("file address %q has no path", req.Address)
		}
		return filepath.FromSlash(u.Path), nil
	}
	if s.root == "" {
		return "", fmt.Errorf("no spool directory for printer %q", req.Printer)
	}
	return filepath.Join(s.root, sanitize(req.Printer)), nil
}

func sanitize(name string) string {
	if name == "" {
		return "job"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, name)
}
