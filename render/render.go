// Package render turns templates and structured data into printable
// payloads. A Registry holds named templates: HTML templates are rendered
// with html/template so data is escaped, while ZPL and ESC/POS templates
// use text/template and pass control bytes through untouched. Built-in
// generators produce simple product labels and receipts without any
// template at all.
package render

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"log/slog"
	"slices"
	"strings"
	"sync"
	texttemplate "text/template"

	"github.com/xraph/spool"
	"github.com/xraph/spool/job"
)

// Renderer produces the payload of template-only jobs. The worker
// executor and the label batcher accept any Renderer.
type Renderer interface {
	Render(ctx context.Context, ref string, data map[string]any) ([]byte, error)
}

// GeneratorFunc builds a payload directly from data.
type GeneratorFunc func(ctx context.Context, data map[string]any) ([]byte, error)

type executor interface {
	Execute(w *bytes.Buffer, data any) error
}

type htmlExec struct{ t *htmltemplate.Template }

func (h htmlExec) Execute(w *bytes.Buffer, data any) error { return h.t.Execute(w, data) }

type textExec struct{ t *texttemplate.Template }

func (x textExec) Execute(w *bytes.Buffer, data any) error { return x.t.Execute(w, data) }

// entry holds either a parsed template or a generator.
type entry struct {
	format job.Format
	exec   executor
	gen    GeneratorFunc
}

// Registry is a concurrency-safe set of named templates.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]entry
	funcs     map[string]any
	logger    *slog.Logger
}

var _ Renderer = (*Registry)(nil)

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithFuncs adds template functions available to every template
// registered afterwards.
func WithFuncs(funcs map[string]any) Option {
	return func(r *Registry) {
		for k, v := range funcs {
			r.funcs[k] = v
		}
	}
}

// NewRegistry creates a Registry preloaded with the built-in templates:
// DefaultReceiptTemplate, the label generators and the HTML label
// templates.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		templates: make(map[string]entry),
		funcs:     defaultFuncs(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.registerBuiltins()
	return r
}

// Register parses body and stores it under ref, replacing any template
// with the same ref. HTML and PDF sources are parsed as HTML templates,
// everything else as plain text.
func (r *Registry) Register(ref string, format job.Format, body string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return spool.NewValidationError("template", "template reference cannot be empty")
	}
	if !format.Valid() {
		return spool.NewValidationError("format", "invalid format %q", format)
	}

	var exec executor
	switch format {
	case job.FormatHTML, job.FormatPDF:
		t, err := htmltemplate.New(ref).Funcs(r.funcs).Parse(body)
		if err != nil {
			return spool.NewValidationError("template", "parse %s: %v", ref, err)
		}
		exec = htmlExec{t}
	default:
		t, err := texttemplate.New(ref).Funcs(r.funcs).Parse(body)
		if err != nil {
			return spool.NewValidationError("template", "parse %s: %v", ref, err)
		}
		exec = textExec{t}
	}

	r.mu.Lock()
	r.templates[ref] = entry{format: format, exec: exec}
	r.mu.Unlock()
	return nil
}

// RegisterFunc stores a generator under ref.
func (r *Registry) RegisterFunc(ref string, format job.Format, fn GeneratorFunc) {
	r.mu.Lock()
	r.templates[ref] = entry{format: format, gen: fn}
	r.mu.Unlock()
}

// Remove deletes the template stored under ref.
func (r *Registry) Remove(ref string) {
	r.mu.Lock()
	delete(r.templates, ref)
	r.mu.Unlock()
}

// Has reports whether ref is registered.
func (r *Registry) Has(ref string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.templates[ref]
	return ok
}

// Format returns the output format of the template stored under ref.
func (r *Registry) Format(ref string) (job.Format, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.templates[ref]
	if !ok {
		return "", fmt.Errorf("%w: %s", spool.ErrTemplateNotFound, ref)
	}
	return e.format, nil
}

// Refs returns the registered template references, sorted.
func (r *Registry) Refs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	refs := make([]string, 0, len(r.templates))
	for ref := range r.templates {
		refs = append(refs, ref)
	}
	slices.Sort(refs)
	return refs
}

// Render executes the template stored under ref with data. An unknown ref
// returns an error wrapping spool.ErrTemplateNotFound.
func (r *Registry) Render(ctx context.Context, ref string, data map[string]any) ([]byte, error) {
	r.mu.RLock()
	e, ok := r.templates[ref]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", spool.ErrTemplateNotFound, ref)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if e.gen != nil {
		out, err := e.gen(ctx, data)
		if err != nil {
			return nil, fmt.Errorf("spool/render: %s: %w", ref, err)
		}
		return out, nil
	}

	var buf bytes.Buffer
	if err := e.exec.Execute(&buf, data); err != nil {
		r.logger.Error("template rendering failed",
			slog.String("template", ref),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("spool/render: %s: %w", ref, err)
	}
	return buf.Bytes(), nil
}
