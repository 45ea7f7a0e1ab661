// Package memory provides a fully in-memory implementation of store.Store.
// It is safe for concurrent access and intended for tests and development.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/xraph/spool"
	"github.com/xraph/spool/id"
	"github.com/xraph/spool/job"
	"github.com/xraph/spool/printer"
)

// Ensure Store implements the subsystem stores at compile time.
// We can't import store here (import cycle in tests), so we verify each subsystem.
var (
	_ job.Store     = (*Store)(nil)
	_ printer.Store = (*Store)(nil)
)

// Store is a fully in-memory implementation of store.Store.
type Store struct {
	mu sync.RWMutex

	jobs     map[string]*job.Job
	jobNames map[string]string // name → job ID
	printers map[string]*printer.Printer
	seq      int64
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		jobs:     make(map[string]*job.Job),
		jobNames: make(map[string]string),
		printers: make(map[string]*printer.Printer),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Job Store
// ──────────────────────────────────────────────────

// CreateJob persists a new job.
func (m *Store) CreateJob(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := j.ID.String()
	if _, exists := m.jobs[key]; exists {
		return spool.ErrJobAlreadyExists
	}
	if _, exists := m.jobNames[j.Name]; exists {
		return spool.ErrJobAlreadyExists
	}
	m.jobs[key] = j.Clone()
	m.jobNames[j.Name] = key
	return nil
}

// GetJob retrieves a job by ID.
func (m *Store) GetJob(_ context.Context, jobID id.JobID) (*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return nil, spool.ErrJobNotFound
	}
	return j.Clone(), nil
}

// UpdateJob persists changes to an existing job. The name is immutable.
func (m *Store) UpdateJob(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := j.ID.String()
	existing, ok := m.jobs[key]
	if !ok {
		return spool.ErrJobNotFound
	}
	cp := j.Clone()
	cp.Name = existing.Name
	m.jobs[key] = cp
	return nil
}

// ClaimJob atomically moves a queued job to printing.
func (m *Store) ClaimJob(_ context.Context, jobID id.JobID) (*job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return nil, spool.ErrJobNotFound
	}
	if j.State != job.StateQueued {
		return nil, spool.ErrJobClaimed
	}
	j.State = job.StatePrinting
	j.UpdatedAt = time.Now().UTC()
	return j.Clone(), nil
}

// ListJobs returns jobs matching opts in creation order.
func (m *Store) ListJobs(_ context.Context, opts job.ListOpts) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*job.Job
	for _, j := range m.jobs {
		if opts.State != "" && j.State != opts.State {
			continue
		}
		if !opts.PrinterID.IsNil() && j.PrinterID != opts.PrinterID {
			continue
		}
		result = append(result, j.Clone())
	}
	slices.SortFunc(result, func(a, b *job.Job) int { return a.ID.Compare(b.ID) })
	return paginate(result, opts.Offset, opts.Limit), nil
}

// ListQueuedJobs returns the printer's queued jobs in FIFO order.
func (m *Store) ListQueuedJobs(_ context.Context, printerID id.PrinterID) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*job.Job
	for _, j := range m.jobs {
		if j.State == job.StateQueued && j.PrinterID == printerID {
			result = append(result, j.Clone())
		}
	}
	job.SortFIFO(result)
	return result, nil
}

// CountJobs returns the number of jobs matching opts.
func (m *Store) CountJobs(_ context.Context, opts job.CountOpts) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, j := range m.jobs {
		if opts.State != "" && j.State != opts.State {
			continue
		}
		if !opts.PrinterID.IsNil() && j.PrinterID != opts.PrinterID {
			continue
		}
		n++
	}
	return n, nil
}

// NextJobSequence returns the next job name sequence value.
func (m *Store) NextJobSequence(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	return m.seq, nil
}

// ──────────────────────────────────────────────────
// Printer Store
// ──────────────────────────────────────────────────

// CreatePrinter persists a new printer.
func (m *Store) CreatePrinter(_ context.Context, p *printer.Printer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.printers[p.ID.String()]; exists {
		return spool.ErrPrinterExists
	}
	if m.nameTaken(p.Name, "") {
		return spool.ErrPrinterExists
	}
	m.printers[p.ID.String()] = p.Clone()
	return nil
}

// GetPrinter retrieves a printer by ID.
func (m *Store) GetPrinter(_ context.Context, printerID id.PrinterID) (*printer.Printer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.printers[printerID.String()]
	if !ok {
		return nil, spool.ErrPrinterNotFound
	}
	return p.Clone(), nil
}

// GetPrinterByName retrieves a printer by name.
func (m *Store) GetPrinterByName(_ context.Context, name string) (*printer.Printer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.printers {
		if p.Name == name {
			return p.Clone(), nil
		}
	}
	return nil, spool.ErrPrinterNotFound
}

// UpdatePrinter persists changes to an existing printer.
func (m *Store) UpdatePrinter(_ context.Context, p *printer.Printer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := p.ID.String()
	if _, ok := m.printers[key]; !ok {
		return spool.ErrPrinterNotFound
	}
	if m.nameTaken(p.Name, key) {
		return spool.ErrPrinterExists
	}
	m.printers[key] = p.Clone()
	return nil
}

// DeletePrinter removes a printer. Like the SQL backends, it refuses while
// jobs reference the printer.
func (m *Store) DeletePrinter(_ context.Context, printerID id.PrinterID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := printerID.String()
	if _, ok := m.printers[key]; !ok {
		return spool.ErrPrinterNotFound
	}
	for _, j := range m.jobs {
		if j.PrinterID == printerID {
			return spool.ErrPrinterInUse
		}
	}
	delete(m.printers, key)
	return nil
}

// ListPrinters returns printers ordered by priority descending, then ID.
func (m *Store) ListPrinters(_ context.Context, opts printer.ListOpts) ([]*printer.Printer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*printer.Printer
	for _, p := range m.printers {
		if opts.ActiveOnly && !p.Active {
			continue
		}
		if opts.Type != "" && p.Type != opts.Type {
			continue
		}
		result = append(result, p.Clone())
	}
	slices.SortFunc(result, printer.ComparePriority)
	return paginate(result, opts.Offset, opts.Limit), nil
}

// nameTaken must be called with m.mu held. Printer names compare
// case-sensitively after trimming, matching the SQL unique index.
func (m *Store) nameTaken(name, exceptKey string) bool {
	name = strings.TrimSpace(name)
	for key, p := range m.printers {
		if key != exceptKey && p.Name == name {
			return true
		}
	}
	return false
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
