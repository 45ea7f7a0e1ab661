package printer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/xraph/spool"
	"github.com/xraph/spool/event"
	"github.com/xraph/spool/id"
	"github.com/xraph/spool/job"
)

// JobCounter reports how many jobs reference a printer. The registry uses
// it to refuse deleting printers that still have jobs.
type JobCounter interface {
	CountJobs(ctx context.Context, opts job.CountOpts) (int64, error)
}

// Registry manages printer configurations and selects printers for
// documents.
type Registry struct {
	store  Store
	jobs   JobCounter
	events event.Publisher
	logger *slog.Logger

	// mu serializes activation flips so each offline→online change is
	// observed, and published, exactly once.
	mu sync.Mutex
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithPublisher sets where activation events are published.
func WithPublisher(p event.Publisher) Option {
	return func(r *Registry) { r.events = p }
}

// WithJobCounter enables the in-use check on Delete.
func WithJobCounter(c JobCounter) Option {
	return func(r *Registry) { r.jobs = c }
}

// NewRegistry creates a registry backed by store.
func NewRegistry(store Store, opts ...Option) *Registry {
	r := &Registry{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register validates and persists a new printer.
func (r *Registry) Register(ctx context.Context, p *Printer) (*Printer, error) {
	p.Name = strings.TrimSpace(p.Name)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.ID.IsNil() {
		p.ID = id.NewPrinterID()
	}
	p.Entity = spool.NewEntity()

	if err := r.store.CreatePrinter(ctx, p); err != nil {
		return nil, err
	}

	r.logger.Info("printer registered",
		slog.String("printer_id", p.ID.String()),
		slog.String("printer", p.Name),
		slog.String("type", string(p.Type)),
	)
	return p, nil
}

// Get retrieves a printer by ID.
func (r *Registry) Get(ctx context.Context, printerID id.PrinterID) (*Printer, error) {
	return r.store.GetPrinter(ctx, printerID)
}

// GetByName retrieves a printer by name.
func (r *Registry) GetByName(ctx context.Context, name string) (*Printer, error) {
	return r.store.GetPrinterByName(ctx, name)
}

// List returns printers ordered by priority descending.
func (r *Registry) List(ctx context.Context, opts ListOpts) ([]*Printer, error) {
	return r.store.ListPrinters(ctx, opts)
}

// Update persists configuration changes. Activation changes must go
// through SetActive so the activation event is raised; Update keeps the
// stored Active flag.
func (r *Registry) Update(ctx context.Context, p *Printer) (*Printer, error) {
	p.Name = strings.TrimSpace(p.Name)
	if err := p.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.store.GetPrinter(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.Active = current.Active
	p.CreatedAt = current.CreatedAt
	p.Touch()

	if err := r.store.UpdatePrinter(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes a printer that no job references.
func (r *Registry) Delete(ctx context.Context, printerID id.PrinterID) error {
	if r.jobs != nil {
		n, err := r.jobs.CountJobs(ctx, job.CountOpts{PrinterID: printerID})
		if err != nil {
			return fmt.Errorf("spool: count printer jobs: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("%w: %d job(s)", spool.ErrPrinterInUse, n)
		}
	}
	return r.store.DeletePrinter(ctx, printerID)
}

// SetActive brings a printer online or takes it offline. An offline→online
// flip publishes a printer.activated event, which the queue processor
// handles by draining that printer's backlog; the event is also returned.
// Taking a printer offline does not touch jobs that are already printing.
// Setting the flag to its current value is a no-op and returns a nil
// event.
func (r *Registry) SetActive(ctx context.Context, printerID id.PrinterID, active bool) (*Printer, *event.Event, error) {
	r.mu.Lock()
	p, err := r.store.GetPrinter(ctx, printerID)
	if err != nil {
		r.mu.Unlock()
		return nil, nil, err
	}
	if p.Active == active {
		r.mu.Unlock()
		return p, nil, nil
	}

	p.Active = active
	p.Touch()
	if err := r.store.UpdatePrinter(ctx, p); err != nil {
		r.mu.Unlock()
		return nil, nil, err
	}
	r.mu.Unlock()

	kind := event.KindPrinterDeactivated
	if active {
		kind = event.KindPrinterActivated
	}
	evt := event.New(kind)
	evt.PrinterID = p.ID
	evt.PrinterName = p.Name

	r.logger.Info("printer activation changed",
		slog.String("printer_id", p.ID.String()),
		slog.String("printer", p.Name),
		slog.Bool("active", active),
	)

	// Published outside the lock: subscribers may call back into the
	// registry while draining.
	if r.events != nil {
		r.events.Publish(ctx, evt)
	}
	return p, evt, nil
}

// Select picks the best active printer for c. See Best for the algorithm.
func (r *Registry) Select(ctx context.Context, c Criteria) (*Printer, error) {
	printers, err := r.store.ListPrinters(ctx, ListOpts{ActiveOnly: true})
	if err != nil {
		return nil, err
	}

	p := Best(printers, c)
	if p == nil {
		r.logger.Warn("no active printer available",
			slog.String("type", string(c.Type)),
			slog.String("location", c.Location),
			slog.String("department", c.Department),
		)
		return nil, spool.ErrNoPrinterAvailable
	}

	if !Eligible(p, c) {
		r.logger.Warn("no matching printer, using fallback",
			slog.String("printer", p.Name),
			slog.String("type", string(c.Type)),
		)
	}
	return p, nil
}

// SelectExplicit resolves a printer named by the caller, either by ID or
// by name. It fails with spool.ErrPrinterNotFound when absent and
// spool.ErrPrinterInactive when the printer is offline.
func (r *Registry) SelectExplicit(ctx context.Context, ref string) (*Printer, error) {
	var (
		p   *Printer
		err error
	)
	if pid, parseErr := id.ParsePrinterID(ref); parseErr == nil {
		p, err = r.store.GetPrinter(ctx, pid)
	} else {
		p, err = r.store.GetPrinterByName(ctx, ref)
	}
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, fmt.Errorf("%w: %s", spool.ErrPrinterInactive, p.Name)
	}
	return p, nil
}

// Sync reconciles the registry with the printer names reported by a
// discovery agent. Unknown names are registered with an inferred type;
// known but inactive printers are reactivated through SetActive so their
// queues drain.
func (r *Registry) Sync(ctx context.Context, systemNames []string) (SyncResult, error) {
	var res SyncResult

	existing, err := r.store.ListPrinters(ctx, ListOpts{})
	if err != nil {
		return res, err
	}
	bySystem := make(map[string]*Printer, len(existing))
	for _, p := range existing {
		bySystem[p.DeviceName()] = p
		if _, ok := bySystem[p.Name]; !ok {
			bySystem[p.Name] = p
		}
	}

	seen := make(map[string]bool, len(systemNames))
	for _, name := range systemNames {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		p, ok := bySystem[name]
		switch {
		case !ok:
			created, regErr := r.Register(ctx, Discovered(name))
			if regErr != nil {
				if errors.Is(regErr, spool.ErrPrinterExists) {
					continue
				}
				return res, fmt.Errorf("spool: sync printer %q: %w", name, regErr)
			}
			res.Created = append(res.Created, created)
		case !p.Active:
			updated, _, setErr := r.SetActive(ctx, p.ID, true)
			if setErr != nil {
				return res, fmt.Errorf("spool: reactivate printer %q: %w", name, setErr)
			}
			res.Reactivated = append(res.Reactivated, updated)
		default:
			res.Unchanged = append(res.Unchanged, p)
		}
	}

	r.logger.Info("printer discovery sync",
		slog.Int("created", len(res.Created)),
		slog.Int("reactivated", len(res.Reactivated)),
		slog.Int("unchanged", len(res.Unchanged)),
	)
	return res, nil
}
