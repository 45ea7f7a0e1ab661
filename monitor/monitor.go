// Package monitor checks printer connectivity and keeps each printer's
// active flag in step with what the network reports. A printer that comes
// back online is reactivated through the registry, which drains its
// backlog; a printer that stops answering is taken offline so new jobs
// queue instead of failing.
//
// Only printers with an Address whose scheme has a registered Prober are
// checked. Printers driven by external agents are left alone.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xraph/spool/event"
	"github.com/xraph/spool/id"
	"github.com/xraph/spool/printer"
	"github.com/xraph/spool/sink"
)

// Prober checks that a printer address answers.
type Prober interface {
	Probe(ctx context.Context, address string) error
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, address string) error

// Probe calls f(ctx, address).
func (f ProberFunc) Probe(ctx context.Context, address string) error { return f(ctx, address) }

// Registry is the printer surface the monitor needs. printer.Registry
// implements it.
type Registry interface {
	List(ctx context.Context, opts printer.ListOpts) ([]*printer.Printer, error)
	SetActive(ctx context.Context, printerID id.PrinterID, active bool) (*printer.Printer, *event.Event, error)
}

// Report summarizes a check.
type Report struct {
	Checked     int      `json:"checked"`
	Online      int      `json:"online"`
	Offline     int      `json:"offline"`
	Activated   []string `json:"activated,omitempty"`
	Deactivated []string `json:"deactivated,omitempty"`
}

// Monitor probes printers.
type Monitor struct {
	registry    Registry
	probers     map[string]Prober
	timeout     time.Duration
	concurrency int
	logger      *slog.Logger
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithProber registers p for the given address schemes (see sink.Scheme).
func WithProber(p Prober, schemes ...string) Option {
	return func(m *Monitor) {
		for _, s := range schemes {
			m.probers[s] = p
		}
	}
}

// WithTimeout bounds each probe. Default: 5s.
func WithTimeout(d time.Duration) Option {
	return func(m *Monitor) { m.timeout = d }
}

// WithConcurrency sets how many printers are probed at once. Default: 8.
func WithConcurrency(n int) Option {
	return func(m *Monitor) { m.concurrency = n }
}

// WithLogger sets the monitor logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) { m.logger = l }
}

// New creates a Monitor over registry.
func New(registry Registry, opts ...Option) *Monitor {
	m := &Monitor{
		registry:    registry,
		probers:     make(map[string]Prober),
		timeout:     5 * time.Second,
		concurrency: 8,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.concurrency < 1 {
		m.concurrency = 1
	}
	return m
}

// Check probes every monitored printer once and flips the active flag of
// those whose reachability changed.
func (m *Monitor) Check(ctx context.Context) (Report, error) {
	var rep Report

	printers, err := m.registry.List(ctx, printer.ListOpts{})
	if err != nil {
		return rep, fmt.Errorf("spool/monitor: list printers: %w", err)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)

	for _, p := range printers {
		prober, ok := m.probers[sink.Scheme(p.Address)]
		if p.Address == "" || !ok {
			continue
		}
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(gctx, m.timeout)
			probeErr := prober.Probe(pctx, p.Address)
			cancel()
			online := probeErr == nil

			mu.Lock()
			rep.Checked++
			if online {
				rep.Online++
			} else {
				rep.Offline++
			}
			mu.Unlock()

			if online == p.Active {
				return nil
			}
			if !online {
				m.logger.Warn("printer unreachable, taking offline",
					slog.String("printer_id", p.ID.String()),
					slog.String("printer", p.Name),
					slog.String("address", p.Address),
					slog.String("error", probeErr.Error()),
				)
			}
			if _, _, err := m.registry.SetActive(gctx, p.ID, online); err != nil {
				return fmt.Errorf("spool/monitor: set %s active=%t: %w", p.Name, online, err)
			}

			mu.Lock()
			if online {
				rep.Activated = append(rep.Activated, p.Name)
			} else {
				rep.Deactivated = append(rep.Deactivated, p.Name)
			}
			mu.Unlock()
			return nil
		})
	}

	err = g.Wait()
	m.logger.Info("printer connectivity checked",
		slog.Int("checked", rep.Checked),
		slog.Int("online", rep.Online),
		slog.Int("offline", rep.Offline),
		slog.Int("activated", len(rep.Activated)),
		slog.Int("deactivated", len(rep.Deactivated)),
	)
	return rep, err
}

// Run performs a check. It has the signature of a cron task.
func (m *Monitor) Run(ctx context.Context) error {
	_, err := m.Check(ctx)
	return err
}
