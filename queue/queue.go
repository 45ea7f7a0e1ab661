package queue

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Config defines per-printer throughput limits.
type Config struct {
	// Key is the printer identifier (the printer ID string). The empty
	// key configures the default applied to printers without their own
	// Config.
	Key string

	// MaxConcurrency limits how many deliveries to this printer may be in
	// flight at once. Zero means no printer-specific limit (pool-wide
	// concurrency still applies).
	MaxConcurrency int

	// RateLimit is the maximum sustained deliveries per second to this
	// printer. Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the burst size for the token-bucket rate limiter.
	// Defaults to 1 if RateLimit is set but RateBurst is zero.
	RateBurst int
}

// unlimited reports whether c imposes no limit at all.
func (c Config) unlimited() bool {
	return c.MaxConcurrency <= 0 && c.RateLimit <= 0
}

// printerState tracks runtime state for a single printer.
type printerState struct {
	config  Config
	limiter *rate.Limiter
	active  int
	// freed is closed and replaced whenever a slot is released, waking
	// blocked Acquire calls.
	freed chan struct{}
}

// Manager controls per-printer rate limiting and concurrency.
// It is safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	defaults Config
	printers map[string]*printerState
	configs  map[string]Config
}

// NewManager creates a Manager with the given printer configurations. A
// Config with an empty Key sets the default for every other printer.
func NewManager(configs ...Config) *Manager {
	m := &Manager{
		printers: make(map[string]*printerState),
		configs:  make(map[string]Config, len(configs)),
	}
	for _, cfg := range configs {
		if cfg.Key == "" {
			m.defaults = cfg
			continue
		}
		m.configs[cfg.Key] = cfg
	}
	return m
}

func newPrinterState(cfg Config) *printerState {
	ps := &printerState{config: cfg, freed: make(chan struct{})}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		ps.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return ps
}

// state returns the runtime state for key, creating it from the printer's
// Config or the default. It returns nil for unlimited printers.
// Callers must hold m.mu.
func (m *Manager) state(key string) *printerState {
	if ps, ok := m.printers[key]; ok {
		return ps
	}
	cfg, ok := m.configs[key]
	if !ok {
		cfg = m.defaults
		cfg.Key = key
	}
	if cfg.unlimited() {
		return nil
	}
	ps := newPrinterState(cfg)
	m.printers[key] = ps
	return ps
}

// TryAcquire checks the printer's rate limit and concurrency without
// blocking. If the delivery may proceed it increments the active counter
// and returns true. The caller MUST call Release when the delivery ends.
func (m *Manager) TryAcquire(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	ps := m.state(key)
	if ps == nil {
		return true
	}
	if ps.config.MaxConcurrency > 0 && ps.active >= ps.config.MaxConcurrency {
		return false
	}
	if ps.limiter != nil && !ps.limiter.Allow() {
		return false
	}
	ps.active++
	return true
}

// Acquire blocks until the printer has a free concurrency slot and a rate
// token, or ctx ends. On success the caller MUST call Release.
func (m *Manager) Acquire(ctx context.Context, key string) error {
	for {
		m.mu.Lock()
		ps := m.state(key)
		if ps == nil {
			m.mu.Unlock()
			return nil
		}
		if ps.config.MaxConcurrency <= 0 || ps.active < ps.config.MaxConcurrency {
			ps.active++
			limiter := ps.limiter
			m.mu.Unlock()

			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					m.Release(key)
					return err
				}
			}
			return nil
		}
		freed := ps.freed
		m.mu.Unlock()

		select {
		case <-freed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Release frees a slot taken by Acquire or TryAcquire.
func (m *Manager) Release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ps := m.printers[key]
	if ps == nil || ps.active == 0 {
		return
	}
	ps.active--
	close(ps.freed)
	ps.freed = make(chan struct{})
}

// SetConfig dynamically updates (or creates) a printer configuration. An
// empty Key replaces the default for printers without their own Config.
func (m *Manager) SetConfig(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cfg.Key == "" {
		m.defaults = cfg
		// Rebuild states that were derived from the old default.
		for key, ps := range m.printers {
			if _, own := m.configs[key]; !own {
				m.replace(key, ps, Config{Key: key, MaxConcurrency: cfg.MaxConcurrency, RateLimit: cfg.RateLimit, RateBurst: cfg.RateBurst})
			}
		}
		return
	}

	m.configs[cfg.Key] = cfg
	m.replace(cfg.Key, m.printers[cfg.Key], cfg)
}

// replace swaps in a fresh state for key, preserving the active count so
// in-flight deliveries release correctly. Callers must hold m.mu.
func (m *Manager) replace(key string, existing *printerState, cfg Config) {
	ps := newPrinterState(cfg)
	if existing != nil {
		ps.active = existing.active
		// Wake waiters so they re-evaluate against the new limits.
		close(existing.freed)
	}
	m.printers[key] = ps
}

// ActiveCount returns the current number of in-flight deliveries for a
// printer.
func (m *Manager) ActiveCount(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ps := m.printers[key]; ps != nil {
		return ps.active
	}
	return 0
}
