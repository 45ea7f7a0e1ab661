// Package event provides the in-process domain event bus. Components
// publish events such as printer activation instead of triggering side
// effects from inside generic update paths; subscribers (the queue
// processor) react to them explicitly.
package event

import (
	"context"
	"log/slog"
	"sync"
)

// Handler reacts to a published event.
type Handler func(ctx context.Context, evt *Event) error

// Publisher is the narrow interface producers depend on.
type Publisher interface {
	Publish(ctx context.Context, evt *Event)
}

type subscription struct {
	seq     uint64
	name    string
	handler Handler
}

// Bus delivers events synchronously to subscribers in subscription order.
// Handler errors are logged and never returned to the publisher.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Kind][]subscription
	seq      uint64
	logger   *slog.Logger
}

var _ Publisher = (*Bus)(nil)

// NewBus creates an empty bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		handlers: make(map[Kind][]subscription),
		logger:   logger,
	}
}

// Subscribe registers h for events of the given kind. The returned
// function removes the subscription.
func (b *Bus) Subscribe(kind Kind, name string, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.seq++
	seq := b.seq
	b.handlers[kind] = append(b.handlers[kind], subscription{seq: seq, name: name, handler: h})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.handlers[kind]
		for i, s := range subs {
			if s.seq == seq {
				b.handlers[kind] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers evt to every subscriber of its kind and returns once all
// handlers have run.
func (b *Bus) Publish(ctx context.Context, evt *Event) {
	b.mu.RLock()
	subs := append([]subscription(nil), b.handlers[evt.Kind]...)
	b.mu.RUnlock()

	for _, s := range subs {
		if err := s.handler(ctx, evt); err != nil {
			b.logger.Warn("event handler error",
				slog.String("kind", string(evt.Kind)),
				slog.String("handler", s.name),
				slog.String("event_id", evt.ID.String()),
				slog.String("error", err.Error()),
			)
		}
	}
}
