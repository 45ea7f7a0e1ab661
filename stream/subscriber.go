package stream

import (
	"sync"
	"sync/atomic"
)

// Subscriber receives events from the topics it is on. Delivery is
// credit-based: every delivered event spends one credit and the broker
// skips a subscriber with none left. Events that find no credit or a full
// buffer are counted as dropped.
type Subscriber struct {
	id      string
	ch      chan *Event
	credits atomic.Int64
	dropped atomic.Int64
	closed  atomic.Bool

	mu     sync.RWMutex
	topics map[string]struct{}
	types  map[EventType]struct{} // nil accepts every type
	filter func(*Event) bool
}

// NewSubscriber creates a subscriber with the given buffer size and
// initial credits.
func NewSubscriber(id string, bufferSize int, initialCredits int64) *Subscriber {
	s := &Subscriber{
		id:     id,
		ch:     make(chan *Event, bufferSize),
		topics: make(map[string]struct{}),
	}
	s.credits.Store(initialCredits)
	return s
}

// ID returns the subscriber identifier.
func (s *Subscriber) ID() string { return s.id }

// C returns the event channel. It is closed by Close.
func (s *Subscriber) C() <-chan *Event { return s.ch }

// AddCredits grants n more deliveries.
func (s *Subscriber) AddCredits(n int64) { s.credits.Add(n) }

// Credits returns the remaining credit count.
func (s *Subscriber) Credits() int64 { return s.credits.Load() }

// Dropped returns how many matching events could not be delivered.
func (s *Subscriber) Dropped() int64 { return s.dropped.Load() }

// Accept restricts delivery to the given event types, e.g. only
// job.completed and job.failed for a client waiting on outcomes. Calling
// it with no types lifts the restriction.
func (s *Subscriber) Accept(types ...EventType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(types) == 0 {
		s.types = nil
		return
	}
	s.types = make(map[EventType]struct{}, len(types))
	for _, t := range types {
		s.types[t] = struct{}{}
	}
}

// SetFilter sets an additional predicate events must satisfy.
func (s *Subscriber) SetFilter(fn func(*Event) bool) {
	s.mu.Lock()
	s.filter = fn
	s.mu.Unlock()
}

func (s *Subscriber) addTopic(topic string) {
	s.mu.Lock()
	s.topics[topic] = struct{}{}
	s.mu.Unlock()
}

func (s *Subscriber) removeTopic(topic string) {
	s.mu.Lock()
	delete(s.topics, topic)
	s.mu.Unlock()
}

// Topics returns a copy of the subscribed topic names.
func (s *Subscriber) Topics() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.topics))
	for t := range s.topics {
		out = append(out, t)
	}
	return out
}

func (s *Subscriber) matches(evt *Event) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.types != nil {
		if _, ok := s.types[evt.Type]; !ok {
			return false
		}
	}
	return s.filter == nil || s.filter(evt)
}

// send delivers evt without blocking. It reports false when the event was
// filtered out or dropped.
func (s *Subscriber) send(evt *Event) bool {
	if s.closed.Load() || !s.matches(evt) {
		return false
	}

	for {
		current := s.credits.Load()
		if current <= 0 {
			s.dropped.Add(1)
			return false
		}
		if s.credits.CompareAndSwap(current, current-1) {
			break
		}
	}

	select {
	case s.ch <- evt:
		return true
	default:
		// Buffer full: refund the credit.
		s.credits.Add(1)
		s.dropped.Add(1)
		return false
	}
}

// Close closes the event channel. Safe to call multiple times.
func (s *Subscriber) Close() {
	if s.closed.CompareAndSwap(false, true) {
		close(s.ch)
	}
}
