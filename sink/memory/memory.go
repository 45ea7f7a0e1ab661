// Package memory provides a recording sink for tests and dry runs.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/xraph/spool/sink"
)

// Sink records every request it receives. Failures can be programmed per
// printer or for the next N calls.
type Sink struct {
	mu       sync.Mutex
	requests []sink.Request
	byDevice map[string]error
	next     []error
	hook     func(ctx context.Context, req *sink.Request) error
}

var _ sink.Sink = (*Sink)(nil)

// New returns an empty recording sink.
func New() *Sink {
	return &Sink{byDevice: make(map[string]error)}
}

// Send records req and returns the programmed error, if any. Failed
// requests are recorded too.
func (s *Sink) Send(ctx context.Context, req *sink.Request) error {
	s.mu.Lock()
	cp := *req
	cp.Data = slices.Clone(req.Data)
	s.requests = append(s.requests, cp)

	var err error
	switch {
	case len(s.next) > 0:
		err = s.next[0]
		s.next = s.next[1:]
	case s.byDevice[req.Printer] != nil:
		err = s.byDevice[req.Printer]
	}
	hook := s.hook
	s.mu.Unlock()

	if err != nil {
		return err
	}
	if hook != nil {
		return hook(ctx, req)
	}
	return nil
}

// FailPrinter makes every send to the named device return err. A nil err
// clears the failure.
func (s *Sink) FailPrinter(device string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.byDevice, device)
		return
	}
	s.byDevice[device] = err
}

// FailNext queues errors returned by the next sends, in order.
func (s *Sink) FailNext(errs ...error) {
	s.mu.Lock()
	s.next = append(s.next, errs...)
	s.mu.Unlock()
}

// OnSend installs a hook run for sends without a programmed failure.
func (s *Sink) OnSend(fn func(ctx context.Context, req *sink.Request) error) {
	s.mu.Lock()
	s.hook = fn
	s.mu.Unlock()
}

// Requests returns a copy of the recorded requests in arrival order.
func (s *Sink) Requests() []sink.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.requests)
}

// Count returns the number of recorded requests.
func (s *Sink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Reset clears recorded requests and programmed failures.
func (s *Sink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
	s.next = nil
	clear(s.byDevice)
	s.hook = nil
}
