package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"
)

// ErrUnknownTask is returned by Trigger for a name that was never
// registered.
var ErrUnknownTask = errors.New("spool: unknown scheduled task")

// Func is a scheduled task. The context is cancelled when the scheduler
// stops.
type Func func(ctx context.Context) error

// Entry describes a registered task.
type Entry struct {
	Name     string    `json:"name"`
	Schedule string    `json:"schedule"`
	Next     time.Time `json:"next,omitempty"`
	Prev     time.Time `json:"prev,omitempty"`
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithLocation sets the time zone schedules are evaluated in. Defaults to
// UTC.
func WithLocation(loc *time.Location) SchedulerOption {
	return func(s *Scheduler) { s.location = loc }
}

// cronParser supports standard 5-field cron and descriptors like "@every 30s".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseSchedule parses a cron expression and returns the schedule.
func ParseSchedule(expr string) (cronlib.Schedule, error) {
	return cronParser.Parse(expr)
}

type task struct {
	name     string
	schedule string
	fn       Func
	entryID  cronlib.EntryID
}

// Scheduler runs named tasks on cron schedules. A task whose previous run
// is still in progress is skipped for that tick.
type Scheduler struct {
	logger   *slog.Logger
	location *time.Location

	mu      sync.Mutex
	c       *cronlib.Cron
	tasks   map[string]*task
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
}

// NewScheduler creates a Scheduler.
func NewScheduler(logger *slog.Logger, opts ...SchedulerOption) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		logger:   logger,
		location: time.UTC,
		tasks:    make(map[string]*task),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.c = cronlib.New(
		cronlib.WithParser(cronParser),
		cronlib.WithLocation(s.location),
		cronlib.WithChain(cronlib.SkipIfStillRunning(cronLogger{s.logger})),
	)
	return s
}

// Register adds or replaces the task called name.
func (s *Scheduler) Register(name, schedule string, fn Func) error {
	sched, err := ParseSchedule(schedule)
	if err != nil {
		return fmt.Errorf("spool: invalid schedule %q for %s: %w", schedule, name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.tasks[name]; ok {
		s.c.Remove(old.entryID)
	}
	t := &task{name: name, schedule: schedule, fn: fn}
	t.entryID = s.c.Schedule(sched, cronlib.FuncJob(func() { s.run(t) }))
	s.tasks[name] = t

	s.logger.Info("scheduled task registered",
		slog.String("task", name),
		slog.String("schedule", schedule),
	)
	return nil
}

// Remove unregisters the task called name. Unknown names are ignored.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[name]; ok {
		s.c.Remove(t.entryID)
		delete(s.tasks, name)
	}
}

// Trigger runs the task called name now, on the caller's goroutine.
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	s.mu.Lock()
	t, ok := s.tasks[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	return t.fn(ctx)
}

// Entries returns the registered tasks sorted by name.
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, len(s.tasks))
	for _, t := range s.tasks {
		ce := s.c.Entry(t.entryID)
		out = append(out, Entry{
			Name:     t.name,
			Schedule: t.schedule,
			Next:     ce.Next,
			Prev:     ce.Prev,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Start begins firing tasks. Starting a running scheduler is a no-op.
func (s *Scheduler) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.running = true
	s.c.Start()
	s.logger.Info("cron scheduler started", slog.Int("tasks", len(s.tasks)))
	return nil
}

// Stop stops firing tasks, cancels the context of running ones and waits
// for them to return or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	done := s.c.Stop()
	s.cancel()

	select {
	case <-done.Done():
		s.logger.Info("cron scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) run(t *task) {
	start := time.Now()
	if err := t.fn(s.ctx); err != nil {
		s.logger.Error("scheduled task failed",
			slog.String("task", t.name),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.Debug("scheduled task completed",
		slog.String("task", t.name),
		slog.Duration("elapsed", time.Since(start)),
	)
}

// cronLogger adapts slog to the robfig cron logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
