package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/xraph/spool/job"
	"github.com/xraph/spool/printer"
	"github.com/xraph/spool/sink"
)

// ErrPoolStopped is returned by Deliver when the pool is not running. Its
// message marks it transient so the job is retried once the pool is back.
var ErrPoolStopped = errors.New("spool: delivery pool unavailable")

type task struct {
	job     *job.Job
	printer *printer.Printer
}

// Pool manages a set of concurrent worker goroutines that take claimed
// jobs from a channel and deliver them through the Executor.
type Pool struct {
	executor    *Executor
	concurrency int
	backlog     int
	logger      *slog.Logger

	tasks      chan task
	wg         sync.WaitGroup
	mu         sync.RWMutex
	running    bool
	activeJobs map[string]context.CancelFunc
	activeMu   sync.Mutex
	aborted    atomic.Bool
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolConcurrency sets the number of concurrent worker goroutines.
func WithPoolConcurrency(n int) PoolOption {
	return func(p *Pool) { p.concurrency = n }
}

// WithBacklog sets how many claimed jobs may wait for a free worker
// before Deliver blocks.
func WithBacklog(n int) PoolOption {
	return func(p *Pool) { p.backlog = n }
}

// NewPool creates a worker pool.
func NewPool(executor *Executor, logger *slog.Logger, opts ...PoolOption) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{
		executor:    executor,
		concurrency: 4,
		backlog:     64,
		logger:      logger,
		activeJobs:  make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.concurrency < 1 {
		p.concurrency = 1
	}
	return p
}

// Start launches the worker goroutines. It returns immediately.
func (p *Pool) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	p.running = true
	p.aborted.Store(false)
	p.tasks = make(chan task, p.backlog)

	p.logger.Info("delivery pool starting",
		slog.Int("concurrency", p.concurrency),
		slog.Int("backlog", p.backlog),
	)

	for range p.concurrency {
		p.wg.Add(1)
		go p.loop(p.tasks)
	}
	return nil
}

// Stop stops accepting deliveries, lets workers finish the backlog and
// waits for them. If ctx ends first, in-flight deliveries are cancelled;
// their jobs are reported failed with a transient error.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	close(p.tasks)
	p.mu.Unlock()

	p.logger.Info("delivery pool stopping")

	// Wait for completion or context deadline.
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("delivery pool stopped gracefully")
	case <-ctx.Done():
		p.logger.Warn("delivery pool shutdown timed out, cancelling active deliveries")
		p.aborted.Store(true)
		p.cancelActiveJobs()
		p.wg.Wait()
	}
	return nil
}

// Deliver queues a claimed job for delivery to p. It blocks while the
// backlog is full and fails with ErrPoolStopped when the pool is not
// running. A delivery requested from inside a worker (a retry triggered
// by a reported failure) runs inline when the backlog is full, so workers
// never wait on each other.
func (p *Pool) Deliver(ctx context.Context, j *job.Job, prn *printer.Printer) error {
	p.mu.RLock()
	if !p.running {
		p.mu.RUnlock()
		return sink.NewTransient("deliver", prn.DeviceName(), ErrPoolStopped)
	}

	t := task{job: j.Clone(), printer: prn.Clone()}

	if inWorker(ctx) {
		select {
		case p.tasks <- t:
			p.mu.RUnlock()
			return nil
		default:
		}
		p.mu.RUnlock()
		return p.executor.Execute(ctx, t.job, t.printer)
	}
	defer p.mu.RUnlock()

	select {
	case p.tasks <- t:
		return nil
	case <-ctx.Done():
		return sink.NewTransient("deliver", prn.DeviceName(), ctx.Err())
	}
}

type workerKey struct{}

func inWorker(ctx context.Context) bool {
	v, _ := ctx.Value(workerKey{}).(bool)
	return v
}

// Active returns the number of deliveries in flight.
func (p *Pool) Active() int {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()
	return len(p.activeJobs)
}

// loop is run by each worker goroutine until the task channel closes.
func (p *Pool) loop(tasks <-chan task) {
	defer p.wg.Done()

	for t := range tasks {
		if p.aborted.Load() {
			// Shutdown timed out: record the backlog as failed instead
			// of printing it.
			stopped := sink.NewTransient("deliver", t.printer.DeviceName(), ErrPoolStopped)
			_ = p.executor.reportFailure(context.Background(), t.job, t.printer, stopped)
			continue
		}

		ctx, cancel := context.WithCancel(context.WithValue(context.Background(), workerKey{}, true))
		p.trackJob(t.job.ID.String(), cancel)

		if err := p.executor.Execute(ctx, t.job, t.printer); err != nil {
			p.logger.Debug("delivery outcome not recorded",
				slog.String("job_id", t.job.ID.String()),
				slog.String("job_name", t.job.Name),
				slog.String("error", err.Error()),
			)
		}

		p.untrackJob(t.job.ID.String())
		cancel()
	}
}

func (p *Pool) trackJob(jobID string, cancel context.CancelFunc) {
	p.activeMu.Lock()
	p.activeJobs[jobID] = cancel
	p.activeMu.Unlock()
}

func (p *Pool) untrackJob(jobID string) {
	p.activeMu.Lock()
	delete(p.activeJobs, jobID)
	p.activeMu.Unlock()
}

func (p *Pool) cancelActiveJobs() {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()
	for jobID, cancel := range p.activeJobs {
		p.logger.Warn("cancelling active delivery", slog.String("job_id", jobID))
		cancel()
	}
}
