package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/spool"
	"github.com/xraph/spool/ext"
	"github.com/xraph/spool/id"
	"github.com/xraph/spool/job"
	"github.com/xraph/spool/printer"
)

// Summary reports the outcome of a queue processing pass.
type Summary = ext.QueueSummary

// Processor drains printer queues. Each printer's queue is handled by at
// most one pass at a time: the periodic pass skips a printer that is
// already being drained, while an activation drain waits for it.
type Processor struct {
	eng *Engine

	mu    sync.Mutex
	locks map[id.PrinterID]*sync.Mutex
}

func newProcessor(eng *Engine) *Processor {
	return &Processor{
		eng:   eng,
		locks: make(map[id.PrinterID]*sync.Mutex),
	}
}

func (p *Processor) lock(printerID id.PrinterID) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.locks[printerID]
	if !ok {
		l = &sync.Mutex{}
		p.locks[printerID] = l
	}
	return l
}

// ProcessQueue processes the queued jobs of every active printer, highest
// priority printer first.
func (p *Processor) ProcessQueue(ctx context.Context) (Summary, error) {
	start := time.Now()
	var sum Summary

	printers, err := p.eng.printers.List(ctx, printer.ListOpts{ActiveOnly: true})
	if err != nil {
		return sum, err
	}

	for _, prn := range printers {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		l := p.lock(prn.ID)
		if !l.TryLock() {
			p.eng.logger.Debug("printer queue busy, skipping",
				slog.String("printer_id", prn.ID.String()),
				slog.String("printer", prn.Name),
			)
			sum.Skipped++
			continue
		}
		sum.PrintersScanned++
		err := p.drain(ctx, prn, &sum)
		l.Unlock()
		if err != nil {
			return sum, err
		}
	}

	sum.Elapsed = time.Since(start)
	p.eng.logger.Info("queue processed",
		slog.Int("processed", sum.Processed),
		slog.Int("failed", sum.Failed),
		slog.Int("printers_scanned", sum.PrintersScanned),
		slog.Int("skipped", sum.Skipped),
		slog.Duration("elapsed", sum.Elapsed),
	)
	p.eng.extensions.EmitQueueProcessed(ctx, sum)
	return sum, nil
}

// DrainPrinter processes the queued jobs of a single printer, waiting for
// any pass already draining it.
func (p *Processor) DrainPrinter(ctx context.Context, printerID id.PrinterID) (Summary, error) {
	start := time.Now()
	var sum Summary

	l := p.lock(printerID)
	l.Lock()
	defer l.Unlock()

	prn, err := p.eng.printers.Get(ctx, printerID)
	if err != nil {
		return sum, err
	}
	if !prn.Active {
		return sum, nil
	}

	sum.PrintersScanned = 1
	err = p.drain(ctx, prn, &sum)
	sum.Elapsed = time.Since(start)
	p.eng.extensions.EmitQueueProcessed(ctx, sum)
	return sum, err
}

// drain processes prn's queue. The caller holds the printer lock.
func (p *Processor) drain(ctx context.Context, prn *printer.Printer, sum *Summary) error {
	jobs, err := p.eng.store.ListQueuedJobs(ctx, prn.ID)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return nil
	}

	if prn.Type == printer.TypeLabel {
		jobs = p.batchLabels(ctx, prn, jobs)
	}

	now := time.Now().UTC()
	for _, j := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}

		if p.eng.config.EnforceBackoff && j.NextAttemptAt != nil && j.NextAttemptAt.After(now) {
			sum.Skipped++
			continue
		}

		// The printer may have gone offline during the pass.
		current, err := p.eng.printers.Get(ctx, prn.ID)
		if err != nil {
			return err
		}
		if !current.Active {
			p.eng.logger.Info("printer went offline, stopping queue drain",
				slog.String("printer_id", prn.ID.String()),
				slog.String("printer", prn.Name),
			)
			return nil
		}

		p.processOne(ctx, j, sum)
	}
	return nil
}

func (p *Processor) processOne(ctx context.Context, j *job.Job, sum *Summary) {
	// Failures are finalized for this pass; retrying stays an explicit
	// action.
	result, err := p.eng.Process(holdRetries(ctx), j.ID)
	switch {
	case errors.Is(err, spool.ErrJobClaimed):
		sum.Skipped++
	case err != nil:
		sum.Failed++
		// A job that failed its checks is already failed; anything else is
		// finalized here rather than retried inline.
		if !spool.IsValidation(err) {
			p.finalize(ctx, j, err)
		}
	case result.State == job.StateFailed:
		sum.Failed++
	default:
		sum.Processed++
	}
}

// finalize records a processing error on a job that is still queued.
func (p *Processor) finalize(ctx context.Context, j *job.Job, procErr error) {
	p.eng.logger.Error("failed to process print job",
		slog.String("job_id", j.ID.String()),
		slog.String("job_name", j.Name),
		slog.String("error", procErr.Error()),
	)

	current, err := p.eng.store.GetJob(ctx, j.ID)
	if err != nil || current.State != job.StateQueued {
		return
	}
	if err := p.eng.fail(ctx, current, procErr.Error(), true); err != nil {
		p.eng.logger.Error("failed to record processing error",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
		return
	}
	p.eng.extensions.EmitJobFailed(ctx, current, procErr)
}

// batchLabels merges the label-category jobs of a label printer's queue
// into one batch job, placed where the first label job was. Fewer than two
// label jobs, or a batching error, leave the queue as is.
func (p *Processor) batchLabels(ctx context.Context, prn *printer.Printer, jobs []*job.Job) []*job.Job {
	var labels []*job.Job
	first := -1
	for i, j := range jobs {
		if !job.IsLabelCategory(j.DocumentType) {
			continue
		}
		if p.eng.config.EnforceBackoff && j.NextAttemptAt != nil && j.NextAttemptAt.After(time.Now()) {
			continue
		}
		if first < 0 {
			first = i
		}
		labels = append(labels, j)
	}
	if len(labels) < 2 {
		return jobs
	}

	batchJob, err := p.eng.batch(ctx, labels)
	if err != nil {
		p.eng.logger.Warn("label batching failed, processing jobs individually",
			slog.String("printer_id", prn.ID.String()),
			slog.String("printer", prn.Name),
			slog.String("error", err.Error()),
		)
		return jobs
	}

	// Labels the batcher left out (no payload) stay queued and are
	// processed on their own.
	out := make([]*job.Job, 0, len(jobs)-len(labels)+1)
	for i, j := range jobs {
		if i == first {
			out = append(out, batchJob)
		}
		if job.IsLabelCategory(j.DocumentType) && p.superseded(ctx, j) {
			continue
		}
		out = append(out, j)
	}
	return out
}

func (p *Processor) superseded(ctx context.Context, j *job.Job) bool {
	current, err := p.eng.store.GetJob(ctx, j.ID)
	return err == nil && current.State == job.StateCancelled
}
