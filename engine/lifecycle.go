package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/spool"
	"github.com/xraph/spool/id"
	"github.com/xraph/spool/job"
	"github.com/xraph/spool/retry"
)

// OfflineNote is recorded on jobs submitted to an inactive printer.
const OfflineNote = "Printer %s is offline. Job queued for later processing."

// Submit validates j, names it and queues it for its printer. A job for an
// inactive printer is queued anyway, flagged offline with a note in its
// error message, and printed once the printer is activated.
func (eng *Engine) Submit(ctx context.Context, j *job.Job) (*job.Job, error) {
	if err := j.Validate(); err != nil {
		return nil, err
	}
	p, err := eng.printers.Get(ctx, j.PrinterID)
	if err != nil {
		return nil, err
	}

	seq, err := eng.store.NextJobSequence(ctx)
	if err != nil {
		return nil, fmt.Errorf("spool: next job sequence: %w", err)
	}

	if j.DocumentType == "" {
		j.DocumentType = job.DocTypeOther
	}
	j.ID = id.NewJobID()
	j.Entity = spool.NewEntity()
	j.Name = job.Name(j.DocumentType, p.Name, seq)
	j.State = job.StateDraft
	j.Error = ""
	j.Offline = false
	j.SubmittedAt = nil
	j.CompletedAt = nil
	j.NextAttemptAt = nil

	if err := eng.store.CreateJob(ctx, j); err != nil {
		return nil, err
	}

	if err := j.Transition(job.StateQueued); err != nil {
		return nil, err
	}
	j.SubmittedAt = job.Now()
	if !p.Active {
		j.Offline = true
		j.Error = fmt.Sprintf(OfflineNote, p.Name)
	}
	j.Touch()
	if err := eng.store.UpdateJob(ctx, j); err != nil {
		return nil, err
	}

	if j.Offline {
		eng.logger.Warn("print job queued for offline printer",
			slog.String("job_id", j.ID.String()),
			slog.String("job_name", j.Name),
			slog.String("printer", p.Name),
		)
	} else {
		eng.logger.Info("print job submitted",
			slog.String("job_id", j.ID.String()),
			slog.String("job_name", j.Name),
			slog.String("printer", p.Name),
			slog.String("user", j.User),
		)
	}

	eng.extensions.EmitJobSubmitted(ctx, j)
	return j, nil
}

// Process checks the job against its printer, claims it (queued →
// printing) and hands it to the deliverer.
//
// An inactive printer or an unsupported format fails the job and returns
// a ValidationError. The offline failure is transient and may be retried;
// the format failure is terminal. Losing the claim to a concurrent caller
// returns spool.ErrJobClaimed. A delivery hand-off error is recorded on
// the job through MarkFailed and not returned.
func (eng *Engine) Process(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	j, err := eng.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.State != job.StateQueued {
		return j, fmt.Errorf("%w: cannot process job in state %s", spool.ErrInvalidState, j.State)
	}

	p, err := eng.printers.Get(ctx, j.PrinterID)
	if err != nil {
		return nil, err
	}

	if !p.Active {
		msg := fmt.Sprintf("Printer %s is offline", p.Name)
		if err := eng.fail(ctx, j, msg, false); err != nil {
			return nil, err
		}
		return j, spool.NewValidationError("printer_id", "printer %s is not active", p.Name)
	}
	if !p.Supports(j.Format) {
		msg := fmt.Sprintf("Printer %s does not support format %s", p.Name, j.Format)
		if err := eng.fail(ctx, j, msg, true); err != nil {
			return nil, err
		}
		eng.extensions.EmitJobFailed(ctx, j, errors.New(msg))
		return j, spool.NewValidationError("format", "printer %s does not support format %s", p.Name, j.Format)
	}

	claimed, err := eng.store.ClaimJob(ctx, j.ID)
	if err != nil {
		return nil, err
	}

	eng.logger.Info("print job printing",
		slog.String("job_id", claimed.ID.String()),
		slog.String("job_name", claimed.Name),
		slog.String("printer", p.Name),
		slog.String("format", string(claimed.Format)),
		slog.Int("copies", claimed.Copies),
	)
	eng.extensions.EmitJobPrinting(ctx, claimed)

	if eng.deliverer == nil {
		return claimed, nil
	}

	if err := eng.deliverer.Deliver(ctx, claimed, p); err != nil {
		// The claim already happened; record the failure even if ctx ended.
		if _, failErr := eng.MarkFailed(context.WithoutCancel(ctx), claimed.ID, err.Error()); failErr != nil {
			return nil, failErr
		}
	}

	// A synchronous deliverer may already have recorded the outcome.
	return eng.store.GetJob(ctx, claimed.ID)
}

// fail moves a queued job straight to failed. Terminal failures get a
// completion date.
func (eng *Engine) fail(ctx context.Context, j *job.Job, msg string, terminal bool) error {
	if err := j.Transition(job.StateFailed); err != nil {
		return err
	}
	recordFailure(j, msg)
	if terminal {
		j.CompletedAt = job.Now()
	}
	j.Touch()
	if err := eng.store.UpdateJob(ctx, j); err != nil {
		return err
	}
	eng.logger.Warn("print job failed",
		slog.String("job_id", j.ID.String()),
		slog.String("job_name", j.Name),
		slog.Bool("terminal", terminal),
		slog.String("error", msg),
	)
	return nil
}

// MarkCompleted records a successful print. Completing an already
// completed job is a no-op.
func (eng *Engine) MarkCompleted(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	j, err := eng.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.State == job.StateCompleted {
		return j, nil
	}
	if err := j.Transition(job.StateCompleted); err != nil {
		return nil, err
	}
	j.CompletedAt = job.Now()
	j.Error = ""
	j.Offline = false
	j.NextAttemptAt = nil
	j.Touch()
	if err := eng.store.UpdateJob(ctx, j); err != nil {
		return nil, err
	}

	var elapsed time.Duration
	if j.SubmittedAt != nil {
		elapsed = j.CompletedAt.Sub(*j.SubmittedAt)
	}
	eng.logger.Info("print job completed",
		slog.String("job_id", j.ID.String()),
		slog.String("job_name", j.Name),
		slog.Duration("elapsed", elapsed),
	)
	eng.extensions.EmitJobCompleted(ctx, j, elapsed)
	return j, nil
}

type heldRetryKey struct{}

// holdRetries marks ctx so transient failures recorded under it stay
// failed instead of going straight to Retry.
func holdRetries(ctx context.Context) context.Context {
	return context.WithValue(ctx, heldRetryKey{}, true)
}

func retriesHeld(ctx context.Context) bool {
	v, _ := ctx.Value(heldRetryKey{}).(bool)
	return v
}

// recordFailure sets msg as the job's error. A job that was already
// retried keeps its retry history and gets msg appended.
func recordFailure(j *job.Job, msg string) {
	if j.RetryCount > 0 {
		j.AppendError(msg)
		return
	}
	j.Error = msg
}

// MarkFailed records a failed print with msg. A transient failure goes
// straight to Retry, except during a queue pass, which leaves it failed
// for an explicit Retry. A permanent failure is terminal and notifies the
// administrators.
func (eng *Engine) MarkFailed(ctx context.Context, jobID id.JobID, msg string) (*job.Job, error) {
	j, err := eng.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := j.Transition(job.StateFailed); err != nil {
		return nil, err
	}
	recordFailure(j, msg)
	j.Touch()

	if !retry.IsTransient(msg) {
		j.CompletedAt = job.Now()
		if err := eng.store.UpdateJob(ctx, j); err != nil {
			return nil, err
		}
		eng.logger.Error("print job failed permanently",
			slog.String("job_id", j.ID.String()),
			slog.String("job_name", j.Name),
			slog.String("error", msg),
		)
		eng.extensions.EmitJobFailed(ctx, j, errors.New(msg))
		return j, nil
	}

	if err := eng.store.UpdateJob(ctx, j); err != nil {
		return nil, err
	}
	eng.logger.Warn("print job failed",
		slog.String("job_id", j.ID.String()),
		slog.String("job_name", j.Name),
		slog.Int("retry_count", j.RetryCount),
		slog.Bool("retry_held", retriesHeld(ctx)),
		slog.String("error", msg),
	)

	if retriesHeld(ctx) {
		return j, nil
	}
	if _, err := eng.Retry(ctx, j.ID); err != nil {
		return nil, err
	}
	return eng.store.GetJob(ctx, j.ID)
}

// Retry applies the retry policy to a failed job and returns whether the
// job was handed to its printer again. It returns false, with no error,
// when the job is not eligible, when the failure is permanent (the job is
// finalized), when retries are exhausted (the job is finalized and the
// administrators notified), and when the new attempt fails its checks.
//
// Under Config.EnforceBackoff the job is re-queued with NextAttemptAt set
// and left for the queue processor; Retry then reports true.
func (eng *Engine) Retry(ctx context.Context, jobID id.JobID) (bool, error) {
	j, err := eng.store.GetJob(ctx, jobID)
	if err != nil {
		return false, err
	}

	d := eng.policy.Decide(j)
	switch d.Action {
	case retry.Skip:
		return false, nil

	case retry.Permanent:
		j.CompletedAt = job.Now()
		j.Touch()
		if err := eng.store.UpdateJob(ctx, j); err != nil {
			return false, err
		}
		eng.logger.Info("permanent failure, not retrying",
			slog.String("job_id", j.ID.String()),
			slog.String("job_name", j.Name),
		)
		eng.extensions.EmitJobFailed(ctx, j, errors.New(j.Error))
		return false, nil

	case retry.Exhausted:
		j.CompletedAt = job.Now()
		j.AppendError(retry.ExhaustedMessage)
		j.Touch()
		if err := eng.store.UpdateJob(ctx, j); err != nil {
			return false, err
		}
		eng.logger.Warn("print job exceeded maximum retry count",
			slog.String("job_id", j.ID.String()),
			slog.String("job_name", j.Name),
			slog.Int("max_retries", eng.policy.MaxRetries),
		)
		eng.extensions.EmitJobExhausted(ctx, j)
		return false, nil
	}

	now := time.Now().UTC()
	next := now.Add(d.Delay)
	if err := j.Transition(job.StateQueued); err != nil {
		return false, err
	}
	j.RetryCount = d.Attempt
	j.NextAttemptAt = &next
	j.AppendError(retry.AttemptMessage(d.Attempt, now))
	j.Touch()
	if err := eng.store.UpdateJob(ctx, j); err != nil {
		return false, err
	}

	eng.logger.Info("retrying print job",
		slog.String("job_id", j.ID.String()),
		slog.String("job_name", j.Name),
		slog.Int("attempt", d.Attempt),
		slog.Int("max_retries", eng.policy.MaxRetries),
		slog.Duration("backoff", d.Delay),
	)
	eng.extensions.EmitJobRetrying(ctx, j, d.Attempt, next)

	if eng.config.EnforceBackoff {
		return true, nil
	}

	if _, err := eng.Process(ctx, j.ID); err != nil {
		if spool.IsValidation(err) || errors.Is(err, spool.ErrJobClaimed) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Cancel cancels a draft, queued or failed job. Cancelling a completed or
// cancelled job is a no-op that returns false. Printing jobs cannot be
// cancelled.
func (eng *Engine) Cancel(ctx context.Context, jobID id.JobID) (bool, error) {
	j, err := eng.store.GetJob(ctx, jobID)
	if err != nil {
		return false, err
	}
	switch j.State {
	case job.StateCompleted, job.StateCancelled:
		return false, nil
	}
	if err := eng.cancel(ctx, j, ""); err != nil {
		return false, err
	}
	return true, nil
}

// Supersede cancels a job that was replaced by another one, recording
// reason as its error message. The batcher uses it for merged labels.
func (eng *Engine) Supersede(ctx context.Context, jobID id.JobID, reason string) error {
	j, err := eng.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	return eng.cancel(ctx, j, reason)
}

func (eng *Engine) cancel(ctx context.Context, j *job.Job, reason string) error {
	if err := j.Transition(job.StateCancelled); err != nil {
		return err
	}
	j.CompletedAt = job.Now()
	if reason != "" {
		j.Error = reason
	}
	j.Touch()
	if err := eng.store.UpdateJob(ctx, j); err != nil {
		return err
	}
	eng.logger.Info("print job cancelled",
		slog.String("job_id", j.ID.String()),
		slog.String("job_name", j.Name),
	)
	eng.extensions.EmitJobCancelled(ctx, j)
	return nil
}

// Get retrieves a job by ID.
func (eng *Engine) Get(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	return eng.store.GetJob(ctx, jobID)
}

// List returns jobs matching opts.
func (eng *Engine) List(ctx context.Context, opts job.ListOpts) ([]*job.Job, error) {
	return eng.store.ListJobs(ctx, opts)
}

// Batch merges the given label jobs into one batch job. See batch.Batcher.
func (eng *Engine) Batch(ctx context.Context, jobIDs []id.JobID) (*job.Job, error) {
	jobs := make([]*job.Job, 0, len(jobIDs))
	for _, jid := range jobIDs {
		j, err := eng.store.GetJob(ctx, jid)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return eng.batch(ctx, jobs)
}

func (eng *Engine) batch(ctx context.Context, jobs []*job.Job) (*job.Job, error) {
	merged, err := eng.batcher.Batch(ctx, jobs)
	if err != nil {
		return merged, err
	}
	if len(jobs) > 1 {
		eng.extensions.EmitJobBatched(ctx, merged, countLabels(jobs))
	}
	return merged, nil
}

func countLabels(jobs []*job.Job) int {
	n := 0
	for _, j := range jobs {
		if job.IsLabelCategory(j.DocumentType) {
			n++
		}
	}
	return n
}
