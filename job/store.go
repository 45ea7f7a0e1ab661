package job

import (
	"context"

	"github.com/xraph/spool/id"
)

// ListOpts controls pagination and filtering for job list queries.
type ListOpts struct {
	// State filters by job state. Empty means all states.
	State State
	// PrinterID filters by printer. Nil means all printers.
	PrinterID id.PrinterID
	// Limit is the maximum number of jobs to return. Zero means no limit.
	Limit int
	// Offset is the number of jobs to skip.
	Offset int
}

// CountOpts controls filtering for job count queries.
type CountOpts struct {
	// State filters by job state. Empty means all states.
	State State
	// PrinterID filters by printer. Nil means all printers.
	PrinterID id.PrinterID
}

// Store defines the persistence contract for print jobs.
type Store interface {
	// CreateJob persists a new job. It returns spool.ErrJobAlreadyExists
	// when the ID or the name is already taken.
	CreateJob(ctx context.Context, j *Job) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID id.JobID) (*Job, error)

	// UpdateJob persists changes to an existing job.
	UpdateJob(ctx context.Context, j *Job) error

	// ClaimJob atomically moves a queued job to printing and returns it.
	// Exactly one concurrent caller wins; the others get
	// spool.ErrJobClaimed.
	ClaimJob(ctx context.Context, jobID id.JobID) (*Job, error)

	// ListJobs returns jobs matching opts in creation order.
	ListJobs(ctx context.Context, opts ListOpts) ([]*Job, error)

	// ListQueuedJobs returns the printer's queued jobs in FIFO order:
	// SubmittedAt ascending, then Priority descending, then ID ascending.
	ListQueuedJobs(ctx context.Context, printerID id.PrinterID) ([]*Job, error)

	// CountJobs returns the number of jobs matching opts.
	CountJobs(ctx context.Context, opts CountOpts) (int64, error)

	// NextJobSequence returns the next value of the monotonic sequence
	// used to name jobs.
	NextJobSequence(ctx context.Context) (int64, error)
}
