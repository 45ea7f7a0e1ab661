package bunstore

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/xraph/spool"
	"github.com/xraph/spool/id"
	"github.com/xraph/spool/job"
)

// CreateJob persists a new job.
func (s *Store) CreateJob(ctx context.Context, j *job.Job) error {
	_, err := s.db.NewInsert().Model(toJobModel(j)).Exec(ctx)
	if err != nil {
		if isDuplicateKey(err) {
			return spool.ErrJobAlreadyExists
		}
		return fmt.Errorf("spool/bun: create job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	m := new(jobModel)
	err := s.db.NewSelect().Model(m).
		Where("id = ?", jobID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, spool.ErrJobNotFound
		}
		return nil, fmt.Errorf("spool/bun: get job: %w", err)
	}
	return fromJobModel(m)
}

// UpdateJob persists changes to an existing job. The name and creation
// time are never rewritten.
func (s *Store) UpdateJob(ctx context.Context, j *job.Job) error {
	m := toJobModel(j)
	m.UpdatedAt = time.Now().UTC()
	res, err := s.db.NewUpdate().Model(m).
		ExcludeColumn("name", "created_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("spool/bun: update job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("spool/bun: update job rows affected: %w", err)
	}
	if n == 0 {
		return spool.ErrJobNotFound
	}
	return nil
}

// ClaimJob moves a queued job to printing with a conditional UPDATE. Only
// one concurrent caller sees a row affected.
func (s *Store) ClaimJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	res, err := s.db.NewUpdate().Model((*jobModel)(nil)).
		Set("state = ?", string(job.StatePrinting)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", jobID.String()).
		Where("state = ?", string(job.StateQueued)).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("spool/bun: claim job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("spool/bun: claim job rows affected: %w", err)
	}

	j, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, spool.ErrJobClaimed
	}
	return j, nil
}

// ListJobs returns jobs matching opts in creation order.
func (s *Store) ListJobs(ctx context.Context, opts job.ListOpts) ([]*job.Job, error) {
	var models []jobModel
	q := s.db.NewSelect().Model(&models)
	q = applyJobFilter(q, opts.State, opts.PrinterID).Order("id ASC")

	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("spool/bun: list jobs: %w", err)
	}
	return fromJobModels(models)
}

// ListQueuedJobs returns the printer's queued jobs in FIFO order.
func (s *Store) ListQueuedJobs(ctx context.Context, printerID id.PrinterID) ([]*job.Job, error) {
	var models []jobModel
	err := s.db.NewSelect().Model(&models).
		Where("printer_id = ?", printerID.String()).
		Where("state = ?", string(job.StateQueued)).
		Order("submitted_at ASC", "priority DESC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("spool/bun: list queued jobs: %w", err)
	}
	return fromJobModels(models)
}

// CountJobs returns the number of jobs matching the given options.
func (s *Store) CountJobs(ctx context.Context, opts job.CountOpts) (int64, error) {
	q := s.db.NewSelect().Model((*jobModel)(nil))
	count, err := applyJobFilter(q, opts.State, opts.PrinterID).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("spool/bun: count jobs: %w", err)
	}
	return int64(count), nil
}

// NextJobSequence increments the "job" row of spool_sequences with an
// upsert, which both dialects execute atomically.
func (s *Store) NextJobSequence(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.NewRaw(`
		INSERT INTO spool_sequences (name, value) VALUES (?, 1)
		ON CONFLICT (name) DO UPDATE SET value = spool_sequences.value + 1
		RETURNING value`, "job",
	).Scan(ctx, &n)
	if err != nil {
		return 0, fmt.Errorf("spool/bun: next job sequence: %w", err)
	}
	return n, nil
}

func applyJobFilter(q *bun.SelectQuery, state job.State, printerID id.PrinterID) *bun.SelectQuery {
	if state != "" {
		q = q.Where("state = ?", string(state))
	}
	if !printerID.IsNil() {
		q = q.Where("printer_id = ?", printerID.String())
	}
	return q
}

func fromJobModels(models []jobModel) ([]*job.Job, error) {
	jobs := make([]*job.Job, 0, len(models))
	for i := range models {
		j, err := fromJobModel(&models[i])
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}
