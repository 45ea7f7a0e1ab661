package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/spool"
	"github.com/xraph/spool/id"
	"github.com/xraph/spool/job"
)

const jobColumns = `
	id, name, document_type, printer_id, user_name, data,
	template_ref, template_data, format, copies, priority, state,
	error_message, retry_count, offline, parent_model, parent_id,
	submitted_at, completed_at, next_attempt_at, created_at, updated_at`

// CreateJob persists a new job.
func (s *Store) CreateJob(ctx context.Context, j *job.Job) error {
	templateData, err := marshalTemplateData(j.TemplateData)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO spool_jobs (`+jobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
		        $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`,
		j.ID.String(), j.Name, j.DocumentType, j.PrinterID.String(), j.User, j.Data,
		j.TemplateRef, templateData, string(j.Format), j.Copies, j.Priority, string(j.State),
		j.Error, j.RetryCount, j.Offline, j.ParentModel, j.ParentID,
		j.SubmittedAt, j.CompletedAt, j.NextAttemptAt, j.CreatedAt, j.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return spool.ErrJobAlreadyExists
		}
		return fmt.Errorf("spool/postgres: create job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM spool_jobs WHERE id = $1`, jobID.String())

	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, spool.ErrJobNotFound
		}
		return nil, fmt.Errorf("spool/postgres: get job: %w", err)
	}
	return j, nil
}

// UpdateJob persists changes to an existing job. The name is never
// rewritten.
func (s *Store) UpdateJob(ctx context.Context, j *job.Job) error {
	templateData, err := marshalTemplateData(j.TemplateData)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE spool_jobs SET
			document_type = $2, printer_id = $3, user_name = $4, data = $5,
			template_ref = $6, template_data = $7, format = $8, copies = $9,
			priority = $10, state = $11, error_message = $12, retry_count = $13,
			offline = $14, parent_model = $15, parent_id = $16,
			submitted_at = $17, completed_at = $18, next_attempt_at = $19,
			updated_at = NOW()
		WHERE id = $1`,
		j.ID.String(), j.DocumentType, j.PrinterID.String(), j.User, j.Data,
		j.TemplateRef, templateData, string(j.Format), j.Copies,
		j.Priority, string(j.State), j.Error, j.RetryCount,
		j.Offline, j.ParentModel, j.ParentID,
		j.SubmittedAt, j.CompletedAt, j.NextAttemptAt,
	)
	if err != nil {
		return fmt.Errorf("spool/postgres: update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return spool.ErrJobNotFound
	}
	return nil
}

// ClaimJob moves a queued job to printing with a conditional UPDATE. Only
// one concurrent caller sees the row come back.
func (s *Store) ClaimJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE spool_jobs SET state = 'printing', updated_at = NOW()
		WHERE id = $1 AND state = 'queued'
		RETURNING `+jobColumns,
		jobID.String(),
	)

	j, err := scanJob(row)
	if err == nil {
		return j, nil
	}
	if !isNoRows(err) {
		return nil, fmt.Errorf("spool/postgres: claim job: %w", err)
	}

	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM spool_jobs WHERE id = $1)`, jobID.String(),
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("spool/postgres: claim job: %w", err)
	}
	if !exists {
		return nil, spool.ErrJobNotFound
	}
	return nil, spool.ErrJobClaimed
}

// ListJobs returns jobs matching opts in creation order.
func (s *Store) ListJobs(ctx context.Context, opts job.ListOpts) ([]*job.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM spool_jobs WHERE 1=1`
	args := []any{}
	argIdx := 1

	if opts.State != "" {
		query += fmt.Sprintf(" AND state = $%d", argIdx)
		args = append(args, string(opts.State))
		argIdx++
	}
	if !opts.PrinterID.IsNil() {
		query += fmt.Sprintf(" AND printer_id = $%d", argIdx)
		args = append(args, opts.PrinterID.String())
		argIdx++
	}

	query += " ORDER BY id ASC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("spool/postgres: list jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// ListQueuedJobs returns the printer's queued jobs in FIFO order.
func (s *Store) ListQueuedJobs(ctx context.Context, printerID id.PrinterID) ([]*job.Job, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+jobColumns+`
		FROM spool_jobs
		WHERE printer_id = $1 AND state = 'queued'
		ORDER BY submitted_at ASC, priority DESC, id ASC`,
		printerID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("spool/postgres: list queued jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// CountJobs returns the number of jobs matching the given options.
func (s *Store) CountJobs(ctx context.Context, opts job.CountOpts) (int64, error) {
	query := `SELECT COUNT(*) FROM spool_jobs WHERE 1=1`
	args := []any{}
	argIdx := 1

	if opts.State != "" {
		query += fmt.Sprintf(" AND state = $%d", argIdx)
		args = append(args, string(opts.State))
		argIdx++
	}
	if !opts.PrinterID.IsNil() {
		query += fmt.Sprintf(" AND printer_id = $%d", argIdx)
		args = append(args, opts.PrinterID.String())
	}

	var count int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("spool/postgres: count jobs: %w", err)
	}
	return count, nil
}

// NextJobSequence draws from the spool_job_seq sequence.
func (s *Store) NextJobSequence(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT nextval('spool_job_seq')`).Scan(&n); err != nil {
		return 0, fmt.Errorf("spool/postgres: next job sequence: %w", err)
	}
	return n, nil
}

// scanJob scans a single job row.
func scanJob(row pgx.Row) (*job.Job, error) {
	var (
		j            job.Job
		idStr        string
		printerStr   string
		formatStr    string
		stateStr     string
		templateData []byte
	)
	err := row.Scan(
		&idStr, &j.Name, &j.DocumentType, &printerStr, &j.User, &j.Data,
		&j.TemplateRef, &templateData, &formatStr, &j.Copies, &j.Priority, &stateStr,
		&j.Error, &j.RetryCount, &j.Offline, &j.ParentModel, &j.ParentID,
		&j.SubmittedAt, &j.CompletedAt, &j.NextAttemptAt, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	j.Format = job.Format(formatStr)
	j.State = job.State(stateStr)

	if j.ID, err = id.ParseJobID(idStr); err != nil {
		return nil, fmt.Errorf("spool/postgres: parse job id %q: %w", idStr, err)
	}
	if j.PrinterID, err = id.ParsePrinterID(printerStr); err != nil {
		return nil, fmt.Errorf("spool/postgres: parse printer id %q: %w", printerStr, err)
	}
	if len(templateData) > 0 {
		if err := json.Unmarshal(templateData, &j.TemplateData); err != nil {
			return nil, fmt.Errorf("spool/postgres: decode template data: %w", err)
		}
	}
	return &j, nil
}

// collectJobs collects all jobs from query rows.
func collectJobs(rows pgx.Rows) ([]*job.Job, error) {
	var jobs []*job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("spool/postgres: scan job row: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("spool/postgres: iterate job rows: %w", err)
	}
	return jobs, nil
}

// marshalTemplateData encodes template data for the JSONB column; nil
// maps are stored as SQL NULL.
func marshalTemplateData(data map[string]any) ([]byte, error) {
	if data == nil {
		return nil, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("spool/postgres: encode template data: %w", err)
	}
	return b, nil
}
