package redis

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/xraph/spool"
	"github.com/xraph/spool/id"
	"github.com/xraph/spool/job"
)

// maxClaimAttempts bounds the optimistic-lock retries in ClaimJob.
const maxClaimAttempts = 16

// CreateJob stores the job as a Hash and indexes it by printer.
func (s *Store) CreateJob(ctx context.Context, j *job.Job) error {
	jID := j.ID.String()
	key := jobKey(jID)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("spool/redis: create job check exists: %w", err)
	}
	if exists > 0 {
		return spool.ErrJobAlreadyExists
	}

	reserved, err := s.client.HSetNX(ctx, jobNamesKey, j.Name, jID).Result()
	if err != nil {
		return fmt.Errorf("spool/redis: reserve job name: %w", err)
	}
	if !reserved {
		return spool.ErrJobAlreadyExists
	}

	fields, err := jobToMap(j)
	if err != nil {
		return err
	}

	pID := j.PrinterID.String()
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.ZAdd(ctx, jobIDsKey, goredis.Z{Score: 0, Member: jID})
	pipe.SAdd(ctx, printerJobsKey(pID), jID)
	if j.State == job.StateQueued {
		pipe.SAdd(ctx, queuedKey(pID), jID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("spool/redis: create job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	return s.getJobByKey(ctx, jobKey(jobID.String()))
}

// UpdateJob persists changes to an existing job. The stored name is kept.
func (s *Store) UpdateJob(ctx context.Context, j *job.Job) error {
	jID := j.ID.String()
	key := jobKey(jID)

	oldPrinter, err := s.client.HGet(ctx, key, "printer_id").Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return spool.ErrJobNotFound
		}
		return fmt.Errorf("spool/redis: update job: %w", err)
	}

	fields, err := jobToMap(j)
	if err != nil {
		return err
	}
	delete(fields, "name")
	fields["updated_at"] = formatTime(time.Now().UTC())

	pID := j.PrinterID.String()
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	if j.TemplateData == nil {
		pipe.HDel(ctx, key, "template_data")
	}
	for _, f := range []string{"submitted_at", "completed_at", "next_attempt_at"} {
		if _, ok := fields[f]; !ok {
			pipe.HDel(ctx, key, f)
		}
	}
	if oldPrinter != pID {
		pipe.SRem(ctx, printerJobsKey(oldPrinter), jID)
		pipe.SRem(ctx, queuedKey(oldPrinter), jID)
		pipe.SAdd(ctx, printerJobsKey(pID), jID)
	}
	if j.State == job.StateQueued {
		pipe.SAdd(ctx, queuedKey(pID), jID)
	} else {
		pipe.SRem(ctx, queuedKey(pID), jID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("spool/redis: update job: %w", err)
	}
	return nil
}

// ClaimJob moves a queued job to printing inside a WATCH/MULTI
// transaction. A concurrent writer aborts the transaction and the state is
// re-read.
func (s *Store) ClaimJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	jID := jobID.String()
	key := jobKey(jID)

	claim := func(tx *goredis.Tx) error {
		vals, err := tx.HMGet(ctx, key, "state", "printer_id").Result()
		if err != nil {
			return err
		}
		// Missing fields come back as nil.
		state, _ := vals[0].(string)
		printerID, _ := vals[1].(string)
		if state == "" {
			return spool.ErrJobNotFound
		}
		if job.State(state) != job.StateQueued {
			return spool.ErrJobClaimed
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.HSet(ctx, key,
				"state", string(job.StatePrinting),
				"updated_at", formatTime(time.Now().UTC()),
			)
			pipe.SRem(ctx, queuedKey(printerID), jID)
			return nil
		})
		return err
	}

	for range maxClaimAttempts {
		err := s.client.Watch(ctx, claim, key)
		switch {
		case err == nil:
			return s.GetJob(ctx, jobID)
		case errors.Is(err, goredis.TxFailedErr):
			continue
		case errors.Is(err, spool.ErrJobNotFound), errors.Is(err, spool.ErrJobClaimed):
			return nil, err
		default:
			return nil, fmt.Errorf("spool/redis: claim job: %w", err)
		}
	}
	return nil, spool.ErrJobClaimed
}

// ListJobs returns jobs matching opts in creation order.
func (s *Store) ListJobs(ctx context.Context, opts job.ListOpts) ([]*job.Job, error) {
	var ids []string
	var err error
	if opts.PrinterID.IsNil() {
		ids, err = s.client.ZRange(ctx, jobIDsKey, 0, -1).Result()
	} else {
		ids, err = s.client.SMembers(ctx, printerJobsKey(opts.PrinterID.String())).Result()
		slices.Sort(ids)
	}
	if err != nil {
		return nil, fmt.Errorf("spool/redis: list jobs: %w", err)
	}

	jobs := make([]*job.Job, 0, len(ids))
	for _, jID := range ids {
		j, getErr := s.getJobByKey(ctx, jobKey(jID))
		if getErr != nil {
			continue // skip missing
		}
		if opts.State != "" && j.State != opts.State {
			continue
		}
		jobs = append(jobs, j)
	}

	// Apply offset/limit.
	if opts.Offset >= len(jobs) {
		return nil, nil
	}
	jobs = jobs[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(jobs) {
		jobs = jobs[:opts.Limit]
	}
	return jobs, nil
}

// ListQueuedJobs returns the printer's queued jobs in FIFO order.
func (s *Store) ListQueuedJobs(ctx context.Context, printerID id.PrinterID) ([]*job.Job, error) {
	ids, err := s.client.SMembers(ctx, queuedKey(printerID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("spool/redis: list queued jobs: %w", err)
	}

	jobs := make([]*job.Job, 0, len(ids))
	for _, jID := range ids {
		j, getErr := s.getJobByKey(ctx, jobKey(jID))
		if getErr != nil || j.State != job.StateQueued {
			continue
		}
		jobs = append(jobs, j)
	}

	slices.SortFunc(jobs, func(a, b *job.Job) int {
		if c := compareSubmitted(a.SubmittedAt, b.SubmittedAt); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
			return c
		}
		return a.ID.Compare(b.ID)
	})
	return jobs, nil
}

// CountJobs returns the number of jobs matching the given options.
func (s *Store) CountJobs(ctx context.Context, opts job.CountOpts) (int64, error) {
	if opts.State == "" && opts.PrinterID.IsNil() {
		n, err := s.client.ZCard(ctx, jobIDsKey).Result()
		if err != nil {
			return 0, fmt.Errorf("spool/redis: count jobs: %w", err)
		}
		return n, nil
	}

	jobs, err := s.ListJobs(ctx, job.ListOpts{State: opts.State, PrinterID: opts.PrinterID})
	if err != nil {
		return 0, err
	}
	return int64(len(jobs)), nil
}

// NextJobSequence increments the job sequence counter.
func (s *Store) NextJobSequence(ctx context.Context) (int64, error) {
	n, err := s.client.Incr(ctx, jobSeqKey).Result()
	if err != nil {
		return 0, fmt.Errorf("spool/redis: next job sequence: %w", err)
	}
	return n, nil
}

// ── helpers ──

func compareSubmitted(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.Compare(*b)
}

func jobToMap(j *job.Job) (map[string]any, error) {
	m := map[string]any{
		"id":            j.ID.String(),
		"name":          j.Name,
		"document_type": j.DocumentType,
		"printer_id":    j.PrinterID.String(),
		"user":          j.User,
		"data":          string(j.Data),
		"template_ref":  j.TemplateRef,
		"format":        string(j.Format),
		"copies":        strconv.Itoa(j.Copies),
		"priority":      strconv.Itoa(j.Priority),
		"state":         string(j.State),
		"error":         j.Error,
		"retry_count":   strconv.Itoa(j.RetryCount),
		"offline":       formatBool(j.Offline),
		"parent_model":  j.ParentModel,
		"parent_id":     j.ParentID,
		"created_at":    formatTime(j.CreatedAt),
		"updated_at":    formatTime(j.UpdatedAt),
	}
	if j.TemplateData != nil {
		b, err := msgpack.Marshal(j.TemplateData)
		if err != nil {
			return nil, fmt.Errorf("spool/redis: encode template data: %w", err)
		}
		m["template_data"] = string(b)
	}
	if j.SubmittedAt != nil {
		m["submitted_at"] = formatTime(*j.SubmittedAt)
	}
	if j.CompletedAt != nil {
		m["completed_at"] = formatTime(*j.CompletedAt)
	}
	if j.NextAttemptAt != nil {
		m["next_attempt_at"] = formatTime(*j.NextAttemptAt)
	}
	return m, nil
}

func (s *Store) getJobByKey(ctx context.Context, key string) (*job.Job, error) {
	vals, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("spool/redis: get job: %w", err)
	}
	if len(vals) == 0 {
		return nil, spool.ErrJobNotFound
	}
	return mapToJob(vals)
}

func mapToJob(m map[string]string) (*job.Job, error) {
	jID, err := id.ParseJobID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("spool/redis: parse job id: %w", err)
	}
	printerID, err := id.ParsePrinterID(m["printer_id"])
	if err != nil {
		return nil, fmt.Errorf("spool/redis: parse printer id: %w", err)
	}

	copies, _ := strconv.Atoi(m["copies"])          //nolint:errcheck // best-effort parse from trusted Redis data
	priority, _ := strconv.Atoi(m["priority"])      //nolint:errcheck // best-effort parse from trusted Redis data
	retryCount, _ := strconv.Atoi(m["retry_count"]) //nolint:errcheck // best-effort parse from trusted Redis data

	j := &job.Job{
		Entity: spool.Entity{
			CreatedAt: parseTime(m["created_at"]),
			UpdatedAt: parseTime(m["updated_at"]),
		},
		ID:            jID,
		Name:          m["name"],
		DocumentType:  m["document_type"],
		PrinterID:     printerID,
		User:          m["user"],
		TemplateRef:   m["template_ref"],
		Format:        job.Format(m["format"]),
		Copies:        copies,
		Priority:      priority,
		State:         job.State(m["state"]),
		Error:         m["error"],
		RetryCount:    retryCount,
		Offline:       m["offline"] == "1",
		ParentModel:   m["parent_model"],
		ParentID:      m["parent_id"],
		SubmittedAt:   parseTimePtr(m["submitted_at"]),
		CompletedAt:   parseTimePtr(m["completed_at"]),
		NextAttemptAt: parseTimePtr(m["next_attempt_at"]),
	}
	if d := m["data"]; d != "" {
		j.Data = []byte(d)
	}
	if td := m["template_data"]; td != "" {
		if err := msgpack.Unmarshal([]byte(td), &j.TemplateData); err != nil {
			return nil, fmt.Errorf("spool/redis: decode template data: %w", err)
		}
	}
	return j, nil
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s) //nolint:errcheck // best-effort parse from trusted Redis data
	return t
}

func parseTimePtr(s string) *time.Time {
	if s == "" {
		return nil
	}
	t := parseTime(s)
	return &t
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
