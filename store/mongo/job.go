package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/spool"
	"github.com/xraph/spool/id"
	"github.com/xraph/spool/job"
)

// fifoSort orders a printer's queue: oldest first, then higher priority.
var fifoSort = bson.D{
	{Key: "submitted_at", Value: 1},
	{Key: "priority", Value: -1},
	{Key: "_id", Value: 1},
}

// CreateJob persists a new job.
func (s *Store) CreateJob(ctx context.Context, j *job.Job) error {
	_, err := s.db.Collection(colJobs).InsertOne(ctx, toJobModel(j))
	if err != nil {
		if isDuplicateKey(err) {
			return spool.ErrJobAlreadyExists
		}
		return fmt.Errorf("spool/mongo: create job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	var m jobModel
	err := s.db.Collection(colJobs).FindOne(ctx, bson.M{"_id": jobID.String()}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, spool.ErrJobNotFound
		}
		return nil, fmt.Errorf("spool/mongo: get job: %w", err)
	}
	return fromJobModel(&m)
}

// UpdateJob persists changes to an existing job. The name and creation
// time are never rewritten.
func (s *Store) UpdateJob(ctx context.Context, j *job.Job) error {
	m := toJobModel(j)
	update := bson.M{"$set": bson.M{
		"document_type":   m.DocumentType,
		"printer_id":      m.PrinterID,
		"user":            m.User,
		"data":            m.Data,
		"template_ref":    m.TemplateRef,
		"template_data":   m.TemplateData,
		"format":          m.Format,
		"copies":          m.Copies,
		"priority":        m.Priority,
		"state":           m.State,
		"error_message":   m.Error,
		"retry_count":     m.RetryCount,
		"offline":         m.Offline,
		"parent_model":    m.ParentModel,
		"parent_id":       m.ParentID,
		"submitted_at":    m.SubmittedAt,
		"completed_at":    m.CompletedAt,
		"next_attempt_at": m.NextAttemptAt,
		"updated_at":      now(),
	}}

	res, err := s.db.Collection(colJobs).UpdateOne(ctx, bson.M{"_id": m.ID}, update)
	if err != nil {
		return fmt.Errorf("spool/mongo: update job: %w", err)
	}
	if res.MatchedCount == 0 {
		return spool.ErrJobNotFound
	}
	return nil
}

// ClaimJob moves a queued job to printing. FindOneAndUpdate filtered on the
// queued state is atomic on a single document.
func (s *Store) ClaimJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	col := s.db.Collection(colJobs)
	filter := bson.M{
		"_id":   jobID.String(),
		"state": string(job.StateQueued),
	}
	update := bson.M{"$set": bson.M{
		"state":      string(job.StatePrinting),
		"updated_at": now(),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var m jobModel
	err := col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&m)
	if err == nil {
		return fromJobModel(&m)
	}
	if !isNoDocuments(err) {
		return nil, fmt.Errorf("spool/mongo: claim job: %w", err)
	}

	n, err := col.CountDocuments(ctx, bson.M{"_id": jobID.String()})
	if err != nil {
		return nil, fmt.Errorf("spool/mongo: claim job: %w", err)
	}
	if n == 0 {
		return nil, spool.ErrJobNotFound
	}
	return nil, spool.ErrJobClaimed
}

// ListJobs returns jobs matching opts in creation order.
func (s *Store) ListJobs(ctx context.Context, opts job.ListOpts) ([]*job.Job, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts.SetSkip(int64(opts.Offset))
	}

	jobs, err := s.findJobs(ctx, jobFilter(opts.State, opts.PrinterID), findOpts)
	if err != nil {
		return nil, fmt.Errorf("spool/mongo: list jobs: %w", err)
	}
	return jobs, nil
}

// ListQueuedJobs returns the printer's queued jobs in FIFO order.
func (s *Store) ListQueuedJobs(ctx context.Context, printerID id.PrinterID) ([]*job.Job, error) {
	jobs, err := s.findJobs(ctx,
		jobFilter(job.StateQueued, printerID),
		options.Find().SetSort(fifoSort),
	)
	if err != nil {
		return nil, fmt.Errorf("spool/mongo: list queued jobs: %w", err)
	}
	return jobs, nil
}

// CountJobs returns the number of jobs matching the given options.
func (s *Store) CountJobs(ctx context.Context, opts job.CountOpts) (int64, error) {
	n, err := s.db.Collection(colJobs).CountDocuments(ctx, jobFilter(opts.State, opts.PrinterID))
	if err != nil {
		return 0, fmt.Errorf("spool/mongo: count jobs: %w", err)
	}
	return n, nil
}

// NextJobSequence increments the "job" counter document, creating it on
// first use.
func (s *Store) NextJobSequence(ctx context.Context) (int64, error) {
	var counter struct {
		Value int64 `bson:"value"`
	}
	err := s.db.Collection(colCounters).FindOneAndUpdate(ctx,
		bson.M{"_id": "job"},
		bson.M{"$inc": bson.M{"value": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("spool/mongo: next job sequence: %w", err)
	}
	return counter.Value, nil
}

func jobFilter(state job.State, printerID id.PrinterID) bson.M {
	filter := bson.M{}
	if state != "" {
		filter["state"] = string(state)
	}
	if !printerID.IsNil() {
		filter["printer_id"] = printerID.String()
	}
	return filter
}

func (s *Store) findJobs(ctx context.Context, filter bson.M, opts *options.FindOptionsBuilder) ([]*job.Job, error) {
	cursor, err := s.db.Collection(colJobs).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	var models []jobModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, err
	}

	jobs := make([]*job.Job, 0, len(models))
	for i := range models {
		j, convErr := fromJobModel(&models[i])
		if convErr != nil {
			return nil, convErr
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}
