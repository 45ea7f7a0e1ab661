package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xraph/spool/ext"
	"github.com/xraph/spool/job"
	"github.com/xraph/spool/printer"
)

// Compile-time interface checks.
var (
	_ ext.Extension            = (*Broker)(nil)
	_ ext.JobSubmitted         = (*Broker)(nil)
	_ ext.JobPrinting          = (*Broker)(nil)
	_ ext.JobCompleted         = (*Broker)(nil)
	_ ext.JobFailed            = (*Broker)(nil)
	_ ext.JobRetrying          = (*Broker)(nil)
	_ ext.JobExhausted         = (*Broker)(nil)
	_ ext.JobCancelled         = (*Broker)(nil)
	_ ext.JobBatched           = (*Broker)(nil)
	_ ext.PrinterStatusChanged = (*Broker)(nil)
	_ ext.QueueProcessed       = (*Broker)(nil)
	_ ext.Shutdown             = (*Broker)(nil)
)

// DefaultBufferSize is the default per-subscriber event buffer.
const DefaultBufferSize = 256

// DefaultCredits is the default initial credits for new subscribers.
const DefaultCredits int64 = 1000

// Broker is the real-time stream broker. It implements the ext.Extension
// interface to receive lifecycle events and fans them out to subscribers
// via topic-based pub/sub.
type Broker struct {
	topics *TopicRegistry
	logger *slog.Logger

	// Subscriber management.
	subscribers sync.Map // subscriberID → *Subscriber

	// Metrics.
	totalPublished atomic.Int64
	totalDropped   atomic.Int64 // drops of subscribers already removed

	// Config.
	bufferSize     int
	defaultCredits int64
}

// BrokerOption configures a Broker.
type BrokerOption func(*Broker)

// WithBufferSize sets the per-subscriber event buffer size.
func WithBufferSize(size int) BrokerOption {
	return func(b *Broker) { b.bufferSize = size }
}

// WithDefaultCredits sets the initial credits for new subscribers.
func WithDefaultCredits(credits int64) BrokerOption {
	return func(b *Broker) { b.defaultCredits = credits }
}

// NewBroker creates a new stream broker.
func NewBroker(logger *slog.Logger, opts ...BrokerOption) *Broker {
	b := &Broker{
		topics:         NewTopicRegistry(),
		logger:         logger,
		bufferSize:     DefaultBufferSize,
		defaultCredits: DefaultCredits,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name implements ext.Extension.
func (b *Broker) Name() string { return "stream-broker" }

// Topics returns the topic registry for external use.
func (b *Broker) Topics() *TopicRegistry { return b.topics }

// Subscribe creates a new subscriber on the given topics.
func (b *Broker) Subscribe(subscriberID string, topics ...string) *Subscriber {
	sub := NewSubscriber(subscriberID, b.bufferSize, b.defaultCredits)
	b.subscribers.Store(subscriberID, sub)
	for _, topic := range topics {
		b.topics.Subscribe(topic, sub)
	}
	return sub
}

// SubscribeTo adds an existing subscriber to additional topics.
func (b *Broker) SubscribeTo(subscriberID string, topics ...string) {
	val, ok := b.subscribers.Load(subscriberID)
	if !ok {
		return
	}
	sub := val.(*Subscriber) //nolint:errcheck // sync.Map always stores *Subscriber
	for _, topic := range topics {
		b.topics.Subscribe(topic, sub)
	}
}

// Unsubscribe removes a subscriber from specific topics.
func (b *Broker) Unsubscribe(subscriberID string, topics ...string) {
	for _, topic := range topics {
		b.topics.Unsubscribe(topic, subscriberID)
	}
}

// RemoveSubscriber removes a subscriber from all topics and closes it.
func (b *Broker) RemoveSubscriber(subscriberID string) {
	b.topics.UnsubscribeAll(subscriberID)
	if val, ok := b.subscribers.LoadAndDelete(subscriberID); ok {
		sub := val.(*Subscriber) //nolint:errcheck // sync.Map always stores *Subscriber
		sub.Close()
		b.totalDropped.Add(sub.Dropped())
	}
}

// GetSubscriber returns a subscriber by ID.
func (b *Broker) GetSubscriber(subscriberID string) (*Subscriber, bool) {
	val, ok := b.subscribers.Load(subscriberID)
	if !ok {
		return nil, false
	}
	return val.(*Subscriber), true //nolint:errcheck // sync.Map always stores *Subscriber
}

// Stats returns broker statistics.
func (b *Broker) Stats() BrokerStats {
	count := 0
	dropped := b.totalDropped.Load()
	b.subscribers.Range(func(_, val any) bool {
		count++
		dropped += val.(*Subscriber).Dropped() //nolint:errcheck // sync.Map always stores *Subscriber
		return true
	})
	return BrokerStats{
		TopicCount:      b.topics.TopicCount(),
		SubscriberCount: count,
		TotalPublished:  b.totalPublished.Load(),
		TotalDropped:    dropped,
	}
}

// BrokerStats contains broker metrics.
type BrokerStats struct {
	TopicCount      int   `json:"topic_count"`
	SubscriberCount int   `json:"subscriber_count"`
	TotalPublished  int64 `json:"total_published"`
	TotalDropped    int64 `json:"total_dropped"`
}

// publish broadcasts an event to its type topic, its entity topic and
// any extra topics.
func (b *Broker) publish(evt *Event, extra ...string) {
	topics := resolveTopics(evt, extra...)
	delivered := b.topics.Broadcast(topics, evt)
	b.totalPublished.Add(int64(delivered))
}

// mustMarshal marshals data to JSON, panicking on error (programming error).
func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic("stream: marshal event data: " + err.Error())
	}
	return data
}

func jobData(j *job.Job) JobEventData {
	return JobEventData{
		JobID:     j.ID.String(),
		JobName:   j.Name,
		PrinterID: j.PrinterID.String(),
		State:     string(j.State),
		User:      j.User,
	}
}

func (b *Broker) publishJob(typ EventType, data JobEventData) {
	b.publish(&Event{
		Type:      typ,
		Timestamp: time.Now().UTC(),
		Topic:     JobTopic(data.JobID),
		Data:      mustMarshal(data),
	}, PrinterTopic(data.PrinterID))
}

// ── Job lifecycle hooks ─────────────────────────────

func (b *Broker) OnJobSubmitted(_ context.Context, j *job.Job) error {
	b.publishJob(EventJobSubmitted, jobData(j))
	return nil
}

func (b *Broker) OnJobPrinting(_ context.Context, j *job.Job) error {
	b.publishJob(EventJobPrinting, jobData(j))
	return nil
}

func (b *Broker) OnJobCompleted(_ context.Context, j *job.Job, elapsed time.Duration) error {
	data := jobData(j)
	data.ElapsedMs = elapsed.Milliseconds()
	b.publishJob(EventJobCompleted, data)
	return nil
}

func (b *Broker) OnJobFailed(_ context.Context, j *job.Job, jobErr error) error {
	data := jobData(j)
	if jobErr != nil {
		data.Error = jobErr.Error()
	}
	b.publishJob(EventJobFailed, data)
	return nil
}

func (b *Broker) OnJobRetrying(_ context.Context, j *job.Job, attempt int, nextAttemptAt time.Time) error {
	data := jobData(j)
	data.Attempt = attempt
	data.NextAttemptAt = nextAttemptAt.Format(time.RFC3339)
	b.publishJob(EventJobRetrying, data)
	return nil
}

func (b *Broker) OnJobExhausted(_ context.Context, j *job.Job) error {
	data := jobData(j)
	data.Error = j.Error
	data.Attempt = j.RetryCount
	b.publishJob(EventJobExhausted, data)
	return nil
}

func (b *Broker) OnJobCancelled(_ context.Context, j *job.Job) error {
	b.publishJob(EventJobCancelled, jobData(j))
	return nil
}

func (b *Broker) OnJobBatched(_ context.Context, batch *job.Job, merged int) error {
	data := jobData(batch)
	data.Merged = merged
	b.publishJob(EventJobBatched, data)
	return nil
}

// ── Printer and queue hooks ─────────────────────────

func (b *Broker) OnPrinterStatusChanged(_ context.Context, p *printer.Printer) error {
	b.publish(&Event{
		Type:      EventPrinterStatus,
		Timestamp: time.Now().UTC(),
		Topic:     PrinterTopic(p.ID.String()),
		Data: mustMarshal(PrinterEventData{
			PrinterID: p.ID.String(),
			Name:      p.Name,
			Active:    p.Active,
		}),
	})
	return nil
}

func (b *Broker) OnQueueProcessed(_ context.Context, s ext.QueueSummary) error {
	b.publish(&Event{
		Type:      EventQueueProcessed,
		Timestamp: time.Now().UTC(),
		Data: mustMarshal(QueueEventData{
			Processed:       s.Processed,
			Failed:          s.Failed,
			PrintersScanned: s.PrintersScanned,
			Skipped:         s.Skipped,
			ElapsedMs:       s.Elapsed.Milliseconds(),
		}),
	})
	return nil
}

// ── Shutdown ────────────────────────────────────────

func (b *Broker) OnShutdown(_ context.Context) error {
	b.subscribers.Range(func(key, value any) bool {
		sub := value.(*Subscriber) //nolint:errcheck // sync.Map always stores *Subscriber
		sub.Close()
		b.subscribers.Delete(key)
		return true
	})
	b.logger.Info("stream broker shut down")
	return nil
}
