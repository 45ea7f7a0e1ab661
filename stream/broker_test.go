package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/xraph/spool/id"
	"github.com/xraph/spool/job"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestBrokerSubscribeAndPublish(t *testing.T) {
	t.Parallel()

	b := NewBroker(testLogger())

	sub := b.Subscribe("sub-1", TopicJobs)

	evt := &Event{
		Type:      EventJobSubmitted,
		Timestamp: time.Now().UTC(),
		Topic:     JobTopic("job-123"),
		Data:      json.RawMessage(`{"job_id":"job-123"}`),
	}
	b.publish(evt)

	// Event should arrive on the subscriber channel.
	select {
	case received := <-sub.C():
		if received.Type != EventJobSubmitted {
			t.Errorf("Type = %q, want %q", received.Type, EventJobSubmitted)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBrokerMultipleTopics(t *testing.T) {
	t.Parallel()

	b := NewBroker(testLogger())

	// The firehose gets everything.
	firehose := b.Subscribe("firehose-sub", TopicFirehose)

	// Subscribe to just jobs.
	jobsSub := b.Subscribe("jobs-sub", TopicJobs)

	// Publish a job event.
	evt := &Event{
		Type:      EventJobCompleted,
		Timestamp: time.Now().UTC(),
		Topic:     JobTopic("job-456"),
		Data:      json.RawMessage(`{}`),
	}
	b.publish(evt)

	// Both should receive the event.
	for _, sub := range []*Subscriber{firehose, jobsSub} {
		select {
		case <-sub.C():
			// ok
		case <-time.After(time.Second):
			t.Fatalf("subscriber %s timed out", sub.ID())
		}
	}
}

func TestBrokerPrinterTopic(t *testing.T) {
	t.Parallel()

	b := NewBroker(testLogger())

	sub := b.Subscribe("printer-sub", PrinterTopic("prn-abc"))

	b.publish(&Event{
		Type:      EventJobPrinting,
		Timestamp: time.Now().UTC(),
		Topic:     JobTopic("job-1"),
		Data:      json.RawMessage(`{}`),
	}, PrinterTopic("prn-abc"))

	select {
	case received := <-sub.C():
		if received.Type != EventJobPrinting {
			t.Errorf("Type = %q, want %q", received.Type, EventJobPrinting)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for printer event")
	}

	// A job on another printer should not arrive.
	b.publish(&Event{
		Type:      EventJobPrinting,
		Timestamp: time.Now().UTC(),
		Topic:     JobTopic("job-2"),
		Data:      json.RawMessage(`{}`),
	}, PrinterTopic("prn-other"))

	select {
	case <-sub.C():
		t.Fatal("should not receive event for different printer")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBrokerUnsubscribe(t *testing.T) {
	t.Parallel()

	b := NewBroker(testLogger())

	sub := b.Subscribe("sub-rm", TopicFirehose)

	// Remove subscriber.
	b.RemoveSubscriber("sub-rm")

	evt := &Event{
		Type:      EventJobSubmitted,
		Timestamp: time.Now().UTC(),
		Topic:     JobTopic("j1"),
		Data:      json.RawMessage(`{}`),
	}
	b.publish(evt)

	// Channel should be closed.
	select {
	case _, ok := <-sub.C():
		if ok {
			t.Fatal("channel should be closed after RemoveSubscriber")
		}
	case <-time.After(100 * time.Millisecond):
		// ok
	}
}

func TestBrokerStats(t *testing.T) {
	t.Parallel()

	b := NewBroker(testLogger())

	_ = b.Subscribe("s1", TopicJobs)
	_ = b.Subscribe("s2", TopicPrinters, TopicFirehose)

	stats := b.Stats()
	if stats.SubscriberCount != 2 {
		t.Errorf("SubscriberCount = %d, want 2", stats.SubscriberCount)
	}
	if stats.TopicCount < 2 {
		t.Errorf("TopicCount = %d, want >= 2", stats.TopicCount)
	}
}

func TestSubscriberCredits(t *testing.T) {
	t.Parallel()

	sub := NewSubscriber("credit-sub", 10, 2)

	evt := &Event{Type: EventJobSubmitted, Timestamp: time.Now().UTC(), Data: json.RawMessage(`{}`)}

	// Should accept 2 events (initial credits).
	if !sub.send(evt) {
		t.Fatal("first send should succeed")
	}
	if !sub.send(evt) {
		t.Fatal("second send should succeed")
	}

	// Out of credits.
	if sub.send(evt) {
		t.Fatal("third send should fail (no credits)")
	}

	// Replenish credits.
	sub.AddCredits(5)
	if sub.Credits() != 5 {
		t.Errorf("Credits = %d, want 5", sub.Credits())
	}

	if !sub.send(evt) {
		t.Fatal("send after credit replenishment should succeed")
	}
}

func TestSubscriberFilter(t *testing.T) {
	t.Parallel()

	sub := NewSubscriber("filter-sub", 10, 100)
	sub.SetFilter(func(e *Event) bool {
		return e.Type == EventJobFailed
	})

	// Should be rejected by filter.
	if sub.send(&Event{Type: EventJobCompleted, Timestamp: time.Now().UTC(), Data: json.RawMessage(`{}`)}) {
		t.Fatal("completed event should be filtered out")
	}

	// Should pass filter.
	if !sub.send(&Event{Type: EventJobFailed, Timestamp: time.Now().UTC(), Data: json.RawMessage(`{}`)}) {
		t.Fatal("failed event should pass filter")
	}
}

func TestSubscriberAccept(t *testing.T) {
	t.Parallel()

	sub := NewSubscriber("accept-sub", 10, 100)
	sub.Accept(EventJobCompleted, EventJobExhausted)

	if sub.send(&Event{Type: EventJobPrinting, Data: json.RawMessage(`{}`)}) {
		t.Fatal("printing event should not be accepted")
	}
	if !sub.send(&Event{Type: EventJobExhausted, Data: json.RawMessage(`{}`)}) {
		t.Fatal("exhausted event should be accepted")
	}

	sub.Accept()
	if !sub.send(&Event{Type: EventJobPrinting, Data: json.RawMessage(`{}`)}) {
		t.Fatal("printing event should pass once the restriction is lifted")
	}
	if sub.Dropped() != 0 {
		t.Errorf("Dropped = %d, want 0 (filtered events are not drops)", sub.Dropped())
	}
}

func TestBrokerStatsCountsDrops(t *testing.T) {
	t.Parallel()

	b := NewBroker(testLogger(), WithDefaultCredits(1))
	sub := b.Subscribe("slow", TopicJobs)

	evt := &Event{Type: EventJobSubmitted, Data: json.RawMessage(`{}`)}
	b.publish(evt)
	b.publish(evt)

	if sub.Dropped() != 1 {
		t.Fatalf("Dropped = %d, want 1", sub.Dropped())
	}
	b.RemoveSubscriber("slow")
	if got := b.Stats().TotalDropped; got != 1 {
		t.Errorf("TotalDropped = %d, want 1 after removal", got)
	}
}

func TestTopicValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		topic string
		valid bool
	}{
		{TopicJobs, true},
		{TopicPrinters, true},
		{TopicFirehose, true},
		{"job:job-123", true},
		{"printer:prn-abc", true},
		{"queue:default", false},
		{"invalid", false},
		{"unknown:entity", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			err := ValidateTopic(tt.topic)
			if tt.valid && err != nil {
				t.Errorf("ValidateTopic(%q) returned error: %v", tt.topic, err)
			}
			if !tt.valid && err == nil {
				t.Errorf("ValidateTopic(%q) should return error", tt.topic)
			}
		})
	}
}

func TestTopicRegistry(t *testing.T) {
	t.Parallel()

	tr := NewTopicRegistry()

	sub1 := NewSubscriber("s1", 10, 100)
	sub2 := NewSubscriber("s2", 10, 100)

	tr.Subscribe("topic-a", sub1)
	tr.Subscribe("topic-a", sub2)
	tr.Subscribe("topic-b", sub1)

	if tr.TopicCount() != 2 {
		t.Errorf("TopicCount = %d, want 2", tr.TopicCount())
	}
	if tr.SubscriberCount("topic-a") != 2 {
		t.Errorf("SubscriberCount(topic-a) = %d, want 2", tr.SubscriberCount("topic-a"))
	}

	// Unsubscribe s2 from topic-a.
	tr.Unsubscribe("topic-a", "s2")
	if tr.SubscriberCount("topic-a") != 1 {
		t.Errorf("SubscriberCount(topic-a) = %d, want 1", tr.SubscriberCount("topic-a"))
	}

	// UnsubscribeAll for s1.
	tr.UnsubscribeAll("s1")
	if tr.TopicCount() != 0 {
		t.Errorf("TopicCount after UnsubscribeAll = %d, want 0", tr.TopicCount())
	}
}

func TestBroadcastDeduplication(t *testing.T) {
	t.Parallel()

	tr := NewTopicRegistry()
	sub := NewSubscriber("dedup-sub", 10, 100)

	// Subscribe to multiple topics.
	tr.Subscribe("topic-x", sub)
	tr.Subscribe("topic-y", sub)

	evt := &Event{Type: EventJobSubmitted, Timestamp: time.Now().UTC(), Data: json.RawMessage(`{}`)}

	delivered := tr.Broadcast([]string{"topic-x", "topic-y"}, evt)
	if delivered != 1 {
		t.Errorf("Broadcast delivered to %d subscribers, want 1 (deduplicated)", delivered)
	}
}

func TestResolveTopics(t *testing.T) {
	t.Parallel()

	tests := []struct {
		evt      *Event
		expected []string
	}{
		{
			evt:      &Event{Type: EventJobSubmitted, Topic: "job:j1"},
			expected: []string{TopicFirehose, TopicJobs, "job:j1"},
		},
		{
			evt:      &Event{Type: EventPrinterStatus, Topic: "printer:p1"},
			expected: []string{TopicFirehose, TopicPrinters, "printer:p1"},
		},
		{
			evt:      &Event{Type: EventQueueProcessed, Topic: ""},
			expected: []string{TopicFirehose},
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.evt.Type), func(t *testing.T) {
			topics := resolveTopics(tt.evt)
			if len(topics) != len(tt.expected) {
				t.Errorf("got %d topics, want %d: %v", len(topics), len(tt.expected), topics)
				return
			}
			for i, topic := range topics {
				if topic != tt.expected[i] {
					t.Errorf("topic[%d] = %q, want %q", i, topic, tt.expected[i])
				}
			}
		})
	}
}

func TestBrokerJobHooks(t *testing.T) {
	t.Parallel()

	b := NewBroker(testLogger())
	j := &job.Job{
		ID:        id.NewJobID(),
		Name:      "PJ00001",
		PrinterID: id.NewPrinterID(),
		State:     job.StateCompleted,
	}

	jobSub := b.Subscribe("job-sub", JobTopic(j.ID.String()))
	printerSub := b.Subscribe("printer-sub", PrinterTopic(j.PrinterID.String()))

	if err := b.OnJobCompleted(context.Background(), j, 1500*time.Millisecond); err != nil {
		t.Fatalf("OnJobCompleted: %v", err)
	}

	for _, sub := range []*Subscriber{jobSub, printerSub} {
		select {
		case evt := <-sub.C():
			if evt.Type != EventJobCompleted {
				t.Errorf("Type = %q, want %q", evt.Type, EventJobCompleted)
			}
			var data JobEventData
			if err := json.Unmarshal(evt.Data, &data); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if data.JobName != "PJ00001" || data.ElapsedMs != 1500 {
				t.Errorf("data = %+v", data)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %s timed out", sub.ID())
		}
	}
}
