package stream

import (
	"fmt"
	"strings"
	"sync"
)

// Topic names follow a pattern:
//
//	job:<jobID>         events for a specific job
//	printer:<printerID> job and status events for one printer
//	jobs                all job lifecycle events
//	printers            all printer status events
//	firehose            everything

const (
	TopicJobs     = "jobs"
	TopicPrinters = "printers"
	TopicFirehose = "firehose"
)

// JobTopic returns the topic name for a specific job.
func JobTopic(jobID string) string { return "job:" + jobID }

// PrinterTopic returns the topic name for a printer.
func PrinterTopic(printerID string) string { return "printer:" + printerID }

// TopicRegistry maps topic names to their subscribers. Topics exist only
// while they have at least one subscriber. It is safe for concurrent use.
type TopicRegistry struct {
	mu      sync.RWMutex
	members map[string]map[string]*Subscriber
}

// NewTopicRegistry creates an empty topic registry.
func NewTopicRegistry() *TopicRegistry {
	return &TopicRegistry{members: make(map[string]map[string]*Subscriber)}
}

// Subscribe adds sub to topic.
func (tr *TopicRegistry) Subscribe(topic string, sub *Subscriber) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	set := tr.members[topic]
	if set == nil {
		set = make(map[string]*Subscriber)
		tr.members[topic] = set
	}
	set[sub.ID()] = sub
	sub.addTopic(topic)
}

// Unsubscribe removes the subscriber from topic.
func (tr *TopicRegistry) Unsubscribe(topic, subscriberID string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.leave(topic, subscriberID)
}

// UnsubscribeAll removes the subscriber from every topic it joined.
func (tr *TopicRegistry) UnsubscribeAll(subscriberID string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	for topic := range tr.members {
		tr.leave(topic, subscriberID)
	}
}

// leave must be called with mu held.
func (tr *TopicRegistry) leave(topic, subscriberID string) {
	set := tr.members[topic]
	if sub, ok := set[subscriberID]; ok {
		sub.removeTopic(topic)
		delete(set, subscriberID)
	}
	if len(set) == 0 {
		delete(tr.members, topic)
	}
}

// Broadcast sends evt once to every subscriber of any of topics and
// returns how many accepted it. A subscriber on several of the topics
// still receives a single copy.
func (tr *TopicRegistry) Broadcast(topics []string, evt *Event) int {
	delivered := 0
	for _, sub := range tr.audience(topics) {
		if sub.send(evt) {
			delivered++
		}
	}
	return delivered
}

// audience snapshots the distinct subscribers of topics so sends happen
// without the lock.
func (tr *TopicRegistry) audience(topics []string) map[string]*Subscriber {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	out := make(map[string]*Subscriber)
	for _, topic := range topics {
		for subID, sub := range tr.members[topic] {
			out[subID] = sub
		}
	}
	return out
}

// TopicCount returns the number of topics with subscribers.
func (tr *TopicRegistry) TopicCount() int {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	return len(tr.members)
}

// SubscriberCount returns the number of subscribers on topic.
func (tr *TopicRegistry) SubscriberCount(topic string) int {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	return len(tr.members[topic])
}

// resolveTopics returns all topics an event should be published to
// based on its type and entity topics.
func resolveTopics(evt *Event, extra ...string) []string {
	topics := []string{TopicFirehose}

	evtType := string(evt.Type)
	switch {
	case strings.HasPrefix(evtType, "job."):
		topics = append(topics, TopicJobs)
	case strings.HasPrefix(evtType, "printer."):
		topics = append(topics, TopicPrinters)
	}
	// Queue summaries only go to firehose.

	if evt.Topic != "" {
		topics = append(topics, evt.Topic)
	}
	for _, t := range extra {
		if t != "" {
			topics = append(topics, t)
		}
	}

	return topics
}

// ParseTopicEntity splits an entity topic such as "printer:prn_01h..."
// into its kind and ID. Global topics yield empty strings.
func ParseTopicEntity(topic string) (entityType, entityID string) {
	entityType, entityID, ok := strings.Cut(topic, ":")
	if !ok {
		return "", ""
	}
	return entityType, entityID
}

// ValidateTopic checks whether a topic string is valid.
func ValidateTopic(topic string) error {
	switch topic {
	case TopicJobs, TopicPrinters, TopicFirehose:
		return nil
	}

	entityType, entityID := ParseTopicEntity(topic)
	if entityType == "" || entityID == "" {
		return fmt.Errorf("stream: invalid topic %q", topic)
	}

	switch entityType {
	case "job", "printer":
		return nil
	default:
		return fmt.Errorf("stream: unknown topic entity type %q", entityType)
	}
}
