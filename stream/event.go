// Package stream fans spool lifecycle events out to live subscribers. The
// Broker is registered as an extension and republishes each hook as an
// Event on topic channels that the websocket feed consumes.
package stream

import (
	"encoding/json"
	"time"
)

// EventType identifies the kind of lifecycle event.
type EventType string

const (
	// Job events.
	EventJobSubmitted EventType = "job.submitted"
	EventJobPrinting  EventType = "job.printing"
	EventJobCompleted EventType = "job.completed"
	EventJobFailed    EventType = "job.failed"
	EventJobRetrying  EventType = "job.retrying"
	EventJobExhausted EventType = "job.exhausted"
	EventJobCancelled EventType = "job.cancelled"
	EventJobBatched   EventType = "job.batched"

	// Printer events.
	EventPrinterStatus EventType = "printer.status"

	// Queue events.
	EventQueueProcessed EventType = "queue.processed"
)

// Event is the envelope sent to subscribers on a topic channel.
type Event struct {
	// Type identifies the lifecycle event.
	Type EventType `json:"type"`

	// Timestamp is when the event was emitted.
	Timestamp time.Time `json:"ts"`

	// Topic is the entity channel this event was published on.
	Topic string `json:"topic"`

	// Data is the event-specific payload.
	Data json.RawMessage `json:"data"`
}

// JobEventData is the payload for job lifecycle events.
type JobEventData struct {
	JobID         string `json:"job_id"`
	JobName       string `json:"job_name"`
	PrinterID     string `json:"printer_id"`
	State         string `json:"state"`
	User          string `json:"user,omitempty"`
	ElapsedMs     int64  `json:"elapsed_ms,omitempty"`
	Error         string `json:"error,omitempty"`
	Attempt       int    `json:"attempt,omitempty"`
	NextAttemptAt string `json:"next_attempt_at,omitempty"`
	Merged        int    `json:"merged,omitempty"`
}

// PrinterEventData is the payload for printer status events.
type PrinterEventData struct {
	PrinterID string `json:"printer_id"`
	Name      string `json:"name"`
	Active    bool   `json:"active"`
}

// QueueEventData is the payload for queue pass summaries.
type QueueEventData struct {
	Processed       int   `json:"processed"`
	Failed          int   `json:"failed"`
	PrintersScanned int   `json:"printers_scanned"`
	Skipped         int   `json:"skipped"`
	ElapsedMs       int64 `json:"elapsed_ms"`
}
