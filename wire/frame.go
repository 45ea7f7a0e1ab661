// Package wire implements the spool wire protocol: a frame-based
// request/response and event protocol carried over a WebSocket. Clients
// authenticate with the first frame, then submit and manage print jobs
// and subscribe to stream topics on the same connection.
package wire

import (
	"encoding/json"
	"strconv"
	"sync/atomic"
	"time"
)

// FrameType identifies the frame category.
type FrameType string

const (
	FrameRequest  FrameType = "request"
	FrameResponse FrameType = "response"
	FrameEvent    FrameType = "event"
	FrameErr      FrameType = "error"
	FramePing     FrameType = "ping"
	FramePong     FrameType = "pong"
)

// Frame is the message envelope. Every message exchanged over the
// protocol is a Frame.
type Frame struct {
	// ID uniquely identifies this frame.
	ID string `json:"id" msgpack:"id"`

	// Type categorizes the frame.
	Type FrameType `json:"type" msgpack:"type"`

	// Method names the operation for request frames (e.g., "job.submit").
	Method string `json:"method,omitempty" msgpack:"method,omitempty"`

	// CorrelID links a response to its originating request.
	CorrelID string `json:"correl_id,omitempty" msgpack:"correl_id,omitempty"`

	// Token carries auth credentials (typically only on the auth frame).
	Token string `json:"token,omitempty" msgpack:"token,omitempty"`

	// Data carries the method-specific payload.
	Data json.RawMessage `json:"data,omitempty" msgpack:"data,omitempty"`

	// Error carries error details for error frames.
	Error *ErrorDetail `json:"error,omitempty" msgpack:"error,omitempty"`

	// Channel identifies the subscription channel for event frames.
	Channel string `json:"channel,omitempty" msgpack:"channel,omitempty"`

	// Credits replenishes flow-control credits (backpressure).
	Credits int `json:"credits,omitempty" msgpack:"credits,omitempty"`

	// Timestamp records when this frame was created.
	Timestamp time.Time `json:"ts" msgpack:"ts"`
}

// ErrorDetail describes an error in an error frame.
type ErrorDetail struct {
	Code    int    `json:"code" msgpack:"code"`
	Message string `json:"message" msgpack:"message"`
}

// ── Well-known methods ──────────────────────────────

const (
	MethodAuth = "auth"

	// Job methods.
	MethodJobSubmit = "job.submit"
	MethodJobGet    = "job.get"
	MethodJobList   = "job.list"
	MethodJobCancel = "job.cancel"
	MethodJobRetry  = "job.retry"

	// Printer and queue methods.
	MethodPrinterList  = "printer.list"
	MethodQueueProcess = "queue.process"

	// Subscription methods.
	MethodSubscribe   = "subscribe"
	MethodUnsubscribe = "unsubscribe"

	MethodStats = "stats"
)

// ── Well-known error codes ──────────────────────────

const (
	ErrCodeBadRequest     = 400
	ErrCodeUnauthorized   = 401
	ErrCodeForbidden      = 403
	ErrCodeNotFound       = 404
	ErrCodeMethodNotFound = 405
	ErrCodeConflict       = 409
	ErrCodeUnprocessable  = 422
	ErrCodeInternal       = 500
)

// ── Request/Response payloads ───────────────────────

// AuthRequest is sent by clients to authenticate.
type AuthRequest struct {
	Token  string `json:"token"`
	Format string `json:"format,omitempty"` // "json" (default) or "msgpack"
}

// AuthResponse is returned after successful authentication.
type AuthResponse struct {
	Format    string `json:"format"`
	SessionID string `json:"session_id"`
}

// JobSubmitRequest submits a print job. Either Data or Template must be
// set. An empty Printer selects one from DocumentType, Location and
// Department.
type JobSubmitRequest struct {
	Printer      string         `json:"printer,omitempty"`
	DocumentType string         `json:"document_type,omitempty"`
	Location     string         `json:"location,omitempty"`
	Department   string         `json:"department,omitempty"`
	Format       string         `json:"format,omitempty"`
	Data         []byte         `json:"data,omitempty"`
	Template     string         `json:"template,omitempty"`
	TemplateData map[string]any `json:"template_data,omitempty"`
	Copies       int            `json:"copies,omitempty"`
	Priority     int            `json:"priority,omitempty"`
	User         string         `json:"user,omitempty"`
	ParentModel  string         `json:"parent_model,omitempty"`
	ParentID     string         `json:"parent_id,omitempty"`
}

// JobSubmitResponse confirms job creation.
type JobSubmitResponse struct {
	JobID     string `json:"job_id"`
	Name      string `json:"name"`
	PrinterID string `json:"printer_id"`
	State     string `json:"state"`
	Offline   bool   `json:"offline,omitempty"`
}

// JobRequest names a job for get, cancel and retry.
type JobRequest struct {
	JobID string `json:"job_id"`
}

// JobListRequest filters job.list.
type JobListRequest struct {
	State     string `json:"state,omitempty"`
	PrinterID string `json:"printer_id,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
}

// JobActionResponse reports whether a cancel or retry took effect.
type JobActionResponse struct {
	JobID string `json:"job_id"`
	OK    bool   `json:"ok"`
	State string `json:"state"`
}

// PrinterListRequest filters printer.list.
type PrinterListRequest struct {
	Type       string `json:"type,omitempty"`
	ActiveOnly bool   `json:"active_only,omitempty"`
}

// SubscribeRequest subscribes to a topic channel.
type SubscribeRequest struct {
	Channel string `json:"channel"`
	// Types, when set, narrows every event the connection receives to
	// these event types.
	Types []string `json:"types,omitempty"`
}

// UnsubscribeRequest removes a subscription.
type UnsubscribeRequest struct {
	Channel string `json:"channel"`
}

// NewRequestFrame creates a new request frame.
func NewRequestFrame(id, method string, data any) (*Frame, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Frame{
		ID:        id,
		Type:      FrameRequest,
		Method:    method,
		Data:      raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

// NewResponseFrame creates a response to a request.
func NewResponseFrame(correlID string, data any) (*Frame, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Frame{
		ID:        GenerateFrameID(),
		Type:      FrameResponse,
		CorrelID:  correlID,
		Data:      raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

// NewErrorFrame creates an error response to a request.
func NewErrorFrame(correlID string, code int, message string) *Frame {
	return &Frame{
		ID:       GenerateFrameID(),
		Type:     FrameErr,
		CorrelID: correlID,
		Error: &ErrorDetail{
			Code:    code,
			Message: message,
		},
		Timestamp: time.Now().UTC(),
	}
}

// NewEventFrame creates an event frame for a subscription channel.
func NewEventFrame(channel string, data any) (*Frame, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Frame{
		ID:        GenerateFrameID(),
		Type:      FrameEvent,
		Channel:   channel,
		Data:      raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

var frameSeq atomic.Uint64

// GenerateFrameID returns a new frame ID, unique within the process.
func GenerateFrameID() string {
	return time.Now().UTC().Format("20060102150405") + "-" + strconv.FormatUint(frameSeq.Add(1), 10)
}
