package job

import (
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/xraph/spool"
	"github.com/xraph/spool/id"
)

// State represents the lifecycle state of a print job.
type State string

const (
	// StateDraft means the job has been created but not submitted.
	StateDraft State = "draft"
	// StateQueued means the job is waiting for its printer.
	StateQueued State = "queued"
	// StatePrinting means the job was handed to a print sink and is
	// waiting for a completion or failure report.
	StatePrinting State = "printing"
	// StateCompleted means the sink reported a successful print.
	StateCompleted State = "completed"
	// StateFailed means the last attempt failed. A failed job with
	// CompletedAt set is terminal.
	StateFailed State = "failed"
	// StateCancelled means the job was cancelled or merged into a batch.
	StateCancelled State = "cancelled"
)

// Format is the encoding of a job's payload.
type Format string

const (
	FormatPDF    Format = "pdf"
	FormatHTML   Format = "html"
	FormatESCPOS Format = "escpos"
	FormatZPL    Format = "zpl"
)

// Formats lists every supported payload format.
var Formats = []Format{FormatPDF, FormatHTML, FormatESCPOS, FormatZPL}

// Valid reports whether f is a supported format.
func (f Format) Valid() bool {
	return slices.Contains(Formats, f)
}

// ParseFormat parses a format name case-insensitively.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", spool.NewValidationError("format", "invalid format %q, must be one of: pdf, html, escpos, zpl", s)
	}
	return f, nil
}

// Document types with special handling.
const (
	DocTypeReceipt      = "receipt"
	DocTypeLabel        = "label"
	DocTypeBarcode      = "barcode"
	DocTypeProductLabel = "product_label"
	DocTypeLabelBatch   = "label_batch"
	DocTypeOther        = "other"
)

// IsLabelCategory reports whether documents of this type may be merged
// into a label batch.
func IsLabelCategory(documentType string) bool {
	switch documentType {
	case DocTypeLabel, DocTypeBarcode, DocTypeProductLabel:
		return true
	}
	return false
}

// Defaults applied by the submission front ends (service, API) when the
// caller leaves a field unset. The engine itself rejects copies < 1.
const (
	DefaultCopies   = 1
	DefaultPriority = 5
)

// Job is a document destined for a printer.
type Job struct {
	spool.Entity

	ID           id.JobID       `json:"id"`
	Name         string         `json:"name"`
	DocumentType string         `json:"document_type"`
	PrinterID    id.PrinterID   `json:"printer_id"`
	User         string         `json:"user,omitempty"`
	Data         []byte         `json:"data,omitempty"`
	TemplateRef  string         `json:"template_ref,omitempty"`
	TemplateData map[string]any `json:"template_data,omitempty"`
	Format       Format         `json:"format"`
	Copies       int            `json:"copies"`
	Priority     int            `json:"priority"`
	State        State          `json:"state"`
	Error        string         `json:"error_message,omitempty"`
	RetryCount   int            `json:"retry_count"`
	Offline      bool           `json:"offline,omitempty"`
	ParentModel  string         `json:"parent_model,omitempty"`
	ParentID     string         `json:"parent_id,omitempty"`

	SubmittedAt   *time.Time `json:"submitted_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	NextAttemptAt *time.Time `json:"next_attempt_at,omitempty"`
}

// IsTerminal reports whether the job can no longer change state: it is
// completed, cancelled, or failed with a completion date.
func (j *Job) IsTerminal() bool {
	switch j.State {
	case StateCompleted, StateCancelled:
		return true
	case StateFailed:
		return j.CompletedAt != nil
	}
	return false
}

// Clone returns a deep copy of j. Stores hand out clones so callers never
// share mutable state with the persisted record.
func (j *Job) Clone() *Job {
	cp := *j
	cp.Data = slices.Clone(j.Data)
	if j.TemplateData != nil {
		cp.TemplateData = maps.Clone(j.TemplateData)
	}
	cp.SubmittedAt = cloneTime(j.SubmittedAt)
	cp.CompletedAt = cloneTime(j.CompletedAt)
	cp.NextAttemptAt = cloneTime(j.NextAttemptAt)
	return &cp
}

// AppendError appends a line to the job's error message.
func (j *Job) AppendError(line string) {
	if j.Error == "" {
		j.Error = line
		return
	}
	j.Error += "\n" + line
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Now returns a pointer to the current UTC time.
func Now() *time.Time {
	t := time.Now().UTC()
	return &t
}
