package job

import (
	"github.com/xraph/spool"
)

// Validate checks the fields a job must carry before it can be submitted.
func (j *Job) Validate() error {
	if j.PrinterID.IsNil() {
		return spool.NewValidationError("printer_id", "printer is required")
	}
	if len(j.Data) == 0 && j.TemplateRef == "" {
		return spool.NewValidationError("data", "either print data or a template must be provided")
	}
	if !j.Format.Valid() {
		return spool.NewValidationError("format", "invalid format %q", j.Format)
	}
	return j.ValidateCounters()
}

// ValidateCounters checks the numeric invariants that hold for every
// persisted job: copies >= 1, priority >= 0 and retry_count >= 0.
func (j *Job) ValidateCounters() error {
	if j.Copies < 1 {
		return spool.NewValidationError("copies", "must be at least 1, got %d", j.Copies)
	}
	if j.Priority < 0 {
		return spool.NewValidationError("priority", "must be non-negative, got %d", j.Priority)
	}
	if j.RetryCount < 0 {
		return spool.NewValidationError("retry_count", "must be non-negative, got %d", j.RetryCount)
	}
	return nil
}
