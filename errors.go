package spool

import (
	"errors"
	"fmt"
)

var (
	// Store errors.
	ErrNoStore         = errors.New("spool: no store configured")
	ErrStoreClosed     = errors.New("spool: store closed")
	ErrMigrationFailed = errors.New("spool: migration failed")

	// Not found errors.
	ErrJobNotFound      = errors.New("spool: job not found")
	ErrPrinterNotFound  = errors.New("spool: printer not found")
	ErrTemplateNotFound = errors.New("spool: template not found")

	// Conflict errors.
	ErrJobAlreadyExists = errors.New("spool: job already exists")
	ErrPrinterExists    = errors.New("spool: printer name already in use")
	ErrPrinterInUse     = errors.New("spool: printer is referenced by print jobs")

	// Printer availability errors.
	ErrPrinterInactive    = errors.New("spool: printer is not active")
	ErrNoPrinterAvailable = errors.New("spool: no printer available")

	// State errors.
	ErrInvalidState       = errors.New("spool: invalid state transition")
	ErrJobClaimed         = errors.New("spool: job already claimed")
	ErrMaxRetriesExceeded = errors.New("spool: max retries exceeded")

	// ErrValidation is wrapped by every ValidationError.
	ErrValidation = errors.New("spool: validation failed")
)

// ValidationError reports malformed input: a missing payload, out-of-range
// copies or priority, a format the target printer cannot handle, or a batch
// spanning several printers. Validation errors are always returned to the
// caller synchronously and are never retried.
type ValidationError struct {
	Field string
	Msg   string
}

// NewValidationError returns a ValidationError for field.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "spool: validation: " + e.Msg
	}
	return fmt.Sprintf("spool: validation: %s: %s", e.Field, e.Msg)
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error { return ErrValidation }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound reports whether err is one of the not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrJobNotFound) ||
		errors.Is(err, ErrPrinterNotFound) ||
		errors.Is(err, ErrTemplateNotFound)
}
