package referral

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("referral not found")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrInvalidTransition = errors.New("invalid stage transition")
	ErrAlreadyConfirmed  = errors.New("stage already confirmed")
	ErrConflict          = errors.New("concurrent update conflict")
	ErrMissingDocument   = errors.New("final document required before last confirmation")
	ErrClinicLocked      = errors.New("destination clinic cannot change after first confirmation")
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
