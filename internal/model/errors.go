package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a uniqueness constraint would be violated.
	ErrConflict = errors.New("conflict")
	// ErrValidation is returned for client-correctable input errors.
	ErrValidation = errors.New("validation error")
	// ErrInvalidJSON is returned when a request body cannot be parsed.
	ErrInvalidJSON = errors.New("invalid JSON")
	// ErrUserNotFound is returned when user is not found in database.
	ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)
	// ErrEmailTaken is returned when another user already owns the email.
	ErrEmailTaken = fmt.Errorf("user with this email already exists: %w", ErrConflict)
)

// FieldError describes a validation error for a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError contains a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation: %s: %s", e.Errors[0].Field, e.Errors[0].Message)
	}

	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.Field+": "+fe.Message)
	}

	return "validation: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Errors: []FieldError{{Field: field, Message: message}}}
}

// DecodeError reports a notification body that could not be decoded.
// The message is left on the queue for redelivery.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode notification: %s: %v", e.Reason, e.Err)
	}

	return "decode notification: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ProcessingError reports a failed side effect for one notification.
type ProcessingError struct {
	Subject Subject
	Err     error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("process %s notification: %v", e.Subject, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// IsDecodeError reports whether err is or wraps a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
