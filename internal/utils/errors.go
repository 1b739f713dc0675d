package utils

import (
	"errors"
	"fmt"
)

// ValidationError reports caller input that can never be processed, such as a
// malformed pattern or an out-of-range configuration value.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns the error message string.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError with a specific message.
func NewValidationError(message string) error {
	return &ValidationError{
		Message: message,
	}
}

// NewValidationErrorf creates a new ValidationError with a formatted message.
func NewValidationErrorf(format string, args ...interface{}) error {
	return &ValidationError{
		Message: fmt.Sprintf(format, args...),
	}
}

// NewFieldError creates a ValidationError bound to a named configuration or input field.
func NewFieldError(field string, format string, args ...interface{}) error {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

// IsValidationError reports whether err, or anything it wraps, is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
