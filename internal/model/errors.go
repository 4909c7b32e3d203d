package model

import "fmt"

// ValidationError is raised by entity validators and by the invariant
// engine when input is malformed or a derived field cannot be resolved.
// Field names the offending attribute so the surface layer can report it
// next to the right input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError builds a field level validation error.
func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
