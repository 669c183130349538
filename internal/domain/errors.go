package domain

import (
	"errors"
	"fmt"
)

// ValidationError reports a malformed or conflicting user-supplied argument.
// The message is safe to surface verbatim to the caller.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validationf builds a ValidationError with a formatted message.
func Validationf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConfirmationRequired indicates a destructive operation was
	// requested without its explicit confirmation flag.
	ErrConfirmationRequired = errors.New("confirmation required")
)
