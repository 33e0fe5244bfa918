package store

import (
	"errors"
	"fmt"
)

// Sentinel errors for the metadata store. Callers map these onto their own
// surface (the HTTP layer turns them into status codes).
var (
	// ErrNotFound is returned when operating on an unknown id.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned for any mutation of the system tag.
	ErrForbidden = errors.New("system tag is immutable")
	// ErrUnavailable is returned for every operation attempted before the
	// store finished initializing. Retryable once ready.
	ErrUnavailable = errors.New("metadata store not ready")
)

// ValidationError reports a missing or empty required field.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
