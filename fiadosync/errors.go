package fiadosync

import (
	"errors"
	"fmt"
	"strings"
)

// Error sentinels for handler-boundary mapping.
var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ValidationError reports required fields missing from a request body.
// Surfaced as 400 with the field list.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("faltan campos requeridos: %s", strings.Join(e.Missing, ", "))
}

// NewValidationError builds a ValidationError from missing field names.
func NewValidationError(missing ...string) error {
	return &ValidationError{Missing: missing}
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
