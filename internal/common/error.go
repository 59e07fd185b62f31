// Package common defines the error taxonomy shared by the repositories,
// services and the HTTP layer. Callers should use errors.Is to match the
// sentinel kinds and errors.As to get at a *ValidationError.
package common

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed or missing input. The caller may re-prompt.
	ErrValidation = errors.New("validation error")

	// ErrAuthentication marks a credential mismatch or an unknown identity.
	ErrAuthentication = errors.New("authentication failed")

	// ErrNotFound marks a record that is absent or not owned by the caller.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned by repositories on a unique key violation.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidToken is returned for malformed, expired or revoked session tokens.
	ErrInvalidToken = errors.New("invalid token")
)

// ValidationError names the offending input field. It matches ErrValidation.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
