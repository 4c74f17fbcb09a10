// Package apperr defines the error kinds the storage core surfaces to
// callers. The core never formats user-facing strings; the UI layer maps
// these kinds to whatever it presents.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is the kind behind every ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is the kind behind every NotFoundError.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned on a unique-key collision.
	ErrConflict = errors.New("conflict")

	// ErrForbidden is returned when the acting identity does not match the
	// approval row.
	ErrForbidden = errors.New("forbidden")

	// ErrAlreadyDecided is returned when an approval row is already
	// terminal.
	ErrAlreadyDecided = errors.New("already decided")

	// ErrOutOfOrder is returned when an approval is attempted at a step
	// other than the request's current step.
	ErrOutOfOrder = errors.New("out of order")

	// ErrBackendUnavailable is returned when the selected backend cannot
	// be reached at all.
	ErrBackendUnavailable = errors.New("backend unavailable")
)

// ValidationError names the structurally invalid input field.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Field)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Validation builds a ValidationError for one field.
func Validation(field string) error {
	return &ValidationError{Field: field}
}

// NotFoundError names the missing identifier.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found: %s", e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// NotFound builds a NotFoundError for one id.
func NotFound(id string) error {
	return &NotFoundError{ID: id}
}
