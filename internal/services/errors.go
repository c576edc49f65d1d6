// Package services holds the query tracker's business logic: the query
// store and its ordering rules, the filtered list view, the one-per-day
// submission guard, and the use-cases built on them.
//
// This file centralizes service-level error values so that handlers can map
// them to HTTP results consistently.
package services

import (
	"errors"
	"strings"

	"github.com/tbourn/go-quetras-backend/internal/domain"
)

// Query errors.
var (
	// ErrQueryNotFound indicates that no record carries the requested id.
	ErrQueryNotFound = errors.New("query not found")

	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrForbidden is returned when the actor is neither the owner nor an
	// admin, or the owner attempts an admin-only change. It is distinct from
	// ErrQueryNotFound.
	ErrForbidden = errors.New("not allowed to modify this query")

	// ErrSubmissionLimit is returned when the student already submitted a
	// query today.
	ErrSubmissionLimit = errors.New("only one query per day is allowed")

	// ErrInvalidTransition is returned for a status change out of a
	// terminal state.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrIDSpaceExhausted means every TQ-#### identifier is in use.
	ErrIDSpaceExhausted = errors.New("query id space exhausted")

	// ErrDuplicateID is returned by Append for an id already in the store.
	ErrDuplicateID = errors.New("query id already exists")

	// ErrPersist wraps a failed write to the KV backend. It is not
	// recoverable by the caller.
	ErrPersist = errors.New("failed to persist")

	// ErrParse marks stored content that could not be decoded. Loads recover
	// from it locally; it is only used for logging.
	ErrParse = errors.New("stored content is malformed")
)

// Account errors.
var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// ValidationError lists the fields rejected before any store mutation.
type ValidationError struct {
	Fields []domain.FieldError
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		names = append(names, f.Field)
	}
	return "validation failed: " + strings.Join(names, ", ")
}

// Is makes errors.Is(err, ErrValidation) true.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(fields ...domain.FieldError) error {
	return &ValidationError{Fields: fields}
}
