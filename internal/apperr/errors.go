// Package apperr holds the domain error taxonomy shared by services, the
// permission evaluator and the HTTP layer.
package apperr

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrAuthentication is returned when credentials are missing, invalid or expired.
	ErrAuthentication = errors.New("authentication required")
	// ErrPermissionDenied is returned on role or ownership mismatch.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrValidation is the sentinel every *ValidationError matches.
	ErrValidation = errors.New("validation failed")
	// ErrDateConflict is returned when a confirmation would overlap another confirmed booking.
	ErrDateConflict = errors.New("these dates are already booked")
	// ErrNotEligible is returned when a review is attempted without a confirmed booking.
	ErrNotEligible = errors.New("you can only review a listing after a confirmed booking")
	// ErrDuplicateReview is returned when the user already reviewed the listing.
	ErrDuplicateReview = errors.New("you have already reviewed this listing")
)

// ValidationError carries field-level detail. The "non_field" key is used for
// problems that don't belong to a single field.
type ValidationError struct {
	Fields map[string]string
}

// NonField is the key for errors that are not tied to one input field.
const NonField = "non_field"

// NewValidationError creates a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// Add records a message for field, keeping the first message per field.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = message
	}
}

// Empty reports whether no field errors have been recorded.
func (e *ValidationError) Empty() bool {
	return e == nil || len(e.Fields) == 0
}

// OrNil returns nil when e is empty, so callers can return it directly.
func (e *ValidationError) OrNil() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

// Is makes errors.Is(err, ErrValidation) true for any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
