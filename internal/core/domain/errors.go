package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a record lookup by id has no match.
	ErrNotFound = errors.New("not found")

	// ErrConflict is reserved for registration collisions. Registration upserts
	// by vehicle number, so the registry never returns it today.
	ErrConflict = errors.New("conflict")
)

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError rejects malformed or missing input before anything is stored or dispatched.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// DatastoreError is a registry read or write failure. It aborts the enclosing operation.
type DatastoreError struct {
	Op  string
	Err error
}

func (e *DatastoreError) Error() string {
	return fmt.Sprintf("datastore %s: %v", e.Op, e.Err)
}

func (e *DatastoreError) Unwrap() error { return e.Err }

// GatewayError is a failed notification for a single candidate. It is recorded
// on the dispatch result and never escalated.
type GatewayError struct {
	AmbulanceID string
	Err         error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("notify ambulance %s: %v", e.AmbulanceID, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }
