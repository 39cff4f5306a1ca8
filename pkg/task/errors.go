package task

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by stores when a task ID has no record.
var ErrNotFound = errors.New("task not found")

// ErrReferenceNotFound matches every NotFoundError.
var ErrReferenceNotFound = errors.New("reference not found")

// Kind classifies a validation failure.
type Kind string

const (
	KindMissingOrInvalidReference Kind = "missing_or_invalid_reference"
	KindInvalidEnumValue          Kind = "invalid_enum_value"
	KindMissingField              Kind = "missing_field"
	KindMalformedTimestamp        Kind = "malformed_timestamp"
	KindPastDueDate               Kind = "past_due_date"
)

// ValidationError is a client-correctable problem with a request.
type ValidationError struct {
	Kind    Kind
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NotFoundError reports a referenced Application or Task that doesn't exist.
type NotFoundError struct {
	Entity string // "Application" or "Task"
	ID     string
}

func (e *NotFoundError) Error() string { return e.Entity + " not found" }

// Is makes errors.Is(err, ErrReferenceNotFound) hold.
func (e *NotFoundError) Is(target error) bool { return target == ErrReferenceNotFound }

// PersistenceError is a backing-store fault. It is not client-correctable.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsClientError reports whether err is something the caller can fix:
// a validation failure or a missing reference.
func IsClientError(err error) bool {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return true
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return false
	}
	return errors.Is(err, ErrReferenceNotFound)
}
