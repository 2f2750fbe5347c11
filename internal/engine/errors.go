package engine

import (
	"errors"
	"fmt"
)

// ErrNoTargets means filtering eliminated every candidate table. The
// coordinator treats it as an abort-before-any-measurement condition,
// not a degenerate empty success.
var ErrNoTargets = errors.New("no tables to process after applying exclusions")

// ValidationError is malformed input, detected before any database
// interaction. No run record exists when one of these surfaces.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid request: " + e.Reason
}

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidationError checks if error is a request validation error
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// CollectionError is a measurement query failure for a specific table.
// It aborts the entire run; no partial measurement set is ever committed.
type CollectionError struct {
	Schema string
	Table  string
	Err    error
}

func (e *CollectionError) Error() string {
	return fmt.Sprintf("measurement failed for %s.%s: %v", e.Schema, e.Table, e.Err)
}

func (e *CollectionError) Unwrap() error {
	return e.Err
}

// PersistenceError is a failed write of measurements, snapshots, or run
// status.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
