package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure kinds a run distinguishes.
// Callers classify with errors.Is.
var (
	// ErrInvalidPath rejects traversal attempts and control characters in
	// source file references.
	ErrInvalidPath = errors.New("invalid source path")

	// ErrUnknownManufacturer means the slug has no profile in the registry.
	ErrUnknownManufacturer = errors.New("unknown manufacturer")

	// ErrLockTimeout means the per-table advisory lock was not obtained
	// within the configured timeout. The run must not write.
	ErrLockTimeout = errors.New("table lock not acquired within timeout")
)

// ParseError wraps a source file that could not be opened or read.
// Fatal to the run, not to the process.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// PersistenceError wraps a failure of the query interface on a
// non-row-level operation (schema creation, lock call, run bookkeeping).
// Fatal to the run; row-level upsert failures are never wrapped in this.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
