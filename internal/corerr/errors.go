// Package corerr defines the error taxonomy shared across the pipeline,
// container codec, and restore engine.
package corerr

import (
	"errors"
	"fmt"
)

// Kind identifies the category of failure a core operation reports. The
// set is fixed and mirrors the outward contract of run() and restore():
// callers branch on Kind, never on error strings.
type Kind string

const (
	InvalidConfig     Kind = "invalid_config"
	InvalidFormat     Kind = "invalid_format"
	CorruptData       Kind = "corrupt_data"
	IntegrityFailure  Kind = "integrity_failure"
	IoError           Kind = "io_error"
	ResourceExhausted Kind = "resource_exhausted"
	Cancelled         Kind = "cancelled"
	PartialFailure    Kind = "partial_failure"
)

// Error wraps an underlying error with the operation that produced it and
// a Kind a caller can switch on. Sequence numbers go in Op ("chunk 42"),
// never key material or plaintext.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an *Error, wrapping err.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err (or anything it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind of err, or "" if err does not carry one.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
