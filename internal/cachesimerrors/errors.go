// Package cachesimerrors defines the error taxonomy shared by the engine,
// replay, tuner and controller packages.
package cachesimerrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind identifies one of the five error categories from the error-handling
// design: ConfigInvalid, TraceMalformed, AllocFailed, InvariantViolated and
// PersistenceError.
type Kind int

const (
	// ConfigInvalid means a knob violates I7 or falls outside its
	// declared candidate set.
	ConfigInvalid Kind = iota
	// TraceMalformed means a free arrived before its malloc, a malloc
	// opid repeated, or a replayed pointer is dangling.
	TraceMalformed
	// AllocFailed means the address space has no range that fits.
	AllocFailed
	// InvariantViolated means one of I1-I8 failed a debug-build check.
	InvariantViolated
	// PersistenceError means reading or writing the best-config file
	// failed.
	PersistenceError
)

func (k Kind) String() string {
	switch k {
	case ConfigInvalid:
		return "config invalid"
	case TraceMalformed:
		return "trace malformed"
	case AllocFailed:
		return "alloc failed"
	case InvariantViolated:
		return "invariant violated"
	case PersistenceError:
		return "persistence error"
	default:
		return "unknown"
	}
}

// Error wraps a Kind with a message and, optionally, an underlying cause.
// It implements both error and errors.Causer so pkg/errors.Cause unwraps
// through it.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Cause implements the github.com/pkg/errors Causer interface.
func (e *Error) Cause() error { return e.cause }

// Unwrap supports errors.Is/errors.As from the standard library as well.
func (e *Error) Unwrap() error { return e.cause }

// New builds an Error of the given kind with no underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error of the given kind, wrapping cause with pkg/errors so
// a stack trace is attached at the wrap site.
func Wrap(kind Kind, cause error, message string) *Error {
	if cause == nil {
		return New(kind, message)
	}
	return &Error{Kind: kind, Message: message, cause: errors.Wrap(cause, message)}
}

// Is reports whether err is a cachesimerrors.Error of the given kind,
// unwrapping pkg/errors causes along the way.
func Is(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind == kind
		}
		cause := errors.Cause(err)
		if cause == err {
			return false
		}
		err = cause
	}
	return false
}

// InvariantViolation is panicked (never returned as an error value) when a
// debug-mode I1-I8 check fails, per the error-handling design's "fatal
// abort in debug builds" rule.
type InvariantViolation struct {
	Invariant string // e.g. "I2"
	Detail    string
}

func (v *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant %s violated: %s", v.Invariant, v.Detail)
}
