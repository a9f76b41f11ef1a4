// Package errs implements the error-kind taxonomy used across the archive
// engine. Every fallible call site wraps its error with a context frame
// rather than relying on panics or side-channel error codes, the Go
// re-expression of the "exception stacking" design used by the original
// implementation.
package errs

import (
	"errors"
	"fmt"
)

// Kind discriminates the class of failure at the API boundary.
type Kind int

const (
	// KindRange covers bad arguments, bad computed values, CRC mismatches
	// and malformed archive data.
	KindRange Kind = iota
	// KindDeci is a decimal-string conversion failure.
	KindDeci
	// KindMemory is an allocation failure.
	KindMemory
	// KindHardware wraps an I/O error reported verbatim by the OS.
	KindHardware
	// KindFeature is a request for a compile-time-absent option (a
	// compression family, cipher family, or EA support).
	KindFeature
	// KindUserAbort is raised when the user answers "no" to a prompt; it
	// always propagates to the top unmodified.
	KindUserAbort
	// KindData marks that at least one file could not be saved, restored
	// or matched. Data errors are collected, not fatal to the walk.
	KindData
	// KindCancelled is raised by cooperative cancellation. It must never
	// be swallowed except by the top-level façade.
	KindCancelled
	// KindBug marks a violated invariant.
	KindBug
)

func (k Kind) String() string {
	switch k {
	case KindRange:
		return "range"
	case KindDeci:
		return "deci"
	case KindMemory:
		return "memory"
	case KindHardware:
		return "hardware"
	case KindFeature:
		return "feature"
	case KindUserAbort:
		return "user-abort"
	case KindData:
		return "data"
	case KindCancelled:
		return "thread-cancel"
	case KindBug:
		return "bug"
	default:
		return "unknown"
	}
}

// ExitCode maps a Kind to the process exit code table from the CLI surface
// specification.
func (k Kind) ExitCode() int {
	switch k {
	case KindUserAbort:
		return 5
	case KindFeature:
		return 6
	case KindData:
		return 4
	case KindRange:
		return 11
	case KindHardware:
		return 7
	case KindBug:
		return 3
	default:
		return 8
	}
}

// Error is the concrete error type carrying a Kind and a chain of context
// frames accumulated as the error is rethrown up the call stack.
type Error struct {
	kind   Kind
	frames []string
	cause  error
}

// New creates a root Error of the given kind with a message.
func New(kind Kind, msg string) *Error {
	return &Error{kind: kind, frames: []string{msg}}
}

// Newf is New with fmt.Sprintf formatting.
func Newf(kind Kind, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

// Wrap attaches a context frame to err, preserving its Kind if err is
// already an *Error, otherwise classifying it as KindHardware (the
// catch-all for errors originating outside this package, typically from
// the OS).
func Wrap(err error, context string) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return &Error{kind: e.kind, frames: append(append([]string{}, e.frames...), context), cause: e.cause}
	}
	return &Error{kind: KindHardware, frames: []string{context}, cause: err}
}

// Wrapf is Wrap with fmt.Sprintf formatting for the context frame.
func Wrapf(err error, format string, args ...any) *Error {
	return Wrap(err, fmt.Sprintf(format, args...))
}

func (e *Error) Error() string {
	msg := ""
	for i := len(e.frames) - 1; i >= 0; i-- {
		if i != len(e.frames)-1 {
			msg += ": "
		}
		msg += e.frames[i]
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return fmt.Sprintf("[%s] %s", e.kind, msg)
}

func (e *Error) Unwrap() error { return e.cause }

// Kind returns the error's classification.
func (e *Error) Kind() Kind { return e.kind }

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.kind == kind
	}
	return false
}
