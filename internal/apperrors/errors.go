// Package apperrors defines the error kinds the core distinguishes (§7):
// Validation, Transport, Persistence, Cancelled and Malformed. NotFound is
// deliberately not an error kind here — it is a first-class LyricsRecord
// variant, never wrapped in an error.
package apperrors

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies an error for scheduler counting and propagation policy.
type Kind string

const (
	// KindValidation marks a configuration or input value failing a range/shape check.
	KindValidation Kind = "validation"
	// KindTransport marks exhausted retries against a remote endpoint.
	KindTransport Kind = "transport"
	// KindPersistence marks a database or filesystem operation failure.
	KindPersistence Kind = "persistence"
	// KindCancelled marks an operation aborted by a shutdown request.
	KindCancelled Kind = "cancelled"
	// KindMalformed marks a remote payload that failed to decode.
	KindMalformed Kind = "malformed"
)

// Error wraps an underlying cause with a Kind for dispatch by callers
// (e.g. the scheduler decides whether to count an outcome as "errored").
type Error struct {
	Kind  Kind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return string(e.Kind)
	}

	return string(e.Kind) + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New wraps cause with kind. A nil cause is allowed for sentinel-style errors.
func New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// Newf wraps a formatted message under kind.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Cause: fmt.Errorf(format, args...)}
}

// Is reports whether err (or something it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}

	return false
}

// FromContext maps a context cancellation/deadline error to KindCancelled,
// the convention every suspension point (§5) in this module follows.
func FromContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return New(KindCancelled, err)
	}

	return nil
}
