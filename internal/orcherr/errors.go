// Package orcherr implements the kernel's closed error-kind taxonomy
// (spec §7) layered over the sentinel domain errors used elsewhere in this
// repo. A *Error carries a Kind from the closed set plus, where one
// applies, a wrapped sentinel so callers can still use errors.Is against
// the underlying domain error.
package orcherr

import (
	"errors"
	"fmt"
)

// Kind is the closed set of error kinds the orchestrator can terminate a
// turn with.
type Kind string

const (
	ProviderUnreachable    Kind = "Provider.Unreachable"
	ProviderRateLimited    Kind = "Provider.RateLimited"
	ProviderInvalidRequest Kind = "Provider.InvalidRequest"
	ProviderOther          Kind = "Provider.Other"
	StreamTimeout          Kind = "Stream.Timeout"
	StreamParseFailure     Kind = "Stream.ParseFailureStreak"
	StreamCancelled        Kind = "Stream.Cancelled"
	ReducerRejected        Kind = "Reducer.Rejected"
	StoreUnavailable       Kind = "Store.Unavailable"
	InternalBug            Kind = "Internal.Bug"
)

// Retriable reports whether the kind is retried once (with 1s backoff)
// before being treated as terminal (spec §7: Provider.Unreachable and
// Provider.RateLimited are retriable; everything else is not).
func (k Kind) Retriable() bool {
	return k == ProviderUnreachable || k == ProviderRateLimited
}

// Terminal reports whether this kind ends the turn outright rather than
// being recovered locally (a per-op Reducer.Rejected is never terminal).
func (k Kind) Terminal() bool {
	return k != ReducerRejected
}

// Error is the typed error value carried through the orchestrator. message
// is the user-safe string emitted on stream.error; the wrapped error (if
// any) stays out of that string and is only visible to Unwrap/errors.Is.
type Error struct {
	Kind    Kind
	Message string
	err     error
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches kind and a user-safe message to an underlying error (often
// a sentinel from the domain package) while preserving it for errors.Is.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, err: err}
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.err }

// As reports whether err is (or wraps) an *orcherr.Error and, if so,
// returns it.
func As(err error) (*Error, bool) {
	var oe *Error
	if errors.As(err, &oe) {
		return oe, true
	}
	return nil, false
}
