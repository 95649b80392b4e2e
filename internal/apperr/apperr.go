// Package apperr defines the typed error kinds shared across the service.
// Handlers never inspect backend errors directly; every failure is classified
// here once and mapped to a transport status in the response package.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	// Validation failures, resolved before any network call.
	KindNoFile Kind = iota
	KindBadExtension
	KindBadName

	// Conflict failures.
	KindAlreadyExists

	// Credential failures. Non-retryable within a request.
	KindNotAuthenticated
	KindCredentialExpired
	KindInvalidConfig

	// Backend failures. Timeout is safe for the caller to retry.
	KindBackendTimeout
	KindBackendUnavailable

	// Authorization-flow failures.
	KindStateMismatch
	KindCodeExchangeFailed

	KindNotFound
)

// String returns a short stable label for the kind.
func (k Kind) String() string {
	switch k {
	case KindNoFile:
		return "no_file"
	case KindBadExtension:
		return "bad_extension"
	case KindBadName:
		return "bad_name"
	case KindAlreadyExists:
		return "already_exists"
	case KindNotAuthenticated:
		return "not_authenticated"
	case KindCredentialExpired:
		return "credential_expired"
	case KindInvalidConfig:
		return "invalid_config"
	case KindBackendTimeout:
		return "backend_timeout"
	case KindBackendUnavailable:
		return "backend_unavailable"
	case KindStateMismatch:
		return "state_mismatch"
	case KindCodeExchangeFailed:
		return "code_exchange_failed"
	case KindNotFound:
		return "not_found"
	}
	return "unknown"
}

// Error is a classified failure with a user-visible message.
// Msg must never contain credential material; wrapped causes stay
// server-side and are only logged.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

// New creates an Error with the given kind and message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap creates an Error that carries an underlying cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err if it is (or wraps) an *Error.
func KindOf(err error) (Kind, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	return 0, false
}

// IsKind reports whether err is classified with the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
