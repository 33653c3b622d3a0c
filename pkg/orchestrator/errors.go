package orchestrator

import (
	"errors"
	"fmt"
)

// ErrorKind is the orchestrator's fatal-error taxonomy. Every abort the
// loop can produce maps to exactly one of these, carried on the terminal
// Error event as well as the returned Go error.
type ErrorKind string

const (
	KindInvalidRequest      ErrorKind = "InvalidRequest"
	KindProviderUnavailable ErrorKind = "ProviderUnavailable"
	KindLLMFailure          ErrorKind = "LLMFailure"
	KindTimeout             ErrorKind = "Timeout"
	KindValidationFailed    ErrorKind = "ValidationFailed"
	KindCancelled           ErrorKind = "Cancelled"
	KindInternal            ErrorKind = "Internal"
)

// Error is the orchestrator's typed error, wrapping whatever underlying
// error triggered it so callers can still unwrap to the original cause.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("orchestrator: %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("orchestrator: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// newError builds an *Error, wrapping cause (which may be nil).
func newError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// KindOf extracts the ErrorKind from err, defaulting to KindInternal for
// any error this package did not itself produce.
func KindOf(err error) ErrorKind {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Kind
	}
	return KindInternal
}
