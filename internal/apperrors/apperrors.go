// Package apperrors defines the error taxonomy shared by every component:
// NotFound, InvalidInput, Conflict, ExternalService, Internal, Timeout, and
// Canceled. Callers use errors.Is against the exported sentinels and
// errors.As against *Error to recover the kind and field context.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation and telemetry purposes.
type Kind string

const (
	NotFound        Kind = "not_found"
	InvalidInput    Kind = "invalid_input"
	Conflict        Kind = "conflict"
	ExternalService Kind = "external_service"
	Internal        Kind = "internal"
	Timeout         Kind = "timeout"
	Canceled        Kind = "canceled"
)

// Sentinels for errors.Is comparisons against a bare kind.
var (
	ErrNotFound        = &Error{Kind: NotFound, Message: "not found"}
	ErrInvalidInput    = &Error{Kind: InvalidInput, Message: "invalid input"}
	ErrConflict        = &Error{Kind: Conflict, Message: "conflict"}
	ErrExternalService = &Error{Kind: ExternalService, Message: "external service failure"}
	ErrInternal        = &Error{Kind: Internal, Message: "internal error"}
	ErrTimeout         = &Error{Kind: Timeout, Message: "timeout"}
	ErrCanceled        = &Error{Kind: Canceled, Message: "canceled"}
)

// Error carries a taxonomy Kind plus a human-readable message and optional
// wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, apperrors.ErrNotFound) match any *Error of that Kind,
// regardless of message or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func new_(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NewNotFound builds a NotFound error, e.g. NewNotFound("operation %s", id).
func NewNotFound(format string, args ...any) error { return new_(NotFound, format, args...) }

// NewInvalidInput builds an InvalidInput error.
func NewInvalidInput(format string, args ...any) error { return new_(InvalidInput, format, args...) }

// NewConflict builds a Conflict error.
func NewConflict(format string, args ...any) error { return new_(Conflict, format, args...) }

// NewInternal builds an Internal error.
func NewInternal(format string, args ...any) error { return new_(Internal, format, args...) }

// NewTimeout builds a Timeout error.
func NewTimeout(format string, args ...any) error { return new_(Timeout, format, args...) }

// NewCanceled builds a Canceled error.
func NewCanceled(format string, args ...any) error { return new_(Canceled, format, args...) }

// Wrap marks cause as an ExternalService failure with added context.
func Wrap(cause error, format string, args ...any) error {
	return &Error{Kind: ExternalService, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf extracts the Kind of err, defaulting to Internal for unrecognized
// errors so every failure path is still classifiable.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}
