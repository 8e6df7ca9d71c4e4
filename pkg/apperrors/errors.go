// Package apperrors defines the typed errors that domain services return and
// that the HTTP layer maps onto status codes.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error
type Kind int

const (
	KindInternal        Kind = iota // unexpected failure, surfaced as 500
	KindUnauthenticated             // missing, invalid, expired or revoked credentials
	KindForbidden                   // authenticated but the role check failed
	KindNotFound                    // referenced resource is absent
	KindConflict                    // duplicate unique key or capacity exceeded
	KindValidation                  // malformed input
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation_failed"
	default:
		return "internal"
	}
}

// HTTPStatus returns the status code for the kind
func (k Kind) HTTPStatus() int {
	switch k {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindValidation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Error is an application error carrying a Kind and a client-safe message
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an error of the given kind wrapping a cause
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Unauthenticated creates a 401 error
func Unauthenticated(message string) *Error { return New(KindUnauthenticated, message) }

// Forbidden creates a 403 error
func Forbidden(message string) *Error { return New(KindForbidden, message) }

// NotFound creates a 404 error
func NotFound(message string) *Error { return New(KindNotFound, message) }

// Conflict creates a 409 error
func Conflict(message string) *Error { return New(KindConflict, message) }

// Validation creates a 422 error
func Validation(message string) *Error { return New(KindValidation, message) }

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
