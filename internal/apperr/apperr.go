package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind enumerates the closed set of error categories the service can surface.
// Every error crossing the service boundary carries exactly one Kind, and the
// HTTP status is derived from it, never from inspecting error contents.
type Kind int

const (
	KindBadRequest Kind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindInternal
)

var kindStatus = map[Kind]int{
	KindBadRequest:   http.StatusBadRequest,
	KindUnauthorized: http.StatusUnauthorized,
	KindForbidden:    http.StatusForbidden,
	KindNotFound:     http.StatusNotFound,
	KindConflict:     http.StatusConflict,
	KindInternal:     http.StatusInternalServerError,
}

var kindCode = map[Kind]string{
	KindBadRequest:   "E_BAD_REQUEST",
	KindUnauthorized: "E_UNAUTHORIZED",
	KindForbidden:    "E_FORBIDDEN",
	KindNotFound:     "E_RESOURCE_NOT_FOUND",
	KindConflict:     "E_RESOURCE_EXISTS",
	KindInternal:     "E_INTERNAL_SERVER",
}

// Error is the tagged error type exposed to callers.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code(), e.Status(), e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Code returns the stable machine-readable code string for the error kind.
func (e *Error) Code() string { return kindCode[e.Kind] }

// Status returns the HTTP status mapped from the error kind.
func (e *Error) Status() int { return kindStatus[e.Kind] }

// WithCause attaches an underlying error for server-side logging. The cause is
// never serialized to clients.
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// BadRequest reports malformed caller input.
func BadRequest(message string) *Error {
	if message == "" {
		message = "Invalid or malformed information in request."
	}
	return newError(KindBadRequest, message)
}

// Unauthorized reports invalid credentials or tokens.
func Unauthorized(message string) *Error {
	if message == "" {
		message = "Unauthorized to perform action, or credentials are invalid."
	}
	return newError(KindUnauthorized, message)
}

// Forbidden reports an understood but disallowed request.
func Forbidden(message string) *Error {
	if message == "" {
		message = "Access to resource is forbidden."
	}
	return newError(KindForbidden, message)
}

// NotFound reports a missing resource.
func NotFound(message string) *Error {
	if message == "" {
		message = "Resource not found."
	}
	return newError(KindNotFound, message)
}

// Conflict reports that a resource already exists.
func Conflict(message string) *Error {
	if message == "" {
		message = "Resource or entity already exists."
	}
	return newError(KindConflict, message)
}

// Internal reports a server-side failure. The detail stays in the cause; the
// client sees only a generic message.
func Internal(err error) *Error {
	return newError(KindInternal, "Internal Server Error.").WithCause(err)
}

// From normalizes an arbitrary error into *Error. Non-tagged errors become
// KindInternal so no raw lower-level error ever crosses the boundary.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}
