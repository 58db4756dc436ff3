package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// Kind tags an API error. Kind implements error itself,
// so it is possible to check errors with errors.Is(err, apperrors.TokenRevoked)
type Kind string

const (
	TokenExpired    Kind = "token_expired"
	TokenInvalid    Kind = "token_invalid"
	TokenRevoked    Kind = "token_revoked"
	Unauthorized    Kind = "unauthorized"
	RateLimited     Kind = "rate_limited"
	NotFound        Kind = "not_found"
	ValidationError Kind = "validation_error"
	InternalDefect  Kind = "internal_defect"
)

const internalMessage = "Internal server error"

func (k Kind) Error() string { return string(k) }

// HTTP status code that corresponds to the kind
func (k Kind) Status() int {
	switch k {
	case TokenExpired, TokenInvalid, TokenRevoked, Unauthorized:
		return http.StatusUnauthorized
	case RateLimited:
		return http.StatusTooManyRequests
	case NotFound:
		return http.StatusNotFound
	case ValidationError:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error is the only error type rendered to API clients.
//
// Operational errors are expected failures: their message is safe to return as is.
// Non operational errors mean a defect: clients get a generic message only.
type Error struct {
	Kind        Kind
	StatusCode  int
	Message     string
	Operational bool

	// Per field messages of failed validation
	Fields map[string]string

	cause error
	stack string
	pcs   []uintptr
}

// New operational error of the kind
// The call stack is captured without New itself
func New(kind Kind, message string) *Error {
	return &Error{
		Kind:        kind,
		StatusCode:  kind.Status(),
		Message:     message,
		Operational: true,
		pcs:         callers(),
	}
}

// Internal wraps an unexpected error into non operational InternalDefect
func Internal(cause error) *Error {
	return &Error{
		Kind:        InternalDefect,
		StatusCode:  http.StatusInternalServerError,
		Message:     internalMessage,
		Operational: false,
		cause:       cause,
		pcs:         callers(),
	}
}

// Validation builds ValidationError with per field details
func Validation(message string, fields map[string]string) *Error {
	return &Error{
		Kind:        ValidationError,
		StatusCode:  http.StatusBadRequest,
		Message:     message,
		Operational: true,
		Fields:      fields,
		pcs:         callers(),
	}
}

// WithCause sets the underlying error. It's never exposed to clients
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

// WithStack replaces captured call stack with explicitly provided one
func (e *Error) WithStack(stack string) *Error {
	e.stack = stack
	return e
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is reports whether target is the kind of the error
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// Stack returns the stack trace where the error was created
func (e *Error) Stack() string {
	if e.stack != "" || len(e.pcs) == 0 {
		return e.stack
	}

	var b strings.Builder
	frames := runtime.CallersFrames(e.pcs)
	for {
		frame, more := frames.Next()
		fmt.Fprintf(&b, "%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line)
		if !more {
			break
		}
	}
	return b.String()
}

// Convert normalizes any error into *Error
// Unknown errors become non operational InternalDefect errors
func Convert(err error) *Error {
	if err == nil {
		return nil
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	return Internal(err)
}

// skip runtime.Callers, callers and the constructor
func callers() []uintptr {
	var pcs [32]uintptr
	n := runtime.Callers(3, pcs[:])
	return pcs[:n]
}
