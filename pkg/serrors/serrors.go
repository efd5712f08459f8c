// Package serrors provides semantic error kinds that survive wrapping and are
// mapped to transport status codes at the edges.
package serrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is a semantic error category. Only values from NewKind implement it.
type Kind interface {
	error
	isKind()
}

type kind struct{ s string }

func (k kind) Error() string { return k.s }
func (k kind) isKind()       {}

// NewKind returns a comparable sentinel for a new error category.
func NewKind(name string) Kind { return kind{s: name} }

// Kinds reported by the decision service.
var (
	ErrNotFound   = NewKind("NOT_FOUND")
	ErrBadRequest = NewKind("BAD_REQUEST")
	ErrInternal   = NewKind("INTERNAL")
	ErrTimeout    = NewKind("TIMEOUT")
	// ErrUnavailable marks a dependency (scorer, broker) that could not serve
	// the call. A failed scoring carries this kind and never becomes a label.
	ErrUnavailable = NewKind("UNAVAILABLE")
	// ErrInvalidConfig marks missing or corrupt configuration and model artifacts.
	ErrInvalidConfig = NewKind("INVALID_CONFIG")
)

// StatusOf returns the kind carried by err, or ErrInternal if it has none.
func StatusOf(err error) Kind {
	var k Kind
	if errors.As(err, &k) {
		return k
	}

	return ErrInternal
}

// HTTPStatus maps the kind carried by err to an HTTP status code. Kinds with
// no client meaning map to 500.
func HTTPStatus(err error) int {
	switch StatusOf(err) {
	case ErrBadRequest:
		return http.StatusBadRequest
	case ErrNotFound:
		return http.StatusNotFound
	case ErrTimeout:
		return http.StatusGatewayTimeout
	case ErrUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error pairs a Kind with an optional cause and message. errors.Is and
// errors.As match both the kind and anything in the cause chain.
//
// Error() renders "<msg>: <cause>", falling back to whichever part is set
// and finally to the kind name.
type Error struct {
	kind Kind
	err  error
	msg  string
}

// With returns an error of kind k with a formatted message and no cause.
func With(k Kind, msgFmt string, args ...any) *Error {
	return &Error{kind: k, msg: fmt.Sprintf(msgFmt, args...)}
}

// Wrap returns an error of kind k that wraps err under a formatted message.
func Wrap(k Kind, err error, msgFmt string, args ...any) *Error {
	return &Error{kind: k, err: err, msg: fmt.Sprintf(msgFmt, args...)}
}

// KindOnly returns a bare error of kind k.
func KindOnly(k Kind) *Error { return &Error{kind: k} }

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch {
	case e.msg != "" && e.err != nil:
		return e.msg + ": " + e.err.Error()
	case e.msg != "":
		return e.msg
	case e.err != nil:
		return e.err.Error()
	case e.kind != nil:
		return e.kind.Error()
	}

	return "unknown error"
}

func (e *Error) Unwrap() error { return e.err }

func (e *Error) Is(target error) bool {
	if e == nil || target == nil {
		return e == nil && target == nil
	}

	return (e.kind != nil && errors.Is(e.kind, target)) ||
		(e.err != nil && errors.Is(e.err, target))
}

func (e *Error) As(target any) bool {
	if e == nil || target == nil {
		return false
	}

	return (e.kind != nil && errors.As(e.kind, target)) ||
		(e.err != nil && errors.As(e.err, target))
}

// Kind returns the kind sentinel, or nil.
func (e *Error) Kind() Kind { return e.kind }

// Message returns the client-facing message, possibly empty.
func (e *Error) Message() string { return e.msg }

// Cause returns the wrapped error, possibly nil.
func (e *Error) Cause() error { return e.err }
