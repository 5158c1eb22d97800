package marketplace

import (
	"errors"
	"fmt"
)

// Kind classifies every error the service returns to a transport.
type Kind string

const (
	KindNotFound        Kind = "not_found"
	KindForbidden       Kind = "forbidden"
	KindConflict        Kind = "conflict"
	KindInvalidInput    Kind = "invalid_input"
	KindUnauthenticated Kind = "unauthenticated"
	KindUnavailable     Kind = "unavailable"
)

// Sentinel errors, one per Kind. Use errors.Is against these.
var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrConflict        = errors.New("conflict")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrUnavailable     = errors.New("service unavailable")
)

// ErrStaleVersion is returned by Store.SaveJob when the stored document
// changed since it was loaded.
var ErrStaleVersion = errors.New("stale job version")

var sentinels = map[Kind]error{
	KindNotFound:        ErrNotFound,
	KindForbidden:       ErrForbidden,
	KindConflict:        ErrConflict,
	KindInvalidInput:    ErrInvalidInput,
	KindUnauthenticated: ErrUnauthenticated,
	KindUnavailable:     ErrUnavailable,
}

// Error wraps a user-facing message with its Kind.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string { return e.Msg }

// Unwrap exposes the cause so errors.Is can reach store errors.
func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's Kind.
func (e *Error) Is(target error) bool {
	return sentinels[e.Kind] == target
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// KindOf reports the Kind of err. Errors that carry no Kind are treated as
// unavailable so that storage failures never leak as caller mistakes.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	for k, s := range sentinels {
		if errors.Is(err, s) {
			return k
		}
	}
	return KindUnavailable
}
