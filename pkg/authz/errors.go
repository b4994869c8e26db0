package authz

import (
	"errors"
	"fmt"
)

// Kind classifies an authorization or validation failure
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthorized
	KindForbidden
	KindBadRequest
	KindConflict
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindBadRequest:
		return "bad_request"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error is a classified error returned by the stores, services and the enforcement pipeline
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind. This lets
// errors.Is(err, authz.ErrForbidden) match any forbidden error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrUnauthorized = &Error{Kind: KindUnauthorized, Message: "unauthorized"}
	ErrForbidden    = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrBadRequest   = &Error{Kind: KindBadRequest, Message: "bad request"}
	ErrConflict     = &Error{Kind: KindConflict, Message: "conflict"}
	ErrNotFound     = &Error{Kind: KindNotFound, Message: "not found"}
)

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Unauthorized builds an error for a missing or invalid identity
func Unauthorized(format string, args ...any) error {
	return newError(KindUnauthorized, format, args...)
}

// Forbidden builds an error for an identity lacking a role or permission
func Forbidden(format string, args ...any) error {
	return newError(KindForbidden, format, args...)
}

// BadRequest builds an error for malformed input or an invalid transition
func BadRequest(format string, args ...any) error {
	return newError(KindBadRequest, format, args...)
}

// Conflict builds an error for a duplicate membership or grant
func Conflict(format string, args ...any) error {
	return newError(KindConflict, format, args...)
}

// NotFound builds an error for a missing membership, grant or organization
func NotFound(format string, args ...any) error {
	return newError(KindNotFound, format, args...)
}

// Wrap classifies err under kind, keeping it as the cause
func Wrap(kind Kind, err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the message of the first *Error in err's chain.
// Unclassified errors yield a generic message so internal causes are not exposed.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}
