package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")

	// OTP outcomes.
	ErrExpired         = errors.New("expired")
	ErrInvalidCode     = errors.New("invalid code")
	ErrAlreadyVerified = errors.New("already verified")
	ErrDispatch        = errors.New("dispatch failed")
)

// Error carries a message fit for API clients. Unwrap yields its sentinel kind,
// so errors.Is(err, ErrNotFound) keeps working through it.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// Errorf builds an *Error of the given kind with a formatted message.
func Errorf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of the given kind that also wraps cause.
func Wrap(kind error, cause error, msg string) error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

// Message returns the client-facing message for err. Errors that are not
// *Error yield fallback so infrastructure details stay internal.
func Message(err error, fallback string) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Msg
	}
	return fallback
}
