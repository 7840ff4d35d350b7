// Package apperr is the error taxonomy shared by every service. Handlers map
// a Kind to an HTTP status; callers match kinds with errors.Is against the
// exported sentinels.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind uint8

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindInvalidState
	KindInsufficientBalance
	KindNotFound
	KindForbidden
	KindUnauthorized
	KindProvider
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindInvalidState:
		return "invalid_state"
	case KindInsufficientBalance:
		return "insufficient_balance"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindUnauthorized:
		return "unauthorized"
	case KindProvider:
		return "provider"
	default:
		return "internal"
	}
}

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return e.Message + ": " + e.Err.Error()
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any error of the same kind when target is a bare sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

var (
	ErrValidation          = &Error{Kind: KindValidation}
	ErrConflict            = &Error{Kind: KindConflict}
	ErrInvalidState        = &Error{Kind: KindInvalidState}
	ErrInsufficientBalance = &Error{Kind: KindInsufficientBalance}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrForbidden           = &Error{Kind: KindForbidden}
	ErrUnauthorized        = &Error{Kind: KindUnauthorized}
	ErrProvider            = &Error{Kind: KindProvider}
)

func newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) error { return newf(KindValidation, format, args...) }
func Conflict(format string, args ...any) error   { return newf(KindConflict, format, args...) }
func InvalidState(format string, args ...any) error {
	return newf(KindInvalidState, format, args...)
}
func InsufficientBalance(format string, args ...any) error {
	return newf(KindInsufficientBalance, format, args...)
}
func NotFound(format string, args ...any) error  { return newf(KindNotFound, format, args...) }
func Forbidden(format string, args ...any) error { return newf(KindForbidden, format, args...) }

// Provider wraps a payment-provider failure.
func Provider(err error, message string) error {
	return &Error{Kind: KindProvider, Message: message, Err: err}
}

func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict, KindInvalidState:
		return http.StatusConflict
	case KindInsufficientBalance:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the text safe to show to clients. Internal errors never
// leak their cause.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		if e.Message != "" {
			return e.Message
		}
		return e.Kind.String()
	}
	return "internal server error"
}
