// Package apperr carries the typed failures returned by the game core.
// Domain rejections and transient infrastructure failures are kept apart
// so the edge can tell a client whether a retry makes sense.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation   Kind = "validation"
	KindBadRequest   Kind = "bad_request"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindTransient    Kind = "transient"
)

type Error struct {
	Kind    Kind
	Message string
	Retry   bool
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return string(e.Kind) + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...interface{}) error {
	return newError(KindValidation, format, args...)
}

func BadRequest(format string, args ...interface{}) error {
	return newError(KindBadRequest, format, args...)
}

func Unauthorized(format string, args ...interface{}) error {
	return newError(KindUnauthorized, format, args...)
}

func Forbidden(format string, args ...interface{}) error {
	return newError(KindForbidden, format, args...)
}

func NotFound(format string, args ...interface{}) error {
	return newError(KindNotFound, format, args...)
}

func Conflict(format string, args ...interface{}) error {
	return newError(KindConflict, format, args...)
}

// StaleConflict is a lost optimistic race; repeating the request reads fresh state.
func StaleConflict(format string, args ...interface{}) error {
	e := newError(KindConflict, format, args...)
	e.Retry = true
	return e
}

// Transient wraps an infrastructure failure. Wrapping an *Error returns it unchanged.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return &Error{Kind: KindTransient, Message: "temporary failure, please retry", Retry: true, Err: err}
}

// KindOf reports the kind of err. Untyped errors count as transient.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindTransient
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func Retryable(err error) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Retry || ae.Kind == KindTransient
	}
	return err != nil
}

// Message is the client facing text for err. Transient details stay in the logs.
func Message(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		if ae.Kind == KindTransient {
			return "temporary failure, please retry"
		}
		return ae.Error()
	}
	return "temporary failure, please retry"
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusServiceUnavailable
	}
}
