// Package apperror is the error taxonomy surfaced to API clients.
package apperror

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/pkg/errors"
)

type Kind string

const (
	KindValidation      Kind = "VALIDATION_ERROR"
	KindAuthentication  Kind = "AUTHENTICATION_ERROR"
	KindAuthorization   Kind = "AUTHORIZATION_ERROR"
	KindNotFound        Kind = "NOT_FOUND"
	KindConflict        Kind = "CONFLICT"
	KindExternalService Kind = "EXTERNAL_SERVICE_ERROR"
	KindUpstreamTimeout Kind = "UPSTREAM_TIMEOUT"
	KindUnhandled       Kind = "UNHANDLED_ERROR"
)

var statusByKind = map[Kind]int{
	KindValidation:      http.StatusBadRequest,
	KindAuthentication:  http.StatusUnauthorized,
	KindAuthorization:   http.StatusForbidden,
	KindNotFound:        http.StatusNotFound,
	KindConflict:        http.StatusConflict,
	KindExternalService: http.StatusBadGateway,
	KindUpstreamTimeout: http.StatusGatewayTimeout,
	KindUnhandled:       http.StatusInternalServerError,
}

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Status() int {
	if s, ok := statusByKind[e.Kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(message string) *Error {
	return New(KindValidation, message, nil)
}

func Authentication(message string) *Error {
	return New(KindAuthentication, message, nil)
}

func Authorization(message string) *Error {
	return New(KindAuthorization, message, nil)
}

func NotFound(resource string) *Error {
	return New(KindNotFound, resource+" not found", nil)
}

func Conflict(message string) *Error {
	return New(KindConflict, message, nil)
}

func Unhandled(err error) *Error {
	return New(KindUnhandled, "An unexpected error occurred", err)
}

// External classifies a failed upstream call, separating deadline expiry
// from other failures.
func External(service string, err error) *Error {
	if IsTimeout(err) {
		return New(KindUpstreamTimeout, service+" timed out", err)
	}
	return New(KindExternalService, service+" is unavailable", err)
}

func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// From returns err as an *Error, wrapping anything unclassified as Unhandled.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Unhandled(err)
}

func Is(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}
