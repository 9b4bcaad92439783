package apierr

import (
	"errors"
	"fmt"
	"net/http"

	domainagg "github.com/yungbote/proofstake-backend/internal/domain/aggregates"
)

// Error is a failure as the API reports it: an HTTP status, a stable code and the cause.
type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	return fmt.Sprintf("api error (%d)", e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// Public is the message sent to clients. Internal failures never echo their cause.
func (e *Error) Public() string {
	if e == nil {
		return "unknown error"
	}
	if e.Code == string(domainagg.CodeInternal) || e.Err == nil {
		if e.Status >= http.StatusInternalServerError {
			return "internal error"
		}
		if e.Code != "" {
			return e.Code
		}
		return http.StatusText(e.Status)
	}
	return e.Err.Error()
}

// StatusFor maps a lifecycle error code onto its HTTP status.
func StatusFor(code domainagg.ErrorCode) int {
	switch code {
	case domainagg.CodeValidation:
		return http.StatusBadRequest
	case domainagg.CodeStructural, domainagg.CodeConflict:
		return http.StatusConflict
	case domainagg.CodeUnauthorized:
		return http.StatusForbidden
	case domainagg.CodeNotFound:
		return http.StatusNotFound
	case domainagg.CodeMaxRetriesExceeded:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// From converts any service error into an *Error; uncoded errors become internal.
func From(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	code := domainagg.CodeOf(err)
	if code == "" {
		code = domainagg.CodeInternal
	}
	return New(StatusFor(code), string(code), err)
}
