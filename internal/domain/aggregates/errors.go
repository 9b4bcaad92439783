package aggregates

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode standardizes failure semantics across the lifecycle engine.
type ErrorCode string

const (
	// CodeInvalidOutput: LLM output failed JSON extraction or schema/set validation.
	CodeInvalidOutput ErrorCode = "invalid_output"
	// CodeTransport: the LLM call itself failed (timeout, rate limit, other).
	CodeTransport ErrorCode = "transport"
	// CodeMaxRetriesExceeded: every LLM attempt failed; Cause holds the last failure.
	CodeMaxRetriesExceeded ErrorCode = "max_retries_exceeded"
	// CodeStructural: illegal state transition, incomplete or empty input. Never retried.
	CodeStructural ErrorCode = "structural"

	CodeValidation   ErrorCode = "validation"
	CodeUnauthorized ErrorCode = "unauthorized"
	CodeNotFound     ErrorCode = "not_found"
	CodeConflict     ErrorCode = "conflict"
	CodeRetryable    ErrorCode = "retryable"
	CodeInternal     ErrorCode = "internal"
)

// Error is the canonical error wrapper.
type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	op := strings.TrimSpace(e.Op)
	msg := strings.TrimSpace(e.Message)
	switch {
	case op != "" && msg != "":
		return fmt.Sprintf("%s: %s (%s)", op, msg, e.Code)
	case op != "":
		return fmt.Sprintf("%s (%s)", op, e.Code)
	case msg != "":
		return fmt.Sprintf("%s (%s)", msg, e.Code)
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError builds an error with explicit code + operation.
func NewError(code ErrorCode, op, message string, cause error) error {
	return &Error{
		Code:    code,
		Op:      strings.TrimSpace(op),
		Message: strings.TrimSpace(message),
		Cause:   cause,
	}
}

// Wrap annotates an existing error with a code.
func Wrap(code ErrorCode, op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(code, op, err.Error(), err)
}

// IsCode reports whether the outermost *Error in err's chain carries code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// CodeOf extracts the outermost code when available.
func CodeOf(err error) ErrorCode {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Code
}

// Retryable reports whether an LLM attempt failure of this code should be retried.
func (c ErrorCode) Retryable() bool {
	return c == CodeInvalidOutput || c == CodeTransport
}

func Structural(op, message string) error {
	return NewError(CodeStructural, op, message, nil)
}

func Unauthorized(op string) error {
	return NewError(CodeUnauthorized, op, "caller does not own this resource", nil)
}

func NotFound(op, what string) error {
	return NewError(CodeNotFound, op, what+" not found", nil)
}
