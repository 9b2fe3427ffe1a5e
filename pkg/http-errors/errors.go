// Package httperrors maps domain errors onto the JSON error envelope the
// transport layer speaks. Handlers build these directly for request-shape
// problems; domain errors are translated via FromDomain.
package httperrors

import (
	"errors"
	"net/http"

	dErrors "assetgate/pkg/domain-errors"
)

// Code is the wire-level error identifier placed in the "error" field.
type Code string

const (
	CodeInvalidRequest Code = "invalid_request"
	CodeInvalidInput   Code = "invalid_input"
	CodeUnauthorized   Code = "unauthorized"
	CodeForbidden      Code = "forbidden"
	CodeNotFound       Code = "not_found"
	CodeConflict       Code = "conflict"
	CodeInternal       Code = "internal_error"
)

// Error is an HTTP-facing error with a stable code and message.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string { return string(e.Code) + ": " + e.Message }

// New creates an HTTP error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// FromDomain translates a domain error into an HTTP error, defaulting to an
// internal error for unrecognized inputs.
func FromDomain(err error) *Error {
	var he *Error
	if errors.As(err, &he) {
		return he
	}
	var de *dErrors.Error
	if !errors.As(err, &de) {
		return New(CodeInternal, "internal error")
	}
	switch de.Code {
	case dErrors.CodeBadRequest, dErrors.CodeValidation, dErrors.CodeInvalidInput:
		return New(CodeInvalidInput, de.Message)
	case dErrors.CodeNotFound:
		return New(CodeNotFound, de.Message)
	case dErrors.CodeConflict, dErrors.CodeInvariantViolation:
		return New(CodeConflict, de.Message)
	case dErrors.CodeUnauthorized:
		return New(CodeUnauthorized, de.Message)
	case dErrors.CodeForbidden:
		return New(CodeForbidden, de.Message)
	default:
		return New(CodeInternal, "internal error")
	}
}

// Status returns the HTTP status for a code.
func (c Code) Status() int {
	switch c {
	case CodeInvalidRequest, CodeInvalidInput:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
