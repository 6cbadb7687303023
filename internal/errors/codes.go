// Package errors provides the typed errors shared by the organ services and
// the orchestrator, and their mapping to HTTP status codes.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode represents application-specific error codes.
type ErrorCode string

const (
	// Client errors
	ErrorCodeInvalidRequest   ErrorCode = "INVALID_REQUEST"
	ErrorCodeInvalidCondition ErrorCode = "INVALID_CONDITION"
	ErrorCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrorCodeMethodNotAllowed ErrorCode = "METHOD_NOT_ALLOWED"
	ErrorCodeRateLimited      ErrorCode = "RATE_LIMITED"

	// Upstream errors, raised by the orchestrator when an organ call fails
	ErrorCodeUpstreamStatus  ErrorCode = "UPSTREAM_STATUS"
	ErrorCodeUpstreamTimeout ErrorCode = "UPSTREAM_TIMEOUT"
	ErrorCodeUpstreamOffline ErrorCode = "UPSTREAM_OFFLINE"
	ErrorCodeUpstreamError   ErrorCode = "UPSTREAM_ERROR"

	// Server errors
	ErrorCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional response details.
type Error struct {
	Code       ErrorCode
	Message    string
	Details    map[string]interface{}
	Cause      error
	StatusCode int // relayed upstream status, only for ErrorCodeUpstreamStatus
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail that is rendered into the response body.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new Error
func New(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func InvalidRequest(message string, cause error) *Error {
	return New(ErrorCodeInvalidRequest, message, cause)
}

// InvalidCondition reports a condition name outside the organ's closed set.
func InvalidCondition(condition string, valid []string) *Error {
	return New(ErrorCodeInvalidCondition, "Invalid condition", nil).
		WithDetail("condition", condition).
		WithDetail("valid_conditions", valid)
}

func NotFound(message string) *Error {
	return New(ErrorCodeNotFound, message, nil)
}

// UnknownOrgan reports an organ key missing from the registry.
func UnknownOrgan(organ string) *Error {
	return NotFound(fmt.Sprintf("Unknown organ: %s", organ)).WithDetail("organ", organ)
}

// UpstreamStatus reports a non-2xx answer from an organ service.
func UpstreamStatus(organ string, statusCode int, message string) *Error {
	msg := fmt.Sprintf("Status code: %d", statusCode)
	if message != "" {
		msg = fmt.Sprintf("%s (%s)", msg, message)
	}
	e := New(ErrorCodeUpstreamStatus, msg, nil).WithDetail("organ", organ)
	e.StatusCode = statusCode
	return e
}

func UpstreamTimeout(organ string, cause error) *Error {
	return New(ErrorCodeUpstreamTimeout, "Request timeout", cause).WithDetail("organ", organ)
}

func UpstreamOffline(organ string, cause error) *Error {
	return New(ErrorCodeUpstreamOffline, "Cannot connect to API", cause).WithDetail("organ", organ)
}

func UpstreamError(organ string, cause error) *Error {
	return New(ErrorCodeUpstreamError, "Upstream request failed", cause).WithDetail("organ", organ)
}

func Internal(message string, cause error) *Error {
	return New(ErrorCodeInternal, message, cause)
}

// CodeOf extracts the error code from an error chain.
func CodeOf(err error) ErrorCode {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ErrorCodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// HTTPStatus maps an error to the status code the API answers with.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var e *Error
	if !stderrors.As(err, &e) {
		return http.StatusInternalServerError
	}

	switch e.Code {
	case ErrorCodeInvalidRequest, ErrorCodeInvalidCondition:
		return http.StatusBadRequest
	case ErrorCodeNotFound:
		return http.StatusNotFound
	case ErrorCodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case ErrorCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrorCodeUpstreamStatus:
		if e.StatusCode >= 400 && e.StatusCode <= 599 {
			return e.StatusCode
		}
		return http.StatusBadGateway
	case ErrorCodeUpstreamTimeout:
		return http.StatusGatewayTimeout
	case ErrorCodeUpstreamOffline:
		return http.StatusServiceUnavailable
	case ErrorCodeUpstreamError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// MethodNotAllowed reports a route that exists under another method.
func MethodNotAllowed(method, path string) *Error {
	return New(ErrorCodeMethodNotAllowed, fmt.Sprintf("Method %s not allowed on %s", method, path), nil)
}

// RateLimited reports a request rejected by the rate limiter.
func RateLimited() *Error {
	return New(ErrorCodeRateLimited, "rate limit exceeded", nil)
}
