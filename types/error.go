package types

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unified error code across the service.
type ErrorCode string

// Request error codes
const (
	ErrInvalidRequest     ErrorCode = "INVALID_REQUEST"
	ErrUnknownUseCase     ErrorCode = "UNKNOWN_USE_CASE"
	ErrSessionNotFound    ErrorCode = "SESSION_NOT_FOUND"
	ErrUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrForbidden          ErrorCode = "FORBIDDEN"
	ErrRateLimited        ErrorCode = "RATE_LIMITED"
	ErrInternalError      ErrorCode = "INTERNAL_ERROR"
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// Orchestration error codes
const (
	ErrTimeout           ErrorCode = "TIMEOUT"
	ErrProtocolViolation ErrorCode = "PROTOCOL_VIOLATION"
	ErrCapabilityFailed  ErrorCode = "CAPABILITY_FAILED"
	ErrUnknownCapability ErrorCode = "UNKNOWN_CAPABILITY"
	ErrInvalidWorkflow   ErrorCode = "INVALID_WORKFLOW"
	ErrUpstreamError     ErrorCode = "UPSTREAM_ERROR"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// AsError extracts a *Error from the chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsErrorCode reports whether any *Error in the chain carries code.
func IsErrorCode(err error, code ErrorCode) bool {
	e, ok := AsError(err)
	return ok && e.Code == code
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := AsError(err); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// NewInvalidRequestError is a 400 validation error.
func NewInvalidRequestError(message string) *Error {
	return NewError(ErrInvalidRequest, message).WithHTTPStatus(http.StatusBadRequest)
}

// NewSessionNotFoundError is a 404 for an unknown session id.
func NewSessionNotFoundError(sessionID string) *Error {
	return NewError(ErrSessionNotFound, fmt.Sprintf("chat session %q not found", sessionID)).
		WithHTTPStatus(http.StatusNotFound)
}

// NewUnknownUseCaseError is a 400 for a use case with no orchestrator.
func NewUnknownUseCaseError(useCase string) *Error {
	return NewError(ErrUnknownUseCase, fmt.Sprintf("unknown use case %q", useCase)).
		WithHTTPStatus(http.StatusBadRequest)
}

// NewInternalError is a 500 wrapping cause.
func NewInternalError(message string, cause error) *Error {
	return NewError(ErrInternalError, message).WithCause(cause).WithHTTPStatus(http.StatusInternalServerError)
}

// NewTimeoutError is a retryable timeout.
func NewTimeoutError(message string) *Error {
	return NewError(ErrTimeout, message).WithHTTPStatus(http.StatusGatewayTimeout).WithRetryable(true)
}
