// Package apperrors provides structured application errors with HTTP status mapping.
package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for classification via errors.Is().
var (
	ErrValidation        = errors.New("validation error")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrProvider          = errors.New("provider error")
	ErrWorkerUnreachable = errors.New("worker unreachable")
	ErrExecution         = errors.New("execution error")
	ErrTransport         = errors.New("transport error")
	ErrInternal          = errors.New("internal error")
)

// Error provides structured error with context.
type Error struct {
	Sentinel   error  // Wrapped sentinel for errors.Is() classification
	Message    string // Human-readable message
	Field      string // For validation errors (e.g., "prompt", "callbackUrl")
	Op         string // Operation that failed (e.g., "provider.setDesiredState")
	StatusCode int    // Remote status code for provider/execution errors
	Cause      error  // Underlying error
}

// Error returns the human-readable error message.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the sentinel error for errors.Is() classification.
func (e *Error) Unwrap() error {
	return e.Sentinel
}

// Validation creates a validation error for a specific field.
func Validation(field, message string) error {
	return &Error{
		Sentinel: ErrValidation,
		Message:  message,
		Field:    field,
	}
}

// Unauthorized creates an authorization error.
func Unauthorized(message string) error {
	return &Error{
		Sentinel: ErrUnauthorized,
		Message:  message,
	}
}

// Provider creates an error for a failed instance lifecycle call.
func Provider(op string, statusCode int, body string) error {
	return &Error{
		Sentinel:   ErrProvider,
		Message:    fmt.Sprintf("%s: provider returned %d: %s", op, statusCode, body),
		Op:         op,
		StatusCode: statusCode,
	}
}

// WorkerUnreachable creates an error for a readiness-wait timeout.
func WorkerUnreachable(message string) error {
	return &Error{
		Sentinel: ErrWorkerUnreachable,
		Message:  message,
	}
}

// Execution creates an error for a non-success response from the worker's
// execution surface.
func Execution(statusCode int, body string) error {
	return &Error{
		Sentinel:   ErrExecution,
		Message:    fmt.Sprintf("worker returned %d: %s", statusCode, body),
		StatusCode: statusCode,
	}
}

// Transport creates an error for a network failure or timeout talking to
// the worker.
func Transport(op string, cause error) error {
	return &Error{
		Sentinel: ErrTransport,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}

// Internal creates an internal error wrapping an underlying cause.
func Internal(op string, cause error) error {
	return &Error{
		Sentinel: ErrInternal,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}
