// Package errors provides unified error handling for corekit services.
// It implements structured error types with error codes, HTTP status mapping,
// and retryable detection.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// HTTPStatus is the recommended HTTP status code for this error.
	HTTPStatus int `json:"-"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// HasCode reports whether err is an AppError carrying the given code.
func HasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// --- Registry errors ---

// InvalidRegistration creates an AppError for a registration missing required fields.
func InvalidRegistration(reason string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidRegistration, Message: fmt.Sprintf("Invalid registration: %s", reason),
		HTTPStatus: http.StatusBadRequest, Retryable: false,
	}
}

// DuplicateInstance creates an AppError for an instance ID that is already registered.
func DuplicateInstance(instanceID string) *AppError {
	return &AppError{
		Code: ErrCodeDuplicateInstance, Message: fmt.Sprintf("Instance %q is already registered.", instanceID),
		HTTPStatus: http.StatusConflict, Retryable: false,
		Details: map[string]any{"instance_id": instanceID},
	}
}

// UnknownInstance creates an AppError for an instance ID that is not registered.
func UnknownInstance(instanceID string) *AppError {
	return &AppError{
		Code: ErrCodeUnknownInstance, Message: fmt.Sprintf("Instance %q is not registered.", instanceID),
		HTTPStatus: http.StatusNotFound, Retryable: false,
		Details: map[string]any{"instance_id": instanceID},
	}
}

// --- Discovery and configuration errors ---

// ServiceUnavailable creates an AppError for a service with no healthy instances.
func ServiceUnavailable(service string) *AppError {
	return &AppError{
		Code: ErrCodeServiceUnavailable, Message: fmt.Sprintf("No healthy instance of %s is available.", service),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true,
		Details: map[string]any{"service": service},
	}
}

// ConfigUnavailable creates an AppError for a configuration key that could not
// be resolved from the remote service, cache, or defaults.
func ConfigUnavailable(key string) *AppError {
	return &AppError{
		Code: ErrCodeConfigUnavailable, Message: fmt.Sprintf("Configuration %q is unavailable.", key),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true,
		Details: map[string]any{"key": key},
	}
}

// UnknownCheck creates an AppError for a health check name that is not registered.
func UnknownCheck(name string) *AppError {
	return &AppError{
		Code: ErrCodeUnknownCheck, Message: fmt.Sprintf("Health check %q is not registered.", name),
		HTTPStatus: http.StatusNotFound, Retryable: false,
		Details: map[string]any{"check": name},
	}
}

// --- Transport errors ---

// ConnectionFailed creates an AppError for a failed connection to a service.
func ConnectionFailed(target string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeConnectionFailed, Message: fmt.Sprintf("Unable to connect to %s.", target),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true,
		Details: map[string]any{"target": target}, Cause: cause,
	}
}

// Timeout creates an AppError for an operation that exceeded its deadline.
func Timeout(operation string) *AppError {
	return &AppError{
		Code: ErrCodeTimeout, Message: fmt.Sprintf("Operation %s timed out.", operation),
		HTTPStatus: http.StatusGatewayTimeout, Retryable: true,
		Details: map[string]any{"operation": operation},
	}
}

// --- Resource and validation errors ---

// NotFound creates an AppError for a resource that was not found.
func NotFound(resource, id string) *AppError {
	details := map[string]any{"resource": resource}
	if id != "" {
		details["id"] = id
	}
	return &AppError{
		Code: ErrCodeNotFound, Message: fmt.Sprintf("The requested %s was not found.", resource),
		HTTPStatus: http.StatusNotFound, Retryable: false, Details: details,
	}
}

// Validation creates an AppError for malformed input or configuration.
func Validation(message string) *AppError {
	return &AppError{
		Code: ErrCodeValidation, Message: message,
		HTTPStatus: http.StatusBadRequest, Retryable: false,
	}
}

// Internal creates an AppError for an unexpected internal failure.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An unexpected error occurred.",
		HTTPStatus: http.StatusInternalServerError, Retryable: false, Cause: cause,
	}
}
