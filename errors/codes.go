package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Registry errors
const (
	// ErrCodeInvalidRegistration indicates a registration with missing or malformed fields.
	ErrCodeInvalidRegistration ErrorCode = "INVALID_REGISTRATION"
	// ErrCodeDuplicateInstance indicates the instance ID is already registered and fresh.
	ErrCodeDuplicateInstance ErrorCode = "DUPLICATE_INSTANCE"
	// ErrCodeUnknownInstance indicates the instance ID is not registered.
	ErrCodeUnknownInstance ErrorCode = "UNKNOWN_INSTANCE"
)

// Discovery and configuration errors
const (
	// ErrCodeServiceUnavailable indicates no healthy instance could be found.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	// ErrCodeConfigUnavailable indicates a configuration value could not be
	// fetched and no cached value or default exists.
	ErrCodeConfigUnavailable ErrorCode = "CONFIG_UNAVAILABLE"
	// ErrCodeUnknownCheck indicates a health check name that was never registered.
	ErrCodeUnknownCheck ErrorCode = "UNKNOWN_CHECK"
)

// Transport errors (retryable)
const (
	// ErrCodeConnectionFailed indicates a failed connection to a remote service.
	ErrCodeConnectionFailed ErrorCode = "CONNECTION_FAILED"
	// ErrCodeTimeout indicates the request timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
)

// Resource and validation errors
const (
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeValidation indicates a malformed key, value, or configuration.
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeServiceUnavailable: true,
	ErrCodeConfigUnavailable:  true,
	ErrCodeConnectionFailed:   true,
	ErrCodeTimeout:            true,
}

// IsRetryableCode returns true if the error code indicates a transient failure.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
