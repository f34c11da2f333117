package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Transport errors (retryable)
const (
	// ErrCodeServiceUnavailable indicates the bridge is saturated or shutting down.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	// ErrCodeConnectionFailed indicates the upstream host could not be reached.
	ErrCodeConnectionFailed ErrorCode = "CONNECTION_FAILED"
	// ErrCodeTimeout indicates a connect, write or read timeout fired.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeRateLimited indicates the caller exceeded its request rate.
	ErrCodeRateLimited ErrorCode = "RATE_LIMITED"
)

// Bridge errors
const (
	// ErrCodeListenerFailed indicates the event listener could not be registered.
	ErrCodeListenerFailed ErrorCode = "LISTENER_FAILED"
	// ErrCodeBridgeUnavailable indicates the bridge channel itself failed.
	ErrCodeBridgeUnavailable ErrorCode = "BRIDGE_UNAVAILABLE"
	// ErrCodeNotFound indicates an unknown request or listener id.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
)

// Validation errors
const (
	// ErrCodeInvalidInput indicates the request descriptor is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeMissingField indicates a required field is missing.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
)

// Internal errors
const (
	// ErrCodeInternal indicates an unexpected failure.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeServiceUnavailable: true,
	ErrCodeConnectionFailed:   true,
	ErrCodeTimeout:            true,
	ErrCodeRateLimited:        true,
	ErrCodeBridgeUnavailable:  true,
	ErrCodeInternal:           false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}

// IsValidationCode reports whether code describes a caller mistake rather
// than a transport failure.
func IsValidationCode(code ErrorCode) bool {
	return code == ErrCodeInvalidInput || code == ErrCodeMissingField
}
