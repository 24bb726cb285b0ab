package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Source/transport errors (retryable)
const (
	// ErrCodeSourceFailed indicates a record source failed while producing.
	ErrCodeSourceFailed ErrorCode = "SOURCE_FAILED"
	// ErrCodeConnectionFailed indicates a device or endpoint could not be opened.
	ErrCodeConnectionFailed ErrorCode = "CONNECTION_FAILED"
	// ErrCodeTimeout indicates an operation took too long.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
)

// Stream errors
const (
	// ErrCodeStreamClosed indicates use of a stream after Close.
	ErrCodeStreamClosed ErrorCode = "STREAM_CLOSED"
	// ErrCodeNotFound indicates a record key was not present.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
)

// Validation errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeMissingField indicates a required field is missing.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
	// ErrCodeInvalidFormat indicates a value could not be parsed.
	ErrCodeInvalidFormat ErrorCode = "INVALID_FORMAT"
)

// Internal errors
const (
	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	// ErrCodeStorage indicates a record store failed to read or write.
	ErrCodeStorage ErrorCode = "STORAGE_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeSourceFailed:     true,
	ErrCodeConnectionFailed: true,
	ErrCodeTimeout:          true,
	ErrCodeStorage:          true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
