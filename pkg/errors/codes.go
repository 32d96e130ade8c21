package errors

// Error codes for categorizing errors surfaced by the bridge.
const (
	// CodeOK indicates success (not an error).
	CodeOK = "OK"

	// CodeCancelled indicates the operation was cancelled by its caller.
	CodeCancelled = "CANCELLED"

	// CodeNotFound indicates a handle or subscriber was not found.
	CodeNotFound = "NOT_FOUND"

	// CodeInternal indicates internal errors, including recovered panics.
	CodeInternal = "INTERNAL"

	// CodeValidation indicates input validation failed.
	CodeValidation = "VALIDATION_ERROR"

	// CodeTimeout indicates an operation timed out.
	CodeTimeout = "TIMEOUT"

	// CodeBroker indicates the broker rejected or failed an operation.
	CodeBroker = "BROKER_ERROR"

	// CodeChannelClosed indicates an event queue was closed (end of stream).
	CodeChannelClosed = "CHANNEL_CLOSED"
)
