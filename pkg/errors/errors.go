package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Common sentinel errors for quick checks
var (
	// ErrNotFound is returned when a handle is not registered.
	ErrNotFound = errors.New("not found")

	// ErrTimeout is returned when an operation times out.
	ErrTimeout = errors.New("operation timeout")

	// ErrClosed is returned by queues and runners that have been shut down.
	ErrClosed = errors.New("closed")
)

// Error is the base interface for all custom errors in the system.
// It extends the standard error interface with additional context.
type Error interface {
	error
	// Code returns the error code
	Code() string
	// Message returns the human-readable error message
	Message() string
	// Unwrap returns the underlying cause
	Unwrap() error
}

// BaseError provides a foundation for all typed errors.
type BaseError struct {
	code    string
	message string
	cause   error
}

// Error implements the error interface.
func (e *BaseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Code returns the error code.
func (e *BaseError) Code() string {
	return e.code
}

// Message returns the error message.
func (e *BaseError) Message() string {
	return e.message
}

// Unwrap returns the underlying cause.
func (e *BaseError) Unwrap() error {
	return e.cause
}

// ValidationError represents an input validation error. Field names the
// offending configuration item (e.g. "nodes[2]", "broker_options", "topic").
type ValidationError struct {
	*BaseError
	Field string
	Value interface{}
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		BaseError: &BaseError{
			code:    CodeValidation,
			message: message,
		},
		Field: field,
		Value: value,
	}
}

// WithCause attaches the parse error that triggered the validation failure.
func (e *ValidationError) WithCause(err error) *ValidationError {
	e.cause = err
	return e
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	msg := e.message
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, msg)
	}
	return fmt.Sprintf("validation error: %s", msg)
}

// NotFoundError represents a resource not found error.
type NotFoundError struct {
	*BaseError
	Resource string
	ID       string
}

// NewNotFoundError creates a new not found error.
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{
		BaseError: &BaseError{
			code:    CodeNotFound,
			message: fmt.Sprintf("%s not found", resource),
		},
		Resource: resource,
		ID:       id,
	}
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s with ID '%s' not found", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is lets errors.Is(err, ErrNotFound) match.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// BrokerError is a failure reported by the broker client for a
// subscribe/unsubscribe/connect operation.
type BrokerError struct {
	*BaseError
	Op     string
	Topics []string
}

// NewBrokerError creates a new broker error.
func NewBrokerError(op string, topics []string, cause error) *BrokerError {
	return &BrokerError{
		BaseError: &BaseError{
			code:    CodeBroker,
			message: fmt.Sprintf("broker %s failed", op),
			cause:   cause,
		},
		Op:     op,
		Topics: append([]string(nil), topics...),
	}
}

// Error implements the error interface.
func (e *BrokerError) Error() string {
	s := e.message
	if len(e.Topics) > 0 {
		s = fmt.Sprintf("%s [%s]", s, strings.Join(e.Topics, ", "))
	}
	if e.cause != nil {
		s = fmt.Sprintf("%s: %v", s, e.cause)
	}
	return s
}

// ChannelClosedError signals end-of-stream on an event queue.
type ChannelClosedError struct {
	*BaseError
}

// NewChannelClosedError creates a new channel closed error.
func NewChannelClosedError(what string) *ChannelClosedError {
	if what == "" {
		what = "channel"
	}
	return &ChannelClosedError{
		BaseError: &BaseError{
			code:    CodeChannelClosed,
			message: fmt.Sprintf("%s closed", what),
			cause:   ErrClosed,
		},
	}
}

// Error implements the error interface.
func (e *ChannelClosedError) Error() string {
	return e.message
}

// InternalError represents an internal error, typically a recovered panic.
type InternalError struct {
	*BaseError
	Operation string
}

// TimeoutError represents a timeout or cancellation of a blocking wait.
type TimeoutError struct {
	*BaseError
	Operation string
	Duration  string
}

// NewTimeoutError creates a new timeout error.
func NewTimeoutError(operation, duration string, cause error) *TimeoutError {
	message := "operation timeout"
	if operation != "" {
		message = fmt.Sprintf("%s timeout", operation)
	}
	return &TimeoutError{
		BaseError: &BaseError{
			code:    CodeTimeout,
			message: message,
			cause:   cause,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// Is lets errors.Is(err, ErrTimeout) match.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// Wrap wraps an error with additional context.
// If the error is already one of our custom types, it preserves the code
// and adds the cause chain. Otherwise, it creates an InternalError.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	var e Error
	if errors.As(err, &e) {
		return &BaseError{
			code:    e.Code(),
			message: message,
			cause:   err,
		}
	}

	return &InternalError{
		BaseError: &BaseError{
			code:    CodeInternal,
			message: message,
			cause:   err,
		},
	}
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}

// FromPanic converts a recovered panic value into an InternalError.
func FromPanic(op string, recovered interface{}) *InternalError {
	var cause error
	switch v := recovered.(type) {
	case error:
		cause = v
	default:
		cause = fmt.Errorf("%v", v)
	}
	return &InternalError{
		BaseError: &BaseError{
			code:    CodeInternal,
			message: "panic recovered",
			cause:   cause,
		},
		Operation: op,
	}
}

// Is, As and Unwrap re-export the standard library helpers so callers only
// import one errors package.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
)
