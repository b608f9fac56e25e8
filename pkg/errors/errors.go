// Package errors provides the structured error system for the cache engine,
// with error codes, categories, and cause wrapping.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode identifies a class of cache failure.
type ErrorCode string

const (
	// Lookup results
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// Encoding errors
	ErrCodeSerialization ErrorCode = "SERIALIZATION"

	// Disk tier errors
	ErrCodeIO               ErrorCode = "IO"
	ErrCodeCapacityExceeded ErrorCode = "CAPACITY_EXCEEDED"

	// Remote tier errors
	ErrCodeRemoteUnavailable ErrorCode = "REMOTE_UNAVAILABLE"
	ErrCodeOperationTimeout  ErrorCode = "OPERATION_TIMEOUT"

	// Configuration errors
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
	ErrCodeConfigLoad    ErrorCode = "CONFIG_LOAD"

	// Lifecycle errors
	ErrCodeClosed ErrorCode = "CLOSED"

	ErrCodeInternal ErrorCode = "INTERNAL"
)

// ErrorCategory groups error codes for logging and metrics labels.
type ErrorCategory string

const (
	CategoryLookup        ErrorCategory = "lookup"
	CategorySerialization ErrorCategory = "serialization"
	CategoryStorage       ErrorCategory = "storage"
	CategoryRemote        ErrorCategory = "remote"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryState         ErrorCategory = "state"
	CategoryInternal      ErrorCategory = "internal"
)

// CacheError is a structured error with a code, category, and optional cause.
type CacheError struct {
	Code      ErrorCode         `json:"code"`
	Category  ErrorCategory     `json:"category"`
	Message   string            `json:"message"`
	Context   map[string]string `json:"context,omitempty"`
	Component string            `json:"component,omitempty"`
	Operation string            `json:"operation,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Retryable bool              `json:"retryable"`
	Cause     error             `json:"-"`
}

// Error implements the error interface.
func (e *CacheError) Error() string {
	if e.Component != "" {
		if e.Operation != "" {
			return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Code, e.Message)
		}
		return fmt.Sprintf("[%s] %s: %s", e.Component, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As chains.
func (e *CacheError) Unwrap() error {
	return e.Cause
}

// Is matches on error code, so sentinel comparisons like
// errors.Is(err, ErrNotFound) work for any error carrying the same code.
func (e *CacheError) Is(target error) bool {
	var ce *CacheError
	if errors.As(target, &ce) {
		return e.Code == ce.Code
	}
	return false
}

// New creates a structured error with defaults derived from the code.
func New(code ErrorCode, message string) *CacheError {
	return &CacheError{
		Code:      code,
		Category:  categoryOf(code),
		Message:   message,
		Timestamp: time.Now(),
		Retryable: retryableByDefault(code),
	}
}

// Newf creates a structured error with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *CacheError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap creates a structured error with the given cause attached.
func Wrap(code ErrorCode, message string, cause error) *CacheError {
	return New(code, message).WithCause(cause)
}

// WithCause attaches the underlying cause.
func (e *CacheError) WithCause(cause error) *CacheError {
	e.Cause = cause
	return e
}

// WithComponent records which component produced the error.
func (e *CacheError) WithComponent(component string) *CacheError {
	e.Component = component
	return e
}

// WithOperation records the operation that failed.
func (e *CacheError) WithOperation(operation string) *CacheError {
	e.Operation = operation
	return e
}

// WithContext attaches a contextual key/value pair.
func (e *CacheError) WithContext(key, value string) *CacheError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

func categoryOf(code ErrorCode) ErrorCategory {
	switch {
	case code == ErrCodeNotFound:
		return CategoryLookup
	case code == ErrCodeSerialization:
		return CategorySerialization
	case code == ErrCodeIO || code == ErrCodeCapacityExceeded:
		return CategoryStorage
	case code == ErrCodeRemoteUnavailable || code == ErrCodeOperationTimeout:
		return CategoryRemote
	case strings.HasSuffix(string(code), "CONFIG") || code == ErrCodeConfigLoad:
		return CategoryConfiguration
	case code == ErrCodeClosed:
		return CategoryState
	default:
		return CategoryInternal
	}
}

func retryableByDefault(code ErrorCode) bool {
	switch code {
	case ErrCodeRemoteUnavailable, ErrCodeOperationTimeout, ErrCodeIO:
		return true
	}
	return false
}

// ErrNotFound is the sentinel for a clean cache miss. Tiers return errors
// matching it (via errors.Is) when a key is absent or lazily expired.
var ErrNotFound = New(ErrCodeNotFound, "key not found")

// NotFound creates a not-found error for a specific key.
func NotFound(key string) *CacheError {
	return New(ErrCodeNotFound, "key not found").WithContext("key", key)
}

// IsNotFound reports whether err represents a clean miss rather than an
// operation failure.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRetryable reports whether err is transient.
func IsRetryable(err error) bool {
	var ce *CacheError
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	return false
}

// CodeOf extracts the error code, or ErrCodeInternal for foreign errors.
func CodeOf(err error) ErrorCode {
	var ce *CacheError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ErrCodeInternal
}
