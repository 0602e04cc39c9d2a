package llm

import (
	"errors"
	"fmt"
)

// ErrorType represents different categories of backend errors.
type ErrorType int8

const (
	// ErrorTypeRateLimit represents rate limiting errors (429, quota exceeded).
	ErrorTypeRateLimit ErrorType = iota
	// ErrorTypeTransient represents transient errors (5xx, EOF, connection reset, timeout).
	ErrorTypeTransient
	// ErrorTypeEmptyResponse represents a success status with no content.
	ErrorTypeEmptyResponse
	// ErrorTypeAuth represents authentication errors (401/403, bad API key).
	ErrorTypeAuth
	// ErrorTypeBadPrompt represents malformed request errors (too long, violates policy).
	ErrorTypeBadPrompt
	// ErrorTypeUnknown represents unclassified errors.
	ErrorTypeUnknown
)

// String returns the string representation of the error type.
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeRateLimit:
		return "rate_limit"
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypeEmptyResponse:
		return "empty_response"
	case ErrorTypeAuth:
		return "auth"
	case ErrorTypeBadPrompt:
		return "bad_prompt"
	case ErrorTypeUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Retryable reports whether a future attempt with the same request could
// plausibly succeed. The loop does not retry within an iteration, but the
// classification keeps connectivity problems distinct from caller mistakes
// in logs and metrics.
func (et ErrorType) Retryable() bool {
	switch et {
	case ErrorTypeRateLimit, ErrorTypeTransient, ErrorTypeEmptyResponse:
		return true
	default:
		return false
	}
}

// Error is a classified backend failure.
type Error struct {
	Type    ErrorType
	Message string
	Err     error // underlying cause, may be nil
}

// NewError creates a classified backend error.
func NewError(errorType ErrorType, message string) *Error {
	return &Error{Type: errorType, Message: message}
}

// WrapError classifies an underlying error.
func WrapError(errorType ErrorType, err error) *Error {
	return &Error{Type: errorType, Message: err.Error(), Err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("llm: %s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// TypeOf returns the classification of err, or ErrorTypeUnknown when err is
// not a backend error.
func TypeOf(err error) ErrorType {
	var lerr *Error
	if errors.As(err, &lerr) {
		return lerr.Type
	}
	return ErrorTypeUnknown
}
