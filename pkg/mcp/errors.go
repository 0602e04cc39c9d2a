package mcp

import "fmt"

// TransportErrorKind classifies transport-level failures.
type TransportErrorKind int

const (
	// KindTimeout means no matching response arrived within the call timeout.
	KindTimeout TransportErrorKind = iota
	// KindChannelClosed means the underlying channel terminated.
	KindChannelClosed
	// KindMalformedResponse means received bytes did not parse as a response
	// envelope.
	KindMalformedResponse
)

// String returns the string representation of the error kind.
func (k TransportErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindChannelClosed:
		return "channel_closed"
	case KindMalformedResponse:
		return "malformed_response"
	default:
		return "unknown"
	}
}

// TransportError is a typed transport-level failure.
type TransportError struct {
	Kind TransportErrorKind
	Err  error // underlying cause, may be nil
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("transport: %s", e.Kind)
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error {
	return e.Err
}
