// Package dispatch maps validated tool calls onto protocol requests and
// classifies the outcomes.
//
// Classification separates connectivity failures from refusals: a transport
// timeout or closed channel means the service may never have seen the call
// (Unreachable, potentially retryable by a future policy), while a JSON-RPC
// error or an isError tool result means the service understood the call and
// declined it (Rejected, never retried).
package dispatch

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"scribe/pkg/logx"
	"scribe/pkg/mcp"
	"scribe/pkg/metrics"
	"scribe/pkg/tools"
)

// ErrorKind classifies dispatch failures.
type ErrorKind int

const (
	// ErrUnreachable means the service could not be reached: transport
	// timeout, closed channel, or a malformed response.
	ErrUnreachable ErrorKind = iota
	// ErrRejected means the service understood the call and refused it.
	ErrRejected
)

// String returns the string representation of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrUnreachable:
		return "unreachable"
	case ErrRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Error is a typed dispatch failure. Code and Message are populated for
// ErrRejected; Err carries the transport cause for ErrUnreachable.
type Error struct {
	Kind    ErrorKind
	Code    int
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch e.Kind {
	case ErrRejected:
		return fmt.Sprintf("dispatch: rejected (code %d): %s", e.Code, e.Message)
	default:
		return fmt.Sprintf("dispatch: %s: %v", e.Kind, e.Err)
	}
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Transport is the request/response capability the dispatcher needs from
// the protocol client.
type Transport interface {
	Call(method string, params any, timeout time.Duration) (*mcp.RPCResponse, error)
}

// Dispatcher sends tool calls to the filesystem service one at a time with
// a fixed per-call timeout.
type Dispatcher struct {
	transport Transport
	timeout   time.Duration
	logger    *logx.Logger
	recorder  metrics.Recorder
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithRecorder sets the metrics recorder. Defaults to a no-op.
func WithRecorder(rec metrics.Recorder) Option {
	return func(d *Dispatcher) { d.recorder = rec }
}

// NewDispatcher creates a dispatcher over the given transport. timeout is
// the fixed per-call budget; it is not renegotiated per call.
func NewDispatcher(transport Transport, timeout time.Duration, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		transport: transport,
		timeout:   timeout,
		logger:    logx.NewLogger("dispatch"),
		recorder:  metrics.NopRecorder{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// toolResult is the content-bearing result shape of a tools/call response.
// The MCP convention reports tool-level failures inside a successful
// JSON-RPC response with isError set.
type toolResult struct {
	IsError bool `json:"isError"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Dispatch sends a single tool call and classifies the outcome. The call's
// arguments pass through to the request params structurally unchanged.
func (d *Dispatcher) Dispatch(call tools.Call) (json.RawMessage, error) {
	start := time.Now()
	result, err := d.dispatch(call)
	status := "success"
	if err != nil {
		var derr *Error
		if errors.As(err, &derr) {
			status = derr.Kind.String()
		} else {
			status = "error"
		}
	}
	d.recorder.ObserveToolCall(call.Name, status, time.Since(start))
	return result, err
}

func (d *Dispatcher) dispatch(call tools.Call) (json.RawMessage, error) {
	params := mcp.CallParams{Name: call.Name, Arguments: call.Arguments}

	resp, err := d.transport.Call(mcp.MethodToolsCall, params, d.timeout)
	if err != nil {
		d.logger.Warn("tool %s unreachable: %v", call.Name, err)
		return nil, &Error{Kind: ErrUnreachable, Err: err}
	}

	if resp.Error != nil {
		d.logger.Warn("tool %s rejected: %s (code %d)", call.Name, resp.Error.Message, resp.Error.Code)
		return nil, &Error{Kind: ErrRejected, Code: resp.Error.Code, Message: resp.Error.Message}
	}

	// A result of JSON null is still a success.
	if reason, refused := toolLevelError(resp.Result); refused {
		d.logger.Warn("tool %s refused: %s", call.Name, reason)
		return nil, &Error{Kind: ErrRejected, Message: reason}
	}

	d.logger.Debug("tool %s succeeded", call.Name)
	return resp.Result, nil
}

// toolLevelError inspects a tools/call result for the isError convention.
func toolLevelError(result json.RawMessage) (string, bool) {
	if len(result) == 0 {
		return "", false
	}
	var parsed toolResult
	if err := json.Unmarshal(result, &parsed); err != nil || !parsed.IsError {
		return "", false
	}
	for _, block := range parsed.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, true
		}
	}
	return "tool reported an error", true
}

// DispatchAll sends a batch sequentially, stopping at the first failure.
// It returns the results of the calls that succeeded, the success count,
// and the error that stopped the batch (nil if all succeeded). Effects
// already committed by earlier calls are not rolled back; the filesystem
// service offers no transaction to lean on.
func (d *Dispatcher) DispatchAll(calls []tools.Call) ([]json.RawMessage, int, error) {
	results := make([]json.RawMessage, 0, len(calls))
	for i, call := range calls {
		result, err := d.Dispatch(call)
		if err != nil {
			return results, i, fmt.Errorf("call %d (%s) failed: %w", i, call.Name, err)
		}
		results = append(results, result)
	}
	return results, len(calls), nil
}
