package dispatch

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scribe/pkg/mcp"
	"scribe/pkg/tools"
)

// fakeTransport scripts responses per call, recording what was sent.
type fakeTransport struct {
	requests  []mcp.CallParams
	responses []*mcp.RPCResponse
	errs      []error
}

func (f *fakeTransport) Call(method string, params any, _ time.Duration) (*mcp.RPCResponse, error) {
	callParams, ok := params.(mcp.CallParams)
	if ok {
		f.requests = append(f.requests, callParams)
	}
	idx := len(f.requests) - 1
	if idx < len(f.errs) && f.errs[idx] != nil {
		return nil, f.errs[idx]
	}
	if idx < len(f.responses) {
		return f.responses[idx], nil
	}
	return &mcp.RPCResponse{JSONRPC: "2.0", ID: int64(idx + 1), Result: json.RawMessage(`null`)}, nil
}

func writeCall(path, content string) tools.Call {
	return tools.Call{Name: "write_file", Arguments: map[string]any{"path": path, "content": content}}
}

func TestDispatchSuccess(t *testing.T) {
	transport := &fakeTransport{
		responses: []*mcp.RPCResponse{
			{JSONRPC: "2.0", ID: 1, Result: json.RawMessage(`{"content":[{"type":"text","text":"ok"}]}`)},
		},
	}
	d := NewDispatcher(transport, time.Second)

	result, err := d.Dispatch(writeCall("p", "c"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"content":[{"type":"text","text":"ok"}]}`, string(result))

	// Arguments pass through structurally unchanged.
	require.Len(t, transport.requests, 1)
	assert.Equal(t, "write_file", transport.requests[0].Name)
	assert.Equal(t, map[string]any{"path": "p", "content": "c"}, transport.requests[0].Arguments)
}

func TestDispatchNullResultIsSuccess(t *testing.T) {
	transport := &fakeTransport{
		responses: []*mcp.RPCResponse{
			{JSONRPC: "2.0", ID: 1, Result: json.RawMessage(`null`)},
		},
	}
	d := NewDispatcher(transport, time.Second)

	result, err := d.Dispatch(writeCall("p", "c"))
	require.NoError(t, err)
	assert.Equal(t, "null", string(result))
}

func TestDispatchRejected(t *testing.T) {
	transport := &fakeTransport{
		responses: []*mcp.RPCResponse{
			{JSONRPC: "2.0", ID: 1, Error: &mcp.RPCError{Code: -32602, Message: "Tool not found"}},
		},
	}
	d := NewDispatcher(transport, time.Second)

	_, err := d.Dispatch(writeCall("p", "c"))
	var derr *Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, ErrRejected, derr.Kind)
	assert.Equal(t, -32602, derr.Code)
	assert.Equal(t, "Tool not found", derr.Message)
}

func TestDispatchToolLevelErrorIsRejected(t *testing.T) {
	// The MCP convention: tool failures come back as a successful JSON-RPC
	// response with isError set. The service understood and refused.
	transport := &fakeTransport{
		responses: []*mcp.RPCResponse{
			{JSONRPC: "2.0", ID: 1, Result: json.RawMessage(`{"isError":true,"content":[{"type":"text","text":"Error: permission denied"}]}`)},
		},
	}
	d := NewDispatcher(transport, time.Second)

	_, err := d.Dispatch(writeCall("p", "c"))
	var derr *Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, ErrRejected, derr.Kind)
	assert.Equal(t, "Error: permission denied", derr.Message)
}

func TestDispatchUnreachable(t *testing.T) {
	tests := []struct {
		name string
		terr *mcp.TransportError
	}{
		{name: "timeout", terr: &mcp.TransportError{Kind: mcp.KindTimeout}},
		{name: "channel closed", terr: &mcp.TransportError{Kind: mcp.KindChannelClosed}},
		{name: "malformed response", terr: &mcp.TransportError{Kind: mcp.KindMalformedResponse}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := &fakeTransport{errs: []error{tt.terr}}
			d := NewDispatcher(transport, time.Second)

			_, err := d.Dispatch(writeCall("p", "c"))
			var derr *Error
			require.ErrorAs(t, err, &derr)
			assert.Equal(t, ErrUnreachable, derr.Kind)
			assert.True(t, errors.Is(err, tt.terr), "transport cause must be preserved")
		})
	}
}

func TestDispatchAllStopsAtFirstFailure(t *testing.T) {
	transport := &fakeTransport{
		responses: []*mcp.RPCResponse{
			{JSONRPC: "2.0", ID: 1, Result: json.RawMessage(`null`)},
			{JSONRPC: "2.0", ID: 2, Error: &mcp.RPCError{Code: -32000, Message: "disk full"}},
			{JSONRPC: "2.0", ID: 3, Result: json.RawMessage(`null`)},
		},
	}
	d := NewDispatcher(transport, time.Second)

	calls := []tools.Call{writeCall("a", "1"), writeCall("b", "2"), writeCall("c", "3")}
	results, succeeded, err := d.DispatchAll(calls)

	require.Error(t, err)
	assert.Equal(t, 1, succeeded)
	assert.Len(t, results, 1)
	// The third call must never reach the wire.
	assert.Len(t, transport.requests, 2)

	var derr *Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, ErrRejected, derr.Kind)
}

func TestDispatchAllOrder(t *testing.T) {
	transport := &fakeTransport{}
	d := NewDispatcher(transport, time.Second)

	calls := []tools.Call{writeCall("first", "1"), writeCall("second", "2")}
	_, succeeded, err := d.DispatchAll(calls)
	require.NoError(t, err)
	assert.Equal(t, 2, succeeded)

	require.Len(t, transport.requests, 2)
	assert.Equal(t, "first", transport.requests[0].Arguments["path"])
	assert.Equal(t, "second", transport.requests[1].Arguments["path"])
}

func TestDispatchAllEmptyBatch(t *testing.T) {
	d := NewDispatcher(&fakeTransport{}, time.Second)
	results, succeeded, err := d.DispatchAll(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, succeeded)
	assert.Empty(t, results)
}
