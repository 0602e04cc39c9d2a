package mcp

import "encoding/json"

// JSON-RPC 2.0 message envelopes, line-delimited on the wire.

// RPCRequest represents a JSON-RPC 2.0 request.
type RPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      int64  `json:"id"`
}

// RPCNotification is a request without an id; no response is expected.
type RPCNotification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// RPCResponse represents a JSON-RPC 2.0 response. Exactly one of Result and
// Error is present; a Result of JSON null still counts as presence (and as
// success).
type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// CallParams is the params payload of a tools/call request. Arguments pass
// through structurally unchanged from the tool call that produced them.
type CallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolInfo describes one tool advertised by the service via tools/list.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// MethodToolsCall is the protocol method every dispatched action travels on.
const MethodToolsCall = "tools/call"

// incomingFrame is the superset envelope used to classify bytes read from
// the channel: responses carry an id and result/error, while server-initiated
// requests and notifications carry a method.
type incomingFrame struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id"`
	Method  string          `json:"method"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}
