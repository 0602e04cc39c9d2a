package mcp

import (
	"encoding/json"
	"fmt"
	"time"
)

// protocolVersion is the MCP revision this client speaks.
const protocolVersion = "2024-11-05"

// Initialize performs the MCP handshake: an initialize request followed by
// the initialized notification. Must be called once before any tools/call.
func (c *Client) Initialize(timeout time.Duration) error {
	params := map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    "scribe",
			"version": "1.0.0",
		},
	}

	resp, err := c.Call("initialize", params, timeout)
	if err != nil {
		return fmt.Errorf("initialize failed: %w", err)
	}
	if resp.Error != nil {
		return fmt.Errorf("service rejected initialize: %s (code %d)", resp.Error.Message, resp.Error.Code)
	}

	if err := c.Notify("notifications/initialized", nil); err != nil {
		return fmt.Errorf("initialized notification failed: %w", err)
	}

	c.logger.Info("session initialized (protocol %s)", protocolVersion)
	return nil
}

// ListTools asks the service which tools it offers. Used at startup to log
// the service's advertised surface next to our static vocabulary.
func (c *Client) ListTools(timeout time.Duration) ([]ToolInfo, error) {
	resp, err := c.Call("tools/list", map[string]any{}, timeout)
	if err != nil {
		return nil, fmt.Errorf("tools/list failed: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("service rejected tools/list: %s (code %d)", resp.Error.Message, resp.Error.Code)
	}

	var result struct {
		Tools []ToolInfo `json:"tools"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("failed to parse tools/list result: %w", err)
	}
	return result.Tools, nil
}
