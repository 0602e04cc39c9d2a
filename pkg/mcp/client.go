// Package mcp implements the JSON-RPC 2.0 transport client for the
// filesystem service. Frames are line-delimited JSON over a channel (a
// subprocess's stdio or a TCP socket); each call writes exactly one request
// frame and waits for the response carrying the same id, with a hard
// timeout. Retry policy lives with the caller, never here.
package mcp

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"scribe/pkg/logx"
)

// readEvent is one item delivered by the reader goroutine: a parsed
// response, or a transport failure.
type readEvent struct {
	resp *RPCResponse
	err  *TransportError
}

// Client owns a channel and correlates requests with responses by id.
//
// The id counter is confined to the client instance so independent clients
// on separate channels never collide. Responses arriving for an id other
// than the one currently awaited are parked and handed out when their call
// asks for them; with the single-flow loop this only happens when an earlier
// call timed out and its response arrives late, in which case the stale
// entry is dropped on the next Call.
type Client struct {
	ch     Channel
	logger *logx.Logger

	mu     sync.Mutex
	nextID int64

	events  chan readEvent
	pending map[int64]*RPCResponse
}

// NewClient wraps a channel and starts the background frame reader. The
// client assumes exclusive ownership of the channel; Close releases it.
func NewClient(ch Channel) *Client {
	c := &Client{
		ch:      ch,
		logger:  logx.NewLogger("mcp"),
		nextID:  0,
		events:  make(chan readEvent, 16),
		pending: make(map[int64]*RPCResponse),
	}
	go c.readFrames()
	return c
}

// Close tears down the channel. In-flight calls fail with ChannelClosed.
func (c *Client) Close() error {
	return c.ch.Close()
}

// Call sends one request and waits for the matching response or the timeout.
// Exactly one frame is written per call; there are no automatic retries.
func (c *Client) Call(method string, params any, timeout time.Duration) (*RPCResponse, error) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	// Parked responses for ids below the one now in flight belong to calls
	// that already timed out; they can never be awaited again.
	for staleID := range c.pending {
		if staleID < id {
			delete(c.pending, staleID)
		}
	}
	c.mu.Unlock()

	req := RPCRequest{JSONRPC: "2.0", Method: method, Params: params, ID: id}
	if err := c.writeFrame(req); err != nil {
		return nil, &TransportError{Kind: KindChannelClosed, Err: err}
	}

	c.logger.Debug("sent %s id=%d", method, id)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		// A response for this id may have been parked by an earlier call
		// that consumed frames past its own.
		c.mu.Lock()
		resp, parked := c.pending[id]
		if parked {
			delete(c.pending, id)
		}
		c.mu.Unlock()
		if parked {
			return resp, nil
		}

		select {
		case event, ok := <-c.events:
			if !ok {
				return nil, &TransportError{Kind: KindChannelClosed}
			}
			if event.err != nil {
				return nil, event.err
			}
			if event.resp.ID == id {
				return event.resp, nil
			}
			// Not ours: park it and keep waiting.
			c.logger.Debug("parking response id=%d while awaiting id=%d", event.resp.ID, id)
			c.mu.Lock()
			c.pending[event.resp.ID] = event.resp
			c.mu.Unlock()
		case <-timer.C:
			return nil, &TransportError{Kind: KindTimeout, Err: fmt.Errorf("no response for id %d within %s", id, timeout)}
		}
	}
}

// Notify sends a request without an id; no response is awaited.
func (c *Client) Notify(method string, params any) error {
	note := RPCNotification{JSONRPC: "2.0", Method: method, Params: params}
	if err := c.writeFrame(note); err != nil {
		return &TransportError{Kind: KindChannelClosed, Err: err}
	}
	return nil
}

func (c *Client) writeFrame(frame any) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}
	data = append(data, '\n')
	if _, err := c.ch.Write(data); err != nil {
		return fmt.Errorf("channel write failed: %w", err)
	}
	return nil
}

// readFrames is the only reader of the channel. It classifies each
// line-delimited frame and forwards responses (or typed failures) to the
// waiting call. Server-initiated requests and notifications are logged and
// skipped; this client never acts as a server.
func (c *Client) readFrames() {
	reader := bufio.NewReader(c.ch)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			if event, deliver := c.classifyFrame(line); deliver {
				c.events <- event
			}
		}
		if err != nil {
			c.logger.Debug("channel closed: %v", err)
			close(c.events)
			return
		}
	}
}

// classifyFrame parses one frame and decides whether it must be delivered
// to the waiting call.
func (c *Client) classifyFrame(line []byte) (readEvent, bool) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return readEvent{}, false
	}

	var frame incomingFrame
	if err := json.Unmarshal(trimmed, &frame); err != nil {
		return readEvent{err: &TransportError{Kind: KindMalformedResponse, Err: err}}, true
	}
	if frame.Method != "" {
		// A request or notification from the server, not a response.
		c.logger.Debug("ignoring server frame method=%s", frame.Method)
		return readEvent{}, false
	}
	if frame.ID == nil || frame.JSONRPC != "2.0" {
		return readEvent{err: &TransportError{Kind: KindMalformedResponse, Err: fmt.Errorf("frame is not a response envelope: %s", truncate(trimmed, 120))}}, true
	}
	if frame.Error == nil && frame.Result == nil {
		return readEvent{err: &TransportError{Kind: KindMalformedResponse, Err: fmt.Errorf("response %d carries neither result nor error", *frame.ID)}}, true
	}

	return readEvent{resp: &RPCResponse{
		JSONRPC: frame.JSONRPC,
		ID:      *frame.ID,
		Result:  frame.Result,
		Error:   frame.Error,
	}}, true
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
