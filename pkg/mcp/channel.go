package mcp

import (
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"

	"scribe/pkg/logx"
)

// Channel is a byte stream carrying line-delimited JSON-RPC frames to and
// from the filesystem service. A channel is exclusively owned by one Client
// for the process lifetime; nothing else may write to it.
type Channel interface {
	io.ReadWriteCloser
}

// StdioChannel runs the filesystem service as a subprocess and frames
// messages over its stdin/stdout, the way the MCP filesystem server is
// normally launched (e.g. npx -y @modelcontextprotocol/server-filesystem).
// The child's stderr passes through to ours for diagnostics.
type StdioChannel struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	logger *logx.Logger
}

// StartStdioChannel spawns the given command and wires its stdio.
func StartStdioChannel(command string, args ...string) (*StdioChannel, error) {
	cmd := exec.Command(command, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", command, err)
	}

	logger := logx.NewLogger("mcp")
	logger.Info("filesystem service started: %s (pid %d)", command, cmd.Process.Pid)

	return &StdioChannel{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
		logger: logger,
	}, nil
}

// Read reads from the subprocess's stdout.
func (c *StdioChannel) Read(p []byte) (int, error) {
	return c.stdout.Read(p)
}

// Write writes to the subprocess's stdin.
func (c *StdioChannel) Write(p []byte) (int, error) {
	return c.stdin.Write(p)
}

// Close terminates the subprocess: stdin is closed first so a well-behaved
// server exits on EOF, then the process is killed and reaped.
func (c *StdioChannel) Close() error {
	_ = c.stdin.Close()
	if c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
	err := c.cmd.Wait()
	c.logger.Debug("filesystem service stopped: %v", err)
	return nil
}

// DialSocket connects to a service listening on a TCP address. The returned
// net.Conn satisfies Channel directly.
func DialSocket(addr string) (Channel, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return conn, nil
}
