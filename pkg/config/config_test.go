package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMinimal(t *testing.T) {
	cfg, err := Parse([]byte(`
loop:
  prompt: "Create hello.txt containing a haiku"
`))
	require.NoError(t, err)

	assert.Equal(t, ProviderOllama, cfg.Backend.Provider)
	assert.Equal(t, DefaultModel, cfg.Backend.Model)
	assert.Equal(t, DefaultOllamaHost, cfg.Backend.Host)
	assert.Equal(t, DefaultMaxTokens, cfg.Backend.MaxTokens)
	assert.InDelta(t, DefaultTemperature, cfg.Backend.Temperature, 0.001)

	assert.Equal(t, TransportStdio, cfg.Transport.Mode)
	assert.Equal(t, "npx", cfg.Transport.Command)
	assert.Equal(t, []string{"-y", "@modelcontextprotocol/server-filesystem", "."}, cfg.Transport.Args)
	assert.Equal(t, DefaultCallTimeout, cfg.Transport.CallTimeout.Std())

	assert.Equal(t, DefaultRestInterval, cfg.Loop.RestInterval.Std())
	assert.Equal(t, 0, cfg.Loop.MaxIterations)
	assert.Empty(t, cfg.Metrics.ListenAddr)
}

func TestParseFull(t *testing.T) {
	cfg, err := Parse([]byte(`
backend:
  provider: ollama
  model: llama3.1:8b
  host: http://10.0.0.5:11434
  max_tokens: 2048
  temperature: 0.5
transport:
  mode: socket
  addr: 127.0.0.1:9300
  call_timeout: 10s
loop:
  prompt: "do the thing"
  rest_interval: 500ms
  max_iterations: 3
  max_prompt_tokens: 1000
metrics:
  listen_addr: :9090
`))
	require.NoError(t, err)

	assert.Equal(t, "llama3.1:8b", cfg.Backend.Model)
	assert.Equal(t, "http://10.0.0.5:11434", cfg.Backend.Host)
	assert.Equal(t, 2048, cfg.Backend.MaxTokens)
	assert.Equal(t, TransportSocket, cfg.Transport.Mode)
	assert.Equal(t, "127.0.0.1:9300", cfg.Transport.Addr)
	assert.Equal(t, 10*time.Second, cfg.Transport.CallTimeout.Std())
	assert.Equal(t, 500*time.Millisecond, cfg.Loop.RestInterval.Std())
	assert.Equal(t, 3, cfg.Loop.MaxIterations)
	assert.Equal(t, 1000, cfg.Loop.MaxPromptTokens)
	assert.Equal(t, ":9090", cfg.Metrics.ListenAddr)
}

func TestParseEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_SCRIBE_KEY", "sk-test-123")

	cfg, err := Parse([]byte(`
backend:
  provider: anthropic
  model: claude-sonnet-4-20250514
  api_key: ${TEST_SCRIBE_KEY}
loop:
  prompt: "hello"
`))
	require.NoError(t, err)
	assert.Equal(t, "sk-test-123", cfg.Backend.APIKey)
}

func TestParseUnsetEnvVarFails(t *testing.T) {
	_, err := Parse([]byte(`
backend:
  provider: anthropic
  model: claude-sonnet-4-20250514
  api_key: ${DEFINITELY_NOT_SET_ANYWHERE}
loop:
  prompt: "hello"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unset environment variable")
}

func TestParseValidation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing prompt",
			yaml:    `backend: {provider: ollama}`,
			wantErr: "prompt must not be empty",
		},
		{
			name: "unknown provider",
			yaml: `
backend: {provider: cohere}
loop: {prompt: "x"}`,
			wantErr: "unknown backend provider",
		},
		{
			name: "hosted provider without key",
			yaml: `
backend: {provider: openai, model: gpt-4o-mini}
loop: {prompt: "x"}`,
			wantErr: "requires an api_key",
		},
		{
			name: "unknown transport mode",
			yaml: `
transport: {mode: pigeon}
loop: {prompt: "x"}`,
			wantErr: "unknown transport mode",
		},
		{
			name: "socket without addr",
			yaml: `
transport: {mode: socket}
loop: {prompt: "x"}`,
			wantErr: "socket transport requires an addr",
		},
		{
			name: "negative max iterations",
			yaml: `
loop: {prompt: "x", max_iterations: -1}`,
			wantErr: "max_iterations",
		},
		{
			name: "bad duration",
			yaml: `
transport: {call_timeout: banana}
loop: {prompt: "x"}`,
			wantErr: "invalid duration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scribe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
loop:
  prompt: "write a haiku to hello.txt"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "write a haiku to hello.txt", cfg.Loop.Prompt)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
