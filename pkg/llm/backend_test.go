package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubClient returns a canned response and records the request it saw.
type stubClient struct {
	lastReq CompletionRequest
	resp    CompletionResponse
	err     error
}

func (s *stubClient) Complete(_ context.Context, req CompletionRequest) (CompletionResponse, error) {
	s.lastReq = req
	return s.resp, s.err
}

func (s *stubClient) ModelName() string { return "stub-model" }

// captureRecorder records the last LLM observation.
type captureRecorder struct {
	provider string
	model    string
	status   string
}

func (c *captureRecorder) ObserveIteration(string, int, int)              {}
func (c *captureRecorder) ObserveToolCall(string, string, time.Duration) {}
func (c *captureRecorder) ObserveLLMRequest(provider, model, status string, _ time.Duration) {
	c.provider = provider
	c.model = model
	c.status = status
}

func TestBackendComplete(t *testing.T) {
	stub := &stubClient{resp: CompletionResponse{Content: "hello back", StopReason: "end_turn"}}
	backend := NewBackend(stub, "ollama", WithSystemPrompt("you are terse"))

	got, err := backend.Complete(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello back", got)

	require.Len(t, stub.lastReq.Messages, 2)
	assert.Equal(t, RoleSystem, stub.lastReq.Messages[0].Role)
	assert.Equal(t, "you are terse", stub.lastReq.Messages[0].Content)
	assert.Equal(t, RoleUser, stub.lastReq.Messages[1].Role)
	assert.Equal(t, "hello", stub.lastReq.Messages[1].Content)
	assert.Equal(t, DefaultMaxTokens, stub.lastReq.MaxTokens)
	assert.InDelta(t, DefaultTemperature, stub.lastReq.Temperature, 0.001)
}

func TestBackendCompleteNoSystemPrompt(t *testing.T) {
	stub := &stubClient{resp: CompletionResponse{Content: "ok"}}
	backend := NewBackend(stub, "ollama")

	_, err := backend.Complete(context.Background(), "hello")
	require.NoError(t, err)
	require.Len(t, stub.lastReq.Messages, 1)
	assert.Equal(t, RoleUser, stub.lastReq.Messages[0].Role)
}

func TestBackendCompleteOptions(t *testing.T) {
	stub := &stubClient{resp: CompletionResponse{Content: "ok"}}
	backend := NewBackend(stub, "ollama", WithMaxTokens(512), WithTemperature(0.7))

	_, err := backend.Complete(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, 512, stub.lastReq.MaxTokens)
	assert.InDelta(t, 0.7, stub.lastReq.Temperature, 0.001)
}

func TestBackendCompleteEmptyResponse(t *testing.T) {
	stub := &stubClient{resp: CompletionResponse{Content: ""}}
	backend := NewBackend(stub, "ollama")

	_, err := backend.Complete(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, ErrorTypeEmptyResponse, TypeOf(err))
}

func TestBackendCompleteRecordsMetrics(t *testing.T) {
	rec := &captureRecorder{}
	stub := &stubClient{resp: CompletionResponse{Content: "ok"}}
	backend := NewBackend(stub, "anthropic", WithBackendRecorder(rec))

	_, err := backend.Complete(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", rec.provider)
	assert.Equal(t, "stub-model", rec.model)
	assert.Equal(t, "success", rec.status)
}

func TestBackendCompleteRecordsFailure(t *testing.T) {
	rec := &captureRecorder{}
	stub := &stubClient{err: NewError(ErrorTypeRateLimit, "slow down")}
	backend := NewBackend(stub, "openai", WithBackendRecorder(rec))

	_, err := backend.Complete(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, ErrorTypeRateLimit.String(), rec.status)
}

func TestBackendPropagatesClientError(t *testing.T) {
	cause := errors.New("boom")
	stub := &stubClient{err: WrapError(ErrorTypeTransient, cause)}
	backend := NewBackend(stub, "ollama")

	_, err := backend.Complete(context.Background(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
}
