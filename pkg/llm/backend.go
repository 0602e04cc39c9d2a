package llm

import (
	"context"
	"time"

	"scribe/pkg/logx"
	"scribe/pkg/metrics"
)

// Backend adapts a Client to the prompt-in, completion-out boundary the
// agent loop works against. It folds the configured system prompt and
// request parameters into each call and records request metrics.
type Backend struct {
	client       Client
	provider     string
	systemPrompt string
	maxTokens    int
	temperature  float32
	recorder     metrics.Recorder
	logger       *logx.Logger
}

// BackendOption configures a Backend.
type BackendOption func(*Backend)

// WithSystemPrompt sets the system message sent with every completion.
func WithSystemPrompt(prompt string) BackendOption {
	return func(b *Backend) { b.systemPrompt = prompt }
}

// WithMaxTokens overrides the default completion token cap.
func WithMaxTokens(n int) BackendOption {
	return func(b *Backend) {
		if n > 0 {
			b.maxTokens = n
		}
	}
}

// WithTemperature overrides the default sampling temperature.
func WithTemperature(temp float32) BackendOption {
	return func(b *Backend) { b.temperature = temp }
}

// WithBackendRecorder sets the metrics recorder. Defaults to a no-op.
func WithBackendRecorder(rec metrics.Recorder) BackendOption {
	return func(b *Backend) { b.recorder = rec }
}

// NewBackend wraps a provider client. provider is the label used in logs
// and metrics ("ollama", "anthropic", ...).
func NewBackend(client Client, provider string, opts ...BackendOption) *Backend {
	b := &Backend{
		client:      client,
		provider:    provider,
		maxTokens:   DefaultMaxTokens,
		temperature: DefaultTemperature,
		recorder:    metrics.NopRecorder{},
		logger:      logx.NewLogger("llm"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Complete submits one prompt and returns the raw completion text.
func (b *Backend) Complete(ctx context.Context, prompt string) (string, error) {
	messages := make([]CompletionMessage, 0, 2)
	if b.systemPrompt != "" {
		messages = append(messages, NewSystemMessage(b.systemPrompt))
	}
	messages = append(messages, NewUserMessage(prompt))

	req := CompletionRequest{
		Messages:    messages,
		MaxTokens:   b.maxTokens,
		Temperature: b.temperature,
	}

	start := time.Now()
	resp, err := b.client.Complete(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		b.recorder.ObserveLLMRequest(b.provider, b.client.ModelName(), TypeOf(err).String(), elapsed)
		return "", err
	}
	if resp.Content == "" {
		b.recorder.ObserveLLMRequest(b.provider, b.client.ModelName(), ErrorTypeEmptyResponse.String(), elapsed)
		return "", NewError(ErrorTypeEmptyResponse, "backend returned an empty completion")
	}

	b.recorder.ObserveLLMRequest(b.provider, b.client.ModelName(), "success", elapsed)
	b.logger.Debug("completion received in %s (%d bytes, stop=%s)", elapsed.Round(time.Millisecond), len(resp.Content), resp.StopReason)
	return resp.Content, nil
}

// ModelName returns the wrapped client's model name.
func (b *Backend) ModelName() string {
	return b.client.ModelName()
}
