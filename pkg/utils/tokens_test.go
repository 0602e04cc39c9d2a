package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountTokens(t *testing.T) {
	counter, err := NewTokenCounter("gpt-4")
	require.NoError(t, err)

	tests := []struct {
		name string
		text string
		min  int
		max  int
	}{
		{name: "empty string", text: "", min: 0, max: 0},
		{name: "single word", text: "hello", min: 1, max: 2},
		{name: "sentence", text: "The quick brown fox jumps over the lazy dog", min: 5, max: 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count := counter.CountTokens(tt.text)
			assert.GreaterOrEqual(t, count, tt.min)
			assert.LessOrEqual(t, count, tt.max)
		})
	}
}

func TestCountTokensFallback(t *testing.T) {
	counter := &TokenCounter{} // nil codec uses the character estimate

	assert.Equal(t, 0, counter.CountTokens("abc"))
	assert.Equal(t, 3, counter.CountTokens(strings.Repeat("a", 12)))
}

func TestValidateTokenLimit(t *testing.T) {
	counter, err := NewTokenCounter("gpt-4")
	require.NoError(t, err)

	assert.True(t, counter.ValidateTokenLimit("short text", 100))
	assert.False(t, counter.ValidateTokenLimit(strings.Repeat("word ", 1000), 10))
}

func TestTruncateToTokenLimit(t *testing.T) {
	counter, err := NewTokenCounter("gpt-4")
	require.NoError(t, err)

	short := "already fits"
	assert.Equal(t, short, counter.TruncateToTokenLimit(short, 100))

	long := strings.Repeat("the quick brown fox ", 500)
	truncated := counter.TruncateToTokenLimit(long, 50)
	assert.Less(t, len(truncated), len(long))
	assert.True(t, strings.HasSuffix(truncated, "..."))
	assert.LessOrEqual(t, counter.CountTokens(truncated), 60)
}
