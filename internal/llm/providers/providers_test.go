package providers

import (
	"context"
	"testing"

	"github.com/goadesign/docgen-engine/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Constructor validation, plus Complete's input checks that fail before any
// network call; a successful Complete needs a live key or a fake client.

func TestNewAnthropicRejectsEmptyAPIKey(t *testing.T) {
	t.Parallel()

	_, err := NewAnthropic("", "claude-3")
	assert.Error(t, err)
}

func TestNewAnthropicAcceptsAPIKeyAndSetsName(t *testing.T) {
	t.Parallel()

	p, err := NewAnthropic("sk-test", "claude-3")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p.Name())
}

func TestNewOpenAIRejectsBlankAPIKey(t *testing.T) {
	t.Parallel()

	_, err := NewOpenAI("   ", "gpt-4o")
	assert.Error(t, err)
}

func TestNewOpenAIAcceptsAPIKeyAndSetsName(t *testing.T) {
	t.Parallel()

	p, err := NewOpenAI("sk-test", "gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())
}

func TestNewGeminiRejectsEmptyAPIKey(t *testing.T) {
	t.Parallel()

	_, err := NewGemini(context.Background(), "", "gemini-2.5-pro")
	assert.Error(t, err)
}

func TestAnthropicCompleteRejectsMissingModel(t *testing.T) {
	t.Parallel()

	p, err := NewAnthropic("sk-test", "")
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), llm.Request{UserPrompt: "hi"})
	assert.Error(t, err)
}
