// Package providers adapts concrete vendor SDKs to the llm.Provider
// interface: one thin wrapper per vendor client.
package providers

import (
	"context"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/goadesign/docgen-engine/internal/llm"
)

// messagesClient captures the subset of the Anthropic SDK used here, so
// tests can substitute a fake without a live API key.
type messagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// AnthropicProvider implements llm.Provider over Claude Messages.
type AnthropicProvider struct {
	msg          messagesClient
	defaultModel string
}

// NewAnthropic builds a provider from an API key. apiKey must be non-empty.
// The key is fixed for the provider's lifetime; Complete does not read
// Request.APIKey, so a per-request key does not reach the Anthropic client.
func NewAnthropic(apiKey, defaultModel string) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, errors.New("providers: anthropic api key is required")
	}
	client := sdk.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicProvider{msg: &client.Messages, defaultModel: defaultModel}, nil
}

// Name returns "anthropic".
func (p *AnthropicProvider) Name() string { return "anthropic" }

// Complete issues one Messages.New call.
func (p *AnthropicProvider) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	modelID := req.Model
	if modelID == "" {
		modelID = p.defaultModel
	}
	if modelID == "" {
		return llm.Response{}, errors.New("providers: anthropic model identifier is required")
	}
	maxTokens := req.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := sdk.MessageNewParams{
		MaxTokens: int64(maxTokens),
		Model:     sdk.Model(modelID),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(req.UserPrompt)),
		},
	}
	if req.SystemPrompt != "" {
		params.System = []sdk.TextBlockParam{{Text: req.SystemPrompt}}
	}
	if req.Temperature > 0 {
		params.Temperature = sdk.Float(req.Temperature)
	}

	msg, err := p.msg.New(ctx, params)
	if err != nil {
		return llm.Response{}, fmt.Errorf("anthropic messages.new: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	in := int(msg.Usage.InputTokens)
	out := int(msg.Usage.OutputTokens)
	return llm.Response{
		Text: text,
		Usage: llm.Usage{
			InputTokens:  &in,
			OutputTokens: &out,
		},
	}, nil
}
