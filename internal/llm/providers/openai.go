package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/goadesign/docgen-engine/internal/llm"
)

// chatClient captures the subset of the OpenAI SDK used here, narrow
// enough that tests can substitute a fake without a live API key.
type chatClient interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// OpenAIProvider implements llm.Provider over Chat Completions.
type OpenAIProvider struct {
	chat         chatClient
	defaultModel string
}

// NewOpenAI builds a provider from an API key.
func NewOpenAI(apiKey, defaultModel string) (*OpenAIProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("providers: openai api key is required")
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIProvider{chat: &client.Chat.Completions, defaultModel: defaultModel}, nil
}

// Name returns "openai".
func (p *OpenAIProvider) Name() string { return "openai" }

// Complete issues one Chat Completions call.
func (p *OpenAIProvider) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	modelID := strings.TrimSpace(req.Model)
	if modelID == "" {
		modelID = p.defaultModel
	}
	if modelID == "" {
		return llm.Response{}, errors.New("providers: openai model identifier is required")
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(req.UserPrompt))

	params := openai.ChatCompletionNewParams{
		Model:    modelID,
		Messages: messages,
	}
	if req.MaxOutputTokens > 0 {
		params.MaxTokens = param.NewOpt(int64(req.MaxOutputTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = param.NewOpt(req.Temperature)
	}
	if req.JSONMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := p.chat.New(ctx, params)
	if err != nil {
		return llm.Response{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return llm.Response{}, errors.New("providers: openai returned no choices")
	}

	in := int(resp.Usage.PromptTokens)
	out := int(resp.Usage.CompletionTokens)
	return llm.Response{
		Text: resp.Choices[0].Message.Content,
		Usage: llm.Usage{
			InputTokens:  &in,
			OutputTokens: &out,
		},
	}, nil
}
