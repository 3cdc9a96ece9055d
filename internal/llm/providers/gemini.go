package providers

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/goadesign/docgen-engine/internal/llm"
)

// GeminiProvider implements llm.Provider over Google's genai SDK using a
// single non-streaming GenerateContent call. Gemini is the only provider
// the Gateway falls back across models for.
type GeminiProvider struct {
	client       *genai.Client
	defaultModel string
}

// NewGemini builds a provider from an API key.
func NewGemini(ctx context.Context, apiKey, defaultModel string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, errors.New("providers: gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("providers: gemini client: %w", err)
	}
	return &GeminiProvider{client: client, defaultModel: defaultModel}, nil
}

// Name returns "gemini".
func (p *GeminiProvider) Name() string { return "gemini" }

// Complete issues one Models.GenerateContent call.
func (p *GeminiProvider) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	modelID := req.Model
	if modelID == "" {
		modelID = p.defaultModel
	}
	if modelID == "" {
		return llm.Response{}, errors.New("providers: gemini model identifier is required")
	}

	contents := []*genai.Content{genai.NewContentFromText(req.UserPrompt, genai.RoleUser)}
	config := &genai.GenerateContentConfig{}
	if req.SystemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.MaxOutputTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxOutputTokens)
	}
	if req.Temperature > 0 {
		temp := float32(req.Temperature)
		config.Temperature = &temp
	}
	if req.JSONMode {
		config.ResponseMIMEType = "application/json"
	}

	resp, err := p.client.Models.GenerateContent(ctx, modelID, contents, config)
	if err != nil {
		return llm.Response{}, fmt.Errorf("gemini generation failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return llm.Response{}, errors.New("providers: gemini returned no candidates")
	}

	text := resp.Text()
	var usage llm.Usage
	if resp.UsageMetadata != nil {
		in := int(resp.UsageMetadata.PromptTokenCount)
		out := int(resp.UsageMetadata.CandidatesTokenCount)
		usage = llm.Usage{InputTokens: &in, OutputTokens: &out}
	}
	return llm.Response{Text: text, Usage: usage}, nil
}
