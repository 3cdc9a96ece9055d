// Package llm implements the provider-agnostic LLM Gateway: a uniform call interface over multiple providers with JSON-mode,
// model fallback, usage accounting, and per-call logging.
package llm

import "context"

// Request is the uniform per-call contract accepted by the Gateway.
type Request struct {
	Provider        string
	Model           string
	SystemPrompt    string
	UserPrompt      string
	MaxOutputTokens int
	Temperature     float64
	JSONMode        bool
	StepName        string
	APIKey          string
}

// Usage reports token accounting for one call, when the provider supplies it.
type Usage struct {
	InputTokens  *int
	OutputTokens *int
	DurationMs   int64
}

// Response is the uniform result of a Gateway call.
type Response struct {
	Text              string
	Usage             Usage
	ModelActuallyUsed string
}

// Provider dispatches one Request to a concrete vendor SDK. Implementations
// must not retry internally; fallback and retry live in the Gateway so usage
// accounting and logging stay centralized.
type Provider interface {
	// Name returns the canonical provider name ("gemini", "openai", "anthropic").
	Name() string
	// Complete issues one non-streaming generation call.
	Complete(ctx context.Context, req Request) (Response, error)
}
