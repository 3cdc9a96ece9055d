package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goadesign/docgen-engine/internal/docerrors"
	"github.com/goadesign/docgen-engine/internal/model"
	"github.com/goadesign/docgen-engine/internal/telemetry"
)

// ObserverFunc is the observability sink invoked after every call, with the
// step name, prompt, response, and call metadata.
type ObserverFunc func(ctx context.Context, stepName, prompt, response string, meta model.LLMCall)

// Gateway is the LLM gateway: a uniform call interface over multiple
// providers with JSON-mode, model fallback, usage accounting, and per-call
// logging. Safe to call concurrently from many workflow executions.
type Gateway struct {
	providers map[string]Provider
	fallback  map[string][]string // provider -> ordered curated fallback models (excluding caller's own model)
	usage     *UsageRegistry
	limiter   *limiterSet
	logger    telemetry.Logger
	observer  ObserverFunc
	now       func() time.Time
}

// Option configures a Gateway at construction time.
type Option func(*Gateway)

// WithLogger sets the structured logger used for per-call logging.
func WithLogger(l telemetry.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// WithObserver registers a sink invoked after every call.
func WithObserver(fn ObserverFunc) Option {
	return func(g *Gateway) { g.observer = fn }
}

// WithRateLimit caps provider calls to rps requests/sec with the given burst,
// one bucket per provider name.
func WithRateLimit(rps float64, burst int) Option {
	return func(g *Gateway) { g.limiter = newLimiterSet(rps, burst) }
}

// WithGeminiFallbackModels sets the ordered provider-curated fallback list
// consulted after the caller's own model on transient Gemini errors.
func WithGeminiFallbackModels(models ...string) Option {
	return func(g *Gateway) {
		if g.fallback == nil {
			g.fallback = map[string][]string{}
		}
		g.fallback["gemini"] = models
	}
}

// NewGateway constructs a Gateway over the given providers (keyed by
// Provider.Name()), with a usage ring capped at ringCapacity records.
func NewGateway(providers []Provider, ringCapacity int, opts ...Option) *Gateway {
	byName := make(map[string]Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	g := &Gateway{
		providers: byName,
		fallback:  map[string][]string{},
		usage:     NewUsageRegistry(ringCapacity),
		logger:    telemetry.NewNoopLogger(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Usage returns the gateway's usage registry, exposed so the dispatcher can
// assemble terminal events from the process-wide ring.
func (g *Gateway) Usage() *UsageRegistry { return g.usage }

// normalizeProvider maps "google" to "gemini".
func normalizeProvider(p string) string {
	if strings.EqualFold(p, "google") {
		return "gemini"
	}
	return strings.ToLower(p)
}

// Call dispatches req to its provider, applying Gemini model fallback on
// transient errors and recording one LLMCall per attempt.
func (g *Gateway) Call(ctx context.Context, req Request) (Response, error) {
	req.Provider = normalizeProvider(req.Provider)
	provider, ok := g.providers[req.Provider]
	if !ok {
		return Response{}, docerrors.Errorf(docerrors.LLMUnavailable, req.StepName, "no provider registered for %q", req.Provider)
	}

	prompt := g.renderPrompt(req)
	candidates := g.modelCandidates(req)

	var lastErr error
	for i, modelID := range candidates {
		attempt := req
		attempt.Model = modelID
		resp, err := g.attempt(ctx, provider, attempt, prompt)
		if err == nil {
			resp.ModelActuallyUsed = modelID
			return resp, nil
		}
		lastErr = err
		if req.Provider != "gemini" || !docerrors.IsTransient(err) || i == len(candidates)-1 {
			return Response{}, wrapProviderError(req, err)
		}
		g.logger.Warn(ctx, "llm gateway: transient error, falling back", "provider", req.Provider, "model", modelID, "next", candidates[i+1], "err", err.Error())
	}
	return Response{}, wrapProviderError(req, lastErr)
}

func wrapProviderError(req Request, err error) error {
	if err == nil {
		return nil
	}
	code := docerrors.Internal
	if docerrors.IsTransient(err) {
		code = docerrors.LLMTransient
	}
	return docerrors.Wrap(code, req.StepName, err)
}

// modelCandidates builds the ordered, de-duplicated fallback sequence:
// [caller_model, provider-curated defaults...]. Non-Gemini
// providers never fall back, so the sequence is just the caller's model.
func (g *Gateway) modelCandidates(req Request) []string {
	if req.Provider != "gemini" {
		return []string{req.Model}
	}
	seen := map[string]bool{}
	var out []string
	add := func(m string) {
		if m == "" || seen[m] {
			return
		}
		seen[m] = true
		out = append(out, m)
	}
	add(req.Model)
	for _, m := range g.fallback["gemini"] {
		add(m)
	}
	if len(out) == 0 {
		out = []string{req.Model}
	}
	return out
}

// renderPrompt appends the JSON-mode instruction when requested.
func (g *Gateway) renderPrompt(req Request) string {
	if !req.JSONMode {
		return req.UserPrompt
	}
	return req.UserPrompt + "\n\nRespond with valid JSON only."
}

func (g *Gateway) attempt(ctx context.Context, provider Provider, req Request, prompt string) (Response, error) {
	if g.limiter != nil {
		if err := g.limiter.wait(ctx, req.Provider); err != nil {
			return Response{}, err
		}
	}
	req.UserPrompt = prompt
	start := g.now()
	resp, err := provider.Complete(ctx, req)
	duration := g.now().Sub(start)
	resp.Usage.DurationMs = duration.Milliseconds()

	call := model.LLMCall{
		StepName:       req.StepName,
		Provider:       req.Provider,
		Model:          req.Model,
		PromptDigest:   model.ContentHash(prompt),
		ResponseDigest: model.ContentHash(resp.Text),
		InputTokens:    resp.Usage.InputTokens,
		OutputTokens:   resp.Usage.OutputTokens,
		DurationMs:     resp.Usage.DurationMs,
		Timestamp:      g.now(),
	}
	g.usage.Record(call)
	g.logger.Info(ctx, "llm gateway: call", "step", req.StepName, "provider", req.Provider, "model", req.Model, "duration_ms", call.DurationMs, "ok", err == nil)
	if g.observer != nil {
		g.observer(ctx, req.StepName, prompt, resp.Text, call)
	}
	if err != nil {
		return Response{}, fmt.Errorf("%s: %w", req.Provider, err)
	}
	return resp, nil
}
