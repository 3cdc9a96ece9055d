// Command docgen-server runs the generation orchestration engine's HTTP
// edge: it loads configuration, wires the cache backend, LLM providers, and
// collaborators into the node and workflow layers, and serves the
// documented surface until the process receives a signal.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/goadesign/docgen-engine/internal/cache"
	"github.com/goadesign/docgen-engine/internal/cache/fscache"
	"github.com/goadesign/docgen-engine/internal/cache/mongocache"
	"github.com/goadesign/docgen-engine/internal/cache/rediscache"
	"github.com/goadesign/docgen-engine/internal/calltrace"
	"github.com/goadesign/docgen-engine/internal/collaborators"
	"github.com/goadesign/docgen-engine/internal/config"
	"github.com/goadesign/docgen-engine/internal/llm"
	"github.com/goadesign/docgen-engine/internal/llm/providers"
	"github.com/goadesign/docgen-engine/internal/nodes"
	"github.com/goadesign/docgen-engine/internal/server"
	"github.com/goadesign/docgen-engine/internal/telemetry"
	"github.com/goadesign/docgen-engine/internal/workflow"
)

func main() {
	if err := run(); err != nil {
		slog.Error("docgen-server: fatal", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	logger := telemetry.NewClueLogger()
	metrics := telemetry.NewClueMetrics()
	tracer := telemetry.NewClueTracer()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := buildCacheStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("cache store: %w", err)
	}

	gateway, err := buildGateway(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("llm gateway: %w", err)
	}

	deps := &nodes.Deps{
		Gateway:                  gateway,
		Cache:                    store,
		Parsers:                  collaborators.DefaultRegistry(),
		Renderers:                collaborators.DefaultRendererRegistry(),
		TTS:                      collaborators.NewOpenAITTS(cfg.OpenAIAPIKey),
		Images:                   collaborators.NewOpenAIImageProvider(cfg.ImageAPIKey, cfg.DefaultImageModel),
		Logger:                   logger,
		OutputRoot:               cfg.OutputRoot,
		SingleChunkLimit:         cfg.SingleChunkLimit,
		ChunkLimit:               cfg.ChunkLimit,
		MaxSlides:                cfg.MaxSlides,
		MaxAttempts:              cfg.MaxAttempts,
		EnableInfographics:       cfg.EnableInfographics,
		EnableDecorativeHeaders:  cfg.EnableDecorativeHeaders,
		EnableDiagrams:           cfg.EnableDiagrams,
		GeminiImageFallbackModel: cfg.GeminiImageFallbackModel,
		MindMapFallbackModels:    cfg.MindMapFallbackModels,
	}

	dispatcher := &server.Dispatcher{
		Cfg:     cfg,
		Cache:   store,
		Deps:    deps,
		Runtime: workflow.NewRuntime(logger, metrics, tracer),
		Logger:  logger,
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           dispatcher.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("docgen-server: listening", "addr", cfg.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
	return nil
}

// buildCacheStore selects the cache.Store backend named by
// cfg.CacheBackend, defaulting to the atomic filesystem store.
func buildCacheStore(ctx context.Context, cfg config.Config) (cache.Store, error) {
	switch cfg.CacheBackend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisURL, Password: cfg.RedisPassword})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		return rediscache.New(rdb, "docgen", cfg.OutputRoot), nil

	case "mongo":
		client, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, fmt.Errorf("mongo connect: %w", err)
		}
		db := client.Database(cfg.MongoDatabase)
		return mongocache.New(db.Collection("manifests"), db.Collection("cache_keys"), db.Collection("images"), cfg.OutputRoot), nil

	default:
		return fscache.New(cfg.OutputRoot, cfg.CacheRoot, telemetry.NewClueLogger()), nil
	}
}

// buildGateway constructs every provider whose API key is configured and
// wires them into a Gateway with Gemini fallback and rate limiting.
func buildGateway(ctx context.Context, cfg config.Config, logger telemetry.Logger) (*llm.Gateway, error) {
	var provs []llm.Provider

	if cfg.GeminiAPIKey != "" {
		p, err := providers.NewGemini(ctx, cfg.GeminiAPIKey, cfg.DefaultModel)
		if err != nil {
			return nil, fmt.Errorf("gemini provider: %w", err)
		}
		provs = append(provs, p)
	}
	if cfg.OpenAIAPIKey != "" {
		p, err := providers.NewOpenAI(cfg.OpenAIAPIKey, "gpt-4o")
		if err != nil {
			return nil, fmt.Errorf("openai provider: %w", err)
		}
		provs = append(provs, p)
	}
	if cfg.AnthropicAPIKey != "" {
		p, err := providers.NewAnthropic(cfg.AnthropicAPIKey, "claude-sonnet-4-20250514")
		if err != nil {
			return nil, fmt.Errorf("anthropic provider: %w", err)
		}
		provs = append(provs, p)
	}

	opts := []llm.Option{
		llm.WithLogger(logger),
		llm.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		llm.WithGeminiFallbackModels(cfg.GeminiFallbackModels...),
	}
	if cfg.CallTraceDir != "" {
		tracer, err := calltrace.NewFileObserver(cfg.CallTraceDir)
		if err != nil {
			return nil, fmt.Errorf("call trace observer: %w", err)
		}
		opts = append(opts, llm.WithObserver(tracer.Observe))
	}

	return llm.NewGateway(provs, 256, opts...), nil
}
