// Command docgen-batch discovers topic folders under a local data directory
// and runs each one through the in-process workflow engine, bypassing the
// HTTP dispatcher entirely. Every regular file in a folder becomes one
// source; the folder name becomes the session ID.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/goadesign/docgen-engine/internal/cache/fscache"
	"github.com/goadesign/docgen-engine/internal/calltrace"
	"github.com/goadesign/docgen-engine/internal/collaborators"
	"github.com/goadesign/docgen-engine/internal/config"
	"github.com/goadesign/docgen-engine/internal/llm"
	"github.com/goadesign/docgen-engine/internal/llm/providers"
	"github.com/goadesign/docgen-engine/internal/model"
	"github.com/goadesign/docgen-engine/internal/nodes"
	"github.com/goadesign/docgen-engine/internal/telemetry"
	"github.com/goadesign/docgen-engine/internal/workflow"
	"github.com/goadesign/docgen-engine/internal/workflows"
)

func main() {
	var (
		dataDir    = flag.String("data-dir", "./data/topics", "directory whose subfolders are each processed as one topic")
		outputDir  = flag.String("output-dir", "./data/output", "directory artifacts are written under")
		kind       = flag.String("kind", string(model.ArtifactArticleMarkdown), "artifact kind to generate for every topic")
		provider   = flag.String("provider", "gemini", "LLM provider name")
		modelName  = flag.String("model", "gemini-2.5-pro", "LLM model name")
		skipImages = flag.Bool("skip-images", false, "disable infographic/diagram generation for this run")
	)
	flag.Parse()

	if err := run(*dataDir, *outputDir, model.ArtifactKind(*kind), *provider, *modelName, *skipImages); err != nil {
		slog.Error("docgen-batch: fatal", "err", err)
		os.Exit(1)
	}
}

func run(dataDir, outputDir string, kind model.ArtifactKind, provider, modelName string, skipImages bool) error {
	cfg := config.Load()
	logger := telemetry.NewClueLogger()

	gateway, err := buildGateway(cfg, logger)
	if err != nil {
		return fmt.Errorf("llm gateway: %w", err)
	}

	store := fscache.New(outputDir, cfg.CacheRoot, logger)
	deps := &nodes.Deps{
		Gateway:                  gateway,
		Cache:                    store,
		Parsers:                  collaborators.DefaultRegistry(),
		Renderers:                collaborators.DefaultRendererRegistry(),
		TTS:                      collaborators.NewOpenAITTS(cfg.OpenAIAPIKey),
		Images:                   collaborators.NewOpenAIImageProvider(cfg.ImageAPIKey, cfg.DefaultImageModel),
		Logger:                   logger,
		OutputRoot:               outputDir,
		SingleChunkLimit:         cfg.SingleChunkLimit,
		ChunkLimit:               cfg.ChunkLimit,
		MaxSlides:                cfg.MaxSlides,
		MaxAttempts:              cfg.MaxAttempts,
		EnableInfographics:       cfg.EnableInfographics && !skipImages,
		EnableDecorativeHeaders:  cfg.EnableDecorativeHeaders,
		EnableDiagrams:           cfg.EnableDiagrams && !skipImages,
		GeminiImageFallbackModel: cfg.GeminiImageFallbackModel,
		MindMapFallbackModels:    cfg.MindMapFallbackModels,
	}

	graph, err := workflows.Compile(kind, deps)
	if err != nil {
		return fmt.Errorf("compile workflow for kind %q: %w", kind, err)
	}
	runtime := workflow.NewRuntime(logger, telemetry.NewClueMetrics(), telemetry.NewClueTracer())

	folders, err := discoverTopicFolders(dataDir)
	if err != nil {
		return err
	}
	if len(folders) == 0 {
		return fmt.Errorf("no topic folders found under %s", dataDir)
	}
	slog.Info("docgen-batch: discovered topics", "count", len(folders), "data_dir", dataDir)

	processed, failed := 0, 0
	for i, folder := range folders {
		name := filepath.Base(folder)
		slog.Info("docgen-batch: processing topic", "n", i+1, "of", len(folders), "topic", name)

		sources, err := topicSources(folder)
		if err != nil {
			slog.Error("docgen-batch: discover sources failed", "topic", name, "err", err)
			failed++
			continue
		}
		if len(sources) == 0 {
			slog.Warn("docgen-batch: topic has no files, skipping", "topic", name)
			failed++
			continue
		}

		state := model.NewWorkflowState()
		state.SessionID = model.SessionID(name)
		state.ArtifactKind = kind
		state.Provider = provider
		state.Model = modelName
		state.Sources = sources

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
		final, err := runtime.Run(ctx, graph, state, nil)
		cancel()
		if err != nil {
			slog.Error("docgen-batch: run failed", "topic", name, "err", err)
			failed++
			continue
		}
		if final.LastError() != nil {
			slog.Error("docgen-batch: workflow reported error", "topic", name, "err", final.LastError())
			failed++
			continue
		}
		processed++
		slog.Info("docgen-batch: topic done", "topic", name, "output_path", final.OutputPath)
	}

	slog.Info("docgen-batch: batch complete", "processed", processed, "failed", failed, "total", len(folders))
	if failed > 0 && processed == 0 {
		return fmt.Errorf("all %d topics failed", failed)
	}
	return nil
}

// discoverTopicFolders returns the sorted, non-hidden subdirectories of dir.
func discoverTopicFolders(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("data dir %s: %w", dir, err)
	}
	var folders []string
	for _, e := range entries {
		if e.IsDir() && e.Name()[0] != '.' {
			folders = append(folders, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(folders)
	return folders, nil
}

// topicSources turns every regular, non-hidden file directly under folder
// into an uploaded-file source, letting IngestSources' format detection and
// parser registry handle each one.
func topicSources(folder string) ([]model.Source, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, err
	}
	var sources []model.Source
	for _, e := range entries {
		if e.IsDir() || e.Name()[0] == '.' {
			continue
		}
		sources = append(sources, model.Source{
			Kind:   model.SourceUploadedFile,
			Handle: filepath.Join(folder, e.Name()),
		})
	}
	return sources, nil
}

// buildGateway mirrors docgen-server's provider wiring so batch runs get the
// same fallback/rate-limit/call-trace behavior as the HTTP edge.
func buildGateway(cfg config.Config, logger telemetry.Logger) (*llm.Gateway, error) {
	ctx := context.Background()
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
