// Package nodes implements the node bodies: thin coordinators
// that wire the LLM Gateway, Cache Store, and external collaborators
// (parsers, renderers, TTS, image providers) into workflow.NodeFunc values.
// Each constructor closes over a Deps value and returns a function with no
// other state, so a single Deps can back many concurrent executions.
package nodes

import (
	"github.com/goadesign/docgen-engine/internal/cache"
	"github.com/goadesign/docgen-engine/internal/collaborators"
	"github.com/goadesign/docgen-engine/internal/llm"
	"github.com/goadesign/docgen-engine/internal/telemetry"
)

// Deps bundles every external seam a node body may need. Fields are plain
// values/interfaces so tests can substitute fakes without touching the
// constructors below.
type Deps struct {
	Gateway   *llm.Gateway
	Cache     cache.Store
	Parsers   *collaborators.Registry
	Renderers *collaborators.RendererRegistry
	TTS       collaborators.TTSProvider
	Images    collaborators.ImageProvider
	Logger    telemetry.Logger

	// OutputRoot is the filesystem root under which session-scoped temporary
	// markdown and rendered artifacts are written.
	OutputRoot string

	// SingleChunkLimit is the raw_content byte length below which
	// summarize_sources makes a single executive-summary call instead of
	// chunking.
	SingleChunkLimit int
	// ChunkLimit bounds each chunk's byte length when raw_content exceeds
	// SingleChunkLimit.
	ChunkLimit int
	// MaxSlides bounds the slide count requested for slide-capable artifacts.
	MaxSlides int
	// MaxAttempts bounds retries for slide-structure generation in
	// enhance_content.
	MaxAttempts int

	EnableInfographics       bool
	EnableDecorativeHeaders  bool
	EnableDiagrams           bool

	// GeminiImageFallbackModel is the faster model generate_images retries
	// with once on a timeout or explicit image-provider failure.
	GeminiImageFallbackModel string

	// MindMapFallbackModels is the ordered model list generate_mindmap tries
	// after its primary model returns unparsable JSON.
	MindMapFallbackModels []string
}

func (d *Deps) logger() telemetry.Logger {
	if d.Logger == nil {
		return telemetry.NewNoopLogger()
	}
	return d.Logger
}
