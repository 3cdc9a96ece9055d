package nodes

import (
	"os"
	"path/filepath"

	"github.com/goadesign/docgen-engine/internal/cache"
	"github.com/goadesign/docgen-engine/internal/collaborators"
	"github.com/goadesign/docgen-engine/internal/docerrors"
	"github.com/goadesign/docgen-engine/internal/model"
	"github.com/goadesign/docgen-engine/internal/workflow"
)

// rendererKind maps an ArtifactKind to the Renderer.Kind() it delegates to.
func rendererKind(k model.ArtifactKind) string {
	switch k {
	case model.ArtifactArticlePDF, model.ArtifactSlideDeckPDF:
		return "pdf"
	case model.ArtifactPresentationPPTX:
		return "pptx"
	case model.ArtifactArticleMarkdown:
		return "markdown"
	default:
		return ""
	}
}

// GenerateOutput delegates to the external renderer for state.ArtifactKind,
// writing a deterministic path <session>/<kind>/<slug>.<ext>.
func GenerateOutput(d *Deps) workflow.NodeFunc {
	return func(nc *workflow.NodeContext, state *model.WorkflowState) *model.WorkflowState {
		kind := rendererKind(state.ArtifactKind)
		if kind == "" {
			state.AppendError(docerrors.Errorf(docerrors.GenerationFailed, "generate_output", "artifact kind %q has no renderer", state.ArtifactKind))
			return state
		}

		title := state.StructuredContent.Title
		if title == "" {
			title = "untitled"
		}
		slug := cache.Slugify(title)
		if slug == "" {
			slug = "untitled"
		}
		dir := filepath.Join(d.OutputRoot, "sessions", string(state.SessionID), string(state.ArtifactKind))
		outPath := filepath.Join(dir, slug+state.ArtifactKind.Extension())

		images := make(map[int]string, len(state.StructuredContent.SectionImages))
		for id, img := range state.StructuredContent.SectionImages {
			if img.Path != "" {
				images[id] = img.Path
			}
		}
		var slides []collaborators.RenderSlide
		for _, s := range state.StructuredContent.Slides {
			slides = append(slides, collaborators.RenderSlide{Title: s.Title, Bullets: s.Bullets, SpeakerNotes: s.SpeakerNotes})
		}

		path, err := d.Renderers.Render(nc.Context(), kind, collaborators.RenderRequest{
			OutputPath: outPath,
			Title:      title,
			Markdown:   state.StructuredContent.Markdown,
			Slides:     slides,
			Images:     images,
		})
		if err != nil {
			state.AppendError(docerrors.Wrap(docerrors.GenerationFailed, "generate_output", err))
			return state
		}
		state.OutputPath = path
		return state
	}
}

// ValidateOutput verifies state.OutputPath exists, is non-empty, and carries
// the expected extension for the artifact kind.
func ValidateOutput(d *Deps) workflow.NodeFunc {
	return func(nc *workflow.NodeContext, state *model.WorkflowState) *model.WorkflowState {
		info, err := os.Stat(state.OutputPath)
		if err != nil {
			state.AppendError(docerrors.Errorf(docerrors.ValidationFailed, "validate_output", "output file missing: %v", err))
			return state
		}
		if info.Size() == 0 {
			state.AppendError(docerrors.Errorf(docerrors.ValidationFailed, "validate_output", "output file is empty: %s", state.OutputPath))
			return state
		}
		want := state.ArtifactKind.Extension()
		if want != "" && filepath.Ext(state.OutputPath) != want {
			state.AppendError(docerrors.Errorf(docerrors.ValidationFailed, "validate_output", "output file has extension %q, want %q", filepath.Ext(state.OutputPath), want))
			return state
		}
		state.Completed = true
		return state
	}
}
