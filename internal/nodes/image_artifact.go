package nodes

import (
	"os"

	"github.com/goadesign/docgen-engine/internal/collaborators"
	"github.com/goadesign/docgen-engine/internal/docerrors"
	"github.com/goadesign/docgen-engine/internal/model"
	"github.com/goadesign/docgen-engine/internal/workflow"
)

// ImageGenerate issues a single image-provider call from the caller's
// prompt/style. Not cached by content hash:
// the dispatcher keys this artifact kind by request body only.
func ImageGenerate(d *Deps) workflow.NodeFunc {
	return func(nc *workflow.NodeContext, state *model.WorkflowState) *model.WorkflowState {
		prompt := state.Preferences["prompt"]
		style := state.Preferences["style"]
		result, err := d.Images.Generate(nc.Context(), collaborators.ImageRequest{Prompt: prompt, Style: style, Model: state.ImageModel})
		if err != nil {
			state.AppendError(docerrors.Wrap(docerrors.GenerationFailed, "image_generate", err))
			return state
		}
		state.ImageData = &model.ImageData{Bytes: result.Bytes, Format: result.Format, Prompt: prompt}
		state.Completed = true
		return state
	}
}

// ImageEdit issues a single image-provider edit call against the caller's
// source image. ImageEdit skips ingest_sources
// (ArtifactKind.RequiresIngest is false), so state.Sources still holds the
// raw uploaded-file handle this node reads directly.
func ImageEdit(d *Deps) workflow.NodeFunc {
	return func(nc *workflow.NodeContext, state *model.WorkflowState) *model.WorkflowState {
		prompt := state.Preferences["prompt"]
		style := state.Preferences["style"]

		source, err := sourceImageBytes(state.Sources)
		if err != nil {
			state.AppendError(docerrors.Wrap(docerrors.UnsupportedSource, "image_edit", err))
			return state
		}

		result, err := d.Images.Edit(nc.Context(), collaborators.ImageRequest{Prompt: prompt, Style: style, SourceImage: source, Model: state.ImageModel})
		if err != nil {
			state.AppendError(docerrors.Wrap(docerrors.GenerationFailed, "image_edit", err))
			return state
		}
		state.ImageData = &model.ImageData{Bytes: result.Bytes, Format: result.Format, Prompt: prompt}
		state.Completed = true
		return state
	}
}

func sourceImageBytes(sources []model.Source) ([]byte, error) {
	for _, s := range sources {
		switch s.Kind {
		case model.SourceUploadedFile:
			return os.ReadFile(s.Handle)
		case model.SourceInlineText:
			return []byte(s.Text), nil
		}
	}
	return nil, docerrors.New(docerrors.UnsupportedSource, "image_edit", "no source image supplied")
}
