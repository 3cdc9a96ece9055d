package nodes

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/goadesign/docgen-engine/internal/docerrors"
	"github.com/goadesign/docgen-engine/internal/llm"
	"github.com/goadesign/docgen-engine/internal/model"
	"github.com/goadesign/docgen-engine/internal/workflow"
)

const visionIngestSystemPrompt = `You extract text from an image. Return markdown with two parts: the verbatim text visible in the image, followed by a short paragraph describing the image.`

// IngestSources resolves every WorkflowState.Sources entry into markdown,
// concatenates them, and for document-kind artifacts writes the result to a
// session-scoped temporary file.
func IngestSources(d *Deps) workflow.NodeFunc {
	return func(nc *workflow.NodeContext, state *model.WorkflowState) *model.WorkflowState {
		parts := make([]string, 0, len(state.Sources))
		names := make([]string, 0, len(state.Sources))
		for i, src := range state.Sources {
			md, err := d.resolveSource(nc, state, i, src)
			if err != nil {
				state.AppendError(err)
				return state
			}
			parts = append(parts, md)
			names = append(names, sourceName(src))
		}

		state.RawContent = model.NewRawContent(parts)
		if state.Metadata == nil {
			state.Metadata = map[string]any{}
		}
		state.Metadata["source_count"] = len(state.Sources)
		state.Metadata["content_type"] = detectContentType(names, parts)

		if state.ArtifactKind.IsDocumentKind() {
			path, err := d.writeSessionMarkdown(state, state.RawContent.Markdown)
			if err != nil {
				state.AppendError(docerrors.Wrap(docerrors.Internal, "ingest_sources", err))
				return state
			}
			state.InputPath = path
		}
		return state
	}
}

func (d *Deps) resolveSource(nc *workflow.NodeContext, state *model.WorkflowState, idx int, src model.Source) (string, error) {
	switch src.Kind {
	case model.SourceInlineText:
		return src.Text, nil

	case model.SourceUploadedFile:
		if isSpreadsheet(src.Handle) {
			return "", docerrors.Errorf(docerrors.UnsupportedSource, "ingest_sources", "source %d: spreadsheet uploads are not supported: %s", idx, src.Handle)
		}
		format := canonicalFormat("", src.Handle)
		if isImage(format) {
			return d.describeImageSource(nc, state, src.Handle)
		}
		doc, err := d.Parsers.Parse(nc.Context(), format, src.Handle)
		if err != nil {
			return "", docerrors.Wrap(docerrors.ParseFailed, "ingest_sources", err)
		}
		return doc.Markdown, nil

	case model.SourceURL:
		if isSpreadsheet(src.URL) {
			return "", docerrors.Errorf(docerrors.UnsupportedSource, "ingest_sources", "source %d: spreadsheet URLs are not supported: %s", idx, src.URL)
		}
		format := canonicalFormat(src.ParserHint, src.URL)
		tmp, err := d.fetchToTempFile(nc, src.URL)
		if err != nil {
			return "", docerrors.Wrap(docerrors.ParseFailed, "ingest_sources", err)
		}
		defer os.Remove(tmp)
		if isImage(format) {
			return d.describeImageSource(nc, state, tmp)
		}
		doc, err := d.Parsers.Parse(nc.Context(), format, tmp)
		if err != nil {
			return "", docerrors.Wrap(docerrors.ParseFailed, "ingest_sources", err)
		}
		return doc.Markdown, nil

	default:
		return "", docerrors.Errorf(docerrors.UnsupportedSource, "ingest_sources", "source %d: unknown source kind %q", idx, src.Kind)
	}
}

// sourceName returns the filename or URL a source is known by, for
// content-type detection; inline text has no name.
func sourceName(src model.Source) string {
	switch src.Kind {
	case model.SourceUploadedFile:
		return src.Handle
	case model.SourceURL:
		return src.URL
	default:
		return ""
	}
}

func (d *Deps) fetchToTempFile(nc *workflow.NodeContext, url string) (string, error) {
	req, err := http.NewRequestWithContext(nc.Context(), http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	f, err := os.CreateTemp("", "docgen-source-*")
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return "", err
	}
	return f.Name(), nil
}

// describeImageSource invokes a vision LLM for image understanding. Our
// Provider.Complete contract is text-in/text-out; we pass the file path in the prompt so providers that support
// file-reference tools can resolve it, and treat the textual response as
// markdown either way.
func (d *Deps) describeImageSource(nc *workflow.NodeContext, state *model.WorkflowState, path string) (string, error) {
	resp, err := d.Gateway.Call(nc.Context(), llm.Request{
		Provider:     state.Provider,
		Model:        state.Model,
		SystemPrompt: visionIngestSystemPrompt,
		UserPrompt:   fmt.Sprintf("Image file: %s", path),
		APIKey:       state.APIKeys[state.Provider],
		StepName:     "ingest_sources.vision",
	})
	if err != nil {
		return "", docerrors.Wrap(docerrors.ParseFailed, "ingest_sources", err)
	}
	return resp.Text, nil
}

func (d *Deps) writeSessionMarkdown(state *model.WorkflowState, markdown string) (string, error) {
	dir := filepath.Join(d.OutputRoot, "sessions", string(state.SessionID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, "input.md")
	tmp := path + "." + uuid.NewString() + ".tmp"
	if err := os.WriteFile(tmp, []byte(markdown), 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", err
	}
	return path, nil
}
