package nodes

import (
	"strings"

	"github.com/goadesign/docgen-engine/internal/docerrors"
	"github.com/goadesign/docgen-engine/internal/llm"
	"github.com/goadesign/docgen-engine/internal/model"
	"github.com/goadesign/docgen-engine/internal/workflow"
)

const executiveSummarySystemPrompt = `Summarize the given text into a concise executive summary in markdown. Preserve key facts and figures.`

// SummarizeSources condenses raw_content when it exceeds the configured
// single-chunk limit, chunking at paragraph boundaries and reducing the
// per-chunk summaries into one. The content
// hash is deliberately not recomputed: it identifies the source set, not the
// bytes sent downstream.
func SummarizeSources(d *Deps) workflow.NodeFunc {
	return func(nc *workflow.NodeContext, state *model.WorkflowState) *model.WorkflowState {
		raw := state.RawContent.Markdown
		if state.Metadata == nil {
			state.Metadata = map[string]any{}
		}
		state.Metadata["raw_content_chars"] = len(raw)

		summary, err := d.summarizeAll(nc, state, raw)
		if err != nil {
			// Summarization is optional: downstream nodes run on the raw
			// concatenation when the LLM is unavailable.
			nc.Logger().Warn(nc.Context(), "summarize_sources: keeping raw content", "err", err)
			state.Metadata["summary_generated"] = false
			return state
		}

		state.SummaryContent = model.SummaryContent{Markdown: summary, ContentHash: state.RawContent.ContentHash}
		state.RawContent.Markdown = summary
		state.Metadata["summary_chars"] = len(summary)
		state.Metadata["summary_generated"] = true

		if state.ArtifactKind.IsDocumentKind() && state.InputPath != "" {
			if _, err := d.writeSessionMarkdown(state, summary); err != nil {
				state.AppendError(docerrors.Wrap(docerrors.Internal, "summarize_sources", err))
			}
		}
		return state
	}
}

// summarizeAll produces the final summary for raw: one call under the
// single-chunk limit, otherwise a per-chunk map followed by a reduce over
// the non-empty partials.
func (d *Deps) summarizeAll(nc *workflow.NodeContext, state *model.WorkflowState, raw string) (string, error) {
	if len(raw) <= d.SingleChunkLimit {
		return d.summarizeChunk(nc, state, raw)
	}
	chunks := chunkByParagraph(raw, d.ChunkLimit)
	var partials []string
	for _, c := range chunks {
		s, err := d.summarizeChunk(nc, state, c)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(s) != "" {
			partials = append(partials, s)
		}
	}
	switch len(partials) {
	case 0:
		return "", nil
	case 1:
		return partials[0], nil
	default:
		return d.summarizeChunk(nc, state, strings.Join(partials, "\n\n"))
	}
}

func (d *Deps) summarizeChunk(nc *workflow.NodeContext, state *model.WorkflowState, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	resp, err := d.Gateway.Call(nc.Context(), llm.Request{
		Provider:     state.Provider,
		Model:        state.Model,
		SystemPrompt: executiveSummarySystemPrompt,
		UserPrompt:   text,
		APIKey:       state.APIKeys[state.Provider],
		StepName:     "summarize_sources",
	})
	if err != nil {
		return "", docerrors.Wrap(docerrors.LLMTransient, "summarize_sources", err)
	}
	return resp.Text, nil
}

// chunkByParagraph splits text on blank-line paragraph boundaries into chunks
// no longer than limit bytes, never splitting a paragraph across chunks
// unless the paragraph alone exceeds limit.
func chunkByParagraph(text string, limit int) []string {
	if limit <= 0 {
		return []string{text}
	}
	paragraphs := strings.Split(text, "\n\n")
	var chunks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
	}
	for _, p := range paragraphs {
		if cur.Len() > 0 && cur.Len()+len(p)+2 > limit {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(p)
	}
	flush()
	if len(chunks) == 0 {
		return []string{text}
	}
	return chunks
}
