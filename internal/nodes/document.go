package nodes

import (
	"regexp"
	"strings"

	"github.com/goadesign/docgen-engine/internal/docerrors"
	"github.com/goadesign/docgen-engine/internal/llm"
	"github.com/goadesign/docgen-engine/internal/model"
	"github.com/goadesign/docgen-engine/internal/workflow"
)

// DetectFormat maps state.InputPath's extension to a canonical format enum.
// Unsupported extensions are a terminal error.
func DetectFormat(d *Deps) workflow.NodeFunc {
	return func(nc *workflow.NodeContext, state *model.WorkflowState) *model.WorkflowState {
		format := canonicalFormat("", state.InputPath)
		switch format {
		case "pdf", "docx", "markdown", "text":
			state.InputFormat = format
		default:
			state.AppendError(docerrors.Errorf(docerrors.UnsupportedSource, "detect_format", "unsupported input format %q", format))
		}
		return state
	}
}

// ParseDocumentContent invokes the external parser for state.InputFormat,
// recording title/page_count metadata and recomputing the content hash over
// the parsed bytes.
func ParseDocumentContent(d *Deps) workflow.NodeFunc {
	return func(nc *workflow.NodeContext, state *model.WorkflowState) *model.WorkflowState {
		doc, err := d.Parsers.Parse(nc.Context(), state.InputFormat, state.InputPath)
		if err != nil {
			state.AppendError(docerrors.Wrap(docerrors.ParseFailed, "parse_document_content", err))
			return state
		}
		state.RawContent = model.RawContent{Markdown: doc.Markdown, ContentHash: model.ContentHash(doc.Markdown)}
		if state.Metadata == nil {
			state.Metadata = map[string]any{}
		}
		if doc.Title != "" {
			state.Metadata["title"] = doc.Title
		}
		if doc.PageCount > 0 {
			state.Metadata["page_count"] = doc.PageCount
		}
		return state
	}
}

type structuredContentResponse struct {
	Title            string                `json:"title"`
	Outline          []string              `json:"outline"`
	Sections         []sectionResponse     `json:"sections"`
	Markdown         string                `json:"markdown"`
	VisualMarkers    []visualMarkerResponse `json:"visual_markers"`
	ExecutiveSummary string                `json:"executive_summary"`
	Slides           []slideResponse       `json:"slides"`
}

type sectionResponse struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type visualMarkerResponse struct {
	MarkerID    string `json:"marker_id"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Position    int    `json:"position"`
}

type slideResponse struct {
	Title        string   `json:"title"`
	Bullets      []string `json:"bullets"`
	SpeakerNotes string   `json:"speaker_notes"`
}

const transformSystemPrompt = `Convert the given content into a structured blog-style document. Respond with JSON: {"title":"","outline":[""],"sections":[{"title":"","content":""}],"markdown":"","visual_markers":[{"marker_id":"","type":"","title":"","description":"","position":0}]}. Valid visual_markers types: architecture, flowchart, comparison, concept_map, mind_map.`

// TransformContent asks the LLM gateway for a typed blog-style structure, falling back to
// a deterministic HTML-comment-stripping cleaner when the LLM is unavailable.
// A prior StructuredContent is not
// separately cached here: the dispatcher's artifact-level CacheKey lookup
// already short-circuits the whole graph on a cache hit, so
// transform_content always runs fresh once an execution reaches it.
func TransformContent(d *Deps) workflow.NodeFunc {
	return func(nc *workflow.NodeContext, state *model.WorkflowState) *model.WorkflowState {
		prompt := buildTransformPrompt(state)
		resp, err := d.Gateway.Call(nc.Context(), llm.Request{
			Provider:     state.Provider,
			Model:        state.Model,
			SystemPrompt: transformSystemPrompt,
			UserPrompt:   prompt,
			JSONMode:     true,
			APIKey:       state.APIKeys[state.Provider],
			StepName:     "transform_content",
		})

		var parsed structuredContentResponse
		if err == nil {
			err = llm.SafeJSONParse(resp.Text, &parsed)
		}
		if err == nil {
			err = validateAgainstSchema("structured_content", structuredContentSchema, parsed)
		}
		if err != nil {
			state.StructuredContent = deterministicStructure(state.RawContent.Markdown)
			nc.Logger().Warn(nc.Context(), "transform_content: falling back to deterministic cleaner", "err", err)
		} else {
			state.StructuredContent = fromStructuredResponse(parsed)
		}
		state.StructuredContent.ContentHash = state.RawContent.ContentHash

		if title, _ := state.Metadata["title"].(string); title == "" && state.StructuredContent.Title != "" {
			if state.Metadata == nil {
				state.Metadata = map[string]any{}
			}
			state.Metadata["title"] = state.StructuredContent.Title
		}

		if state.ArtifactKind.IsSummaryDriven() && state.StructuredContent.ExecutiveSummary == "" {
			summary, err := d.summarizeChunk(nc, state, state.StructuredContent.Markdown)
			if err == nil {
				state.StructuredContent.ExecutiveSummary = summary
			}
		}
		if state.ArtifactKind.IsSlideCapable() && len(state.StructuredContent.Slides) == 0 {
			slides, err := d.requestSlides(nc, state)
			if err == nil {
				state.StructuredContent.Slides = slides
			}
		}
		return state
	}
}

func buildTransformPrompt(state *model.WorkflowState) string {
	return state.RawContent.Markdown
}

func fromStructuredResponse(r structuredContentResponse) model.StructuredContent {
	sc := model.StructuredContent{
		Title:            r.Title,
		Outline:          r.Outline,
		Markdown:         r.Markdown,
		ExecutiveSummary: r.ExecutiveSummary,
	}
	fallback := 1
	for _, s := range r.Sections {
		id, _ := model.AssignSectionID(s.Title, fallback)
		fallback = id + 1
		sc.Sections = append(sc.Sections, model.Section{ID: id, Title: s.Title, Content: s.Content})
	}
	for _, m := range r.VisualMarkers {
		t := model.VisualMarkerType(strings.ToLower(m.Type))
		if !model.ValidVisualMarkerTypes[t] {
			continue
		}
		sc.VisualMarkers = append(sc.VisualMarkers, model.VisualMarker{
			MarkerID: m.MarkerID, Type: t, Title: m.Title, Description: m.Description, Position: m.Position,
		})
	}
	for _, s := range r.Slides {
		sc.Slides = append(sc.Slides, model.Slide{Title: s.Title, Bullets: s.Bullets, SpeakerNotes: s.SpeakerNotes})
	}
	if sc.Markdown == "" {
		sc.Markdown = r.Markdown
	}
	return sc
}

var htmlCommentPattern = regexp.MustCompile(`(?s)<!--.*?-->`)

// deterministicStructure is the non-LLM fallback: strip HTML comments and
// treat the raw content as markdown verbatim.
func deterministicStructure(raw string) model.StructuredContent {
	cleaned := htmlCommentPattern.ReplaceAllString(raw, "")
	sections := parseSections(cleaned)
	title := ""
	if len(sections) > 0 {
		title = sections[0].Title
	}
	return model.StructuredContent{
		Title:    title,
		Markdown: cleaned,
		Sections: sections,
	}
}

const slideSystemPrompt = `Produce a slide structure for this content. Respond with JSON: {"slides":[{"title":"","bullets":[""],"speaker_notes":""}]}.`

// EnhanceContent fills in a missing executive summary or slide structure,
// retrying slide generation up to MaxAttempts times for slide-mandatory
// outputs before surfacing a retryable error.
func EnhanceContent(d *Deps) workflow.NodeFunc {
	return func(nc *workflow.NodeContext, state *model.WorkflowState) *model.WorkflowState {
		if state.StructuredContent.ExecutiveSummary == "" {
			summary, err := d.summarizeChunk(nc, state, state.StructuredContent.Markdown)
			if err != nil {
				// The summary is load-bearing only for summary-driven kinds;
				// everything else renders without one.
				if state.ArtifactKind.IsSummaryDriven() {
					state.AppendError(docerrors.Wrap(docerrors.LLMTransient, "enhance_content", err))
					return state
				}
				nc.Logger().Warn(nc.Context(), "enhance_content: executive summary unavailable", "err", err)
			}
			state.StructuredContent.ExecutiveSummary = summary
		}

		if state.ArtifactKind.IsSlideCapable() && len(state.StructuredContent.Slides) == 0 {
			var lastErr error
			attempts := d.MaxAttempts
			if attempts <= 0 {
				attempts = 1
			}
			for i := 0; i < attempts; i++ {
				slides, err := d.requestSlides(nc, state)
				if err == nil && len(slides) > 0 {
					state.StructuredContent.Slides = slides
					lastErr = nil
					break
				}
				lastErr = err
			}
			if len(state.StructuredContent.Slides) == 0 {
				state.AppendError(docerrors.Errorf(docerrors.GenerationFailed, "enhance_content", "slide structure generation exhausted %d attempts: %v", attempts, lastErr))
			}
		}
		return state
	}
}

func (d *Deps) requestSlides(nc *workflow.NodeContext, state *model.WorkflowState) ([]model.Slide, error) {
	resp, err := d.Gateway.Call(nc.Context(), llm.Request{
		Provider:     state.Provider,
		Model:        state.Model,
		SystemPrompt: slideSystemPrompt,
		UserPrompt:   state.StructuredContent.Markdown,
		JSONMode:     true,
		APIKey:       state.APIKeys[state.Provider],
		StepName:     "enhance_content.slides",
	})
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Slides []slideResponse `json:"slides"`
	}
	if err := llm.SafeJSONParse(resp.Text, &parsed); err != nil {
		return nil, err
	}
	max := d.MaxSlides
	if max <= 0 || max > len(parsed.Slides) {
		max = len(parsed.Slides)
	}
	slides := make([]model.Slide, 0, max)
	for i := 0; i < max; i++ {
		s := parsed.Slides[i]
		slides = append(slides, model.Slide{Title: s.Title, Bullets: s.Bullets, SpeakerNotes: s.SpeakerNotes})
	}
	return slides, nil
}
