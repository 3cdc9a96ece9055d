package nodes

import (
	"context"
	"errors"
	"testing"

	"github.com/goadesign/docgen-engine/internal/collaborators"
	"github.com/goadesign/docgen-engine/internal/llm"
	"github.com/goadesign/docgen-engine/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectFormatAcceptsKnownExtensions(t *testing.T) {
	t.Parallel()

	for path, want := range map[string]string{
		"a.pdf": "pdf", "a.docx": "docx", "a.md": "markdown", "a.txt": "text",
	} {
		state := model.NewWorkflowState()
		state.InputPath = path
		out := DetectFormat(&Deps{})(newTestNodeContext(), state)
		require.Empty(t, out.Errors, "path=%s", path)
		assert.Equal(t, want, out.InputFormat, "path=%s", path)
	}
}

func TestDetectFormatRejectsUnsupportedExtension(t *testing.T) {
	t.Parallel()

	state := model.NewWorkflowState()
	state.InputPath = "a.xlsx"
	out := DetectFormat(&Deps{})(newTestNodeContext(), state)
	require.Len(t, out.Errors, 1)
	assert.Empty(t, out.InputFormat)
}

// fakeParser is a scripted collaborators.Parser for one format.
type fakeParser struct {
	format string
	doc    collaborators.ParsedDocument
	err    error
}

func (f *fakeParser) Supports(format string) bool { return format == f.format }
func (f *fakeParser) Parse(_ context.Context, _ string, _ string) (collaborators.ParsedDocument, error) {
	return f.doc, f.err
}

func TestParseDocumentContentPopulatesRawContentAndMetadata(t *testing.T) {
	t.Parallel()

	p := &fakeParser{format: "pdf", doc: collaborators.ParsedDocument{Markdown: "body", Title: "T", PageCount: 3}}
	d := &Deps{Parsers: collaborators.NewRegistry(p)}
	state := model.NewWorkflowState()
	state.InputFormat = "pdf"

	out := ParseDocumentContent(d)(newTestNodeContext(), state)

	require.Empty(t, out.Errors)
	assert.Equal(t, "body", out.RawContent.Markdown)
	assert.NotEmpty(t, out.RawContent.ContentHash)
	assert.Equal(t, "T", out.Metadata["title"])
	assert.Equal(t, 3, out.Metadata["page_count"])
}

func TestParseDocumentContentWrapsParserErrorAsParseFailed(t *testing.T) {
	t.Parallel()

	p := &fakeParser{format: "pdf", err: errors.New("corrupt")}
	d := &Deps{Parsers: collaborators.NewRegistry(p)}
	state := model.NewWorkflowState()
	state.InputFormat = "pdf"

	out := ParseDocumentContent(d)(newTestNodeContext(), state)
	require.Len(t, out.Errors, 1)
}

func TestTransformContentParsesStructuredResponse(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{name: "gemini", responses: []llm.Response{
		{Text: `{"title":"T","outline":["a"],"sections":[{"title":"1. Intro","content":"body"}],"markdown":"md","visual_markers":[]}`},
	}}
	d := &Deps{Gateway: newTestGateway(provider)}
	state := model.NewWorkflowState()
	state.Provider = "gemini"
	state.RawContent = model.RawContent{Markdown: "raw", ContentHash: "h"}

	out := TransformContent(d)(newTestNodeContext(), state)

	require.Empty(t, out.Errors)
	assert.Equal(t, "T", out.StructuredContent.Title)
	require.Len(t, out.StructuredContent.Sections, 1)
	assert.Equal(t, 1, out.StructuredContent.Sections[0].ID)
	assert.Equal(t, "h", out.StructuredContent.ContentHash)
	assert.Equal(t, "T", out.Metadata["title"])
}

func TestTransformContentFallsBackToDeterministicStructureOnGatewayError(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{name: "gemini", errs: []error{errors.New("boom")}}
	d := &Deps{Gateway: newTestGateway(provider)}
	state := model.NewWorkflowState()
	state.Provider = "gemini"
	state.RawContent = model.RawContent{Markdown: "# Intro\n\nbody\n", ContentHash: "h"}

	out := TransformContent(d)(newTestNodeContext(), state)

	require.Empty(t, out.Errors)
	assert.Equal(t, "Intro", out.StructuredContent.Title)
	assert.Equal(t, "h", out.StructuredContent.ContentHash)
}

func TestTransformContentFallsBackOnSchemaValidationFailure(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{name: "gemini", responses: []llm.Response{
		{Text: `{"title":"missing sections"}`},
	}}
	d := &Deps{Gateway: newTestGateway(provider)}
	state := model.NewWorkflowState()
	state.Provider = "gemini"
	state.RawContent = model.RawContent{Markdown: "# Intro\n\nbody\n", ContentHash: "h"}

	out := TransformContent(d)(newTestNodeContext(), state)

	require.Empty(t, out.Errors)
	assert.Equal(t, "Intro", out.StructuredContent.Title)
}

func TestEnhanceContentFillsMissingExecutiveSummary(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{name: "gemini", responses: []llm.Response{
		{Text: "summary text"},
	}}
	d := &Deps{Gateway: newTestGateway(provider)}
	state := model.NewWorkflowState()
	state.Provider = "gemini"
	state.StructuredContent.Markdown = "body"

	out := EnhanceContent(d)(newTestNodeContext(), state)

	require.Empty(t, out.Errors)
	assert.Equal(t, "summary text", out.StructuredContent.ExecutiveSummary)
}

func TestEnhanceContentWrapsSummaryErrorForSummaryDrivenKinds(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{name: "gemini", errs: []error{errors.New("boom")}}
	d := &Deps{Gateway: newTestGateway(provider)}
	state := model.NewWorkflowState()
	state.Provider = "gemini"
	state.ArtifactKind = model.ArtifactArticlePDF
	state.StructuredContent.Markdown = "body"

	out := EnhanceContent(d)(newTestNodeContext(), state)
	require.Len(t, out.Errors, 1)
}

func TestEnhanceContentToleratesSummaryErrorForPlainMarkdown(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{name: "gemini", errs: []error{errors.New("boom")}}
	d := &Deps{Gateway: newTestGateway(provider)}
	state := model.NewWorkflowState()
	state.Provider = "gemini"
	state.ArtifactKind = model.ArtifactArticleMarkdown
	state.StructuredContent.Markdown = "body"

	out := EnhanceContent(d)(newTestNodeContext(), state)
	require.Empty(t, out.Errors)
	assert.Empty(t, out.StructuredContent.ExecutiveSummary)
}

func TestEnhanceContentRetriesSlidesUntilMaxAttemptsThenFails(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{name: "gemini", responses: []llm.Response{
		{Text: "summary"},
		{Text: `{"slides":[]}`},
		{Text: `{"slides":[]}`},
	}}
	d := &Deps{Gateway: newTestGateway(provider), MaxAttempts: 2}
	state := model.NewWorkflowState()
	state.Provider = "gemini"
	state.ArtifactKind = model.ArtifactSlideDeckPDF
	state.StructuredContent.Markdown = "body"

	out := EnhanceContent(d)(newTestNodeContext(), state)

	require.Len(t, out.Errors, 1)
	assert.Empty(t, out.StructuredContent.Slides)
}

func TestEnhanceContentSucceedsWhenSlideAttemptEventuallyReturnsSlides(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{name: "gemini", responses: []llm.Response{
		{Text: "summary"},
		{Text: `{"slides":[]}`},
		{Text: `{"slides":[{"title":"S1","bullets":["a"],"speaker_notes":"n"}]}`},
	}}
	d := &Deps{Gateway: newTestGateway(provider), MaxAttempts: 3}
	state := model.NewWorkflowState()
	state.Provider = "gemini"
	state.ArtifactKind = model.ArtifactSlideDeckPDF
	state.StructuredContent.Markdown = "body"

	out := EnhanceContent(d)(newTestNodeContext(), state)

	require.Empty(t, out.Errors)
	require.Len(t, out.StructuredContent.Slides, 1)
	assert.Equal(t, "S1", out.StructuredContent.Slides[0].Title)
}

func TestRequestSlidesCapsAtMaxSlides(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{name: "gemini", responses: []llm.Response{
		{Text: `{"slides":[{"title":"1"},{"title":"2"},{"title":"3"}]}`},
	}}
	d := &Deps{Gateway: newTestGateway(provider), MaxSlides: 2}
	state := model.NewWorkflowState()
	state.Provider = "gemini"
	state.StructuredContent.Markdown = "body"

	slides, err := d.requestSlides(newTestNodeContext(), state)
	require.NoError(t, err)
	require.Len(t, slides, 2)
	assert.Equal(t, "1", slides[0].Title)
	assert.Equal(t, "2", slides[1].Title)
}
