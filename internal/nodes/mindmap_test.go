package nodes

import (
	"errors"
	"testing"

	"github.com/goadesign/docgen-engine/internal/llm"
	"github.com/goadesign/docgen-engine/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateMindMapBuildsTreeFromFirstValidResponse(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{name: "gemini", responses: []llm.Response{
		{Text: `{"title":"T","summary":"S","central_node":{"label":"root","children":[{"label":"child","children":[]}]}}`},
	}}
	d := &Deps{Gateway: newTestGateway(provider)}
	state := model.NewWorkflowState()
	state.Provider = "gemini"
	state.Model = "gemini-2.5-pro"

	out := GenerateMindMap(d)(newTestNodeContext(), state)

	require.Empty(t, out.Errors)
	require.NotNil(t, out.MindMapTree)
	assert.Equal(t, "T", out.MindMapTree.Title)
	assert.Equal(t, "S", out.MindMapTree.Summary)
	assert.Equal(t, "root", out.MindMapTree.Label)
	require.Len(t, out.MindMapTree.Children, 1)
	assert.Equal(t, "child", out.MindMapTree.Children[0].Label)
	assert.True(t, out.Completed)
	assert.Equal(t, 1, provider.calls)
}

func TestGenerateMindMapFallsBackToNextModelOnUnparsableJSON(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{name: "gemini", responses: []llm.Response{
		{Text: "not json"},
		{Text: `{"central_node":{"label":"root"}}`},
	}}
	d := &Deps{Gateway: newTestGateway(provider), MindMapFallbackModels: []string{"gemini-2.0-flash"}}
	state := model.NewWorkflowState()
	state.Provider = "gemini"
	state.Model = "gemini-2.5-pro"

	out := GenerateMindMap(d)(newTestNodeContext(), state)

	require.Empty(t, out.Errors)
	require.NotNil(t, out.MindMapTree)
	assert.Equal(t, "root", out.MindMapTree.Label)
	assert.Equal(t, 2, provider.calls)
}

func TestGenerateMindMapWrapsMissingCentralNodeHeuristically(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{name: "gemini", responses: []llm.Response{
		{Text: `{"title":"Topic","summary":"S"}`},
	}}
	d := &Deps{Gateway: newTestGateway(provider)}
	state := model.NewWorkflowState()
	state.Provider = "gemini"
	state.Model = "gemini-2.5-pro"

	out := GenerateMindMap(d)(newTestNodeContext(), state)
	require.Empty(t, out.Errors)
	require.NotNil(t, out.MindMapTree)
	assert.Equal(t, "Topic", out.MindMapTree.Label)
	assert.Empty(t, out.MindMapTree.Children)
}

func TestGenerateMindMapFallsBackOnSchemaValidationFailure(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{name: "gemini", responses: []llm.Response{
		{Text: `{"central_node":{}}`},
		{Text: `{"central_node":{"label":"root"}}`},
	}}
	d := &Deps{Gateway: newTestGateway(provider), MindMapFallbackModels: []string{"gemini-2.0-flash"}}
	state := model.NewWorkflowState()
	state.Provider = "gemini"
	state.Model = "gemini-2.5-pro"

	out := GenerateMindMap(d)(newTestNodeContext(), state)
	require.Empty(t, out.Errors)
	assert.Equal(t, "root", out.MindMapTree.Label)
}

func TestGenerateMindMapFailsAfterExhaustingAllCandidates(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{name: "gemini", errs: []error{errors.New("e1"), errors.New("e2")}}
	d := &Deps{Gateway: newTestGateway(provider), MindMapFallbackModels: []string{"gemini-2.0-flash"}}
	state := model.NewWorkflowState()
	state.Provider = "gemini"
	state.Model = "gemini-2.5-pro"

	out := GenerateMindMap(d)(newTestNodeContext(), state)
	require.Len(t, out.Errors, 1)
	assert.Nil(t, out.MindMapTree)
	assert.False(t, out.Completed)
}
