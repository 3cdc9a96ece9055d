package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/goadesign/docgen-engine/internal/docerrors"
	"github.com/goadesign/docgen-engine/internal/model"
	"github.com/goadesign/docgen-engine/internal/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRuntime() *Runtime {
	return NewRuntime(nil, nil, nil)
}

func drainAll(t *testing.T, bus *stream.Bus) []stream.Event {
	t.Helper()
	var events []stream.Event
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for {
		ev, ok, err := bus.Next(ctx)
		require.NoError(t, err)
		if !ok {
			return events
		}
		events = append(events, ev)
	}
}

func TestRuntimeRunsLinearGraphToCompletion(t *testing.T) {
	t.Parallel()

	g := &Graph{
		Name:  "linear",
		Entry: "a",
		Nodes: map[string]Node{
			"a": passthroughNode("a"),
			"b": {Name: "b", Run: func(_ *NodeContext, s *model.WorkflowState) *model.WorkflowState {
				s.Completed = true
				return s
			}},
		},
		Edges: map[string]string{"a": "b"},
		Order: []string{"a", "b"},
	}

	bus := stream.NewBus(16)
	state := model.NewWorkflowState()
	final, err := newTestRuntime().Run(context.Background(), g, state, bus)
	require.NoError(t, err)
	assert.True(t, final.Completed)
	_ = bus.Close(context.Background())

	events := drainAll(t, bus)
	var sawNodeEndB bool
	for _, ev := range events {
		if ev.Type() == stream.EventNodeEnd && ev.(stream.NodeEnd).Data.Node == "b" {
			sawNodeEndB = true
		}
	}
	assert.True(t, sawNodeEndB)
}

func TestRuntimeStopsAtUnconditionalTerminalEdge(t *testing.T) {
	t.Parallel()

	g := &Graph{
		Name:  "terminal",
		Entry: "a",
		Nodes: map[string]Node{"a": passthroughNode("a")},
		Edges: map[string]string{"a": Terminal},
		Order: []string{"a"},
	}
	bus := stream.NewBus(16)
	state := model.NewWorkflowState()
	final, err := newTestRuntime().Run(context.Background(), g, state, bus)
	require.NoError(t, err)
	assert.False(t, final.Completed)
}

func TestRuntimeRetriesBoundedPairUpToMaxRetries(t *testing.T) {
	t.Parallel()

	attempts := 0
	g := &Graph{
		Name:  "retry",
		Entry: "generate",
		Nodes: map[string]Node{
			"generate": {Name: "generate", Run: func(_ *NodeContext, s *model.WorkflowState) *model.WorkflowState {
				attempts++
				s.AppendError(docerrors.New(docerrors.GenerationFailed, "generate", "no output"))
				return s
			}},
		},
		Edges:     map[string]string{"generate": Terminal},
		Order:     []string{"generate"},
		RetryFrom: "generate",
		RetryTo:   "generate",
	}

	bus := stream.NewBus(64)
	state := model.NewWorkflowState()
	state.MaxRetries = 2
	_, err := newTestRuntime().Run(context.Background(), g, state, bus)
	require.NoError(t, err)

	// Initial attempt + MaxRetries retries, then the run ends with the
	// error still on state since it never clears.
	assert.Equal(t, 1+state.MaxRetries, attempts)
	assert.Equal(t, state.MaxRetries, state.RetryCount)
}

func TestRuntimeStopsOnNonRetryableNodeError(t *testing.T) {
	t.Parallel()

	ranB := false
	g := &Graph{
		Name:  "fatal",
		Entry: "a",
		Nodes: map[string]Node{
			"a": {Name: "a", Run: func(_ *NodeContext, s *model.WorkflowState) *model.WorkflowState {
				s.AppendError(docerrors.New(docerrors.UnsupportedSource, "a", "spreadsheet"))
				return s
			}},
			"b": {Name: "b", Run: func(_ *NodeContext, s *model.WorkflowState) *model.WorkflowState {
				ranB = true
				return s
			}},
		},
		Edges: map[string]string{"a": "b", "b": Terminal},
		Order: []string{"a", "b"},
	}

	bus := stream.NewBus(16)
	final, err := newTestRuntime().Run(context.Background(), g, model.NewWorkflowState(), bus)
	require.NoError(t, err)
	assert.False(t, ranB, "nodes after a terminal failure must not run")
	assert.False(t, final.Completed)
	require.Len(t, final.Errors, 1)
}

func TestRuntimeRetriesWhenProducerNodeFailsRetryably(t *testing.T) {
	t.Parallel()

	genAttempts := 0
	g := &Graph{
		Name:  "producer-retry",
		Entry: "generate",
		Nodes: map[string]Node{
			"generate": {Name: "generate", Run: func(_ *NodeContext, s *model.WorkflowState) *model.WorkflowState {
				genAttempts++
				if genAttempts == 1 {
					s.AppendError(docerrors.New(docerrors.GenerationFailed, "generate", "no output"))
				}
				return s
			}},
			"validate": {Name: "validate", Run: func(_ *NodeContext, s *model.WorkflowState) *model.WorkflowState {
				s.Completed = true
				return s
			}},
		},
		Edges:     map[string]string{"generate": "validate", "validate": Terminal},
		Order:     []string{"generate", "validate"},
		RetryFrom: "validate",
		RetryTo:   "generate",
	}

	bus := stream.NewBus(64)
	state := model.NewWorkflowState()
	state.MaxRetries = 3
	final, err := newTestRuntime().Run(context.Background(), g, state, bus)
	require.NoError(t, err)
	assert.True(t, final.Completed)
	assert.Equal(t, 2, genAttempts)
	assert.Equal(t, 1, final.RetryCount)
}

func TestRuntimeHonorsCancellation(t *testing.T) {
	t.Parallel()

	g := &Graph{
		Name:  "cancel",
		Entry: "a",
		Nodes: map[string]Node{
			"a": {Name: "a", Run: func(_ *NodeContext, s *model.WorkflowState) *model.WorkflowState { return s }},
			"b": {Name: "b", Run: func(_ *NodeContext, s *model.WorkflowState) *model.WorkflowState { return s }},
		},
		Edges: map[string]string{"a": "b", "b": Terminal},
		Order: []string{"a", "b"},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	bus := stream.NewBus(16)
	state := model.NewWorkflowState()
	final, err := newTestRuntime().Run(ctx, g, state, bus)
	require.NoError(t, err)
	assert.True(t, final.Cancelled)
}

func TestRuntimeHonorsStepNumberOverrides(t *testing.T) {
	t.Parallel()

	g := &Graph{
		Name:  "wrapped",
		Entry: "a",
		Nodes: map[string]Node{"a": {Name: "a", Run: func(_ *NodeContext, s *model.WorkflowState) *model.WorkflowState {
			s.Completed = true
			return s
		}}},
		Order: []string{"a"},
	}

	bus := stream.NewBus(16)
	state := model.NewWorkflowState()
	state.Metadata["step_numbers"] = map[string]int{"a": 7}
	_, err := newTestRuntime().Run(context.Background(), g, state, bus)
	require.NoError(t, err)
	_ = bus.Close(context.Background())

	events := drainAll(t, bus)
	require.NotEmpty(t, events)
	start, ok := events[0].(stream.NodeStart)
	require.True(t, ok)
	assert.Equal(t, 7, start.Data.StepNumber)
}

func TestConditionalEdgeEvaluatedAfterNodeReturns(t *testing.T) {
	t.Parallel()

	g := &Graph{
		Name:  "branch",
		Entry: "decide",
		Nodes: map[string]Node{
			"decide": {Name: "decide", Run: func(_ *NodeContext, s *model.WorkflowState) *model.WorkflowState {
				s.ArtifactKind = model.ArtifactFAQ
				return s
			}},
			"faqBranch": {Name: "faqBranch", Run: func(_ *NodeContext, s *model.WorkflowState) *model.WorkflowState {
				s.Completed = true
				return s
			}},
		},
		Conditional: map[string]ConditionalEdge{
			"decide": {
				Decide: func(s *model.WorkflowState) string { return string(s.ArtifactKind) },
				Routes: map[string]string{string(model.ArtifactFAQ): "faqBranch"},
			},
		},
		Order: []string{"decide", "faqBranch"},
	}

	bus := stream.NewBus(16)
	final, err := newTestRuntime().Run(context.Background(), g, model.NewWorkflowState(), bus)
	require.NoError(t, err)
	assert.True(t, final.Completed)
}
