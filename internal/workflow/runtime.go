package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/goadesign/docgen-engine/internal/docerrors"
	"github.com/goadesign/docgen-engine/internal/model"
	"github.com/goadesign/docgen-engine/internal/stream"
	"github.com/goadesign/docgen-engine/internal/telemetry"
)

// NodeContext carries the per-execution dependencies a node body needs:
// cancellation, the event sink, and observability, without exposing the
// runtime's internal routing state.
type NodeContext struct {
	ctx    context.Context
	sink   stream.Sink
	logger telemetry.Logger
}

// NewNodeContext builds a standalone NodeContext, for calling a node body
// directly without going through Runtime.Run (unit tests, one-off scripts).
// A nil sink discards Emit calls; a nil logger falls back to a no-op one.
func NewNodeContext(ctx context.Context, sink stream.Sink, logger telemetry.Logger) *NodeContext {
	if sink == nil {
		sink = discardSink{}
	}
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &NodeContext{ctx: ctx, sink: sink, logger: logger}
}

type discardSink struct{}

func (discardSink) Emit(context.Context, stream.Event) error  { return nil }
func (discardSink) Close(context.Context) error                { return nil }

// Context returns the execution's Go context, already wired to the
// runtime's cancellation signal.
func (n *NodeContext) Context() context.Context { return n.ctx }

// Emit publishes a progress event for the current execution. Nodes use this
// for sub-step progress (e.g. per-section image generation); node lifecycle
// events are emitted by the runtime itself.
func (n *NodeContext) Emit(event stream.Event) {
	_ = n.sink.Emit(n.ctx, event)
}

// Logger returns the execution-scoped logger.
func (n *NodeContext) Logger() telemetry.Logger { return n.logger }

// Runtime executes compiled Graphs against a WorkflowState.
type Runtime struct {
	logger  telemetry.Logger
	metrics telemetry.Metrics
	tracer  telemetry.Tracer
}

// NewRuntime constructs a Runtime with the given observability seams. Nil
// arguments fall back to no-op implementations.
func NewRuntime(logger telemetry.Logger, metrics telemetry.Metrics, tracer telemetry.Tracer) *Runtime {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	if tracer == nil {
		tracer = telemetry.NewNoopTracer()
	}
	return &Runtime{logger: logger, metrics: metrics, tracer: tracer}
}

// Run drives state through g starting at g.Entry, emitting NodeStart/NodeEnd/
// Retry events to sink and honoring ctx cancellation, until a node marks
// state.Completed, the graph reaches Terminal, or no further edge resolves.
func (r *Runtime) Run(ctx context.Context, g *Graph, state *model.WorkflowState, sink stream.Sink) (*model.WorkflowState, error) {
	if err := g.Validate(); err != nil {
		return state, err
	}
	if sink == nil {
		sink = discardSink{}
	}

	nodeCtx := &NodeContext{ctx: ctx, sink: sink, logger: r.logger}
	current := g.Entry

	for {
		if err := ctx.Err(); err != nil {
			state.Cancelled = true
			_ = sink.Emit(ctx, cancelledEvent(state))
			return state, nil
		}

		node, ok := g.Nodes[current]
		if !ok {
			return state, fmt.Errorf("workflow: graph %q has no node %q", g.Name, current)
		}

		step := g.stepNumber(current)
		total := g.totalSteps()
		if step == 0 {
			step = state.StepNumber
		}
		// A wrapper embedding this graph can pin per-node step numbers.
		if overrides, ok := state.Metadata["step_numbers"].(map[string]int); ok {
			if n, ok := overrides[current]; ok {
				step = n
			}
		}
		state.StepNumber = step
		state.TotalSteps = total

		_ = sink.Emit(ctx, stream.NodeStart{
			Base: stream.NewBase(stream.EventNodeStart, string(state.SessionID), nil),
			Data: stream.NodeStartPayload{Node: current, StepNumber: step, TotalSteps: total},
		})

		traceCtx, span := r.tracer.Start(ctx, "workflow.node."+current)
		nodeCtx.ctx = traceCtx
		start := time.Now()
		errsBefore := len(state.Errors)
		state = node.Run(nodeCtx, state)
		duration := time.Since(start)
		span.End()
		nodeCtx.ctx = ctx

		r.metrics.RecordTimer("workflow.node.duration", duration, "node", current)

		failed := len(state.Errors) > errsBefore
		var errMsg string
		if failed {
			errMsg = state.LastError().Error()
		}
		_ = sink.Emit(ctx, stream.NodeEnd{
			Base: stream.NewBase(stream.EventNodeEnd, string(state.SessionID), nil),
			Data: stream.NodeEndPayload{Node: current, StepNumber: step, TotalSteps: total, DurationMs: duration.Milliseconds(), Error: errMsg},
		})

		if state.Cancelled {
			_ = sink.Emit(ctx, cancelledEvent(state))
			return state, nil
		}
		if state.Completed {
			return state, nil
		}

		if failed && g.RetryTo != "" && (current == g.RetryFrom || current == g.RetryTo) {
			if err := state.LastError(); docerrors.IsRetryableRender(err) && state.RetryCount < state.MaxRetries {
				state.RetryCount++
				_ = sink.Emit(ctx, stream.Retry{
					Base: stream.NewBase(stream.EventRetry, string(state.SessionID), nil),
					Data: stream.RetryPayload{FromNode: current, ToNode: g.RetryTo, Attempt: state.RetryCount, MaxRetries: state.MaxRetries},
				})
				current = g.RetryTo
				continue
			}
		}

		// A failure the retry pair did not absorb ends the execution; the
		// dispatcher reads the error off the state and reports it as the
		// terminal event. Nodes whose failures are recoverable log them
		// instead of appending.
		if failed {
			return state, nil
		}

		next, terminal := r.resolveNext(g, current, state)
		if terminal {
			return state, nil
		}
		current = next
	}
}

// resolveNext picks the next node after current returns: conditional edges
// take priority over unconditional ones, and are evaluated only after the
// source node returns.
func (r *Runtime) resolveNext(g *Graph, current string, state *model.WorkflowState) (next string, terminal bool) {
	if edge, ok := g.Conditional[current]; ok {
		label := edge.Decide(state)
		to, ok := edge.Routes[label]
		if !ok || to == Terminal {
			return "", true
		}
		return to, false
	}
	to, ok := g.Edges[current]
	if !ok || to == Terminal {
		return "", true
	}
	return to, false
}

func cancelledEvent(state *model.WorkflowState) stream.Cancelled {
	return stream.Cancelled{Base: stream.NewBase(stream.EventCancelled, string(state.SessionID), nil)}
}
