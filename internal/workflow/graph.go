// Package workflow implements the in-process graph runtime: a DAG of
// named nodes executed sequentially against a shared WorkflowState, with
// conditional routing, a single bounded retry pair, progress emission, and
// cooperative cancellation.
//
// The abstraction is deliberately narrower than a durable workflow engine
// (no activities, signals, or replay): a single execution runs at most one
// node at a time, entirely in-process, and is never resumed after a crash.
package workflow

import (
	"fmt"

	"github.com/goadesign/docgen-engine/internal/model"
)

// NodeFunc is a node body: State → State. It must never panic across this
// boundary; failures are reported by appending to state.Errors.
type NodeFunc func(ctx *NodeContext, state *model.WorkflowState) *model.WorkflowState

// Node names a NodeFunc for graph wiring, step numbering, and progress events.
type Node struct {
	Name string
	Run  NodeFunc
}

// Decider inspects state and returns the routing label a ConditionalEdge
// should follow (for example, state.ArtifactKind's branch name).
type Decider func(state *model.WorkflowState) string

// ConditionalEdge routes from a source node to one of several destinations
// based on Decide's label, evaluated after the source node returns.
type ConditionalEdge struct {
	Decide Decider
	Routes map[string]string
}

// Terminal is the sentinel destination name marking the graph's designated
// sink; reaching it ends the execution.
const Terminal = "END"

// Graph is a compiled DAG: named nodes, an entry point, unconditional and
// conditional edges, and an optional single retry pair.
type Graph struct {
	// Name identifies the graph for logs and step-numbering metadata.
	Name string
	// Entry is the first node invoked.
	Entry string
	// Nodes holds every node reachable in this graph, keyed by name.
	Nodes map[string]Node
	// Edges are unconditional next-node links.
	Edges map[string]string
	// Conditional maps a source node name to its routing decision.
	Conditional map[string]ConditionalEdge
	// Order is the canonical forward path used purely for step numbering
	// (retries re-run a step without advancing TotalSteps).
	Order []string
	// RetryFrom is the validator half of the retry pair; empty disables
	// retry for this graph. A retryable failure in either half routes back
	// to RetryTo.
	RetryFrom string
	// RetryTo is the producer node re-run on a retryable failure.
	RetryTo string
}

// Validate reports a structural error if the graph cannot be executed: a
// missing entry node, an edge pointing at an undeclared node, or a retry
// pair referencing nodes outside the graph.
func (g *Graph) Validate() error {
	if g.Entry == "" {
		return fmt.Errorf("workflow: graph %q has no entry node", g.Name)
	}
	if _, ok := g.Nodes[g.Entry]; !ok {
		return fmt.Errorf("workflow: graph %q entry node %q not declared", g.Name, g.Entry)
	}
	for from, to := range g.Edges {
		if to == Terminal {
			continue
		}
		if _, ok := g.Nodes[to]; !ok {
			return fmt.Errorf("workflow: graph %q edge %q -> %q: target not declared", g.Name, from, to)
		}
	}
	for from, edge := range g.Conditional {
		if _, ok := g.Nodes[from]; !ok {
			return fmt.Errorf("workflow: graph %q conditional edge from undeclared node %q", g.Name, from)
		}
		for label, to := range edge.Routes {
			if to == Terminal {
				continue
			}
			if _, ok := g.Nodes[to]; !ok {
				return fmt.Errorf("workflow: graph %q conditional edge %q[%s] -> %q: target not declared", g.Name, from, label, to)
			}
		}
	}
	if (g.RetryFrom == "") != (g.RetryTo == "") {
		return fmt.Errorf("workflow: graph %q retry pair must set both RetryFrom and RetryTo", g.Name)
	}
	return nil
}

// stepNumber returns the 1-based position of node in g.Order, or 0 if node
// is not part of the canonical path (e.g. reached only via branch routing
// before Order was extended for that branch).
func (g *Graph) stepNumber(node string) int {
	for i, n := range g.Order {
		if n == node {
			return i + 1
		}
	}
	return 0
}

// totalSteps returns the canonical path length for step-number display.
func (g *Graph) totalSteps() int { return len(g.Order) }
