package nodes

import (
	"context"

	"github.com/goadesign/docgen-engine/internal/llm"
	"github.com/goadesign/docgen-engine/internal/workflow"
)

// scriptedProvider returns canned responses in call order, one per Complete
// invocation; it errors once the script is exhausted.
type scriptedProvider struct {
	name      string
	responses []llm.Response
	errs      []error
	calls     int
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) Complete(_ context.Context, req llm.Request) (llm.Response, error) {
	i := p.calls
	p.calls++
	if i < len(p.errs) && p.errs[i] != nil {
		return llm.Response{}, p.errs[i]
	}
	if i < len(p.responses) {
		return p.responses[i], nil
	}
	return llm.Response{}, nil
}

func newTestGateway(p llm.Provider) *llm.Gateway {
	return llm.NewGateway([]llm.Provider{p}, 16)
}

func newTestNodeContext() *workflow.NodeContext {
	return workflow.NewNodeContext(context.Background(), nil, nil)
}

func newTestNodeContextWithCtx(ctx context.Context) *workflow.NodeContext {
	return workflow.NewNodeContext(ctx, nil, nil)
}
