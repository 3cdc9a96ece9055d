package nodes

import (
	"github.com/goadesign/docgen-engine/internal/docerrors"
	"github.com/goadesign/docgen-engine/internal/llm"
	"github.com/goadesign/docgen-engine/internal/model"
	"github.com/goadesign/docgen-engine/internal/workflow"
)

const mindMapSystemPrompt = `Produce a mind map of the given content. Respond with JSON: {"title":"","summary":"","central_node":{"label":"","children":[{"label":"","children":[]}]}}.`

type mindMapResponse struct {
	Title       string          `json:"title"`
	Summary     string          `json:"summary"`
	CentralNode *mindMapNodeDTO `json:"central_node,omitempty"`
}

type mindMapNodeDTO struct {
	Label    string            `json:"label"`
	Children []*mindMapNodeDTO `json:"children"`
}

func (n *mindMapNodeDTO) toModel() *model.MindMapNode {
	if n == nil {
		return nil
	}
	out := &model.MindMapNode{Label: n.Label}
	for _, c := range n.Children {
		out.Children = append(out.Children, c.toModel())
	}
	return out
}

// GenerateMindMap asks the LLM gateway in JSON mode for a recursive mind-map tree, falling
// back through an ordered model list on unparsable JSON.
func GenerateMindMap(d *Deps) workflow.NodeFunc {
	return func(nc *workflow.NodeContext, state *model.WorkflowState) *model.WorkflowState {
		candidates := append([]string{state.Model}, d.MindMapFallbackModels...)

		var parsed mindMapResponse
		var lastErr error
		ok := false
		for _, modelID := range candidates {
			if modelID == "" {
				continue
			}
			resp, err := d.Gateway.Call(nc.Context(), llm.Request{
				Provider:     state.Provider,
				Model:        modelID,
				SystemPrompt: mindMapSystemPrompt,
				UserPrompt:   state.RawContent.Markdown,
				JSONMode:     true,
				APIKey:       state.APIKeys[state.Provider],
				StepName:     "generate_mindmap",
			})
			if err != nil {
				lastErr = err
				continue
			}
			if err := llm.SafeJSONParse(resp.Text, &parsed); err != nil {
				lastErr = err
				continue
			}
			// Validate the response as sent: re-marshalling parsed would
			// fill missing keys with zero values.
			var rawDoc any
			_ = llm.SafeJSONParse(resp.Text, &rawDoc)
			if err := validateAgainstSchema("mindmap_tree", mindMapTreeSchema, rawDoc); err != nil {
				lastErr = err
				continue
			}
			ok = true
			break
		}
		if !ok {
			state.AppendError(docerrors.Wrap(docerrors.GenerationFailed, "generate_mindmap", lastErr))
			return state
		}

		tree := parsed.CentralNode.toModel()
		if tree == nil {
			// No central node returned: wrap the document root itself.
			tree = &model.MindMapNode{Label: parsed.Title}
		}
		tree.Title = parsed.Title
		tree.Summary = parsed.Summary
		state.MindMapTree = tree
		state.Completed = true
		return state
	}
}
