package nodes

import (
	"fmt"
	"sort"

	"github.com/goadesign/docgen-engine/internal/docerrors"
	"github.com/goadesign/docgen-engine/internal/llm"
	"github.com/goadesign/docgen-engine/internal/model"
	"github.com/goadesign/docgen-engine/internal/workflow"
)

const faqSystemPrompt = `Produce a FAQ from the given content. Respond with JSON: {"title":"","items":[{"id":"","question":"","answer":"","tags":[""]}]}.`

type faqResponse struct {
	Title string         `json:"title"`
	Items []faqItemDTO   `json:"items"`
}

type faqItemDTO struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Tags     []string `json:"tags"`
}

// faqColorPalette is the preset set of color tokens deterministically
// assigned to tags in sorted order.
var faqColorPalette = []string{"red", "orange", "amber", "green", "teal", "blue", "indigo", "violet"}

// GenerateFAQ asks the LLM gateway in JSON mode for question/answer items, assigning
// missing ids and deterministic tag colors.
func GenerateFAQ(d *Deps) workflow.NodeFunc {
	return func(nc *workflow.NodeContext, state *model.WorkflowState) *model.WorkflowState {
		resp, err := d.Gateway.Call(nc.Context(), llm.Request{
			Provider:     state.Provider,
			Model:        state.Model,
			SystemPrompt: faqSystemPrompt,
			UserPrompt:   state.RawContent.Markdown,
			JSONMode:     true,
			APIKey:       state.APIKeys[state.Provider],
			StepName:     "generate_faq",
		})
		if err != nil {
			state.AppendError(docerrors.Wrap(docerrors.LLMTransient, "generate_faq", err))
			return state
		}
		var parsed faqResponse
		if err := llm.SafeJSONParse(resp.Text, &parsed); err != nil {
			state.AppendError(docerrors.Wrap(docerrors.GenerationFailed, "generate_faq", err))
			return state
		}
		// Validate the response as sent: re-marshalling parsed would fill
		// missing keys with zero values.
		var rawDoc any
		_ = llm.SafeJSONParse(resp.Text, &rawDoc)
		if err := validateAgainstSchema("faq_data", faqDataSchema, rawDoc); err != nil {
			state.AppendError(docerrors.Wrap(docerrors.ValidationFailed, "generate_faq", err))
			return state
		}

		tagSet := map[string]bool{}
		items := make([]model.FAQItem, 0, len(parsed.Items))
		for i, it := range parsed.Items {
			id := it.ID
			if id == "" {
				id = fmt.Sprintf("faq-%d", i)
			}
			items = append(items, model.FAQItem{ID: id, Question: it.Question, Answer: it.Answer, Tags: it.Tags})
			for _, t := range it.Tags {
				tagSet[t] = true
			}
		}
		tags := make([]string, 0, len(tagSet))
		for t := range tagSet {
			tags = append(tags, t)
		}
		sort.Strings(tags)
		colors := make(map[string]string, len(tags))
		for i, t := range tags {
			colors[t] = faqColorPalette[i%len(faqColorPalette)]
		}

		state.FAQData = &model.FAQData{Title: parsed.Title, Items: items, TagColors: colors}
		state.Completed = true
		return state
	}
}
