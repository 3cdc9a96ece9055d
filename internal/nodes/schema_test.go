package nodes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAgainstSchemaAcceptsWellFormedStructuredContent(t *testing.T) {
	t.Parallel()

	resp := structuredContentResponse{
		Sections: []sectionResponse{{Title: "Intro", Content: "body"}},
	}
	err := validateAgainstSchema("structured_content", structuredContentSchema, resp)
	assert.NoError(t, err)
}

func TestValidateAgainstSchemaRejectsMissingRequiredField(t *testing.T) {
	t.Parallel()

	// The struct DTOs have no omitempty, so a missing key has to be modeled
	// with a raw map: a zero-value struct field round-trips as an empty
	// string, which still satisfies "required" (presence, not content).
	bad := map[string]any{
		"sections": []map[string]any{{"content": "body with no title"}},
	}
	err := validateAgainstSchema("structured_content", structuredContentSchema, bad)
	assert.Error(t, err)
}

func TestValidateAgainstSchemaFAQRequiresQuestionAndAnswer(t *testing.T) {
	t.Parallel()

	good := faqResponse{Items: []faqItemDTO{{Question: "Q?", Answer: "A."}}}
	assert.NoError(t, validateAgainstSchema("faq_data", faqDataSchema, good))

	bad := map[string]any{
		"items": []map[string]any{{"question": "Q?"}},
	}
	assert.Error(t, validateAgainstSchema("faq_data", faqDataSchema, bad))
}

func TestValidateAgainstSchemaMindMapAllowsMissingCentralNode(t *testing.T) {
	t.Parallel()

	good := mindMapResponse{CentralNode: &mindMapNodeDTO{Label: "root"}}
	assert.NoError(t, validateAgainstSchema("mindmap_tree", mindMapTreeSchema, good))

	// A missing central node is wrapped heuristically downstream, so the
	// schema only rejects a central_node of the wrong shape.
	bad := map[string]any{"central_node": "not an object"}
	assert.Error(t, validateAgainstSchema("mindmap_tree", mindMapTreeSchema, bad))

	assert.NoError(t, validateAgainstSchema("mindmap_tree", mindMapTreeSchema, mindMapResponse{Title: "no central node"}))
}

func TestCompileSchemaCachesCompiledResult(t *testing.T) {
	t.Parallel()

	s1, err := compileSchema("cache_probe", faqDataSchema)
	require.NoError(t, err)
	s2, err := compileSchema("cache_probe", faqDataSchema)
	require.NoError(t, err)
	assert.Same(t, s1, s2)
}
