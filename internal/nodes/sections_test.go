package nodes

import (
	"testing"

	"github.com/goadesign/docgen-engine/internal/model"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSectionsSplitsOnHeadings(t *testing.T) {
	t.Parallel()

	md := "# Intro\n\nFirst paragraph.\n\n# Background\n\nSecond paragraph.\n"
	sections := parseSections(md)
	require.Len(t, sections, 2)
	assert.Equal(t, "Intro", sections[0].Title)
	assert.Contains(t, sections[0].Content, "First paragraph")
	assert.Equal(t, "Background", sections[1].Title)
	assert.Contains(t, sections[1].Content, "Second paragraph")
}

func TestParseSectionsAssignsMonotonicIDsWithoutNumericPrefix(t *testing.T) {
	t.Parallel()

	md := "# Intro\n\nbody\n\n# Background\n\nbody\n\n# Summary\n\nbody\n"
	sections := parseSections(md)
	require.Len(t, sections, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{sections[0].ID, sections[1].ID, sections[2].ID})
}

func TestParseSectionsHonorsNumericPrefix(t *testing.T) {
	t.Parallel()

	md := "# 3. Conclusion\n\nbody\n"
	sections := parseSections(md)
	require.Len(t, sections, 1)
	assert.Equal(t, 3, sections[0].ID)
}

func TestParseSectionsFullStructure(t *testing.T) {
	t.Parallel()

	md := "# 1. Intro\n\nAlpha.\n\n# 2. Detail\n\nBeta.\n"
	want := []model.Section{
		{ID: 1, Title: "1. Intro", Content: "Alpha.\n\n"},
		{ID: 2, Title: "2. Detail", Content: "Beta.\n\n"},
	}
	if diff := cmp.Diff(want, parseSections(md)); diff != "" {
		t.Errorf("parseSections mismatch (-want +got):\n%s", diff)
	}
}

func TestParseSectionsHandlesContentBeforeFirstHeading(t *testing.T) {
	t.Parallel()

	md := "leading text with no heading\n\n# Intro\n\nbody\n"
	sections := parseSections(md)
	require.Len(t, sections, 2)
	assert.Equal(t, "", sections[0].Title)
	assert.Contains(t, sections[0].Content, "leading text")
}

func TestParseSectionsEmptyInput(t *testing.T) {
	t.Parallel()

	assert.Empty(t, parseSections(""))
}
