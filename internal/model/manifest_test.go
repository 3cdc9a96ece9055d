package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManifestWithArtifactAddsNewKind(t *testing.T) {
	t.Parallel()

	var m Manifest
	a := ManifestArtifact{FilePath: "doc.pdf", CreatedAt: time.Unix(100, 0)}
	out := m.WithArtifact(ArtifactArticlePDF, a)

	assert.Equal(t, []ArtifactKind{ArtifactArticlePDF}, out.OutputsGenerated)
	assert.Equal(t, a, out.Artifacts[ArtifactArticlePDF])
	assert.Equal(t, a.CreatedAt, out.LastGeneratedAt)
	assert.Equal(t, a.CreatedAt, out.CreatedAt)
}

func TestManifestWithArtifactDoesNotDuplicateOutputsGenerated(t *testing.T) {
	t.Parallel()

	m := Manifest{}
	first := m.WithArtifact(ArtifactFAQ, ManifestArtifact{FilePath: "a", CreatedAt: time.Unix(1, 0)})
	second := first.WithArtifact(ArtifactFAQ, ManifestArtifact{FilePath: "b", CreatedAt: time.Unix(2, 0)})

	require.Len(t, second.OutputsGenerated, 1)
	assert.Equal(t, ArtifactFAQ, second.OutputsGenerated[0])
	assert.Equal(t, "b", second.Artifacts[ArtifactFAQ].FilePath)
	assert.Equal(t, time.Unix(2, 0), second.LastGeneratedAt)
}

func TestManifestWithArtifactPreservesCreatedAtOnceSet(t *testing.T) {
	t.Parallel()

	m := Manifest{CreatedAt: time.Unix(1, 0)}
	out := m.WithArtifact(ArtifactMindMap, ManifestArtifact{CreatedAt: time.Unix(99, 0)})

	assert.Equal(t, time.Unix(1, 0), out.CreatedAt)
}

func TestManifestWithArtifactDoesNotMutateReceiver(t *testing.T) {
	t.Parallel()

	m := Manifest{}
	_ = m.WithArtifact(ArtifactFAQ, ManifestArtifact{CreatedAt: time.Unix(1, 0)})

	assert.Empty(t, m.OutputsGenerated)
	assert.Empty(t, m.Artifacts)
}

func TestManifestWithArtifactAccumulatesMultipleKindsInOrder(t *testing.T) {
	t.Parallel()

	m := Manifest{}
	m = m.WithArtifact(ArtifactArticlePDF, ManifestArtifact{CreatedAt: time.Unix(1, 0)})
	m = m.WithArtifact(ArtifactFAQ, ManifestArtifact{CreatedAt: time.Unix(2, 0)})

	assert.Equal(t, []ArtifactKind{ArtifactArticlePDF, ArtifactFAQ}, m.OutputsGenerated)
}
