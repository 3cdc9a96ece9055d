package model

import "time"

// ManifestArtifact is one entry in a session Manifest.
type ManifestArtifact struct {
	FilePath    string         `json:"file_path"`
	DownloadURL string         `json:"download_url"`
	ContentHash string         `json:"content_hash"`
	CreatedAt   time.Time      `json:"created_at"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Manifest is the per-session record of produced artifacts, owned by the
// Cache Store; writers hold an exclusive lock on the session directory
// during update.
type Manifest struct {
	CreatedAt        time.Time                           `json:"created_at"`
	LastGeneratedAt  time.Time                            `json:"last_generated_at"`
	OutputsGenerated []ArtifactKind                        `json:"outputs_generated"`
	Artifacts        map[ArtifactKind]ManifestArtifact    `json:"artifacts"`
}

// WithArtifact returns a copy of m with kind's entry set/replaced and
// OutputsGenerated/LastGeneratedAt updated; m itself is not mutated so
// callers can serialize the previous value safely under a lock.
func (m Manifest) WithArtifact(kind ArtifactKind, a ManifestArtifact) Manifest {
	out := Manifest{
		CreatedAt:       m.CreatedAt,
		LastGeneratedAt: a.CreatedAt,
		Artifacts:       make(map[ArtifactKind]ManifestArtifact, len(m.Artifacts)+1),
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = a.CreatedAt
	}
	for k, v := range m.Artifacts {
		out.Artifacts[k] = v
	}
	out.Artifacts[kind] = a
	seen := map[ArtifactKind]bool{}
	for _, k := range m.OutputsGenerated {
		seen[k] = true
	}
	out.OutputsGenerated = append([]ArtifactKind{}, m.OutputsGenerated...)
	if !seen[kind] {
		out.OutputsGenerated = append(out.OutputsGenerated, kind)
	}
	return out
}

// ImageManifestSection is the minimal per-section identity ImageManifest
// needs to resolve image files by slugged title.
type ImageManifestSection struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

// ImageManifest is the per-session-and-hash record backing cross-artifact
// image reuse.
type ImageManifest struct {
	ContentHash string                   `json:"content_hash"`
	ImageStyle  string                   `json:"image_style"`
	Sections    []ImageManifestSection   `json:"sections"`
	Descriptions map[int]string          `json:"descriptions"`
	ImageTypes   map[int]ImageType       `json:"image_types"`
}

// LLMCall is one recorded provider invocation, aggregated
// into a process-wide usage ring and a per-run list.
type LLMCall struct {
	StepName       string    `json:"step_name"`
	Provider       string    `json:"provider"`
	Model          string    `json:"model"`
	PromptDigest   string    `json:"prompt_digest"`
	ResponseDigest string    `json:"response_digest"`
	InputTokens    *int      `json:"input_tokens,omitempty"`
	OutputTokens   *int      `json:"output_tokens,omitempty"`
	DurationMs     int64     `json:"duration_ms"`
	Timestamp      time.Time `json:"timestamp"`
}
