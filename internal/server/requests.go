package server

import (
	"fmt"
	"mime"
	"net/http"

	"github.com/goadesign/docgen-engine/internal/model"
)

// sourceDTO is the wire shape of one WorkflowState.Sources entry.
type sourceDTO struct {
	Kind       string `json:"kind"`
	Handle     string `json:"handle,omitempty"`
	URL        string `json:"url,omitempty"`
	ParserHint string `json:"parser_hint,omitempty"`
	Text       string `json:"text,omitempty"`
}

func (s sourceDTO) toModel() (model.Source, error) {
	switch model.SourceKind(s.Kind) {
	case model.SourceUploadedFile:
		return model.Source{Kind: model.SourceUploadedFile, Handle: s.Handle}, nil
	case model.SourceURL:
		return model.Source{Kind: model.SourceURL, URL: s.URL, ParserHint: s.ParserHint}, nil
	case model.SourceInlineText:
		return model.Source{Kind: model.SourceInlineText, Text: s.Text}, nil
	default:
		return model.Source{}, fmt.Errorf("unknown source kind %q", s.Kind)
	}
}

// generateRequest is the common body shape for /generate and its podcast,
// mindmap, and faq variants.
type generateRequest struct {
	Sources      []sourceDTO       `json:"sources"`
	ArtifactKind string            `json:"artifact_kind,omitempty"`
	Provider     string            `json:"provider"`
	Model        string            `json:"model"`
	ImageModel   string            `json:"image_model,omitempty"`
	Preferences  map[string]string `json:"preferences,omitempty"`
	SessionID    string            `json:"session_id,omitempty"`
	ReuseCache   bool              `json:"reuse_cache"`
	MaxRetries   int               `json:"max_retries,omitempty"`
}

func (r generateRequest) sourceModels() ([]model.Source, error) {
	out := make([]model.Source, 0, len(r.Sources))
	for i, s := range r.Sources {
		m, err := s.toModel()
		if err != nil {
			return nil, fmt.Errorf("source %d: %w", i, err)
		}
		out = append(out, m)
	}
	return out, nil
}

// apiKeysFromHeaders resolves provider API keys from the documented request
// headers, falling back to process-wide defaults when a
// header is absent.
func apiKeysFromHeaders(r *http.Request, defaults map[string]string) map[string]string {
	keys := map[string]string{}
	for k, v := range defaults {
		if v != "" {
			keys[k] = v
		}
	}
	set := func(provider, header string) {
		if v := r.Header.Get(header); v != "" {
			keys[provider] = v
		}
	}
	set("gemini", "X-Gemini-Key")
	set("gemini", "X-Google-Key")
	set("openai", "X-OpenAI-Key")
	set("anthropic", "X-Anthropic-Key")
	set("image", "X-Image-Key")
	return keys
}

func userID(r *http.Request) string {
	return r.Header.Get("X-User-Id")
}

// mimeFromFilename is used by the /upload handler to report mime_type.
func mimeFromFilename(name string) string {
	t := mime.TypeByExtension(extOf(name))
	if t == "" {
		return "application/octet-stream"
	}
	return t
}

func extOf(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[i:]
		}
	}
	return ""
}
