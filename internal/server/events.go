package server

import (
	"github.com/goadesign/docgen-engine/internal/stream"
)

// wireEvent is the JSON payload shape emitted for each SSE
// stream: a small status-tagged union rather than the richer internal
// stream.Event set.
type wireEvent struct {
	Status      string         `json:"status"`
	Progress    int            `json:"progress,omitempty"`
	Message     string         `json:"message,omitempty"`
	DownloadURL string         `json:"download_url,omitempty"`
	FilePath    string         `json:"file_path,omitempty"`
	ExpiresIn   int            `json:"expires_in,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	SessionID   string         `json:"session_id,omitempty"`
	CachedAt    string         `json:"cached_at,omitempty"`
	PDFBase64   string         `json:"pdf_base64,omitempty"`
	Markdown    string         `json:"markdown_content,omitempty"`
	Error       string         `json:"error,omitempty"`
	Code        string         `json:"code,omitempty"`
}

// nodeStatusGroup maps a node name to the coarse status bucket the SSE
// assigns it to for progress display.
func nodeStatusGroup(node string) string {
	switch node {
	case "detect_format", "parse_document_content", "ingest_sources", "summarize_sources":
		return "parsing"
	case "transform_content", "enhance_content":
		return "transforming"
	case "generate_images", "describe_images", "persist_image_manifest":
		return "generating_images"
	case "generate_output", "validate_output":
		return "generating_output"
	default:
		return "parsing"
	}
}

// progressForStep linearly maps step/total onto [30,90] within the
// generation span, capping at 90. A non-positive total yields 30 and a
// non-positive step yields 0.
func progressForStep(step, total int) int {
	if total <= 0 {
		return 30
	}
	if step <= 0 {
		return 0
	}
	p := 30 + (60*step)/total
	if p > 90 {
		p = 90
	}
	return p
}

// translateProgress converts a NodeEnd event's node, step and total into the
// documented Progress wire event; terminal events are translated by
// Dispatcher.translate in dispatcher.go.
func translateProgress(node string, step, total int) wireEvent {
	return wireEvent{
		Status:   nodeStatusGroup(node),
		Progress: progressForStep(step, total),
		Message:  node,
	}
}

// isTerminal reports whether evt ends the SSE stream.
func isTerminal(evt stream.Event) bool {
	return evt.Type().Terminal()
}
