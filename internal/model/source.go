// Package model defines the data model shared by the cache, gateway, and
// workflow layers: sources, content, the workflow state, artifact kinds,
// cache keys, and manifests.
package model

// SourceKind tags the variant held by a Source.
type SourceKind string

const (
	// SourceUploadedFile is a previously uploaded file referenced by handle.
	SourceUploadedFile SourceKind = "uploaded_file"
	// SourceURL is fetched by an external parser using a hint for the expected format.
	SourceURL SourceKind = "url"
	// SourceInlineText is taken verbatim.
	SourceInlineText SourceKind = "inline_text"
)

// Source is a tagged variant of {UploadedFile, URL, InlineText}. Exactly the
// field(s) implied by Kind are populated; a Source is read-only once supplied
// to a workflow.
type Source struct {
	Kind SourceKind

	// Handle identifies a previously uploaded file (SourceUploadedFile).
	Handle string

	// URL is the resource to fetch (SourceURL).
	URL string
	// ParserHint optionally overrides format auto-detection for SourceURL.
	ParserHint string

	// Text is the verbatim content (SourceInlineText).
	Text string
}

// ParsedSource is what an external parser returns for one Source: canonical
// UTF-8 markdown plus whatever metadata it recovered (title, page count,
// detected mime type). Concrete parsing is out of scope; see
// internal/collaborators.Parser.
type ParsedSource struct {
	Markdown string
	Metadata map[string]any
}
