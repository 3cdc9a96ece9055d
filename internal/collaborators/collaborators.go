// Package collaborators fixes the contracts for external systems handled
// outside the core engine (concrete parsers, renderers, TTS, image
// synthesis): nodes depend on these interfaces, never on a concrete vendor
// library directly, so swapping a renderer or parser never touches the
// graph runtime or node layer.
package collaborators

import "context"

// ParsedDocument is a parser's normalized output: markdown text plus
// whatever bibliographic metadata it could recover.
type ParsedDocument struct {
	Markdown  string
	Title     string
	PageCount int
}

// Parser converts one external format (PDF, DOCX, PPTX, HTML, a URL fetch)
// into canonical UTF-8 markdown. Implementations may shell out to a
// subprocess or call a library; either may raise internally, but Parse
// itself must return an error rather than panic.
type Parser interface {
	// Supports reports whether this parser handles the given canonical
	// format identifier (e.g. "pdf", "docx", "pptx", "html", "url").
	Supports(format string) bool
	// Parse converts the source at path (or a fetched URL body) into markdown.
	Parse(ctx context.Context, format, path string) (ParsedDocument, error)
}

// RenderRequest is the input to a Renderer: the fully structured content plus
// the output path the renderer must write.
type RenderRequest struct {
	OutputPath string
	Title      string
	Markdown   string
	Slides     []RenderSlide
	Images     map[int]string // section id -> image file path
}

// RenderSlide is one slide's content for slide-capable artifacts.
type RenderSlide struct {
	Title        string
	Bullets      []string
	SpeakerNotes string
}

// Renderer produces one artifact file (PDF, PPTX, Markdown) from structured
// content. Must write to req.OutputPath and return the same path on success.
type Renderer interface {
	// Kind returns the canonical artifact kind this renderer handles.
	Kind() string
	Render(ctx context.Context, req RenderRequest) (string, error)
}

// TTSRequest is one text-to-speech synthesis call.
type TTSRequest struct {
	Dialogue []TTSLine
	Voices   map[string]string // speaker -> voice id
}

// TTSLine is one line of dialogue to synthesize, in order.
type TTSLine struct {
	Speaker string
	Text    string
}

// TTSResult is raw PCM audio plus the parameters needed to wrap it as WAV.
type TTSResult struct {
	PCM        []byte
	SampleRate int
	SampleWidthBytes int
	Channels   int
}

// TTSProvider synthesizes speech audio for a podcast script.
type TTSProvider interface {
	Synthesize(ctx context.Context, req TTSRequest) (TTSResult, error)
}

// ImageRequest is one image synthesis or edit call.
type ImageRequest struct {
	Prompt      string
	Style       string
	SourceImage []byte // non-nil for ImageEdit
	Model       string
	Timeout     int // seconds; 0 means provider default
}

// ImageResult is the raster output of an image call.
type ImageResult struct {
	Bytes  []byte
	Format string // "png", "jpeg"
}

// ImageProvider generates or edits raster images.
type ImageProvider interface {
	Generate(ctx context.Context, req ImageRequest) (ImageResult, error)
	Edit(ctx context.Context, req ImageRequest) (ImageResult, error)
}
