package model

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
)

// RawContentSeparator joins per-source markdown into one RawContent blob.
const RawContentSeparator = "\n\n---\n\n"

// RawContent is the UTF-8 markdown produced by concatenating per-source
// markdown with RawContentSeparator, plus its content hash.
type RawContent struct {
	Markdown    string
	ContentHash string
}

// NewRawContent concatenates parsed source markdown bodies and computes the
// content hash over the canonical (concatenated) bytes.
func NewRawContent(parts []string) RawContent {
	md := strings.Join(parts, RawContentSeparator)
	return RawContent{Markdown: md, ContentHash: ContentHash(md)}
}

// ContentHash computes SHA-256 over the UTF-8 bytes of s, hex-encoded. This
// is the "content hash" used for cache keys and dedup throughout this package.
func ContentHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// SummaryContent is the optional condensed markdown that replaces RawContent
// for downstream nodes when RawContent exceeded the single-chunk limit. It
// carries the same ContentHash as its RawContent parent: the
// hash identifies the logical source set, not the bytes actually sent
// downstream.
type SummaryContent struct {
	Markdown    string
	ContentHash string
}

// VisualMarkerType enumerates the allowed in-markdown diagram placeholders.
// A marker with a type outside this set is dropped, not errored.
type VisualMarkerType string

const (
	VisualMarkerArchitecture VisualMarkerType = "architecture"
	VisualMarkerFlowchart    VisualMarkerType = "flowchart"
	VisualMarkerComparison   VisualMarkerType = "comparison"
	VisualMarkerConceptMap   VisualMarkerType = "concept_map"
	VisualMarkerMindMap      VisualMarkerType = "mind_map"
)

// ValidVisualMarkerTypes is the allowed enum set for VisualMarker.Type.
var ValidVisualMarkerTypes = map[VisualMarkerType]bool{
	VisualMarkerArchitecture: true,
	VisualMarkerFlowchart:    true,
	VisualMarkerComparison:   true,
	VisualMarkerConceptMap:   true,
	VisualMarkerMindMap:      true,
}

// VisualMarker is an in-markdown placeholder requesting a diagram of a known type.
type VisualMarker struct {
	MarkerID    string
	Type        VisualMarkerType
	Title       string
	Description string
	Position    int
}

// Section is one logical section of a structured document.
type Section struct {
	ID      int
	Title   string
	Content string
}

// Slide is one slide of a slide-capable artifact.
type Slide struct {
	Title        string
	Bullets      []string
	SpeakerNotes string
}

// ImageType enumerates what kind of visual, if any, a SectionImage represents.
type ImageType string

const (
	ImageTypeInfographic ImageType = "infographic"
	ImageTypeDecorative  ImageType = "decorative"
	ImageTypeDiagram     ImageType = "diagram"
	ImageTypeChart       ImageType = "chart"
	ImageTypeMermaid     ImageType = "mermaid"
	ImageTypeNone        ImageType = "none"
)

// SectionImage records the image decision and outcome for one section.
type SectionImage struct {
	SectionID    int
	SectionTitle string
	ImageType    ImageType
	Path         string
	Prompt       string
	Confidence   float64
	Description  string
	Attempts     int
	EmbedBase64  string
}

// StructuredContent is the typed record produced by transform_content and
// consumed by enhance_content, generate_images, describe_images, and the
// renderers.
type StructuredContent struct {
	Title             string
	Outline           []string
	Sections          []Section
	Markdown          string
	VisualMarkers     []VisualMarker
	ExecutiveSummary  string
	Slides            []Slide
	SectionImages     map[int]SectionImage
	ContentHash       string
}

// sectionHeadingPattern matches a leading numeric prefix in a markdown
// heading, e.g. "1. Intro" -> id 1. Sections without a numeric prefix get a
// sequential id assigned in document order.
var sectionHeadingPattern = regexp.MustCompile(`^\s*(\d+)[.)]?\s*`)

// AssignSectionID extracts the leading numeric prefix of title if present,
// otherwise returns (fallback, false) so the caller can use fallback as the
// next sequential id.
func AssignSectionID(title string, fallback int) (int, bool) {
	m := sectionHeadingPattern.FindStringSubmatch(title)
	if m == nil {
		return fallback, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return fallback, false
	}
	return n, true
}
