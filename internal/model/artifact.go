package model

// ArtifactKind determines branch topology and renderer selection.
type ArtifactKind string

const (
	ArtifactArticlePDF      ArtifactKind = "article_pdf"
	ArtifactArticleMarkdown ArtifactKind = "article_markdown"
	ArtifactSlideDeckPDF    ArtifactKind = "slide_deck_pdf"
	ArtifactPresentationPPTX ArtifactKind = "presentation_pptx"
	ArtifactPodcast         ArtifactKind = "podcast"
	ArtifactMindMap         ArtifactKind = "mind_map"
	ArtifactFAQ             ArtifactKind = "faq"
	ArtifactImageGenerate   ArtifactKind = "image_generate"
	ArtifactImageEdit       ArtifactKind = "image_edit"
)

// IsDocumentKind reports whether kind follows the document branch
// (detect_format → … → validate_output).
func (k ArtifactKind) IsDocumentKind() bool {
	switch k {
	case ArtifactArticlePDF, ArtifactArticleMarkdown, ArtifactSlideDeckPDF, ArtifactPresentationPPTX:
		return true
	default:
		return false
	}
}

// IsSlideCapable reports whether kind requests a slide structure during
// transform_content/enhance_content.
func (k ArtifactKind) IsSlideCapable() bool {
	return k == ArtifactSlideDeckPDF || k == ArtifactPresentationPPTX
}

// IsSummaryDriven reports whether kind requests an executive summary variant
// during transform_content (slides and summary PDFs).
func (k ArtifactKind) IsSummaryDriven() bool {
	return k.IsSlideCapable() || k == ArtifactArticlePDF
}

// RequiresIngest reports whether kind runs the common
// ingest_sources → summarize_sources prefix; image_generate
// and image_edit skip it.
func (k ArtifactKind) RequiresIngest() bool {
	return k != ArtifactImageGenerate && k != ArtifactImageEdit
}

// Extension returns the expected output file extension for kind, used by
// validate_output.
func (k ArtifactKind) Extension() string {
	switch k {
	case ArtifactArticlePDF, ArtifactSlideDeckPDF:
		return ".pdf"
	case ArtifactPresentationPPTX:
		return ".pptx"
	case ArtifactArticleMarkdown:
		return ".md"
	default:
		return ""
	}
}
