package collaborators

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

// PDFParser extracts text from PDF files via github.com/ledongthuc/pdf.
type PDFParser struct{}

// Supports reports whether format is "pdf".
func (PDFParser) Supports(format string) bool { return format == "pdf" }

// Parse reads the whole PDF text stream into one markdown blob. Page
// boundaries are not preserved: pagination is a renderer concern, not an
// ingest concern.
func (PDFParser) Parse(_ context.Context, format, path string) (ParsedDocument, error) {
	if format != "pdf" {
		return ParsedDocument{}, fmt.Errorf("pdf parser: unsupported format %q", format)
	}
	f, r, err := pdf.Open(path)
	if err != nil {
		return ParsedDocument{}, fmt.Errorf("pdf parser: open %s: %w", path, err)
	}
	defer f.Close()

	var sb strings.Builder
	totalPage := r.NumPage()
	for i := 1; i <= totalPage; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}
	return ParsedDocument{Markdown: sb.String(), PageCount: totalPage}, nil
}

// DOCXParser extracts text from Word documents via
// github.com/nguyenthenguyen/docx.
type DOCXParser struct{}

// Supports reports whether format is "docx".
func (DOCXParser) Supports(format string) bool { return format == "docx" }

// Parse returns the document body as markdown-ish plain text.
func (DOCXParser) Parse(_ context.Context, format, path string) (ParsedDocument, error) {
	if format != "docx" {
		return ParsedDocument{}, fmt.Errorf("docx parser: unsupported format %q", format)
	}
	r, err := docx.ReadDocxFile(path)
	if err != nil {
		return ParsedDocument{}, fmt.Errorf("docx parser: open %s: %w", path, err)
	}
	defer r.Close()
	return ParsedDocument{Markdown: r.Editable().GetContent()}, nil
}

// TextParser handles inline text and already-markdown sources verbatim.
type TextParser struct{}

// Supports reports whether format is "text" or "markdown".
func (TextParser) Supports(format string) bool { return format == "text" || format == "markdown" }

// Parse reads path as UTF-8 text unchanged.
func (TextParser) Parse(_ context.Context, format, path string) (ParsedDocument, error) {
	if !(TextParser{}).Supports(format) {
		return ParsedDocument{}, fmt.Errorf("text parser: unsupported format %q", format)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return ParsedDocument{}, fmt.Errorf("text parser: read %s: %w", path, err)
	}
	return ParsedDocument{Markdown: string(b)}, nil
}

// Registry dispatches to the first Parser that supports a format.
type Registry struct {
	parsers []Parser
}

// NewRegistry builds a Registry from the given parsers, tried in order.
func NewRegistry(parsers ...Parser) *Registry {
	return &Registry{parsers: parsers}
}

// DefaultRegistry returns the registry used by default deployments: PDF,
// DOCX, and verbatim text/markdown.
func DefaultRegistry() *Registry {
	return NewRegistry(PDFParser{}, DOCXParser{}, TextParser{})
}

// Parse dispatches to the first parser supporting format.
func (r *Registry) Parse(ctx context.Context, format, path string) (ParsedDocument, error) {
	for _, p := range r.parsers {
		if p.Supports(format) {
			return p.Parse(ctx, format, path)
		}
	}
	return ParsedDocument{}, fmt.Errorf("collaborators: no parser registered for format %q", format)
}
