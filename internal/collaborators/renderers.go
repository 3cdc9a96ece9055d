package collaborators

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Rendering correctness of output files is explicitly out of scope; these renderers write minimal, structurally valid files with
// the expected extension and non-empty content so validate_output can
// verify them, without reproducing a full PDF/PPTX layout engine.

// MarkdownRenderer writes StructuredContent.Markdown verbatim.
type MarkdownRenderer struct{}

// Kind returns "markdown".
func (MarkdownRenderer) Kind() string { return "markdown" }

// Render writes req.Markdown to req.OutputPath atomically.
func (MarkdownRenderer) Render(_ context.Context, req RenderRequest) (string, error) {
	if err := atomicWriteFile(req.OutputPath, []byte(req.Markdown)); err != nil {
		return "", fmt.Errorf("markdown renderer: %w", err)
	}
	return req.OutputPath, nil
}

// PDFRenderer writes a minimal single-stream PDF document containing the
// title and markdown body as literal text, enough to satisfy validate_output
// and produce a real, openable PDF.
type PDFRenderer struct{}

// Kind returns "pdf".
func (PDFRenderer) Kind() string { return "pdf" }

// Render writes a minimal valid PDF to req.OutputPath.
func (PDFRenderer) Render(_ context.Context, req RenderRequest) (string, error) {
	doc := minimalPDF(req.Title, req.Markdown)
	if err := atomicWriteFile(req.OutputPath, doc); err != nil {
		return "", fmt.Errorf("pdf renderer: %w", err)
	}
	return req.OutputPath, nil
}

// PPTXRenderer writes a minimal Open XML presentation package: one slide per
// RenderSlide, each a plain-text placeholder with its bullets.
type PPTXRenderer struct{}

// Kind returns "pptx".
func (PPTXRenderer) Kind() string { return "pptx" }

// Render writes a minimal valid .pptx zip to req.OutputPath.
func (PPTXRenderer) Render(_ context.Context, req RenderRequest) (string, error) {
	data, err := minimalPPTX(req.Title, req.Slides)
	if err != nil {
		return "", fmt.Errorf("pptx renderer: %w", err)
	}
	if err := atomicWriteFile(req.OutputPath, data); err != nil {
		return "", fmt.Errorf("pptx renderer: %w", err)
	}
	return req.OutputPath, nil
}

// RendererRegistry dispatches by renderer kind (Renderer.Kind()) to a Renderer.
type RendererRegistry struct {
	renderers map[string]Renderer
}

// NewRendererRegistry indexes renderers by their Kind().
func NewRendererRegistry(renderers ...Renderer) *RendererRegistry {
	m := make(map[string]Renderer, len(renderers))
	for _, r := range renderers {
		m[r.Kind()] = r
	}
	return &RendererRegistry{renderers: m}
}

// DefaultRendererRegistry returns the markdown/pdf/pptx trio.
func DefaultRendererRegistry() *RendererRegistry {
	return NewRendererRegistry(MarkdownRenderer{}, PDFRenderer{}, PPTXRenderer{})
}

// Render dispatches req to the renderer registered for kind.
func (r *RendererRegistry) Render(ctx context.Context, kind string, req RenderRequest) (string, error) {
	renderer, ok := r.renderers[kind]
	if !ok {
		return "", fmt.Errorf("collaborators: no renderer registered for kind %q", kind)
	}
	return renderer.Render(ctx, req)
}

func atomicWriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + "." + uuid.NewString() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// minimalPDF builds a single-page PDF with title and body rendered as
// literal text objects. It is intentionally not a layout engine: long
// bodies simply overflow the visible page, which is acceptable since
// pagination correctness is out of scope.
func minimalPDF(title, body string) []byte {
	content := fmt.Sprintf("BT /F1 18 Tf 72 760 Td (%s) Tj ET\nBT /F1 10 Tf 72 730 Td (%s) Tj ET", pdfEscape(title), pdfEscape(truncateForPDF(body)))
	var buf bytes.Buffer
	offsets := make([]int, 0, 5)
	write := func(s string) { offsets = append(offsets, buf.Len()); buf.WriteString(s) }

	buf.WriteString("%PDF-1.4\n")
	write("1 0 obj<</Type/Catalog/Pages 2 0 R>>endobj\n")
	write("2 0 obj<</Type/Pages/Kids[3 0 R]/Count 1>>endobj\n")
	write("3 0 obj<</Type/Page/Parent 2 0 R/MediaBox[0 0 612 792]/Resources<</Font<</F1 4 0 R>>>>/Contents 5 0 R>>endobj\n")
	write("4 0 obj<</Type/Font/Subtype/Type1/BaseFont/Helvetica>>endobj\n")
	write(fmt.Sprintf("5 0 obj<</Length %d>>stream\n%s\nendstream endobj\n", len(content), content))

	xrefStart := buf.Len()
	buf.WriteString(fmt.Sprintf("xref\n0 %d\n", len(offsets)+1))
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		buf.WriteString(fmt.Sprintf("%010d 00000 n \n", off))
	}
	buf.WriteString(fmt.Sprintf("trailer<</Size %d/Root 1 0 R>>\nstartxref\n%d\n%%%%EOF", len(offsets)+1, xrefStart))
	return buf.Bytes()
}

func pdfEscape(s string) string {
	r := bytes.NewBufferString("")
	for _, c := range s {
		switch c {
		case '(', ')', '\\':
			r.WriteByte('\\')
			r.WriteRune(c)
		case '\n', '\r':
			r.WriteByte(' ')
		default:
			r.WriteRune(c)
		}
	}
	return r.String()
}

func truncateForPDF(s string) string {
	const max = 2000
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// minimalPPTX builds a syntactically valid Open XML presentation: the
// required root relationships, content types, and one slide part per input
// slide rendered as a single text run listing title and bullets.
func minimalPPTX(title string, slides []RenderSlide) ([]byte, error) {
	if len(slides) == 0 {
		slides = []RenderSlide{{Title: title}}
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	files := map[string]string{
		"[Content_Types].xml": pptxContentTypes(len(slides)),
		"_rels/.rels":         pptxRootRels,
		"ppt/presentation.xml": pptxPresentation(len(slides)),
		"ppt/_rels/presentation.xml.rels": pptxPresentationRels(len(slides)),
	}
	for i, s := range slides {
		files[fmt.Sprintf("ppt/slides/slide%d.xml", i+1)] = pptxSlide(s)
	}
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(content)); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

const pptxRootRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="ppt/presentation.xml"/>
</Relationships>`

func pptxContentTypes(n int) string {
	var overrides bytes.Buffer
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&overrides, `<Override PartName="/ppt/slides/slide%d.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slide+xml"/>`, i)
	}
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/ppt/presentation.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.presentation.main+xml"/>
%s</Types>`, overrides.String())
}

func pptxPresentation(n int) string {
	var ids bytes.Buffer
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&ids, `<p:sldId id="%d" r:id="rId%d"/>`, 255+i, i+1)
	}
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<p:presentation xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">
<p:sldIdLst>%s</p:sldIdLst>
<p:sldSz cx="9144000" cy="6858000"/>
</p:presentation>`, ids.String())
}

func pptxPresentationRels(n int) string {
	var rels bytes.Buffer
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&rels, `<Relationship Id="rId%d" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide" Target="slides/slide%d.xml"/>`, i+1, i)
	}
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">%s</Relationships>`, rels.String())
}

func pptxSlide(s RenderSlide) string {
	var body bytes.Buffer
	fmt.Fprintf(&body, `<a:p><a:r><a:t>%s</a:t></a:r></a:p>`, xmlEscape(s.Title))
	for _, b := range s.Bullets {
		fmt.Fprintf(&body, `<a:p><a:r><a:t>%s</a:t></a:r></a:p>`, xmlEscape(b))
	}
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">
<p:cSld><p:spTree><p:txBody>%s</p:txBody></p:spTree></p:cSld>
</p:sld>`, body.String())
}

func xmlEscape(s string) string {
	replacer := bytes.NewBufferString("")
	for _, r := range s {
		switch r {
		case '&':
			replacer.WriteString("&amp;")
		case '<':
			replacer.WriteString("&lt;")
		case '>':
			replacer.WriteString("&gt;")
		default:
			replacer.WriteRune(r)
		}
	}
	return replacer.String()
}
