package nodes

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gtext "github.com/yuin/goldmark/text"

	"github.com/goadesign/docgen-engine/internal/model"
)

// parseSections walks markdown's heading structure to recover the ordered
// section list generate_images and describe_images operate over. Each top-level heading opens
// a new section; its body is every block between it and the next heading.
func parseSections(markdown string) []model.Section {
	src := []byte(markdown)
	root := goldmark.New().Parser().Parse(gtext.NewReader(src))

	var sections []model.Section
	nextFallback := 1
	var cur *model.Section
	var body bytes.Buffer

	openSection := func(title string) {
		id, _ := model.AssignSectionID(title, nextFallback)
		nextFallback = id + 1
		cur = &model.Section{ID: id, Title: title}
	}
	flush := func() {
		if cur == nil {
			return
		}
		cur.Content = body.String()
		sections = append(sections, *cur)
		body.Reset()
	}

	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		if _, ok := n.(*ast.Heading); ok {
			flush()
			openSection(nodeText(n, src))
			continue
		}
		if cur == nil {
			openSection("")
		}
		body.WriteString(nodeText(n, src))
		body.WriteString("\n\n")
	}
	flush()
	return sections
}

// nodeText concatenates every ast.Text leaf under n, in document order.
func nodeText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(n, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := child.(*ast.Text); ok {
			buf.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				buf.WriteByte(' ')
			}
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}
