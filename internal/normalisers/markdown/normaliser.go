// Package markdown extracts pages from Markdown books.
package markdown

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/custodia-labs/lectern/internal/core/domain"
	"github.com/custodia-labs/lectern/internal/core/ports/driven"
	"github.com/custodia-labs/lectern/internal/normalisers/plaintext"
)

// Ensure Extractor implements the interface.
var _ driven.PageExtractor = (*Extractor)(nil)

// Extractor handles Markdown books. The document is rendered to plain
// text (formatting, link targets and code fences dropped) and then
// paginated like a plain text book.
type Extractor struct {
	md        goldmark.Markdown
	pageChars int
}

// New creates a new Markdown extractor.
func New() *Extractor {
	return &Extractor{
		md:        goldmark.New(),
		pageChars: plaintext.DefaultPageChars,
	}
}

// Name returns the extractor name.
func (e *Extractor) Name() string {
	return "markdown"
}

// Extensions returns the file extensions this extractor handles.
func (e *Extractor) Extensions() []string {
	return []string{".md", ".markdown"}
}

// Extract reads the file, strips the Markdown and splits it into pages.
func (e *Extractor) Extract(_ context.Context, book domain.Book) ([]domain.PageText, error) {
	source, err := os.ReadFile(book.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", book.SourcePath, err)
	}
	return plaintext.Paginate(book.ID, e.PlainText(source), e.pageChars), nil
}

// PlainText renders Markdown source to plain text. Block elements end with
// a blank line; thematic breaks become form feed page breaks.
func (e *Extractor) PlainText(source []byte) string {
	doc := e.md.Parser().Parse(text.NewReader(source))

	var (
		buf      bytes.Buffer
		sections []string
	)
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		case *ast.ThematicBreak:
			if entering {
				sections = append(sections, buf.String())
				buf.Reset()
			}
		case *ast.Text:
			if entering {
				buf.Write(node.Segment.Value(source))
				if node.SoftLineBreak() || node.HardLineBreak() {
					buf.WriteByte('\n')
				}
			}
		case *ast.String:
			if entering {
				buf.Write(node.Value)
			}
		case *ast.CodeSpan:
			if entering {
				for c := node.FirstChild(); c != nil; c = c.NextSibling() {
					if t, ok := c.(*ast.Text); ok {
						buf.Write(t.Segment.Value(source))
					}
				}
				return ast.WalkSkipChildren, nil
			}
		case *ast.Paragraph, *ast.Heading, *ast.ListItem, *ast.Blockquote:
			if !entering {
				buf.WriteString("\n\n")
			}
		}
		return ast.WalkContinue, nil
	})

	sections = append(sections, buf.String())

	for i, section := range sections {
		sections[i] = strings.TrimSpace(collapseBlankLines(section))
	}
	return strings.Join(sections, "\f")
}

// collapseBlankLines keeps at most one blank line between blocks so that
// paragraph spacing is never mistaken for a page break.
func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			blank++
			if blank > 1 {
				continue
			}
			out = append(out, "")
			continue
		}
		blank = 0
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
