// Package pdf extracts pages from PDF books.
package pdf

import (
	"context"
	"fmt"

	"github.com/ledongthuc/pdf"

	"github.com/custodia-labs/lectern/internal/core/domain"
	"github.com/custodia-labs/lectern/internal/core/ports/driven"
	"github.com/custodia-labs/lectern/internal/logger"
)

// Ensure Extractor implements the interface.
var _ driven.PageExtractor = (*Extractor)(nil)

// Extractor handles PDF books. Page numbers are the PDF's physical page
// numbers; pages without extractable text are skipped.
type Extractor struct{}

// New creates a new PDF extractor.
func New() *Extractor {
	return &Extractor{}
}

// Name returns the extractor name.
func (e *Extractor) Name() string {
	return "pdf"
}

// Extensions returns the file extensions this extractor handles.
func (e *Extractor) Extensions() []string {
	return []string{".pdf"}
}

// Extract reads every page's plain text.
func (e *Extractor) Extract(ctx context.Context, book domain.Book) (pages []domain.PageText, err error) {
	// The PDF parser panics on some malformed streams.
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("%w: malformed PDF %s: %v", domain.ErrInvalidInput, book.SourcePath, r)
		}
	}()

	f, reader, err := pdf.Open(book.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", book.SourcePath, err)
	}
	defer f.Close()

	total := reader.NumPage()
	pages = make([]domain.PageText, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			logger.Warn("pdf %s: page %d unreadable: %v", book.Title, i, err)
			continue
		}
		if isBlank(text) {
			continue
		}
		pages = append(pages, domain.PageText{BookID: book.ID, PageNumber: i, Text: text})
	}

	logger.Debug("pdf %s: %d of %d pages have text", book.Title, len(pages), total)
	return pages, nil
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\n' && r != '\t' && r != '\r' {
			return false
		}
	}
	return true
}
