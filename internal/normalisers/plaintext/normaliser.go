// Package plaintext extracts pages from plain text books.
package plaintext

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/custodia-labs/lectern/internal/core/domain"
	"github.com/custodia-labs/lectern/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.PageExtractor = (*Extractor)(nil)

// DefaultPageChars is the page size used when a text has no page breaks.
const DefaultPageChars = 2000

// pageBreak separates pages in plain text: a triple newline, as left by
// most text exports, or a form feed.
const pageBreak = "\n\n\n"

// Extractor handles plain text books.
type Extractor struct {
	pageChars int
}

// New creates a new plain text extractor.
func New() *Extractor {
	return &Extractor{pageChars: DefaultPageChars}
}

// Name returns the extractor name.
func (e *Extractor) Name() string {
	return "plaintext"
}

// Extensions returns the file extensions this extractor handles.
func (e *Extractor) Extensions() []string {
	return []string{".txt", ".text"}
}

// Extract reads the file and splits it into pages.
func (e *Extractor) Extract(_ context.Context, book domain.Book) ([]domain.PageText, error) {
	data, err := os.ReadFile(book.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", book.SourcePath, err)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: %s is not valid UTF-8", domain.ErrInvalidInput, book.SourcePath)
	}
	return Paginate(book.ID, string(data), e.pageChars), nil
}

// Paginate splits text into numbered pages. Explicit page breaks win;
// without any, the text is cut into pages of about pageChars characters
// at word boundaries so no word straddles two pages. Blank pages are
// skipped but still consume a page number.
func Paginate(bookID, text string, pageChars int) []domain.PageText {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\f", pageBreak)

	var raw []string
	if strings.Contains(text, pageBreak) {
		raw = strings.Split(text, pageBreak)
	} else {
		raw = splitAtWords(text, pageChars)
	}

	pages := make([]domain.PageText, 0, len(raw))
	for i, page := range raw {
		page = strings.TrimSpace(page)
		if page == "" {
			continue
		}
		pages = append(pages, domain.PageText{BookID: bookID, PageNumber: i + 1, Text: page})
	}
	return pages
}

// splitAtWords cuts text into pieces of at most size runes, preferring the
// last whitespace before the limit. A single longer word becomes its own piece.
func splitAtWords(text string, size int) []string {
	if size <= 0 {
		size = DefaultPageChars
	}

	var pieces []string
	runes := []rune(text)
	for len(runes) > 0 {
		if len(runes) <= size {
			pieces = append(pieces, string(runes))
			break
		}

		cut := size
		for cut > 0 && !unicode.IsSpace(runes[cut]) {
			cut--
		}
		if cut == 0 {
			// no whitespace inside the window; extend to the end of the word
			cut = size
			for cut < len(runes) && !unicode.IsSpace(runes[cut]) {
				cut++
			}
		}

		pieces = append(pieces, string(runes[:cut]))
		runes = runes[cut:]
	}
	return pieces
}
