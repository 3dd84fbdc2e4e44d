// Package textclean provides page clean-up processors run before chunking.
package textclean

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/custodia-labs/lectern/internal/core/domain"
	"github.com/custodia-labs/lectern/internal/core/ports/driven"
)

var (
	_ driven.PageProcessor = (*Dehyphenator)(nil)
	_ driven.PageProcessor = (*WhitespaceNormaliser)(nil)
	_ driven.PageProcessor = (*SymbolStripper)(nil)
)

// hyphenBreak matches a word split by a hyphen at a line end, as PDF
// extraction produces for justified text: "inter-\n  national".
var hyphenBreak = regexp.MustCompile(`(\p{L})-[ \t]*\r?\n[ \t]*(\p{Ll})`)

// Dehyphenator rejoins words broken across line ends.
type Dehyphenator struct{}

// NewDehyphenator creates a de-hyphenation processor.
func NewDehyphenator() *Dehyphenator {
	return &Dehyphenator{}
}

// Name returns the processor name.
func (d *Dehyphenator) Name() string {
	return "dehyphenate"
}

// Process rejoins hyphenated line breaks on every page.
func (d *Dehyphenator) Process(_ context.Context, pages []domain.PageText) ([]domain.PageText, error) {
	out := make([]domain.PageText, len(pages))
	for i, p := range pages {
		p.Text = hyphenBreak.ReplaceAllString(p.Text, "$1$2")
		out[i] = p
	}
	return out, nil
}

// WhitespaceNormaliser strips control characters and collapses runs of
// whitespace to single spaces. Pages left blank are dropped.
type WhitespaceNormaliser struct{}

// NewWhitespaceNormaliser creates a whitespace processor.
func NewWhitespaceNormaliser() *WhitespaceNormaliser {
	return &WhitespaceNormaliser{}
}

// Name returns the processor name.
func (w *WhitespaceNormaliser) Name() string {
	return "whitespace"
}

// Process normalises whitespace on every page.
func (w *WhitespaceNormaliser) Process(_ context.Context, pages []domain.PageText) ([]domain.PageText, error) {
	out := make([]domain.PageText, 0, len(pages))
	for _, p := range pages {
		cleaned := strings.Map(func(r rune) rune {
			if unicode.IsControl(r) && !unicode.IsSpace(r) {
				return -1
			}
			return r
		}, p.Text)
		p.Text = strings.Join(strings.Fields(cleaned), " ")
		if p.Text == "" {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// symbol matches anything but word characters, whitespace and basic
// punctuation.
var symbol = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_\s.,;:!?()\-]`)

// SymbolStripper removes decorative characters such as bullets, quotes
// and dingbats, keeping words and basic punctuation. Pages left blank are
// dropped. It is not in the default pipeline.
type SymbolStripper struct{}

// NewSymbolStripper creates a symbol stripping processor.
func NewSymbolStripper() *SymbolStripper {
	return &SymbolStripper{}
}

// Name returns the processor name.
func (s *SymbolStripper) Name() string {
	return "symbols"
}

// Process strips symbols on every page.
func (s *SymbolStripper) Process(_ context.Context, pages []domain.PageText) ([]domain.PageText, error) {
	out := make([]domain.PageText, 0, len(pages))
	for _, p := range pages {
		p.Text = symbol.ReplaceAllString(p.Text, "")
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}
