package normalisers

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/lectern/internal/core/domain"
	"github.com/custodia-labs/lectern/internal/core/ports/driven"
	"github.com/custodia-labs/lectern/internal/normalisers/markdown"
	"github.com/custodia-labs/lectern/internal/normalisers/pdf"
	"github.com/custodia-labs/lectern/internal/normalisers/plaintext"
)

// Ensure Registry implements the interface.
var _ driven.ExtractorRegistry = (*Registry)(nil)

// Registry dispatches extraction by lower-cased file extension.
type Registry struct {
	mu         sync.RWMutex
	extractors map[string]driven.PageExtractor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{extractors: make(map[string]driven.PageExtractor)}
}

// NewDefaultRegistry creates a registry with the PDF, plain text and
// Markdown extractors.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(pdf.New())
	r.Register(plaintext.New())
	r.Register(markdown.New())
	return r
}

// Register adds an extractor for each of its extensions.
func (r *Registry) Register(extractor driven.PageExtractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range extractor.Extensions() {
		r.extractors[strings.ToLower(ext)] = extractor
	}
}

// Supports reports whether a path has a registered extension.
func (r *Registry) Supports(path string) bool {
	_, ok := r.lookup(path)
	return ok
}

// Extensions returns the registered extensions, sorted.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.extractors))
	for ext := range r.extractors {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Extract reads a book's pages with the extractor for its extension.
func (r *Registry) Extract(ctx context.Context, book domain.Book) ([]domain.PageText, error) {
	extractor, ok := r.lookup(book.SourcePath)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, filepath.Ext(book.SourcePath))
	}
	return extractor.Extract(ctx, book)
}

func (r *Registry) lookup(path string) (driven.PageExtractor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	extractor, ok := r.extractors[strings.ToLower(filepath.Ext(path))]
	return extractor, ok
}
