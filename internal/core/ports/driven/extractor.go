package driven

import (
	"context"

	"github.com/custodia-labs/lectern/internal/core/domain"
)

// PageExtractor reads page-attributed text from a book file.
// Each extractor handles specific file extensions (e.g., .pdf, .md).
type PageExtractor interface {
	// Name identifies the extractor in logs.
	Name() string

	// Extensions returns the lower-case file extensions handled, with dots.
	Extensions() []string

	// Extract returns the book's non-empty pages in page order.
	// Page numbers are 1-based and non-decreasing.
	Extract(ctx context.Context, book domain.Book) ([]domain.PageText, error)
}

// ExtractorRegistry dispatches extraction by file extension.
type ExtractorRegistry interface {
	// Extract uses the extractor registered for the book's extension.
	// Returns domain.ErrUnsupportedFormat when none is registered.
	Extract(ctx context.Context, book domain.Book) ([]domain.PageText, error)

	// Register adds an extractor, replacing any for the same extensions.
	Register(extractor PageExtractor)

	// Supports reports whether a path has a registered extension.
	Supports(path string) bool
}
