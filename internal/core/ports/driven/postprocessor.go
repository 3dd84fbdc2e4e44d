package driven

import (
	"context"

	"github.com/custodia-labs/lectern/internal/core/domain"
)

// PageProcessor cleans extracted page text before chunking.
// Processors are chained in a pipeline (e.g., de-hyphenation, whitespace).
type PageProcessor interface {
	// Name returns the processor name for logging and configuration.
	Name() string

	// Process returns the transformed pages. Page numbers must be preserved.
	Process(ctx context.Context, pages []domain.PageText) ([]domain.PageText, error)
}

// PageProcessorPipeline chains multiple PageProcessors.
type PageProcessorPipeline interface {
	// Process runs the pages through all processors in order.
	Process(ctx context.Context, pages []domain.PageText) ([]domain.PageText, error)
}

// Chunker splits a book's cleaned pages into overlapping word windows.
type Chunker interface {
	// Chunk returns unembedded chunks in index order. Empty pages yield none.
	Chunk(book domain.Book, pages []domain.PageText) []domain.TextChunk
}
