package driven

import (
	"context"

	"github.com/custodia-labs/lectern/internal/core/domain"
)

// RetrievalStore persists embedded chunks and answers similarity searches.
//
// Implementations must order search results by descending score with ties
// broken by ascending chunk id, and must never expose a book in a mixed
// old/new state while ReplaceBook runs.
type RetrievalStore interface {
	// Upsert stores chunks, replacing any record with the same chunk id.
	Upsert(ctx context.Context, chunks []domain.TextChunk) error

	// ReplaceBook atomically swaps every chunk of a book for a new set.
	ReplaceBook(ctx context.Context, book domain.Book, chunks []domain.TextChunk) error

	// DeleteBook removes a book and all of its chunks.
	DeleteBook(ctx context.Context, bookID string) error

	// Search returns at most TopK chunks scoring at least ScoreThreshold.
	Search(ctx context.Context, req domain.SearchRequest) ([]domain.SearchResult, error)

	// Stats recomputes aggregate counts.
	Stats(ctx context.Context) (domain.Stats, error)

	// Books lists stored books ordered by title.
	Books(ctx context.Context) ([]domain.BookSummary, error)

	// Name identifies the backend in logs and errors.
	Name() string

	// Close releases resources.
	Close() error
}
