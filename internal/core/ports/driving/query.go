package driving

import (
	"context"

	"github.com/custodia-labs/lectern/internal/core/domain"
)

// QueryService retrieves and ranks passages for a question.
type QueryService interface {
	// ProcessQuery embeds the query, searches the store and assembles a
	// word-budgeted context. A result with no hits is not an error.
	// Returns domain.ErrEmptyQuery for blank input.
	ProcessQuery(ctx context.Context, query string, opts domain.QueryOptions) (*domain.QueryResult, error)

	// Stats returns aggregate counts over the library.
	Stats(ctx context.Context) (domain.Stats, error)

	// Books lists the ingested books.
	Books(ctx context.Context) ([]domain.BookSummary, error)
}
