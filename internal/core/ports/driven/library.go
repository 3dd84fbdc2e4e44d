package driven

import (
	"context"

	"github.com/custodia-labs/lectern/internal/core/domain"
)

// BookDiscoverer finds book files in a library directory.
type BookDiscoverer interface {
	// Discover lists supported books in dir ordered by path.
	Discover(ctx context.Context, dir string, recursive bool) ([]domain.Book, error)
}
