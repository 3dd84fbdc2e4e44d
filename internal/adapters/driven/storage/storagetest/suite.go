// Package storagetest holds behaviour checks shared by every retrieval
// store backend.
package storagetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lectern/internal/core/domain"
	"github.com/custodia-labs/lectern/internal/core/ports/driven"
)

// Factory returns an empty store. The suite closes it.
type Factory func(t *testing.T) driven.RetrievalStore

// Meditations and Walden are the fixture books.
var (
	Meditations = domain.Book{ID: "bk_med", Title: "Meditations", Author: "Marcus Aurelius", PageCount: 2}
	Walden      = domain.Book{ID: "bk_wal", Title: "Walden", Author: "Henry David Thoreau", PageCount: 1}
)

// Chunk builds an embedded chunk of book at index.
func Chunk(book domain.Book, index, page int, text string, vector ...float32) domain.TextChunk {
	return domain.TextChunk{
		ID:         domain.ChunkID(book.ID, index),
		BookID:     book.ID,
		Title:      book.Title,
		Author:     book.Author,
		PageNumber: page,
		Index:      index,
		WordOffset: index * 10,
		Text:       text,
		Embedding:  vector,
	}
}

// Seed stores both fixture books. Meditations chunks point along x,
// Walden chunks along y.
func Seed(t *testing.T, store driven.RetrievalStore) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.ReplaceBook(ctx, Meditations, []domain.TextChunk{
		Chunk(Meditations, 0, 1, "the universe is change", 1, 0, 0),
		Chunk(Meditations, 1, 2, "our life is what our thoughts make it", 0.9, 0.1, 0),
	}))
	require.NoError(t, store.ReplaceBook(ctx, Walden, []domain.TextChunk{
		Chunk(Walden, 0, 1, "I went to the woods", 0, 1, 0),
	}))
}

// Run exercises the retrieval store contract against a backend.
func Run(t *testing.T, newStore Factory) {
	open := func(t *testing.T) driven.RetrievalStore {
		t.Helper()
		store := newStore(t)
		t.Cleanup(func() { _ = store.Close() })
		return store
	}

	t.Run("empty store", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()

		results, err := store.Search(ctx, domain.SearchRequest{Vector: []float32{1, 0, 0}, TopK: 5})
		require.NoError(t, err)
		assert.Empty(t, results)

		stats, err := store.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.Stats{}, stats)
		assert.NotEmpty(t, store.Name())
	})

	t.Run("search ranks by score", func(t *testing.T) {
		store := open(t)
		Seed(t, store)

		results, err := store.Search(context.Background(), domain.SearchRequest{
			Vector: []float32{1, 0, 0}, TopK: 10, ScoreThreshold: -1,
		})
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, domain.ChunkID(Meditations.ID, 0), results[0].Chunk.ID)
		assert.Equal(t, domain.ChunkID(Meditations.ID, 1), results[1].Chunk.ID)
		assert.Equal(t, domain.ChunkID(Walden.ID, 0), results[2].Chunk.ID)
		assert.InDelta(t, 1.0, results[0].Score, 1e-5)
		for i := 1; i < len(results); i++ {
			assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
		}

		top := results[0].Chunk
		assert.Equal(t, "Meditations", top.Title)
		assert.Equal(t, "Marcus Aurelius", top.Author)
		assert.Equal(t, 1, top.PageNumber)
		assert.Equal(t, "the universe is change", top.Text)
	})

	t.Run("threshold and top k", func(t *testing.T) {
		store := open(t)
		Seed(t, store)
		ctx := context.Background()

		results, err := store.Search(ctx, domain.SearchRequest{
			Vector: []float32{1, 0, 0}, TopK: 10, ScoreThreshold: 0.5,
		})
		require.NoError(t, err)
		assert.Len(t, results, 2)

		results, err = store.Search(ctx, domain.SearchRequest{
			Vector: []float32{1, 0, 0}, TopK: 1, ScoreThreshold: -1,
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, domain.ChunkID(Meditations.ID, 0), results[0].Chunk.ID)
	})

	t.Run("ties break by chunk id", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()
		require.NoError(t, store.Upsert(ctx, []domain.TextChunk{
			Chunk(Walden, 2, 1, "c", 0, 0, 1),
			Chunk(Walden, 0, 1, "a", 0, 0, 1),
			Chunk(Walden, 1, 1, "b", 0, 0, 1),
		}))

		results, err := store.Search(ctx, domain.SearchRequest{Vector: []float32{0, 0, 1}, TopK: 3})
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, "a", results[0].Chunk.Text)
		assert.Equal(t, "b", results[1].Chunk.Text)
		assert.Equal(t, "c", results[2].Chunk.Text)
	})

	t.Run("filters", func(t *testing.T) {
		store := open(t)
		Seed(t, store)
		ctx := context.Background()

		tests := []struct {
			name    string
			filters domain.SearchFilters
			want    int
		}{
			{"book id", domain.SearchFilters{BookIDs: []string{Walden.ID}}, 1},
			{"author", domain.SearchFilters{Authors: []string{"marcus aurelius"}}, 2},
			{"title", domain.SearchFilters{Title: "medit"}, 2},
			{"no match", domain.SearchFilters{BookIDs: []string{"bk_none"}}, 0},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				results, err := store.Search(ctx, domain.SearchRequest{
					Vector: []float32{1, 1, 0}, TopK: 10, ScoreThreshold: -1, Filters: tt.filters,
				})
				require.NoError(t, err)
				assert.Len(t, results, tt.want)
				for _, r := range results {
					assert.True(t, tt.filters.Matches(&r.Chunk))
				}
			})
		}
	})

	t.Run("upsert is idempotent", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()
		chunks := []domain.TextChunk{
			Chunk(Walden, 0, 1, "I went to the woods", 0, 1, 0),
			Chunk(Walden, 1, 1, "because I wished to live deliberately", 0, 1, 0),
		}
		require.NoError(t, store.Upsert(ctx, chunks))
		require.NoError(t, store.Upsert(ctx, chunks))

		stats, err := store.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.Stats{TotalChunks: 2, UniqueBooks: 1, UniqueAuthors: 1}, stats)
	})

	t.Run("upsert overwrites text", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()
		require.NoError(t, store.Upsert(ctx, []domain.TextChunk{Chunk(Walden, 0, 1, "old", 0, 1, 0)}))
		require.NoError(t, store.Upsert(ctx, []domain.TextChunk{Chunk(Walden, 0, 1, "new", 0, 1, 0)}))

		results, err := store.Search(ctx, domain.SearchRequest{Vector: []float32{0, 1, 0}, TopK: 5})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "new", results[0].Chunk.Text)
	})

	t.Run("replace book swaps chunks", func(t *testing.T) {
		store := open(t)
		Seed(t, store)
		ctx := context.Background()

		require.NoError(t, store.ReplaceBook(ctx, Meditations, []domain.TextChunk{
			Chunk(Meditations, 0, 3, "waste no more time", 1, 0, 0),
		}))

		results, err := store.Search(ctx, domain.SearchRequest{
			Vector: []float32{1, 0, 0}, TopK: 10, ScoreThreshold: -1,
			Filters: domain.SearchFilters{BookIDs: []string{Meditations.ID}},
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "waste no more time", results[0].Chunk.Text)
		assert.Equal(t, 3, results[0].Chunk.PageNumber)

		stats, err := store.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.Stats{TotalChunks: 2, UniqueBooks: 2, UniqueAuthors: 2}, stats)
	})

	t.Run("delete book", func(t *testing.T) {
		store := open(t)
		Seed(t, store)
		ctx := context.Background()

		require.NoError(t, store.DeleteBook(ctx, Meditations.ID))
		require.NoError(t, store.DeleteBook(ctx, "bk_missing"))

		books, err := store.Books(ctx)
		require.NoError(t, err)
		require.Len(t, books, 1)
		assert.Equal(t, Walden.ID, books[0].BookID)
	})

	t.Run("books ordered by title", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()
		require.NoError(t, store.ReplaceBook(ctx, Walden, []domain.TextChunk{
			Chunk(Walden, 0, 1, "woods", 0, 1, 0),
		}))
		Seed(t, store)

		books, err := store.Books(ctx)
		require.NoError(t, err)
		assert.Equal(t, []domain.BookSummary{
			{BookID: Meditations.ID, Title: "Meditations", Author: "Marcus Aurelius", Chunks: 2},
			{BookID: Walden.ID, Title: "Walden", Author: "Henry David Thoreau", Chunks: 1},
		}, books)
	})
}
