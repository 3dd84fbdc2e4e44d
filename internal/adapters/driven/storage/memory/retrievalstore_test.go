package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lectern/internal/adapters/driven/storage/storagetest"
	"github.com/custodia-labs/lectern/internal/core/domain"
	"github.com/custodia-labs/lectern/internal/core/ports/driven"
)

func TestRetrievalStore_Contract(t *testing.T) {
	storagetest.Run(t, func(*testing.T) driven.RetrievalStore {
		return NewRetrievalStore()
	})
}

func TestRetrievalStore_CopiesInput(t *testing.T) {
	store := NewRetrievalStore()
	chunks := []domain.TextChunk{storagetest.Chunk(storagetest.Walden, 0, 1, "woods", 0, 1, 0)}
	require.NoError(t, store.Upsert(context.Background(), chunks))

	chunks[0].Text = "mutated"
	chunks[0].Embedding[1] = 0

	results, err := store.Search(context.Background(), domain.SearchRequest{Vector: []float32{0, 1, 0}, TopK: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "woods", results[0].Chunk.Text)
}

func TestRetrievalStore_CancelledSearch(t *testing.T) {
	store := NewRetrievalStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Search(ctx, domain.SearchRequest{Vector: []float32{1}})
	assert.ErrorIs(t, err, context.Canceled)
}

// TestRetrievalStore_ReplaceIsAtomic tests that readers never see a mix of old and new chunks
func TestRetrievalStore_ReplaceIsAtomic(t *testing.T) {
	store := NewRetrievalStore()
	ctx := context.Background()
	book := storagetest.Walden

	generation := func(text string) []domain.TextChunk {
		chunks := make([]domain.TextChunk, 5)
		for i := range chunks {
			chunks[i] = storagetest.Chunk(book, i, 1, text, 0, 1, 0)
		}
		return chunks
	}
	require.NoError(t, store.ReplaceBook(ctx, book, generation("old")))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			text := "old"
			if i%2 == 0 {
				text = "new"
			}
			_ = store.ReplaceBook(ctx, book, generation(text))
		}
	}()

	for i := 0; i < 50; i++ {
		results, err := store.Search(ctx, domain.SearchRequest{Vector: []float32{0, 1, 0}, TopK: 10})
		require.NoError(t, err)
		require.Len(t, results, 5)
		for _, r := range results[1:] {
			assert.Equal(t, results[0].Chunk.Text, r.Chunk.Text)
		}
	}
	wg.Wait()
}
