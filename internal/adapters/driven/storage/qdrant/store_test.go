package qdrant

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lectern/internal/adapters/driven/storage/storagetest"
	"github.com/custodia-labs/lectern/internal/core/domain"
	"github.com/custodia-labs/lectern/internal/core/ports/driven"
)

func newTestStore(t *testing.T) (*Store, *fakeQdrant) {
	t.Helper()
	fake, srv := newFakeQdrant(t, "book_library")
	return NewStore(Config{URL: srv.URL + "/", Collection: "book_library"}), fake
}

func TestStore_Contract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) driven.RetrievalStore {
		store, _ := newTestStore(t)
		return store
	})
}

func TestStore_CreatesCollectionOnFirstWrite(t *testing.T) {
	store, fake := newTestStore(t)
	storagetest.Seed(t, store)

	assert.True(t, fake.created)
	assert.Equal(t, 3, fake.size)
	assert.ElementsMatch(t, []string{"book_id", "author_key", "index"}, fake.indexes)

	// later writes do not check the collection again
	checks := 0
	for _, r := range fake.requests {
		if r == "GET /collections/book_library" {
			checks++
		}
	}
	assert.Equal(t, 1, checks)
}

func TestStore_PointIDsAreStable(t *testing.T) {
	store, fake := newTestStore(t)
	storagetest.Seed(t, store)
	storagetest.Seed(t, store)

	assert.Len(t, fake.points, 3)
	id := PointID(domain.ChunkID(storagetest.Walden.ID, 0))
	assert.Equal(t, id, PointID(domain.ChunkID(storagetest.Walden.ID, 0)))
	assert.Contains(t, fake.points, id)
	assert.Equal(t, "henry david thoreau", fake.points[id].Payload.AuthorKey)
}

func TestStore_ReplacePrunesTail(t *testing.T) {
	store, fake := newTestStore(t)
	storagetest.Seed(t, store)

	require.NoError(t, store.ReplaceBook(context.Background(), storagetest.Meditations, []domain.TextChunk{
		storagetest.Chunk(storagetest.Meditations, 0, 1, "shorter edition", 1, 0, 0),
	}))

	assert.Len(t, fake.points, 2)
	assert.NotContains(t, fake.points, PointID(domain.ChunkID(storagetest.Meditations.ID, 1)))
}

func TestStore_MissingCollection(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	results, err := store.Search(ctx, domain.SearchRequest{Vector: []float32{1}, TopK: 3})
	require.NoError(t, err)
	assert.Empty(t, results)

	books, err := store.Books(ctx)
	require.NoError(t, err)
	assert.Empty(t, books)

	assert.NoError(t, store.DeleteBook(ctx, "bk_any"))
}

func TestStore_ServerErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
	}{
		{"unavailable", http.StatusServiceUnavailable, true},
		{"bad request", http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, fake := newTestStore(t)
			fake.created = true
			fake.failStatus = tt.status

			_, err := store.Search(context.Background(), domain.SearchRequest{Vector: []float32{1}, TopK: 3})
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
			assert.Equal(t, tt.transient, domain.IsTransient(err))

			var storeErr *domain.StoreUnavailableError
			require.ErrorAs(t, err, &storeErr)
			assert.Equal(t, "qdrant", storeErr.Backend)
			assert.Equal(t, "search", storeErr.Op)
		})
	}
}

func TestStore_Unreachable(t *testing.T) {
	store := NewStore(Config{URL: "http://127.0.0.1:1", Collection: "c"})

	_, err := store.Stats(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsTransient(err))
}

func TestStore_SendsAPIKey(t *testing.T) {
	fake, srv := newFakeQdrant(t, "c")
	store := NewStore(Config{URL: srv.URL, Collection: "c", APIKey: "secret"})

	_, err := store.Books(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, fake.apiKeys)
	assert.Equal(t, "secret", fake.apiKeys[0])
}

func TestStore_TitleFilterAppliedOnServer(t *testing.T) {
	store, fake := newTestStore(t)
	ctx := context.Background()

	walden := make([]domain.TextChunk, 30)
	for i := range walden {
		walden[i] = storagetest.Chunk(storagetest.Walden, i, 1, "pond", 1, float32(i)*0.01, 0)
	}
	require.NoError(t, store.ReplaceBook(ctx, storagetest.Walden, walden))
	require.NoError(t, store.ReplaceBook(ctx, storagetest.Meditations, []domain.TextChunk{
		storagetest.Chunk(storagetest.Meditations, 0, 1, "change", 0.74, 0.6726, 0),
	}))

	results, err := store.Search(ctx, domain.SearchRequest{
		Vector:         []float32{1, 0, 0},
		TopK:           1,
		ScoreThreshold: 0.5,
		Filters:        domain.SearchFilters{Title: "medit"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, storagetest.Meditations.ID, results[0].Chunk.BookID)
	assert.InDelta(t, 0.74, results[0].Score, 0.01)
	assert.Contains(t, fake.requests, "POST /collections/book_library/points/scroll")
}

func TestStore_TitleFilterWithoutMatch(t *testing.T) {
	store, _ := newTestStore(t)
	storagetest.Seed(t, store)

	results, err := store.Search(context.Background(), domain.SearchRequest{
		Vector:         []float32{1, 0, 0},
		TopK:           5,
		ScoreThreshold: 0,
		Filters:        domain.SearchFilters{Title: "odyssey"},
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchFilter(t *testing.T) {
	assert.Nil(t, searchFilter(domain.SearchFilters{}))
	assert.Nil(t, searchFilter(domain.SearchFilters{Title: "walden"}))

	f := searchFilter(domain.SearchFilters{BookIDs: []string{"bk_1"}, Authors: []string{"Sun Tzu"}})
	require.NotNil(t, f)
	require.Len(t, f.Must, 2)
	assert.Equal(t, []string{"bk_1"}, f.Must[0].Match.Any)
	assert.Equal(t, []string{"sun tzu"}, f.Must[1].Match.Any)
}
