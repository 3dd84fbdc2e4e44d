package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/lectern/internal/core/domain"
	"github.com/custodia-labs/lectern/internal/core/ports/driven"
)

// Ensure RetrievalStore implements the interface.
var _ driven.RetrievalStore = (*RetrievalStore)(nil)

// memoryBook is a stored book and its chunks keyed by chunk id.
type memoryBook struct {
	book   domain.Book
	chunks map[string]domain.TextChunk
}

// RetrievalStore is an in-memory implementation of driven.RetrievalStore.
// Nothing is persisted.
type RetrievalStore struct {
	mu    sync.RWMutex
	books map[string]*memoryBook
}

// NewRetrievalStore creates a new in-memory retrieval store.
func NewRetrievalStore() *RetrievalStore {
	return &RetrievalStore{
		books: make(map[string]*memoryBook),
	}
}

// Name identifies the backend.
func (s *RetrievalStore) Name() string { return "memory" }

// Upsert stores chunks, replacing any chunk with the same id.
func (s *RetrievalStore) Upsert(_ context.Context, chunks []domain.TextChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range chunks {
		c := copyChunk(&chunks[i])
		// a chunk id belongs to one book only
		for id, b := range s.books {
			if id != c.BookID {
				delete(b.chunks, c.ID)
			}
		}
		b, ok := s.books[c.BookID]
		if !ok {
			b = &memoryBook{
				book:   domain.Book{ID: c.BookID, Title: c.Title, Author: c.Author},
				chunks: make(map[string]domain.TextChunk),
			}
			s.books[c.BookID] = b
		}
		b.chunks[c.ID] = c
	}
	return nil
}

// ReplaceBook builds the new chunk set off-lock and swaps it in.
func (s *RetrievalStore) ReplaceBook(_ context.Context, book domain.Book, chunks []domain.TextChunk) error {
	next := &memoryBook{
		book:   book,
		chunks: make(map[string]domain.TextChunk, len(chunks)),
	}
	for i := range chunks {
		next.chunks[chunks[i].ID] = copyChunk(&chunks[i])
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.books[book.ID] = next
	return nil
}

// DeleteBook removes a book and all of its chunks.
func (s *RetrievalStore) DeleteBook(_ context.Context, bookID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.books, bookID)
	return nil
}

// Search scores every chunk that passes the filters.
func (s *RetrievalStore) Search(ctx context.Context, req domain.SearchRequest) ([]domain.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []domain.SearchResult
	for _, b := range s.books {
		for _, c := range b.chunks {
			if len(c.Embedding) == 0 || !req.Filters.Matches(&c) {
				continue
			}
			result := domain.SearchResult{
				Chunk: c,
				Score: domain.CosineSimilarity(req.Vector, c.Embedding),
			}
			result.Chunk.Embedding = nil
			results = append(results, result)
		}
	}
	return domain.RankResults(results, req.TopK, req.ScoreThreshold), nil
}

// Stats recomputes counts from the stored books.
func (s *RetrievalStore) Stats(ctx context.Context) (domain.Stats, error) {
	books, err := s.Books(ctx)
	if err != nil {
		return domain.Stats{}, err
	}
	return domain.StatsFromBooks(books), nil
}

// Books lists books holding at least one chunk, ordered by title.
func (s *RetrievalStore) Books(_ context.Context) ([]domain.BookSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	books := make([]domain.BookSummary, 0, len(s.books))
	for _, b := range s.books {
		if len(b.chunks) == 0 {
			continue
		}
		books = append(books, domain.BookSummary{
			BookID: b.book.ID,
			Title:  b.book.Title,
			Author: b.book.Author,
			Chunks: len(b.chunks),
		})
	}
	sort.Slice(books, func(i, j int) bool {
		if books[i].Title != books[j].Title {
			return books[i].Title < books[j].Title
		}
		return books[i].BookID < books[j].BookID
	})
	return books, nil
}

// Close is a no-op.
func (s *RetrievalStore) Close() error { return nil }

func copyChunk(c *domain.TextChunk) domain.TextChunk {
	out := *c
	out.Embedding = append([]float32(nil), c.Embedding...)
	return out
}
