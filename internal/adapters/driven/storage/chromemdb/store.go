// Package chromemdb provides a retrieval store on the embedded chromem-go
// vector database.
//
// Chunks live in one collection and a small catalogue collection records
// each stored book, since chromem cannot enumerate documents directly.
// Catalogue entries carry a constant one-dimensional embedding so a single
// query returns all of them.
package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"

	"github.com/custodia-labs/lectern/internal/core/domain"
	"github.com/custodia-labs/lectern/internal/core/ports/driven"
)

const backendName = "chromem"

// Metadata keys on chunk documents.
const (
	metaBookID     = "book_id"
	metaTitle      = "title"
	metaAuthor     = "author"
	metaPage       = "page"
	metaIndex      = "index"
	metaWordOffset = "word_offset"
	metaChunks     = "chunks"
)

// catalogueVector is the embedding of every catalogue entry.
var catalogueVector = []float32{1}

// Ensure Store implements the interface.
var _ driven.RetrievalStore = (*Store)(nil)

// Store is a chromem-go backed retrieval store. Writers hold the lock
// exclusively so a replace is never observed half done.
type Store struct {
	mu        sync.RWMutex
	chunks    *chromem.Collection
	catalogue *chromem.Collection
}

// NewStore opens a persistent database under dataDir. An empty dataDir
// keeps everything in memory.
func NewStore(dataDir, collection string) (*Store, error) {
	var db *chromem.DB
	if dataDir == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(filepath.Join(dataDir, "chromem"), false)
		if err != nil {
			return nil, unavailable("open", err)
		}
	}

	chunks, err := db.GetOrCreateCollection(collection, nil, noEmbedding)
	if err != nil {
		return nil, unavailable("open", err)
	}
	catalogue, err := db.GetOrCreateCollection(collection+"_books", nil, noEmbedding)
	if err != nil {
		return nil, unavailable("open", err)
	}
	return &Store{chunks: chunks, catalogue: catalogue}, nil
}

// noEmbedding refuses to embed. Every document arrives with its vector.
func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("%w: chunk has no embedding", domain.ErrInvalidInput)
}

// Name identifies the backend.
func (s *Store) Name() string { return backendName }

// Close is a no-op; persistent databases write through on every change.
func (s *Store) Close() error { return nil }

// Upsert stores chunks, replacing any chunk with the same id.
func (s *Store) Upsert(ctx context.Context, chunks []domain.TextChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	delta := make(map[string]int)
	books := make(map[string]domain.Book)
	var ids []string
	for i := range chunks {
		c := &chunks[i]
		if len(c.Embedding) == 0 {
			continue
		}
		if existing, err := s.chunks.GetByID(ctx, c.ID); err == nil {
			delta[existing.Metadata[metaBookID]]--
		}
		delta[c.BookID]++
		books[c.BookID] = domain.Book{ID: c.BookID, Title: c.Title, Author: c.Author}
		ids = append(ids, c.ID)
	}
	if len(ids) == 0 {
		return nil
	}
	if err := s.chunks.Delete(ctx, nil, nil, ids...); err != nil {
		return unavailable("upsert", err)
	}
	if err := s.add(ctx, chunks); err != nil {
		return unavailable("upsert", err)
	}

	for bookID, d := range delta {
		if err := s.adjustBook(ctx, books[bookID], bookID, d); err != nil {
			return unavailable("upsert", err)
		}
	}
	return nil
}

// ReplaceBook swaps the book's chunks for the new set under the write
// lock. The previous set is copied first and put back if the new set
// cannot be stored in full.
func (s *Store) ReplaceBook(ctx context.Context, book domain.Book, chunks []domain.TextChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous, err := s.snapshotBook(ctx, book.ID, dimension(chunks))
	if err != nil {
		return unavailable("replace", err)
	}
	if err := s.deleteBook(ctx, book.ID); err != nil {
		return unavailable("replace", err)
	}
	if err := s.add(ctx, chunks); err != nil {
		if restoreErr := s.restore(ctx, book.ID, previous); restoreErr != nil {
			err = errors.Join(err, fmt.Errorf("restoring previous chunks: %w", restoreErr))
		}
		return unavailable("replace", err)
	}
	if err := s.recordBook(ctx, book, embedded(chunks)); err != nil {
		return unavailable("replace", err)
	}
	return nil
}

// snapshot is a book's stored state.
type snapshot struct {
	entry *chromem.Document
	docs  []chromem.Document
}

// snapshotBook copies the catalogue entry and chunks of a book. dim is the
// collection's vector size; zero means there is nothing new to store, so
// nothing can fail and no copy is needed.
func (s *Store) snapshotBook(ctx context.Context, bookID string, dim int) (snapshot, error) {
	var snap snapshot
	if dim == 0 {
		return snap, nil
	}
	if s.catalogue.Count() > 0 {
		if entry, err := s.catalogue.GetByID(ctx, bookID); err == nil {
			snap.entry = &entry
		}
	}
	count := s.chunks.Count()
	if count == 0 {
		return snap, nil
	}

	axis := make([]float32, dim)
	axis[0] = 1
	matches, err := s.chunks.QueryEmbedding(ctx, axis, count, map[string]string{metaBookID: bookID}, nil)
	if err != nil {
		return snap, err
	}
	for _, m := range matches {
		doc, err := s.chunks.GetByID(ctx, m.ID)
		if err != nil {
			return snap, err
		}
		snap.docs = append(snap.docs, doc)
	}
	return snap, nil
}

// restore drops whatever part of a new set was stored and puts the
// snapshot back.
func (s *Store) restore(ctx context.Context, bookID string, snap snapshot) error {
	if err := s.deleteBook(ctx, bookID); err != nil {
		return err
	}
	if len(snap.docs) > 0 {
		if err := s.chunks.AddDocuments(ctx, snap.docs, runtime.NumCPU()); err != nil {
			return err
		}
	}
	if snap.entry != nil {
		return s.catalogue.AddDocument(ctx, *snap.entry)
	}
	return nil
}

// DeleteBook removes a book and all of its chunks.
func (s *Store) DeleteBook(ctx context.Context, bookID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.deleteBook(ctx, bookID); err != nil {
		return unavailable("delete", err)
	}
	return nil
}

// Search queries every chunk and applies filters and ranking locally.
func (s *Store) Search(ctx context.Context, req domain.SearchRequest) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := s.chunks.Count()
	if count == 0 {
		return nil, nil
	}
	matches, err := s.chunks.QueryEmbedding(ctx, req.Vector, count, nil, nil)
	if err != nil {
		return nil, unavailable("search", err)
	}

	results := make([]domain.SearchResult, 0, len(matches))
	for _, m := range matches {
		chunk := chunkFromDocument(m.ID, m.Metadata, m.Content)
		if !req.Filters.Matches(&chunk) {
			continue
		}
		results = append(results, domain.SearchResult{Chunk: chunk, Score: float64(m.Similarity)})
	}
	return domain.RankResults(results, req.TopK, req.ScoreThreshold), nil
}

// Stats recomputes counts from the catalogue.
func (s *Store) Stats(ctx context.Context) (domain.Stats, error) {
	books, err := s.Books(ctx)
	if err != nil {
		return domain.Stats{}, err
	}
	return domain.StatsFromBooks(books), nil
}

// Books lists catalogued books holding at least one chunk, ordered by title.
func (s *Store) Books(ctx context.Context) ([]domain.BookSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := s.catalogue.Count()
	if count == 0 {
		return nil, nil
	}
	entries, err := s.catalogue.QueryEmbedding(ctx, catalogueVector, count, nil, nil)
	if err != nil {
		return nil, unavailable("books", err)
	}

	books := make([]domain.BookSummary, 0, len(entries))
	for _, e := range entries {
		n, _ := strconv.Atoi(e.Metadata[metaChunks])
		if n == 0 {
			continue
		}
		books = append(books, domain.BookSummary{
			BookID: e.ID,
			Title:  e.Metadata[metaTitle],
			Author: e.Metadata[metaAuthor],
			Chunks: n,
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

func (s *Store) add(ctx context.Context, chunks []domain.TextChunk) error {
	docs := make([]chromem.Document, 0, len(chunks))
	for i := range chunks {
		c := &chunks[i]
		if len(c.Embedding) == 0 {
			continue
		}
		docs = append(docs, chromem.Document{
			ID:        c.ID,
			Content:   c.Text,
			Embedding: append([]float32(nil), c.Embedding...),
			Metadata: map[string]string{
				metaBookID:     c.BookID,
				metaTitle:      c.Title,
				metaAuthor:     c.Author,
				metaPage:       strconv.Itoa(c.PageNumber),
				metaIndex:      strconv.Itoa(c.Index),
				metaWordOffset: strconv.Itoa(c.WordOffset),
			},
		})
	}
	if len(docs) == 0 {
		return nil
	}
	return s.chunks.AddDocuments(ctx, docs, runtime.NumCPU())
}

func (s *Store) deleteBook(ctx context.Context, bookID string) error {
	if s.chunks.Count() > 0 {
		if err := s.chunks.Delete(ctx, map[string]string{metaBookID: bookID}, nil); err != nil {
			return err
		}
	}
	if s.catalogue.Count() > 0 {
		return s.catalogue.Delete(ctx, nil, nil, bookID)
	}
	return nil
}

// recordBook writes the catalogue entry for book holding n chunks.
func (s *Store) recordBook(ctx context.Context, book domain.Book, n int) error {
	if s.catalogue.Count() > 0 {
		if err := s.catalogue.Delete(ctx, nil, nil, book.ID); err != nil {
			return err
		}
	}
	return s.catalogue.AddDocument(ctx, chromem.Document{
		ID:        book.ID,
		Content:   book.Title,
		Embedding: catalogueVector,
		Metadata: map[string]string{
			metaTitle:  book.Title,
			metaAuthor: book.Author,
			metaChunks: strconv.Itoa(n),
		},
	})
}

// adjustBook changes a catalogue entry's chunk count by delta. A book
// missing from the catalogue is created from fallback.
func (s *Store) adjustBook(ctx context.Context, fallback domain.Book, bookID string, delta int) error {
	if delta == 0 {
		return nil
	}
	book := fallback
	book.ID = bookID
	n := 0
	if entry, err := s.catalogue.GetByID(ctx, bookID); err == nil {
		book.Title = entry.Metadata[metaTitle]
		book.Author = entry.Metadata[metaAuthor]
		n, _ = strconv.Atoi(entry.Metadata[metaChunks])
	}
	return s.recordBook(ctx, book, max(n+delta, 0))
}

// dimension returns the vector size of the first embedded chunk.
func dimension(chunks []domain.TextChunk) int {
	for i := range chunks {
		if n := len(chunks[i].Embedding); n > 0 {
			return n
		}
	}
	return 0
}

func embedded(chunks []domain.TextChunk) int {
	n := 0
	for i := range chunks {
		if len(chunks[i].Embedding) > 0 {
			n++
		}
	}
	return n
}

func chunkFromDocument(id string, meta map[string]string, content string) domain.TextChunk {
	page, _ := strconv.Atoi(meta[metaPage])
	index, _ := strconv.Atoi(meta[metaIndex])
	offset, _ := strconv.Atoi(meta[metaWordOffset])
	return domain.TextChunk{
		ID:         id,
		BookID:     meta[metaBookID],
		Title:      meta[metaTitle],
		Author:     meta[metaAuthor],
		PageNumber: page,
		Index:      index,
		WordOffset: offset,
		Text:       content,
	}
}

func unavailable(op string, err error) error {
	return &domain.StoreUnavailableError{Backend: backendName, Op: op, Err: err}
}
