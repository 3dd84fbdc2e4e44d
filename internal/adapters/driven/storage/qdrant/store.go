// Package qdrant provides a retrieval store backed by a Qdrant server
// through its REST API.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/lectern/internal/adapters/driven/aierr"
	"github.com/custodia-labs/lectern/internal/core/domain"
	"github.com/custodia-labs/lectern/internal/core/ports/driven"
)

const (
	backendName = "qdrant"

	// upsertBatch bounds the points sent per request.
	upsertBatch = 256

	// scrollPage is the page size used when listing books.
	scrollPage = 1000

	defaultTimeout = 15 * time.Second
)

// pointNamespace derives stable point ids from chunk ids.
var pointNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://lectern.dev/chunk"))

// errCollectionMissing marks a 404 for the collection itself.
var errCollectionMissing = errors.New("collection does not exist")

// Ensure Store implements the interface.
var _ driven.RetrievalStore = (*Store)(nil)

// Config holds connection settings.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// Store is a minimal REST client to Qdrant. The collection is created with
// cosine distance on first write, sized by the first vector.
type Store struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client

	initMu sync.Mutex
	ready  bool

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewStore creates a store. No request is made until first use.
func NewStore(cfg Config) *Store {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Store{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
		locks:      make(map[string]*sync.Mutex),
	}
}

// Name identifies the backend.
func (s *Store) Name() string { return backendName }

// Close releases idle connections.
func (s *Store) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// point is a Qdrant point.
type point struct {
	ID      string    `json:"id"`
	Vector  []float32 `json:"vector,omitempty"`
	Payload payload   `json:"payload"`
}

// payload is the chunk metadata stored with each point.
type payload struct {
	ChunkID    string `json:"chunk_id"`
	BookID     string `json:"book_id"`
	Title      string `json:"title"`
	Author     string `json:"author"`
	AuthorKey  string `json:"author_key"`
	Page       int    `json:"page"`
	Index      int    `json:"index"`
	WordOffset int    `json:"word_offset"`
	Text       string `json:"text"`
}

func (p payload) chunk() domain.TextChunk {
	return domain.TextChunk{
		ID:         p.ChunkID,
		BookID:     p.BookID,
		Title:      p.Title,
		Author:     p.Author,
		PageNumber: p.Page,
		Index:      p.Index,
		WordOffset: p.WordOffset,
		Text:       p.Text,
	}
}

// PointID returns the Qdrant point id for a chunk id.
func PointID(chunkID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunkID)).String()
}

func toPoint(c *domain.TextChunk) point {
	return point{
		ID:     PointID(c.ID),
		Vector: c.Embedding,
		Payload: payload{
			ChunkID:    c.ID,
			BookID:     c.BookID,
			Title:      c.Title,
			Author:     c.Author,
			AuthorKey:  strings.ToLower(c.Author),
			Page:       c.PageNumber,
			Index:      c.Index,
			WordOffset: c.WordOffset,
			Text:       c.Text,
		},
	}
}

// Upsert stores chunks, replacing points with the same chunk id.
func (s *Store) Upsert(ctx context.Context, chunks []domain.TextChunk) error {
	if err := s.upsert(ctx, chunks); err != nil {
		return unavailable("upsert", err)
	}
	return nil
}

// ReplaceBook writes the new chunks over the old ones, then prunes old
// chunks past the new end. Concurrent replaces of one book are serialised.
// Readers may briefly see new chunks next to an old tail.
func (s *Store) ReplaceBook(ctx context.Context, book domain.Book, chunks []domain.TextChunk) error {
	lock := s.bookLock(book.ID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.upsert(ctx, chunks); err != nil {
		return unavailable("replace", err)
	}
	filter := bookFilter(book.ID)
	filter.Must = append(filter.Must, condition{Key: "index", Range: &rangeCond{Gte: len(chunks)}})
	if err := s.deletePoints(ctx, filter); err != nil {
		return unavailable("replace", err)
	}
	return nil
}

// DeleteBook removes all points of a book.
func (s *Store) DeleteBook(ctx context.Context, bookID string) error {
	lock := s.bookLock(bookID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.deletePoints(ctx, bookFilter(bookID)); err != nil {
		return unavailable("delete", err)
	}
	return nil
}

// Search runs a filtered vector search. Qdrant does not order equal
// scores, so extra candidates are fetched and ranked locally. A title
// filter is first resolved to book ids so it is applied on the server.
func (s *Store) Search(ctx context.Context, req domain.SearchRequest) ([]domain.SearchResult, error) {
	filters := req.Filters
	if filters.Title != "" {
		ids, err := s.titleBookIDs(ctx, filters)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return []domain.SearchResult{}, nil
		}
		filters.BookIDs = ids
	}

	body := map[string]any{
		"vector":          req.Vector,
		"limit":           max(req.TopK*2, req.TopK+10),
		"score_threshold": req.ScoreThreshold,
		"with_payload":    true,
	}
	if f := searchFilter(filters); f != nil {
		body["filter"] = f
	}

	var resp struct {
		Result []struct {
			Score   float64 `json:"score"`
			Payload payload `json:"payload"`
		} `json:"result"`
	}
	err := s.postJSON(ctx, s.collectionURL("/points/search"), body, &resp)
	if errors.Is(err, errCollectionMissing) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("search", err)
	}

	results := make([]domain.SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		chunk := r.Payload.chunk()
		if !req.Filters.Matches(&chunk) {
			continue
		}
		results = append(results, domain.SearchResult{Chunk: chunk, Score: r.Score})
	}
	return domain.RankResults(results, req.TopK, req.ScoreThreshold), nil
}

// titleBookIDs returns the ids of stored books passing every filter.
func (s *Store) titleBookIDs(ctx context.Context, f domain.SearchFilters) ([]string, error) {
	books, err := s.Books(ctx)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, b := range books {
		candidate := domain.TextChunk{BookID: b.BookID, Title: b.Title, Author: b.Author}
		if f.Matches(&candidate) {
			ids = append(ids, b.BookID)
		}
	}
	return ids, nil
}

// Stats recomputes counts by scrolling every point.
func (s *Store) Stats(ctx context.Context) (domain.Stats, error) {
	books, err := s.Books(ctx)
	if err != nil {
		return domain.Stats{}, err
	}
	return domain.StatsFromBooks(books), nil
}

// Books scrolls point payloads and groups them by book, ordered by title.
func (s *Store) Books(ctx context.Context) ([]domain.BookSummary, error) {
	byID := make(map[string]*domain.BookSummary)
	var offset any
	for {
		body := map[string]any{
			"limit":        scrollPage,
			"with_payload": []string{"book_id", "title", "author"},
			"with_vector":  false,
		}
		if offset != nil {
			body["offset"] = offset
		}
		var resp struct {
			Result struct {
				Points []struct {
					Payload payload `json:"payload"`
				} `json:"points"`
				NextPageOffset any `json:"next_page_offset"`
			} `json:"result"`
		}
		err := s.postJSON(ctx, s.collectionURL("/points/scroll"), body, &resp)
		if errors.Is(err, errCollectionMissing) {
			return nil, nil
		}
		if err != nil {
			return nil, unavailable("books", err)
		}
		for _, p := range resp.Result.Points {
			b, ok := byID[p.Payload.BookID]
			if !ok {
				b = &domain.BookSummary{BookID: p.Payload.BookID, Title: p.Payload.Title, Author: p.Payload.Author}
				byID[p.Payload.BookID] = b
			}
			b.Chunks++
		}
		offset = resp.Result.NextPageOffset
		if offset == nil {
			break
		}
	}

	books := make([]domain.BookSummary, 0, len(byID))
	for _, b := range byID {
		books = append(books, *b)
	}
	sort.Slice(books, func(i, j int) bool {
		if books[i].Title != books[j].Title {
			return books[i].Title < books[j].Title
		}
		return books[i].BookID < books[j].BookID
	})
	return books, nil
}

func (s *Store) upsert(ctx context.Context, chunks []domain.TextChunk) error {
	points := make([]point, 0, len(chunks))
	for i := range chunks {
		if len(chunks[i].Embedding) > 0 {
			points = append(points, toPoint(&chunks[i]))
		}
	}
	if len(points) == 0 {
		return nil
	}
	if err := s.ensureCollection(ctx, len(points[0].Vector)); err != nil {
		return err
	}
	for start := 0; start < len(points); start += upsertBatch {
		end := min(start+upsertBatch, len(points))
		body := map[string]any{"points": points[start:end]}
		if err := s.send(ctx, http.MethodPut, s.collectionURL("/points?wait=true"), body, nil); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) deletePoints(ctx context.Context, f *filter) error {
	err := s.postJSON(ctx, s.collectionURL("/points/delete?wait=true"), map[string]any{"filter": f}, nil)
	if errors.Is(err, errCollectionMissing) {
		return nil
	}
	return err
}

// ensureCollection creates the collection if it does not exist.
func (s *Store) ensureCollection(ctx context.Context, dimension int) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()
	if s.ready {
		return nil
	}

	err := s.send(ctx, http.MethodGet, s.collectionURL(""), nil, nil)
	if errors.Is(err, errCollectionMissing) {
		body := map[string]any{
			"vectors": map[string]any{
				"size":     dimension,
				"distance": "Cosine",
			},
		}
		err = s.send(ctx, http.MethodPut, s.collectionURL(""), body, nil)
		if err == nil {
			err = s.createIndexes(ctx)
		}
	}
	if err != nil {
		return err
	}
	s.ready = true
	return nil
}

// createIndexes adds payload indexes for the filtered fields.
func (s *Store) createIndexes(ctx context.Context) error {
	for field, schema := range map[string]string{"book_id": "keyword", "author_key": "keyword", "index": "integer"} {
		body := map[string]any{"field_name": field, "field_schema": schema}
		if err := s.send(ctx, http.MethodPut, s.collectionURL("/index?wait=true"), body, nil); err != nil {
			return fmt.Errorf("index %s: %w", field, err)
		}
	}
	return nil
}

func (s *Store) bookLock(bookID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	lock, ok := s.locks[bookID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[bookID] = lock
	}
	return lock
}

func (s *Store) collectionURL(suffix string) string {
	return s.url + "/collections/" + url.PathEscape(s.collection) + suffix
}

func (s *Store) postJSON(ctx context.Context, u string, body, out any) error {
	return s.send(ctx, http.MethodPost, u, body, out)
}

func (s *Store) send(ctx context.Context, method, u string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return aierr.Transport(backendName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errCollectionMissing
	}
	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return aierr.Status(backendName, resp.StatusCode, data)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

func unavailable(op string, err error) error {
	return &domain.StoreUnavailableError{Backend: backendName, Op: op, Err: err}
}
