package services

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/lectern/internal/core/domain"
	"github.com/custodia-labs/lectern/internal/core/ports/driven"
	"github.com/custodia-labs/lectern/internal/retry"
)

// --- Mock implementations ---

// mockEmbedder returns deterministic vectors derived from the text.
type mockEmbedder struct {
	mu       sync.Mutex
	dims     int
	reported int
	calls    int
	batches  [][]string
	errs     []error // returned by successive calls before succeeding
	vectors  map[string][]float32
}

func newMockEmbedder(dims int) *mockEmbedder {
	return &mockEmbedder{dims: dims, reported: dims, vectors: make(map[string][]float32)}
}

func (m *mockEmbedder) vector(text string) []float32 {
	if v, ok := m.vectors[text]; ok {
		return v
	}
	sum := sha256.Sum256([]byte(text))
	v := make([]float32, m.dims)
	for i := range v {
		v[i] = float32(sum[i%len(sum)]) / 255
	}
	return v
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.batches = append(m.batches, append([]string{}, texts...))
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = m.vector(t)
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int { return m.reported }
func (m *mockEmbedder) ModelName() string { return "mock-embed" }
func (m *mockEmbedder) Ping(_ context.Context) error { return nil }
func (m *mockEmbedder) Close() error { return nil }

func (m *mockEmbedder) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockCache is an in-memory embedding cache.
type mockCache struct {
	mu     sync.Mutex
	values map[string][]float32
	getErr error
}

func newMockCache() *mockCache {
	return &mockCache{values: make(map[string][]float32)}
}

func (c *mockCache) Get(_ context.Context, key string) ([]float32, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	v, ok := c.values[key]
	return v, ok, nil
}

func (c *mockCache) Set(_ context.Context, key string, vector []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = vector
	return nil
}

func (c *mockCache) Close() error { return nil }

// mockStore keeps chunks in memory and ranks by cosine similarity.
type mockStore struct {
	mu         sync.Mutex
	books      map[string]domain.Book
	chunks     map[string][]domain.TextChunk
	scores     map[string]float64 // fixed scores by chunk id, bypassing cosine
	searchErr  []error
	replaceErr error
	listErr    error
	lastReq    domain.SearchRequest
	searches   int
}

func newMockStore() *mockStore {
	return &mockStore{
		books:  make(map[string]domain.Book),
		chunks: make(map[string][]domain.TextChunk),
		scores: make(map[string]float64),
	}
}

func (s *mockStore) Upsert(_ context.Context, chunks []domain.TextChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range chunks {
		list := s.chunks[c.BookID]
		replaced := false
		for i := range list {
			if list[i].ID == c.ID {
				list[i] = c
				replaced = true
			}
		}
		if !replaced {
			list = append(list, c)
		}
		s.chunks[c.BookID] = list
		if _, ok := s.books[c.BookID]; !ok {
			s.books[c.BookID] = domain.Book{ID: c.BookID, Title: c.Title, Author: c.Author}
		}
	}
	return nil
}

func (s *mockStore) ReplaceBook(_ context.Context, book domain.Book, chunks []domain.TextChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.replaceErr != nil {
		return s.replaceErr
	}
	s.books[book.ID] = book
	s.chunks[book.ID] = append([]domain.TextChunk{}, chunks...)
	return nil
}

func (s *mockStore) DeleteBook(_ context.Context, bookID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.books, bookID)
	delete(s.chunks, bookID)
	return nil
}

func (s *mockStore) Search(_ context.Context, req domain.SearchRequest) ([]domain.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searches++
	s.lastReq = req
	if len(s.searchErr) > 0 {
		err := s.searchErr[0]
		s.searchErr = s.searchErr[1:]
		return nil, err
	}

	var results []domain.SearchResult
	for _, list := range s.chunks {
		for i := range list {
			if !req.Filters.Matches(&list[i]) {
				continue
			}
			score, ok := s.scores[list[i].ID]
			if !ok {
				score = domain.CosineSimilarity(req.Vector, list[i].Embedding)
			}
			results = append(results, domain.SearchResult{Chunk: list[i], Score: score})
		}
	}
	return domain.RankResults(results, req.TopK, req.ScoreThreshold), nil
}

func (s *mockStore) Stats(ctx context.Context) (domain.Stats, error) {
	books, err := s.Books(ctx)
	if err != nil {
		return domain.Stats{}, err
	}
	return domain.StatsFromBooks(books), nil
}

func (s *mockStore) Books(_ context.Context) ([]domain.BookSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []domain.BookSummary
	for id, b := range s.books {
		out = append(out, domain.BookSummary{BookID: id, Title: b.Title, Author: b.Author, Chunks: len(s.chunks[id])})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (s *mockStore) Name() string { return "mock" }
func (s *mockStore) Close() error { return nil }

func (s *mockStore) chunkCount(bookID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chunks[bookID])
}

// mockLLM answers with a scripted text, blocking or as fragments.
type mockLLM struct {
	mu          sync.Mutex
	answer      string
	fragments   []string
	failAfter   int // stream fails after this many fragments when streamErr is set
	streamErr   error
	generateErr []error
	calls       int
	streamCalls int
	lastPrompt  string
	lastOpts    driven.GenerateOptions
	streams     []*mockFragmentStream
}

func (m *mockLLM) Generate(_ context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastPrompt, m.lastOpts = prompt, opts
	if len(m.generateErr) > 0 {
		err := m.generateErr[0]
		m.generateErr = m.generateErr[1:]
		return "", err
	}
	if m.answer == "" {
		return strings.Join(m.fragments, ""), nil
	}
	return m.answer, nil
}

func (m *mockLLM) Stream(_ context.Context, prompt string, opts driven.GenerateOptions) (driven.FragmentStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streamCalls++
	m.lastPrompt, m.lastOpts = prompt, opts
	s := &mockFragmentStream{fragments: m.fragments, failAfter: m.failAfter, err: m.streamErr}
	m.streams = append(m.streams, s)
	return s, nil
}

func (m *mockLLM) ModelName() string { return "mock-llm" }
func (m *mockLLM) Ping(_ context.Context) error { return nil }
func (m *mockLLM) Close() error { return nil }

type mockFragmentStream struct {
	fragments []string
	pos       int
	failAfter int
	err       error
	closed    int
}

func (s *mockFragmentStream) Next() (string, error) {
	if s.err != nil && s.pos == s.failAfter {
		return "", s.err
	}
	if s.pos >= len(s.fragments) {
		return "", io.EOF
	}
	f := s.fragments[s.pos]
	s.pos++
	return f, nil
}

func (s *mockFragmentStream) Close() error {
	s.closed++
	return nil
}

// mockPrompts serves fixed templates; user overrides the answer template.
type mockPrompts struct {
	user string
}

func (m mockPrompts) Load(name string) (string, error) {
	switch name {
	case driven.PromptAnswerSystem:
		return "Answer only from the context.", nil
	case driven.PromptAnswerUser:
		if m.user != "" {
			return m.user, nil
		}
		return "CONTEXT:\n{{context}}\n\nQUESTION: {{question}}", nil
	}
	return "", errors.New("unknown prompt")
}

func (mockPrompts) Reload() {}

// mockExtractors returns canned pages per path.
type mockExtractors struct {
	pages map[string][]domain.PageText
	errs  map[string]error
}

func (m *mockExtractors) Extract(_ context.Context, book domain.Book) ([]domain.PageText, error) {
	if err := m.errs[book.SourcePath]; err != nil {
		return nil, err
	}
	pages, ok := m.pages[book.SourcePath]
	if !ok {
		return nil, domain.ErrUnsupportedFormat
	}
	out := make([]domain.PageText, len(pages))
	for i, p := range pages {
		p.BookID = book.ID
		out[i] = p
	}
	return out, nil
}

func (m *mockExtractors) Register(_ driven.PageExtractor) {}
func (m *mockExtractors) Supports(path string) bool {
	_, ok := m.pages[path]
	return ok
}

// mockDiscoverer lists a fixed set of paths.
type mockDiscoverer struct {
	paths []string
}

func (m *mockDiscoverer) Discover(_ context.Context, _ string, _ bool) ([]domain.Book, error) {
	books := make([]domain.Book, len(m.paths))
	for i, p := range m.paths {
		books[i] = domain.NewBook(p)
	}
	return books, nil
}

// words builds a text of n numbered words.
func words(prefix string, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = prefix + strings.Repeat("x", i%3) + string(rune('a'+i%26))
	}
	return strings.Join(parts, " ")
}

// fastRetry keeps retry tests quick.
var fastRetry = retry.Policy{Attempts: 3, Base: time.Millisecond, Max: time.Millisecond}

// transient marks an error as retryable the way adapters do.
func transient(msg string) error {
	return fmt.Errorf("%w: %s", domain.ErrTransient, msg)
}
