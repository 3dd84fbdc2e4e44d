package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/custodia-labs/lectern/internal/core/domain"
	"github.com/custodia-labs/lectern/internal/core/ports/driven"
	"github.com/custodia-labs/lectern/internal/core/ports/driving"
	"github.com/custodia-labs/lectern/internal/logger"
	"github.com/custodia-labs/lectern/internal/metrics"
	"github.com/custodia-labs/lectern/internal/retry"
)

// Ensure QueryProcessor implements the interface.
var _ driving.QueryService = (*QueryProcessor)(nil)

// shortQueryWords is the length below which queries are expanded.
const shortQueryWords = 3

// QueryProcessor embeds a question, searches the store and assembles the
// context handed to the response generator.
type QueryProcessor struct {
	embedder driven.EmbeddingService
	store    driven.RetrievalStore
	settings domain.RetrievalSettings
	policy   retry.Policy
}

// NewQueryProcessor creates a query processor.
func NewQueryProcessor(
	embedder driven.EmbeddingService,
	store driven.RetrievalStore,
	settings domain.RetrievalSettings,
) *QueryProcessor {
	return &QueryProcessor{
		embedder: embedder,
		store:    store,
		settings: settings,
		policy:   retry.Store,
	}
}

// ProcessQuery runs retrieval for one question. No result above the
// threshold is a valid outcome and not an error.
func (p *QueryProcessor) ProcessQuery(
	ctx context.Context, query string, opts domain.QueryOptions,
) (*domain.QueryResult, error) {
	start := time.Now()
	logger.Section("Query")

	result, err := p.process(ctx, query, opts)
	metrics.QueryDuration.Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		metrics.QueriesTotal.WithLabelValues(metrics.StatusError).Inc()
		return nil, err
	case !result.HasResults():
		metrics.QueriesTotal.WithLabelValues(metrics.StatusEmpty).Inc()
	default:
		metrics.QueriesTotal.WithLabelValues(metrics.StatusOK).Inc()
	}

	result.Elapsed = time.Since(start)
	metrics.QueryResults.Observe(float64(result.TotalResults))
	logger.Info("query %q: %d results, %d context words, truncated=%t (%s)",
		result.Query, result.TotalResults, result.Context.Words, result.Context.Truncated, result.Elapsed)
	return result, nil
}

func (p *QueryProcessor) process(ctx context.Context, query string, opts domain.QueryOptions) (*domain.QueryResult, error) {
	text := NormalizeQuery(query)
	if text == "" {
		return nil, domain.ErrEmptyQuery
	}

	topK, threshold := p.settings.TopK, p.settings.ScoreThreshold
	if opts.TopK != 0 {
		topK = opts.TopK
	}
	if opts.ScoreThreshold != nil {
		threshold = *opts.ScoreThreshold
	}
	if err := domain.ValidateRetrieval(topK, threshold); err != nil {
		return nil, err
	}
	logger.Debug("query %q: top_k=%d threshold=%.2f", text, topK, threshold)

	result := &domain.QueryResult{
		Query:   text,
		Results: []domain.SearchResult{},
		Context: AssembleContext(nil, p.settings.MaxContextWords),
	}

	applied, err := p.resolveFilters(ctx, opts)
	if err != nil {
		return nil, err
	}
	result.Filters = applied
	if applied.Unmatched {
		logger.Info("filter book=%q author=%q matched no book", opts.Book, opts.Author)
		return result, nil
	}

	embedText := text
	if p.settings.ExpandShortQueries {
		embedText = ExpandQuery(text)
		if embedText != text {
			logger.Debug("expanded short query to %q", embedText)
		}
	}

	vector, err := p.embedder.Embed(ctx, embedText)
	if err != nil {
		if !errors.Is(err, domain.ErrEmbedding) {
			err = &domain.EmbeddingError{Op: "query", Err: err}
		}
		return nil, err
	}

	req := domain.SearchRequest{
		Vector:         vector,
		TopK:           topK,
		ScoreThreshold: threshold,
		Filters:        applied.Resolved,
	}
	var hits []domain.SearchResult
	err = retry.Do(ctx, p.policy, p.store.Name()+" search", func(ctx context.Context) error {
		var searchErr error
		hits, searchErr = p.store.Search(ctx, req)
		return searchErr
	})
	if err != nil {
		return nil, domain.NewStoreError(p.store.Name(), "search", err)
	}

	// Stores already rank, but the ordering and threshold are re-applied so
	// every backend yields the same deterministic result.
	hits = domain.RankResults(hits, topK, threshold)
	result.Results = hits
	result.TotalResults = len(hits)
	result.Context = AssembleContext(hits, p.settings.MaxContextWords)
	return result, nil
}

// resolveFilters maps user supplied book and author names onto the
// identifiers stored with chunks.
func (p *QueryProcessor) resolveFilters(ctx context.Context, opts domain.QueryOptions) (domain.AppliedFilters, error) {
	applied := domain.AppliedFilters{
		Book:   strings.TrimSpace(opts.Book),
		Author: strings.TrimSpace(opts.Author),
	}
	if applied.IsEmpty() {
		return applied, nil
	}

	books, err := p.Books(ctx)
	if err != nil {
		return applied, err
	}

	if applied.Book != "" {
		matches := matchBooks(books, applied.Book, func(b domain.BookSummary) string { return b.Title })
		if len(matches) == 0 {
			applied.Unmatched = true
			return applied, nil
		}
		for _, b := range matches {
			applied.Resolved.BookIDs = append(applied.Resolved.BookIDs, b.BookID)
		}
	}

	if applied.Author != "" {
		matches := matchBooks(books, applied.Author, func(b domain.BookSummary) string { return b.Author })
		if len(matches) == 0 {
			applied.Unmatched = true
			return applied, nil
		}
		seen := make(map[string]bool)
		for _, b := range matches {
			if !seen[strings.ToLower(b.Author)] {
				seen[strings.ToLower(b.Author)] = true
				applied.Resolved.Authors = append(applied.Resolved.Authors, b.Author)
			}
		}
	}

	logger.Debug("resolved filters: books=%v authors=%v", applied.Resolved.BookIDs, applied.Resolved.Authors)
	return applied, nil
}

// matchBooks returns the books whose field matches want exactly, else
// case-insensitively, else as a case-insensitive substring.
func matchBooks(books []domain.BookSummary, want string, field func(domain.BookSummary) string) []domain.BookSummary {
	lower := strings.ToLower(want)
	tiers := []func(string) bool{
		func(v string) bool { return v == want },
		func(v string) bool { return strings.EqualFold(v, want) },
		func(v string) bool { return strings.Contains(strings.ToLower(v), lower) },
	}
	for _, match := range tiers {
		var out []domain.BookSummary
		for _, b := range books {
			if match(field(b)) {
				out = append(out, b)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// Stats returns aggregate counts over the library.
func (p *QueryProcessor) Stats(ctx context.Context) (domain.Stats, error) {
	var stats domain.Stats
	err := retry.Do(ctx, p.policy, p.store.Name()+" stats", func(ctx context.Context) error {
		var err error
		stats, err = p.store.Stats(ctx)
		return err
	})
	if err != nil {
		return domain.Stats{}, domain.NewStoreError(p.store.Name(), "stats", err)
	}
	return stats, nil
}

// Books lists the ingested books.
func (p *QueryProcessor) Books(ctx context.Context) ([]domain.BookSummary, error) {
	var books []domain.BookSummary
	err := retry.Do(ctx, p.policy, p.store.Name()+" books", func(ctx context.Context) error {
		var err error
		books, err = p.store.Books(ctx)
		return err
	})
	if err != nil {
		return nil, domain.NewStoreError(p.store.Name(), "books", err)
	}
	return books, nil
}

// NormalizeQuery trims the query and collapses internal whitespace.
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(query), " ")
}

// ExpandQuery rewrites very short keyword queries as a question so they
// embed closer to explanatory passages.
func ExpandQuery(query string) string {
	if strings.HasSuffix(strings.TrimSpace(query), "?") || len(strings.Fields(query)) >= shortQueryWords {
		return query
	}
	return "What is " + query + "?"
}
