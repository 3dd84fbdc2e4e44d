package domain

import (
	"math"
	"sort"
	"strings"
	"time"
)

// SearchFilters restrict a similarity search by chunk metadata.
// Empty fields do not filter.
type SearchFilters struct {
	// BookIDs keeps chunks whose book id equals any entry.
	BookIDs []string

	// Authors keeps chunks whose author equals any entry, ignoring case.
	Authors []string

	// Title keeps chunks whose title contains this text, ignoring case.
	Title string
}

// IsEmpty returns true if no filter is set.
func (f SearchFilters) IsEmpty() bool {
	return len(f.BookIDs) == 0 && len(f.Authors) == 0 && f.Title == ""
}

// Matches reports whether a chunk passes every set filter.
func (f SearchFilters) Matches(c *TextChunk) bool {
	if len(f.BookIDs) > 0 && !containsExact(f.BookIDs, c.BookID) {
		return false
	}
	if len(f.Authors) > 0 && !containsFold(f.Authors, c.Author) {
		return false
	}
	if f.Title != "" && !strings.Contains(strings.ToLower(c.Title), strings.ToLower(f.Title)) {
		return false
	}
	return true
}

func containsExact(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func containsFold(values []string, v string) bool {
	for _, candidate := range values {
		if strings.EqualFold(candidate, v) {
			return true
		}
	}
	return false
}

// SearchRequest is a similarity search against the retrieval store.
type SearchRequest struct {
	// Vector is the query embedding.
	Vector []float32

	// TopK is the maximum number of results.
	TopK int

	// ScoreThreshold drops results scoring below it.
	ScoreThreshold float64

	// Filters restrict candidate chunks.
	Filters SearchFilters
}

// SearchResult is a scored view of a stored chunk.
type SearchResult struct {
	// Chunk is a read-only copy of the matched chunk.
	Chunk TextChunk

	// Score is the cosine similarity in [-1, 1]; higher is more relevant.
	Score float64
}

// SortResults orders results by descending score, breaking ties by
// ascending chunk id so identical inputs always rank identically.
func SortResults(results []SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})
}

// RankResults applies the threshold, sorts and truncates to topK.
// The input slice is reordered in place.
func RankResults(results []SearchResult, topK int, threshold float64) []SearchResult {
	kept := results[:0]
	for _, r := range results {
		if r.Score >= threshold {
			kept = append(kept, r)
		}
	}
	SortResults(kept)
	if topK > 0 && len(kept) > topK {
		kept = kept[:topK]
	}
	return kept
}

// CosineSimilarity returns the cosine of the angle between two vectors.
// Mismatched lengths or zero vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// QueryOptions overrides retrieval defaults for a single query.
// Zero values fall back to the configured defaults.
type QueryOptions struct {
	// TopK is the maximum number of results.
	TopK int

	// ScoreThreshold, when set, replaces the configured threshold.
	ScoreThreshold *float64

	// Book restricts results to books whose title matches.
	Book string

	// Author restricts results to books by a matching author.
	Author string
}

// AppliedFilters records the filters requested for a query and what
// they resolved to against the known books.
type AppliedFilters struct {
	// Book and Author are the filters as requested.
	Book   string
	Author string

	// Resolved is what was sent to the store.
	Resolved SearchFilters

	// Unmatched is true when a requested filter matched no known book.
	Unmatched bool
}

// IsEmpty returns true if no filter was requested.
func (f AppliedFilters) IsEmpty() bool {
	return f.Book == "" && f.Author == ""
}

// AssembledContext is the citation-marked context block handed to the
// language model. Marker n refers to ChunkIDs[n-1] and Sources[n-1].
type AssembledContext struct {
	// Text is the concatenation of included chunks with their markers.
	Text string

	// ChunkIDs lists included chunks in selection order.
	ChunkIDs []string

	// Sources holds the citation of each included chunk.
	Sources []Citation

	// Words is the word count of Text.
	Words int

	// Truncated is true when the budget excluded lower-ranked results.
	Truncated bool
}

// IsEmpty returns true if no chunk was included.
func (c AssembledContext) IsEmpty() bool {
	return len(c.ChunkIDs) == 0
}

// QueryResult is the outcome of processing one query.
type QueryResult struct {
	// Query is the normalised query text.
	Query string

	// Results are ranked by descending score. Empty is a valid outcome.
	Results []SearchResult

	// TotalResults is the number of results above the threshold.
	TotalResults int

	// Filters are the filters applied to the search.
	Filters AppliedFilters

	// Context is the assembled context for generation.
	Context AssembledContext

	// Elapsed is the time spent embedding, searching and assembling.
	Elapsed time.Duration
}

// HasResults returns true if any result passed the threshold.
func (r *QueryResult) HasResults() bool {
	return r != nil && len(r.Results) > 0
}
