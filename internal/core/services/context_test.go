package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lectern/internal/core/domain"
)

func rankedResult(id, title string, page, nWords int, score float64) domain.SearchResult {
	return domain.SearchResult{
		Chunk: domain.TextChunk{
			ID:         id,
			BookID:     "bk_" + title,
			Title:      title,
			Author:     "Author",
			PageNumber: page,
			Text:       strings.TrimSpace(strings.Repeat("word ", nWords)),
		},
		Score: score,
	}
}

func TestAssembleContext_FitsEverything(t *testing.T) {
	results := []domain.SearchResult{
		rankedResult("a-000000", "Walden", 3, 10, 0.9),
		rankedResult("b-000000", "Dune", 7, 10, 0.8),
	}

	ctx := AssembleContext(results, 1000)

	assert.False(t, ctx.Truncated)
	assert.Equal(t, []string{"a-000000", "b-000000"}, ctx.ChunkIDs)
	assert.Equal(t, []domain.Citation{
		{Title: "Walden", Author: "Author", PageNumber: 3},
		{Title: "Dune", Author: "Author", PageNumber: 7},
	}, ctx.Sources)
	assert.True(t, strings.HasPrefix(ctx.Text, "[1] Walden by Author, p.3:\n"))
	assert.Contains(t, ctx.Text, "\n\n[2] Dune by Author, p.7:\n")
	assert.Equal(t, len(strings.Fields(ctx.Text)), ctx.Words)
}

func TestAssembleContext_BudgetStopsAtFirstOverflow(t *testing.T) {
	// Each entry is 5 header words plus its text.
	results := []domain.SearchResult{
		rankedResult("a", "A", 1, 20, 0.9), // 25 words
		rankedResult("b", "B", 1, 40, 0.8), // 45 words, does not fit
		rankedResult("c", "C", 1, 1, 0.7),  // would fit, but comes after the cutoff
	}

	ctx := AssembleContext(results, 50)

	assert.True(t, ctx.Truncated)
	assert.Equal(t, []string{"a"}, ctx.ChunkIDs)
	assert.Equal(t, 25, ctx.Words)
	assert.LessOrEqual(t, len(strings.Fields(ctx.Text)), 50)
}

func TestAssembleContext_Empty(t *testing.T) {
	ctx := AssembleContext(nil, 100)

	assert.True(t, ctx.IsEmpty())
	assert.False(t, ctx.Truncated)
	assert.Empty(t, ctx.Text)
	require.NotNil(t, ctx.ChunkIDs)
}

func TestAssembleContext_FirstResultTooLarge(t *testing.T) {
	ctx := AssembleContext([]domain.SearchResult{rankedResult("a", "A", 1, 200, 0.9)}, 50)

	assert.True(t, ctx.IsEmpty())
	assert.True(t, ctx.Truncated)
}

// TestAssembleContext_BudgetProperty checks the budget for many sizes.
func TestAssembleContext_BudgetProperty(t *testing.T) {
	var results []domain.SearchResult
	for i := 0; i < 30; i++ {
		results = append(results, rankedResult(domain.ChunkID("bk", i), "T", i+1, 5+(i*7)%40, 1-float64(i)/100))
	}

	for budget := 0; budget <= 600; budget += 13 {
		ctx := AssembleContext(results, budget)
		assert.LessOrEqual(t, len(strings.Fields(ctx.Text)), budget)
		assert.Equal(t, len(ctx.ChunkIDs) < len(results), ctx.Truncated)
		for i, id := range ctx.ChunkIDs {
			assert.Equal(t, results[i].Chunk.ID, id)
		}
	}
}
