package mcp

import (
	"context"

	"github.com/custodia-labs/lectern/internal/core/domain"
	"github.com/custodia-labs/lectern/internal/core/ports/driving"
)

// mockQueryService is a mock implementation of driving.QueryService.
type mockQueryService struct {
	result *domain.QueryResult
	stats  domain.Stats
	books  []domain.BookSummary
	err    error

	gotQuery string
	gotOpts  domain.QueryOptions
}

func (m *mockQueryService) ProcessQuery(
	_ context.Context,
	query string,
	opts domain.QueryOptions,
) (*domain.QueryResult, error) {
	m.gotQuery = query
	m.gotOpts = opts
	if m.err != nil {
		return nil, m.err
	}
	if m.result == nil {
		return &domain.QueryResult{Query: query}, nil
	}
	return m.result, nil
}

func (m *mockQueryService) Stats(_ context.Context) (domain.Stats, error) {
	return m.stats, m.err
}

func (m *mockQueryService) Books(_ context.Context) ([]domain.BookSummary, error) {
	return m.books, m.err
}

// mockResponseService is a mock implementation of driving.ResponseService.
type mockResponseService struct {
	resp *domain.AIResponse
	err  error

	gotResult *domain.QueryResult
}

func (m *mockResponseService) Generate(_ context.Context, result *domain.QueryResult) (*domain.AIResponse, error) {
	m.gotResult = result
	return m.resp, m.err
}

func (m *mockResponseService) Stream(_ context.Context, _ *domain.QueryResult) (driving.AnswerStream, error) {
	return nil, m.err
}

func meditationsResult() *domain.QueryResult {
	return &domain.QueryResult{
		Query: "what is virtue?",
		Results: []domain.SearchResult{{
			Chunk: domain.TextChunk{
				ID: "bk_med-000004", BookID: "bk_med", Title: "Meditations",
				Author: "Marcus Aurelius", PageNumber: 12, Text: "Virtue is the only good.",
			},
			Score: 0.91,
		}},
		TotalResults: 1,
		Context:      domain.AssembledContext{Truncated: true},
	}
}
