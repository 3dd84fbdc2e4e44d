package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/lectern/internal/core/domain"
)

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query  string `json:"query" jsonschema:"the question or topic to look up in the library"`
	Book   string `json:"book,omitempty" jsonschema:"restrict results to books whose title contains this text"`
	Author string `json:"author,omitempty" jsonschema:"restrict results to books by this author"`
	TopK   int    `json:"top_k,omitempty" jsonschema:"maximum number of passages to return (default from settings)"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Query     string          `json:"query"`
	Passages  []PassageOutput `json:"passages"`
	Count     int             `json:"count"`
	Truncated bool            `json:"truncated"`
	Unmatched bool            `json:"unmatched_filter,omitempty"`
}

// PassageOutput is a single retrieved passage.
type PassageOutput struct {
	ChunkID string  `json:"chunk_id"`
	Title   string  `json:"title"`
	Author  string  `json:"author"`
	Page    int     `json:"page"`
	Score   float64 `json:"score"`
	Text    string  `json:"text"`
}

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"the question to answer from the library"`
	Book     string `json:"book,omitempty" jsonschema:"restrict sources to books whose title contains this text"`
	Author   string `json:"author,omitempty" jsonschema:"restrict sources to books by this author"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer       string           `json:"answer"`
	Citations    []CitationOutput `json:"citations"`
	SourceCount  int              `json:"source_count"`
	Insufficient bool             `json:"insufficient_context"`
}

// CitationOutput identifies a cited passage.
type CitationOutput struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	Page   int    `json:"page"`
}

// StatsInput takes no arguments.
type StatsInput struct{}

// StatsOutput is the output schema for the stats tool.
type StatsOutput struct {
	TotalChunks   int `json:"total_chunks"`
	UniqueBooks   int `json:"unique_books"`
	UniqueAuthors int `json:"unique_authors"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Find passages in the book library relevant to a question, with title, author and page",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question from the book library, citing the passages used",
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "stats",
		Description: "Count the chunks, books and authors in the library",
	}, s.handleStats)
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	result, err := s.ports.Query.ProcessQuery(ctx, input.Query, domain.QueryOptions{
		TopK:   input.TopK,
		Book:   input.Book,
		Author: input.Author,
	})
	if err != nil {
		return nil, SearchOutput{}, userError(err)
	}

	output := SearchOutput{
		Query:     result.Query,
		Passages:  make([]PassageOutput, len(result.Results)),
		Count:     len(result.Results),
		Truncated: result.Context.Truncated,
		Unmatched: result.Filters.Unmatched,
	}
	for i := range result.Results {
		c := &result.Results[i].Chunk
		output.Passages[i] = PassageOutput{
			ChunkID: c.ID,
			Title:   c.Title,
			Author:  c.Author,
			Page:    c.PageNumber,
			Score:   result.Results[i].Score,
			Text:    c.Text,
		}
	}

	return nil, output, nil
}

// handleAsk retrieves context and generates a cited answer.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	if s.ports.Response == nil {
		return nil, AskOutput{}, ErrAnswersDisabled
	}

	result, err := s.ports.Query.ProcessQuery(ctx, input.Question, domain.QueryOptions{
		Book:   input.Book,
		Author: input.Author,
	})
	if err != nil {
		return nil, AskOutput{}, userError(err)
	}

	resp, err := s.ports.Response.Generate(ctx, result)
	if err != nil {
		return nil, AskOutput{}, err
	}

	output := AskOutput{
		Answer:       resp.Answer,
		Citations:    make([]CitationOutput, len(resp.Citations)),
		SourceCount:  resp.SourceCount,
		Insufficient: resp.Insufficient,
	}
	for i, c := range resp.Citations {
		output.Citations[i] = CitationOutput{Title: c.Title, Author: c.Author, Page: c.PageNumber}
	}
	return nil, output, nil
}

// handleStats reports library counts.
func (s *Server) handleStats(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ StatsInput,
) (*mcp.CallToolResult, StatsOutput, error) {
	stats, err := s.ports.Query.Stats(ctx)
	if err != nil {
		return nil, StatsOutput{}, err
	}
	return nil, StatsOutput{
		TotalChunks:   stats.TotalChunks,
		UniqueBooks:   stats.UniqueBooks,
		UniqueAuthors: stats.UniqueAuthors,
	}, nil
}

// userError rewords input errors for the calling assistant.
func userError(err error) error {
	if errors.Is(err, domain.ErrEmptyQuery) {
		return fmt.Errorf("the question is empty: %w", err)
	}
	return err
}
