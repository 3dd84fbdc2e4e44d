package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/lectern/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for lectern resources.
	uriScheme = "lectern://"
)

// bookInfo is the JSON shape of a book resource.
type bookInfo struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
	Chunks int    `json:"chunks"`
}

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "books",
		Name:        "books",
		Description: "Books in the library with their chunk counts",
		MIMEType:    "application/json",
	}, s.handleBooksResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "books/{bookId}",
		Name:        "book",
		Description: "A single book in the library",
		MIMEType:    "application/json",
	}, s.handleBookResource)
}

// handleBooksResource lists every ingested book.
func (s *Server) handleBooksResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	books, err := s.ports.Query.Books(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing books: %w", err)
	}

	infos := make([]bookInfo, len(books))
	for i, b := range books {
		infos[i] = toBookInfo(b)
	}
	return jsonResource(req.Params.URI, infos)
}

// handleBookResource returns one book by id.
func (s *Server) handleBookResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	bookID := extractBookID(req.Params.URI)
	if bookID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	books, err := s.ports.Query.Books(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing books: %w", err)
	}
	for _, b := range books {
		if b.BookID == bookID {
			return jsonResource(req.Params.URI, toBookInfo(b))
		}
	}
	return nil, mcp.ResourceNotFoundError(req.Params.URI)
}

func toBookInfo(b domain.BookSummary) bookInfo {
	return bookInfo{ID: b.BookID, Title: b.Title, Author: b.Author, Chunks: b.Chunks}
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractBookID extracts the book ID from a URI like lectern://books/{bookId}.
func extractBookID(uri string) string {
	const prefix = uriScheme + "books/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	id := strings.TrimPrefix(uri, prefix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}
