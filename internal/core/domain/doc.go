// Package domain defines the core business entities for lectern.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Book: An ingested book with title and author
//   - PageText: Extracted text of one page of a book
//   - TextChunk: A searchable word window within a book
//   - QueryResult: Ranked search results and the assembled context
//   - AIResponse: A grounded answer with its citations
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
