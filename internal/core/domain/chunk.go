package domain

import (
	"fmt"
	"strings"
)

// TextChunk is a window of consecutive words from one book.
// Chunks are immutable once embedded.
type TextChunk struct {
	// ID is unique per book and position, see ChunkID.
	ID string

	// BookID identifies the owning book.
	BookID string

	// Title and Author are copied from the book so results are self-describing.
	Title  string
	Author string

	// PageNumber is the page of the chunk's first word.
	PageNumber int

	// Index is the 0-based position of the chunk within its book.
	Index int

	// WordOffset is the offset of the first word within the book's word sequence.
	WordOffset int

	// Text is the chunk content, words joined by single spaces.
	Text string

	// Embedding is set once by the embedding gateway.
	Embedding []float32
}

// ChunkID builds the identifier for the chunk at index within a book.
// Indexes are zero padded so lexical order matches position order.
func ChunkID(bookID string, index int) string {
	return fmt.Sprintf("%s-%06d", bookID, index)
}

// WordCount returns the number of whitespace separated words in the chunk.
func (c TextChunk) WordCount() int {
	return len(strings.Fields(c.Text))
}

// Citation returns the source reference for this chunk.
func (c TextChunk) Citation() Citation {
	return Citation{Title: c.Title, Author: c.Author, PageNumber: c.PageNumber}
}
