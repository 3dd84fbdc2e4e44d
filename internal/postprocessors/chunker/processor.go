// Package chunker splits page-attributed book text into overlapping word windows.
package chunker

import (
	"strings"

	"github.com/custodia-labs/lectern/internal/core/domain"
	"github.com/custodia-labs/lectern/internal/core/ports/driven"
)

// Ensure Chunker implements the interface.
var _ driven.Chunker = (*Chunker)(nil)

// DefaultChunkSize is the default number of words per chunk.
const DefaultChunkSize = domain.DefaultChunkSizeWords

// DefaultChunkOverlap is the default number of words shared by consecutive chunks.
const DefaultChunkOverlap = domain.DefaultOverlapWords

// Chunker slides a fixed-size word window over a book.
// It is stateless after construction and safe for concurrent use.
type Chunker struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithChunkSize sets the chunk size in words.
func WithChunkSize(words int) Option {
	return func(c *Chunker) {
		c.chunkSize = words
	}
}

// WithOverlap sets the overlap between chunks in words.
func WithOverlap(words int) Option {
	return func(c *Chunker) {
		c.overlap = words
	}
}

// New creates a chunker. Invalid sizes return a *domain.ConfigurationError;
// they are never adjusted silently.
func New(opts ...Option) (*Chunker, error) {
	c := &Chunker{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(c)
	}

	if err := domain.ValidateChunking(c.chunkSize, c.overlap); err != nil {
		return nil, err
	}
	return c, nil
}

// Name returns the processor name.
func (c *Chunker) Name() string {
	return "chunker"
}

// ChunkSize returns the window size in words.
func (c *Chunker) ChunkSize() int { return c.chunkSize }

// Overlap returns the overlap in words.
func (c *Chunker) Overlap() int { return c.overlap }

// word is a token and the page it came from. A word never changes page.
type word struct {
	text string
	page int
}

// Chunk splits a book's pages into chunks.
//
// Pages are concatenated into one word sequence. The window advances by
// chunkSize-overlap words; the final window may be shorter and is not
// padded. A chunk's page is the page of its first word. Blank pages
// contribute no words.
func (c *Chunker) Chunk(book domain.Book, pages []domain.PageText) []domain.TextChunk {
	words := flatten(pages)
	if len(words) == 0 {
		return nil
	}

	stride := c.chunkSize - c.overlap
	chunks := make([]domain.TextChunk, 0, len(words)/stride+1)

	for start := 0; start < len(words); start += stride {
		end := start + c.chunkSize
		if end > len(words) {
			end = len(words)
		}

		index := len(chunks)
		chunks = append(chunks, domain.TextChunk{
			ID:         domain.ChunkID(book.ID, index),
			BookID:     book.ID,
			Title:      book.Title,
			Author:     book.Author,
			PageNumber: words[start].page,
			Index:      index,
			WordOffset: start,
			Text:       join(words[start:end]),
		})

		if end == len(words) {
			break
		}
	}

	return chunks
}

func flatten(pages []domain.PageText) []word {
	var words []word
	for _, p := range pages {
		for _, w := range strings.Fields(p.Text) {
			words = append(words, word{text: w, page: p.PageNumber})
		}
	}
	return words
}

func join(words []word) string {
	var b strings.Builder
	for i, w := range words {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(w.text)
	}
	return b.String()
}
