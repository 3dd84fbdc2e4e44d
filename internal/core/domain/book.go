package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
)

// UnknownAuthor is used when a book's filename carries no author part.
const UnknownAuthor = "Unknown Author"

// Book is an ingested work. It is created once at ingestion and replaced
// wholesale when the library is re-ingested.
type Book struct {
	// ID is stable across re-ingestion of the same file.
	ID string

	// Title is the display title.
	Title string

	// Author is the display author, UnknownAuthor if not known.
	Author string

	// SourcePath is the file the book was read from.
	SourcePath string

	// PageCount is the number of non-empty pages extracted.
	PageCount int
}

// PageText is the extracted text of a single page. Page numbers are 1-based.
type PageText struct {
	BookID     string
	PageNumber int
	Text       string
}

// BookID derives a stable identifier from a file name. Directory and case
// are ignored so moving or renaming the case of a file keeps its chunks.
func BookID(path string) string {
	name := strings.ToLower(filepath.Base(path))
	sum := sha256.Sum256([]byte(name))
	return "bk_" + hex.EncodeToString(sum[:6])
}

// ParseBookFilename splits a "Title - Author.ext" file name into its parts.
// Without a separator the whole stem is the title and the author is unknown.
func ParseBookFilename(path string) (title, author string) {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	parts := strings.SplitN(stem, " - ", 2)

	title = strings.TrimSpace(parts[0])
	author = UnknownAuthor
	if len(parts) == 2 && strings.TrimSpace(parts[1]) != "" {
		author = strings.TrimSpace(parts[1])
	}
	if title == "" {
		title = stem
	}
	return title, author
}

// NewBook builds a Book from its source file path.
func NewBook(path string) Book {
	title, author := ParseBookFilename(path)
	return Book{
		ID:         BookID(path),
		Title:      title,
		Author:     author,
		SourcePath: path,
	}
}

// BookSummary describes a stored book and how many chunks it holds.
type BookSummary struct {
	BookID string
	Title  string
	Author string
	Chunks int
}

// Stats holds aggregate counts over the retrieval store.
type Stats struct {
	TotalChunks   int
	UniqueBooks   int
	UniqueAuthors int
}

// StatsFromBooks computes aggregate counts from a book listing.
// Authors are counted case-insensitively.
func StatsFromBooks(books []BookSummary) Stats {
	authors := make(map[string]struct{})
	var stats Stats
	for _, b := range books {
		stats.TotalChunks += b.Chunks
		authors[strings.ToLower(b.Author)] = struct{}{}
	}
	stats.UniqueBooks = len(books)
	stats.UniqueAuthors = len(authors)
	return stats
}
