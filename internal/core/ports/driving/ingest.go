package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/lectern/internal/core/domain"
)

// IngestService loads books into the retrieval store.
type IngestService interface {
	// IngestLibrary ingests every supported book in a directory. A failing
	// book is recorded in the report and does not stop the others.
	IngestLibrary(ctx context.Context, dir string, opts IngestOptions) (*IngestReport, error)

	// IngestBook extracts, chunks, embeds and atomically replaces one book.
	IngestBook(ctx context.Context, path string) (*BookReport, error)

	// RemoveBook deletes a book by its source path.
	RemoveBook(ctx context.Context, path string) error
}

// IngestOptions configures a library ingestion run.
type IngestOptions struct {
	// Recursive also scans subdirectories.
	Recursive bool

	// Jobs is the number of books processed concurrently. Zero uses the default.
	Jobs int

	// Progress is called after each book finishes. It may be nil.
	Progress func(report BookReport)
}

// BookReport is the outcome of ingesting one book.
type BookReport struct {
	Book     domain.Book
	Pages    int
	Chunks   int
	Duration time.Duration
	Err      error
}

// Succeeded returns true if the book was stored.
func (r BookReport) Succeeded() bool {
	return r.Err == nil
}

// IngestReport summarises a library ingestion run.
type IngestReport struct {
	Books    []BookReport
	Duration time.Duration
}

// Failed returns the reports of books that could not be ingested.
func (r *IngestReport) Failed() []BookReport {
	var failed []BookReport
	for _, b := range r.Books {
		if !b.Succeeded() {
			failed = append(failed, b)
		}
	}
	return failed
}

// TotalChunks returns the number of chunks stored across all books.
func (r *IngestReport) TotalChunks() int {
	total := 0
	for _, b := range r.Books {
		total += b.Chunks
	}
	return total
}
