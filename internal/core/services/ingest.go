package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/lectern/internal/core/domain"
	"github.com/custodia-labs/lectern/internal/core/ports/driven"
	"github.com/custodia-labs/lectern/internal/core/ports/driving"
	"github.com/custodia-labs/lectern/internal/logger"
	"github.com/custodia-labs/lectern/internal/metrics"
	"github.com/custodia-labs/lectern/internal/retry"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// IngestService turns book files into embedded chunks in the retrieval store.
type IngestService struct {
	discoverer driven.BookDiscoverer
	extractors driven.ExtractorRegistry
	pipeline   driven.PageProcessorPipeline
	chunker    driven.Chunker
	embedder   driven.EmbeddingService
	store      driven.RetrievalStore
	settings   domain.LibrarySettings
	batchSize  int
	policy     retry.Policy

	locks sync.Map // book id -> *sync.Mutex
}

// NewIngestService creates an ingestion service. The pipeline may be nil.
func NewIngestService(
	discoverer driven.BookDiscoverer,
	extractors driven.ExtractorRegistry,
	pipeline driven.PageProcessorPipeline,
	chunker driven.Chunker,
	embedder driven.EmbeddingService,
	store driven.RetrievalStore,
	settings domain.LibrarySettings,
	batchSize int,
) *IngestService {
	if batchSize <= 0 {
		batchSize = domain.DefaultEmbeddingBatchSize
	}
	return &IngestService{
		discoverer: discoverer,
		extractors: extractors,
		pipeline:   pipeline,
		chunker:    chunker,
		embedder:   embedder,
		store:      store,
		settings:   settings,
		batchSize:  batchSize,
		policy:     retry.Store,
	}
}

// IngestLibrary ingests every supported book in dir with bounded
// concurrency. A failing book is recorded and does not stop the others;
// only cancellation of ctx aborts the run.
func (s *IngestService) IngestLibrary(
	ctx context.Context, dir string, opts driving.IngestOptions,
) (*driving.IngestReport, error) {
	start := time.Now()
	logger.Section("Ingest")

	books, err := s.discoverer.Discover(ctx, dir, opts.Recursive)
	if err != nil {
		return nil, fmt.Errorf("discover books: %w", err)
	}

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = s.settings.Jobs
	}
	if jobs <= 0 {
		jobs = domain.DefaultIngestJobs
	}
	logger.Info("ingesting %d books from %s with %d jobs", len(books), dir, jobs)

	reports := make([]driving.BookReport, len(books))
	var progressMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, book := range books {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			reports[i] = s.ingest(gctx, book)
			if opts.Progress != nil {
				progressMu.Lock()
				opts.Progress(reports[i])
				progressMu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &driving.IngestReport{Books: reports, Duration: time.Since(start)}
	logger.Info("ingested %d chunks from %d books (%d failed) in %s",
		report.TotalChunks(), len(books), len(report.Failed()), report.Duration)
	return report, nil
}

// IngestBook ingests a single book file, replacing any previous version.
func (s *IngestService) IngestBook(ctx context.Context, path string) (*driving.BookReport, error) {
	report := s.ingest(ctx, domain.NewBook(path))
	if report.Err != nil {
		return &report, report.Err
	}
	return &report, nil
}

// RemoveBook deletes the book stored for path.
func (s *IngestService) RemoveBook(ctx context.Context, path string) error {
	book := domain.NewBook(path)
	unlock := s.lock(book.ID)
	defer unlock()

	logger.Info("removing %s (%s)", book.Title, book.ID)
	return retry.Do(ctx, s.policy, s.store.Name()+" delete", func(ctx context.Context) error {
		return s.store.DeleteBook(ctx, book.ID)
	})
}

// ingest runs extraction, cleaning, chunking, embedding and the atomic
// replace for one book. Concurrent ingestion of the same book is serialised.
func (s *IngestService) ingest(ctx context.Context, book domain.Book) driving.BookReport {
	start := time.Now()
	report := driving.BookReport{Book: book}

	unlock := s.lock(book.ID)
	defer unlock()

	chunks, pages, err := s.prepare(ctx, &book)
	report.Book = book
	report.Pages = pages
	if err == nil {
		err = retry.Do(ctx, s.policy, s.store.Name()+" replace", func(ctx context.Context) error {
			return s.store.ReplaceBook(ctx, book, chunks)
		})
		if err != nil {
			err = fmt.Errorf("store: %w", err)
		}
	}

	report.Duration = time.Since(start)
	if err != nil {
		report.Err = fmt.Errorf("%s: %w", book.SourcePath, err)
		metrics.IngestedBooksTotal.WithLabelValues(metrics.StatusError).Inc()
		logger.Warn("ingest %s failed: %v", book.Title, err)
		return report
	}

	report.Chunks = len(chunks)
	metrics.IngestedBooksTotal.WithLabelValues(metrics.StatusOK).Inc()
	metrics.IngestedChunksTotal.Add(float64(len(chunks)))
	logger.Info("ingested %q by %s: %d pages, %d chunks (%s)",
		book.Title, book.Author, pages, len(chunks), report.Duration)
	return report
}

// prepare produces the embedded chunks of a book and sets its page count.
func (s *IngestService) prepare(ctx context.Context, book *domain.Book) ([]domain.TextChunk, int, error) {
	pages, err := s.extractors.Extract(ctx, *book)
	if err != nil {
		return nil, 0, fmt.Errorf("extract: %w", err)
	}
	if s.pipeline != nil {
		pages, err = s.pipeline.Process(ctx, pages)
		if err != nil {
			return nil, 0, fmt.Errorf("clean pages: %w", err)
		}
	}
	for _, p := range pages {
		book.PageCount = max(book.PageCount, p.PageNumber)
	}

	chunks := s.chunker.Chunk(*book, pages)
	if len(chunks) == 0 {
		logger.Warn("%s has no extractable text", book.SourcePath)
		return chunks, len(pages), nil
	}

	for start := 0; start < len(chunks); start += s.batchSize {
		end := min(start+s.batchSize, len(chunks))
		texts := make([]string, end-start)
		for i := start; i < end; i++ {
			texts[i-start] = chunks[i].Text
		}

		vectors, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, len(pages), err
		}
		for i := start; i < end; i++ {
			chunks[i].Embedding = vectors[i-start]
		}
		logger.Debug("%s: embedded %d/%d chunks", book.Title, end, len(chunks))
	}
	return chunks, len(pages), nil
}

func (s *IngestService) lock(bookID string) func() {
	v, _ := s.locks.LoadOrStore(bookID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
