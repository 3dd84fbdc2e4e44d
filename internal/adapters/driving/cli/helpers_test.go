package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/lectern/internal/core/domain"
	"github.com/custodia-labs/lectern/internal/core/ports/driving"
)

type fakeQuery struct {
	result *domain.QueryResult
	books  []domain.BookSummary
	stats  domain.Stats
	err    error

	query string
	opts  domain.QueryOptions
}

func (f *fakeQuery) ProcessQuery(_ context.Context, query string, opts domain.QueryOptions) (*domain.QueryResult, error) {
	f.query = query
	f.opts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeQuery) Stats(context.Context) (domain.Stats, error) { return f.stats, f.err }

func (f *fakeQuery) Books(context.Context) ([]domain.BookSummary, error) { return f.books, f.err }

type fakeResponse struct {
	resp      *domain.AIResponse
	fragments []string
	err       error
	streamed  bool
}

func (f *fakeResponse) Generate(context.Context, *domain.QueryResult) (*domain.AIResponse, error) {
	return f.resp, f.err
}

func (f *fakeResponse) Stream(context.Context, *domain.QueryResult) (driving.AnswerStream, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.streamed = true
	return &fakeStream{fragments: f.fragments, resp: f.resp}, nil
}

type fakeStream struct {
	fragments []string
	resp      *domain.AIResponse
	next      int
}

func (s *fakeStream) Next() (string, error) {
	if s.next == len(s.fragments) {
		return "", io.EOF
	}
	s.next++
	return s.fragments[s.next-1], nil
}

func (s *fakeStream) Response() (*domain.AIResponse, error) { return s.resp, nil }

func (s *fakeStream) Close() error { return nil }

type fakeIngest struct {
	reports   []driving.BookReport
	bookErr   error
	err       error
	dir       string
	opts      driving.IngestOptions
	ingested  []string
	removed   []string
	removeErr error
}

func (f *fakeIngest) IngestLibrary(_ context.Context, dir string, opts driving.IngestOptions) (*driving.IngestReport, error) {
	f.dir = dir
	f.opts = opts
	if f.err != nil {
		return nil, f.err
	}
	for _, r := range f.reports {
		if opts.Progress != nil {
			opts.Progress(r)
		}
	}
	return &driving.IngestReport{Books: f.reports, Duration: 1500 * time.Millisecond}, nil
}

func (f *fakeIngest) IngestBook(_ context.Context, path string) (*driving.BookReport, error) {
	f.ingested = append(f.ingested, path)
	book := domain.NewBook(path)
	if f.bookErr != nil {
		return &driving.BookReport{Book: book, Err: f.bookErr}, f.bookErr
	}
	return &driving.BookReport{Book: book, Pages: 3, Chunks: 5}, nil
}

func (f *fakeIngest) RemoveBook(_ context.Context, path string) error {
	f.removed = append(f.removed, path)
	return f.removeErr
}

func virtueResult() *domain.QueryResult {
	return &domain.QueryResult{
		Query: "what is virtue?",
		Results: []domain.SearchResult{{
			Chunk: domain.TextChunk{ID: "bk_med-000004", BookID: "bk_med", Title: "Meditations", Author: "Marcus Aurelius", PageNumber: 12, Text: "Virtue is the only good."},
			Score: 0.912,
		}},
		TotalResults: 1,
		Context:      domain.AssembledContext{ChunkIDs: []string{"bk_med-000004"}},
	}
}

func virtueResponse() *domain.AIResponse {
	return &domain.AIResponse{
		Answer:      "Virtue is the only good [1].",
		Citations:   []domain.Citation{{Title: "Meditations", Author: "Marcus Aurelius", PageNumber: 12}},
		SourceCount: 1,
	}
}

// setupTestServices installs s and returns a function restoring the
// previous services.
func setupTestServices(s Services) func() {
	prev := Services{
		Query:    queryService,
		Response: responseService,
		Ingest:   ingestService,
		Settings: settingsService,
		Supports: bookSupported,
		Library:  librarySettings,
		Err:      startupErr,
	}
	if s.Library == (domain.LibrarySettings{}) {
		s.Library = domain.DefaultSettings().Library
	}
	SetServices(s)
	return func() { SetServices(prev) }
}

// execute runs the root command with args and returns its output. Flags
// are reset afterwards so tests do not leak state into each other.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		resetFlags(rootCmd)
	})

	err := rootCmd.Execute()
	return buf.String(), err
}

func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	})
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

var errBoom = errors.New("boom")
