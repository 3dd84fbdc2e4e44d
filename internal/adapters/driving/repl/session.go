package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/custodia-labs/lectern/internal/core/domain"
	"github.com/custodia-labs/lectern/internal/core/ports/driving"
	"github.com/custodia-labs/lectern/internal/logger"
)

const (
	prompt       = "lectern> "
	defaultWidth = 80
	snippetChars = 300
)

// ErrAnswersDisabled is returned for Ask and Stream when no response
// service is configured.
var ErrAnswersDisabled = errors.New("answers need a configured language model; use 'sources <question>'")

// Session runs commands against the library and prints their results.
type Session struct {
	query    driving.QueryService
	response driving.ResponseService
	in       io.Reader
	out      io.Writer

	interactive bool
	width       int
	topK        int
}

// Option configures a Session.
type Option func(*Session)

// WithTopK overrides the configured number of passages per question.
func WithTopK(k int) Option {
	return func(s *Session) { s.topK = k }
}

// NewSession creates a session reading from in and writing to out. The
// response service may be nil, in which case only retrieval commands work.
func NewSession(
	query driving.QueryService, response driving.ResponseService, in io.Reader, out io.Writer, opts ...Option,
) *Session {
	s := &Session{
		query:    query,
		response: response,
		in:       in,
		out:      out,
		width:    defaultWidth,
	}
	for _, opt := range opts {
		opt(s)
	}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		s.interactive = true
	}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 && w < defaultWidth {
			s.width = w
		}
	}
	return s
}

// Run reads lines until Quit, end of input or cancellation of ctx. Errors
// from individual commands are printed and the loop continues.
func (s *Session) Run(ctx context.Context) error {
	s.banner(ctx)

	scanner := bufio.NewScanner(s.in)
	for {
		if s.interactive {
			fmt.Fprint(s.out, prompt)
		}
		if !scanner.Scan() {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil
		}

		cmd, err := Parse(scanner.Text())
		if err != nil {
			s.report(err)
			continue
		}
		quit, err := s.Execute(ctx, cmd)
		if err != nil {
			s.report(err)
		}
		if quit {
			fmt.Fprintln(s.out, "Goodbye.")
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	return nil
}

// Execute runs one command. It returns true when the session should end.
func (s *Session) Execute(ctx context.Context, cmd Command) (bool, error) {
	switch c := cmd.(type) {
	case Ask:
		return false, s.ask(ctx, c.Query, c.Filters, false)
	case Stream:
		return false, s.ask(ctx, c.Query, c.Filters, true)
	case Sources:
		return false, s.sources(ctx, c.Query, c.Filters)
	case Stats:
		return false, s.stats(ctx)
	case Books:
		return false, s.books(ctx)
	case Help:
		s.help()
		return false, nil
	case Quit:
		return true, nil
	default:
		return false, fmt.Errorf("%w: unknown command %T", domain.ErrInvalidInput, cmd)
	}
}

func (s *Session) banner(ctx context.Context) {
	if !s.interactive {
		return
	}
	fmt.Fprintln(s.out, "Lectern: ask questions about your book library.")
	fmt.Fprintln(s.out, "Type 'help' for commands, 'quit' to leave.")

	stats, err := s.query.Stats(ctx)
	if err != nil {
		logger.Warn("reading library stats: %v", err)
		return
	}
	if stats.TotalChunks == 0 {
		fmt.Fprintln(s.out, "The library is empty. Run 'lectern ingest <dir>' first.")
	}
}

func (s *Session) ask(ctx context.Context, query string, filters Filters, stream bool) error {
	if s.response == nil {
		return ErrAnswersDisabled
	}

	result, err := s.query.ProcessQuery(ctx, query, s.options(filters))
	if err != nil {
		return err
	}
	s.filterNote(result)

	s.rule("Answer")
	var resp *domain.AIResponse
	if stream {
		resp, err = s.stream(ctx, result)
	} else {
		resp, err = s.response.Generate(ctx, result)
		if err == nil {
			fmt.Fprintln(s.out, resp.Answer)
		}
	}
	if err != nil {
		return err
	}

	s.citations(resp)
	return nil
}

// stream prints fragments as they arrive. A failure mid-stream keeps the
// text already printed and adds the truncation notice.
func (s *Session) stream(ctx context.Context, result *domain.QueryResult) (*domain.AIResponse, error) {
	st, err := s.response.Stream(ctx, result)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	for {
		fragment, err := st.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fmt.Fprintln(s.out)
			fmt.Fprintln(s.out, domain.TruncationNotice)
			logger.Error("streaming answer: %v", err)
			resp, _ := st.Response()
			return resp, nil
		}
		fmt.Fprint(s.out, fragment)
	}
	fmt.Fprintln(s.out)
	return st.Response()
}

func (s *Session) citations(resp *domain.AIResponse) {
	if resp == nil || len(resp.Citations) == 0 {
		return
	}
	s.rule("Sources")
	for i, c := range resp.Citations {
		fmt.Fprintf(s.out, "%d. %s\n", i+1, c)
	}
}

func (s *Session) sources(ctx context.Context, query string, filters Filters) error {
	result, err := s.query.ProcessQuery(ctx, query, s.options(filters))
	if err != nil {
		return err
	}
	s.filterNote(result)

	if !result.HasResults() {
		fmt.Fprintf(s.out, "No results found for %q.\n", result.Query)
		return nil
	}

	fmt.Fprintf(s.out, "Found %d sources in %.3fs\n", len(result.Results), result.Elapsed.Seconds())
	for i := range result.Results {
		r := &result.Results[i]
		s.rule(fmt.Sprintf("Source %d", i+1))
		fmt.Fprintf(s.out, "%s by %s (p. %d)  relevance %.3f\n", r.Chunk.Title, r.Chunk.Author, r.Chunk.PageNumber, r.Score)
		fmt.Fprintln(s.out, snippet(r.Chunk.Text))
	}
	if result.Context.Truncated {
		fmt.Fprintf(s.out, "\nOnly the first %d sources fit the context budget.\n", len(result.Context.ChunkIDs))
	}
	return nil
}

func (s *Session) stats(ctx context.Context) error {
	stats, err := s.query.Stats(ctx)
	if err != nil {
		return err
	}
	s.rule("Library")
	fmt.Fprintf(s.out, "Chunks:  %d\n", stats.TotalChunks)
	fmt.Fprintf(s.out, "Books:   %d\n", stats.UniqueBooks)
	fmt.Fprintf(s.out, "Authors: %d\n", stats.UniqueAuthors)
	return nil
}

func (s *Session) books(ctx context.Context) error {
	books, err := s.query.Books(ctx)
	if err != nil {
		return err
	}
	if len(books) == 0 {
		fmt.Fprintln(s.out, "No books ingested.")
		return nil
	}
	for _, b := range books {
		fmt.Fprintf(s.out, "%s by %s (%d chunks)\n", b.Title, b.Author, b.Chunks)
	}
	return nil
}

func (s *Session) help() {
	fmt.Fprint(s.out, `Questions:
  <question>                  answer from the library
  stream <question>           answer as it is generated
  sources <question>          show matching passages only
  book:<title> - <question>   restrict to one book
  author:<name> - <question>  restrict to one author

Commands:
  stats                       library counts
  books                       list ingested books
  help                        this help
  quit                        leave
`)
}

func (s *Session) options(filters Filters) domain.QueryOptions {
	opts := filters.Options()
	opts.TopK = s.topK
	return opts
}

func (s *Session) filterNote(result *domain.QueryResult) {
	if !result.Filters.Unmatched {
		return
	}
	if result.Filters.Book != "" {
		fmt.Fprintf(s.out, "No book matches %q.\n", result.Filters.Book)
	}
	if result.Filters.Author != "" {
		fmt.Fprintf(s.out, "No author matches %q.\n", result.Filters.Author)
	}
}

// report prints a command failure. Service failures are kept distinct
// from input mistakes.
func (s *Session) report(err error) {
	switch {
	case errors.Is(err, domain.ErrEmptyQuery):
		fmt.Fprintln(s.out, "Please enter a question. Type 'help' for assistance.")
	case errors.Is(err, domain.ErrInvalidInput):
		fmt.Fprintln(s.out, err)
	case errors.Is(err, domain.ErrStoreUnavailable):
		fmt.Fprintf(s.out, "The library store is unavailable: %v\n", err)
	case errors.Is(err, domain.ErrEmbedding), errors.Is(err, domain.ErrGeneration):
		fmt.Fprintf(s.out, "A model service failed: %v\n", err)
	default:
		fmt.Fprintf(s.out, "Error: %v\n", err)
	}
}

func (s *Session) rule(title string) {
	line := "-- " + title + " "
	if n := s.width - len(line); n > 0 {
		line += strings.Repeat("-", n)
	}
	fmt.Fprintln(s.out, line)
}

func snippet(text string) string {
	runes := []rune(text)
	if len(runes) <= snippetChars {
		return text
	}
	return string(runes[:snippetChars]) + "..."
}
