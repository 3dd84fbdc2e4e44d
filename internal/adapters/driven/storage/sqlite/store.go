package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/lectern/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/lectern/internal/core/domain"
	"github.com/custodia-labs/lectern/internal/core/ports/driven"
)

// backendName identifies this store in errors.
const backendName = "sqlite"

// Ensure Store implements the interface.
var _ driven.RetrievalStore = (*Store)(nil)

// Store is a SQLite-backed retrieval store. Vectors are kept as
// little-endian float32 blobs and searched by exhaustive cosine scan.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.lectern/data/library.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".lectern", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "library.db")

	// WAL lets searches proceed while an ingest transaction is open
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, unavailable("open", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, unavailable("open", fmt.Errorf("enabling foreign keys: %w", err))
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Name identifies the backend.
func (s *Store) Name() string { return backendName }

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending up migrations from the embedded filesystem.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_library.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}

		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

// Upsert stores chunks, replacing rows with the same id. Books that are
// not yet known are created from the chunk metadata.
func (s *Store) Upsert(ctx context.Context, chunks []domain.TextChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("upsert", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := range chunks {
		c := &chunks[i]
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO books (id, title, author) VALUES (?, ?, ?)
		`, c.BookID, c.Title, c.Author); err != nil {
			return unavailable("upsert", err)
		}
	}
	if err := insertChunks(ctx, tx, chunks); err != nil {
		return unavailable("upsert", err)
	}
	if err := tx.Commit(); err != nil {
		return unavailable("upsert", err)
	}
	return nil
}

// ReplaceBook swaps every chunk of a book inside one transaction, so
// readers see either the old set or the new one.
func (s *Store) ReplaceBook(ctx context.Context, book domain.Book, chunks []domain.TextChunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("replace", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE book_id = ?", book.ID); err != nil {
		return unavailable("replace", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO books (id, title, author, source_path, page_count, ingested_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			author = excluded.author,
			source_path = excluded.source_path,
			page_count = excluded.page_count,
			ingested_at = excluded.ingested_at
	`, book.ID, book.Title, book.Author, book.SourcePath, book.PageCount); err != nil {
		return unavailable("replace", err)
	}
	if err := insertChunks(ctx, tx, chunks); err != nil {
		return unavailable("replace", err)
	}
	if err := tx.Commit(); err != nil {
		return unavailable("replace", err)
	}
	return nil
}

// DeleteBook removes a book and its chunks.
func (s *Store) DeleteBook(ctx context.Context, bookID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("delete", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE book_id = ?", bookID); err != nil {
		return unavailable("delete", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM books WHERE id = ?", bookID); err != nil {
		return unavailable("delete", err)
	}
	if err := tx.Commit(); err != nil {
		return unavailable("delete", err)
	}
	return nil
}

// Search scores every embedded chunk that passes the filters.
func (s *Store) Search(ctx context.Context, req domain.SearchRequest) ([]domain.SearchResult, error) {
	query, args := searchQuery(req.Filters)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("search", err)
	}
	defer rows.Close()

	var results []domain.SearchResult
	for rows.Next() {
		var chunk domain.TextChunk
		var blob []byte
		if err := rows.Scan(&chunk.ID, &chunk.BookID, &chunk.Title, &chunk.Author,
			&chunk.PageNumber, &chunk.Index, &chunk.WordOffset, &chunk.Text, &blob); err != nil {
			return nil, unavailable("search", fmt.Errorf("scanning chunk: %w", err))
		}
		if !req.Filters.Matches(&chunk) {
			continue
		}
		score := domain.CosineSimilarity(req.Vector, bytesToFloat32Slice(blob))
		results = append(results, domain.SearchResult{Chunk: chunk, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("search", err)
	}

	return domain.RankResults(results, req.TopK, req.ScoreThreshold), nil
}

// Stats recomputes counts from the stored books.
func (s *Store) Stats(ctx context.Context) (domain.Stats, error) {
	books, err := s.Books(ctx)
	if err != nil {
		return domain.Stats{}, err
	}
	return domain.StatsFromBooks(books), nil
}

// Books lists books holding at least one chunk, ordered by title.
func (s *Store) Books(ctx context.Context) ([]domain.BookSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT b.id, b.title, b.author, COUNT(c.id)
		FROM books b JOIN chunks c ON c.book_id = b.id
		GROUP BY b.id, b.title, b.author
		ORDER BY b.title, b.id
	`)
	if err != nil {
		return nil, unavailable("books", err)
	}
	defer rows.Close()

	var books []domain.BookSummary
	for rows.Next() {
		var b domain.BookSummary
		if err := rows.Scan(&b.BookID, &b.Title, &b.Author, &b.Chunks); err != nil {
			return nil, unavailable("books", fmt.Errorf("scanning book: %w", err))
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("books", err)
	}
	return books, nil
}

// searchQuery narrows the scan by book id in SQL. Author and title
// filters are applied in Go with the shared matching rules.
func searchQuery(filters domain.SearchFilters) (string, []any) {
	query := `SELECT id, book_id, title, author, page, idx, word_offset, text, embedding
		FROM chunks WHERE embedding IS NOT NULL`
	if len(filters.BookIDs) == 0 {
		return query, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(filters.BookIDs)), ",")
	args := make([]any, len(filters.BookIDs))
	for i, id := range filters.BookIDs {
		args[i] = id
	}
	return query + " AND book_id IN (" + placeholders + ")", args
}

func insertChunks(ctx context.Context, tx *sql.Tx, chunks []domain.TextChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, book_id, title, author, page, idx, word_offset, text, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			book_id = excluded.book_id,
			title = excluded.title,
			author = excluded.author,
			page = excluded.page,
			idx = excluded.idx,
			word_offset = excluded.word_offset,
			text = excluded.text,
			embedding = excluded.embedding
	`)
	if err != nil {
		return fmt.Errorf("preparing chunk insert: %w", err)
	}
	defer stmt.Close()

	for i := range chunks {
		c := &chunks[i]
		if _, err := stmt.ExecContext(ctx, c.ID, c.BookID, c.Title, c.Author,
			c.PageNumber, c.Index, c.WordOffset, c.Text, float32SliceToBytes(c.Embedding)); err != nil {
			return fmt.Errorf("saving chunk %s: %w", c.ID, err)
		}
	}
	return nil
}

func unavailable(op string, err error) error {
	return &domain.StoreUnavailableError{Backend: backendName, Op: op, Err: err}
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
