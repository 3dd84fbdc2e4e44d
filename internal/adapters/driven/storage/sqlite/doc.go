// Package sqlite provides a SQLite-backed retrieval store.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. Books and chunks live in two tables;
// embeddings are stored as little-endian float32 blobs and searched with an
// exhaustive cosine scan, which is adequate for a personal library.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.lectern/data/library.db
//
// # Thread Safety
//
// All operations are thread-safe. ReplaceBook runs in a single transaction, and
// WAL mode lets searches read the previous state until it commits.
package sqlite
