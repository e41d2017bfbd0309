// Package store is the embedded persistence layer of spec.md §4.3: artists,
// albums, tracks and scan history in a single WAL-mode SQLite file
// (rate-limiter state is kept in its own JSON file by package ratelimiter), over modernc.org/sqlite (pure Go, no cgo). Grounded
// on llehouerou-waves/internal/state's Open/pragma/initSchema shape.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"sptnr-core/shared/apperr"
)

// Store wraps the single shared connection pool: writes are serialized by
// SQLite's own single-writer semantics, reads are concurrent under WAL,
// per spec.md §5's "single shared connection pool; writes serialized, reads
// concurrent."
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the database at path, applies the
// concurrency pragmas, and runs the idempotent schema migration.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: creating db directory: %v", apperr.ErrStore, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", apperr.ErrStore, path, err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: applying %q: %v", apperr.ErrStore, p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for the read-only status API.
func (s *Store) DB() *sql.DB {
	return s.db
}
