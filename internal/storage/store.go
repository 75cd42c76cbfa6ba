// Package storage implements the Persistence Store on an embedded sqlite
// database: durable storage for queued events, jobs, bench runs, comparison
// results, and PR-to-comment mappings, behind a single mutex-guarded
// connection.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/aochagavia/ci-bench-runner/internal/common"

	_ "modernc.org/sqlite"
)

// Store implements interfaces.Store on top of a single sqlite connection.
// The connection pool is capped at one connection (SetMaxOpenConns(1)); a
// Go-level mutex additionally serializes callers so that multi-statement
// operations (NewJobForEvent, StoreRunResults, StoreComparisonResult) are
// atomic without relying on sqlite's own locking alone.
type Store struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *common.Logger
}

// Open opens (creating if necessary) the sqlite database at path and runs
// migrations. The caller must call Close when done.
func Open(ctx context.Context, logger *common.Logger, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info().Str("path", path).Msg("persistence store opened")
	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
