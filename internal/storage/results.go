package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aochagavia/ci-bench-runner/internal/models"
)

// StoreRunResults atomically inserts one bench-run row plus one result row
// per (name, value) pair. Returns the run id.
func (s *Store) StoreRunResults(ctx context.Context, results []models.Result) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	runID, runIDBytes := newID()
	now := time.Now().UTC()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO bench_runs (id, created_at) VALUES (?, ?)
	`, runIDBytes, now.UnixMicro()); err != nil {
		return "", fmt.Errorf("failed to insert bench run: %w", err)
	}

	for _, r := range results {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO bench_results (run_id, name, value) VALUES (?, ?, ?)
		`, runIDBytes, r.Name, r.Value); err != nil {
			return "", fmt.Errorf("failed to insert bench result %q: %w", r.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit bench run: %w", err)
	}
	return runID, nil
}

// ResultHistory returns every result belonging to a bench run created
// strictly after cutoff, ordered by the underlying run's creation timestamp
// ascending.
func (s *Store) ResultHistory(ctx context.Context, cutoff time.Time) ([]models.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.name, r.value
		FROM bench_results r
		JOIN bench_runs run ON run.id = r.run_id
		WHERE run.created_at > ?
		ORDER BY run.created_at ASC
	`, cutoff.UnixMicro())
	if err != nil {
		return nil, fmt.Errorf("failed to query result history: %w", err)
	}
	defer rows.Close()

	var out []models.Result
	for rows.Next() {
		var r models.Result
		if err := rows.Scan(&r.Name, &r.Value); err != nil {
			return nil, fmt.Errorf("failed to scan result history row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate result history: %w", err)
	}
	return out, nil
}
