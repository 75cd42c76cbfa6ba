package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// StoreResultCommentID records the comment used to publish results for
// prNumber. Insertion is not idempotent; callers guard it with a prior
// ResultCommentID lookup.
func (s *Store) StoreResultCommentID(ctx context.Context, prNumber int, commentID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO result_comments (pr_number, comment_id) VALUES (?, ?)
	`, prNumber, commentID); err != nil {
		return fmt.Errorf("failed to store result comment id: %w", err)
	}
	return nil
}

// ResultCommentID returns the stored comment id for prNumber, or (0, false,
// nil) if absent.
func (s *Store) ResultCommentID(ctx context.Context, prNumber int) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var commentID int64
	err := s.db.QueryRowContext(ctx, `
		SELECT comment_id FROM result_comments WHERE pr_number = ?
	`, prNumber).Scan(&commentID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read result comment id: %w", err)
	}
	return commentID, true, nil
}
