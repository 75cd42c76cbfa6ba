package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aochagavia/ci-bench-runner/internal/interfaces"
	"github.com/aochagavia/ci-bench-runner/internal/models"
)

// Enqueue allocates a fresh event id, records the current UTC time, and
// inserts the event. Returns the identifier.
func (s *Store) Enqueue(ctx context.Context, kind models.EventKind, payload []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, idBytes := newID()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO queued_events (id, kind, payload, created_utc)
		VALUES (?, ?, ?, ?)
	`, idBytes, string(kind), payload, now.UnixMicro())
	if err != nil {
		return "", fmt.Errorf("failed to enqueue event: %w", err)
	}
	return id, nil
}

// NextQueuedEvent returns the event with the minimum creation timestamp,
// breaking ties by insertion order (the seq autoincrement column).
func (s *Store) NextQueuedEvent(ctx context.Context) (*models.QueuedEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, job_id, kind, payload, created_utc
		FROM queued_events
		ORDER BY created_utc ASC, seq ASC
		LIMIT 1
	`)
	ev, err := scanQueuedEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read next queued event: %w", err)
	}
	return ev, nil
}

// QueuedEventCount returns the exact count of queued events.
func (s *Store) QueuedEventCount(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM queued_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count queued events: %w", err)
	}
	return n, nil
}

// DeleteEvent removes the event record. Idempotent with respect to absent ids.
func (s *Store) DeleteEvent(ctx context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idBytes, err := idToBytes(eventID)
	if err != nil {
		return fmt.Errorf("invalid event id: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM queued_events WHERE id = ?`, idBytes); err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return nil
}

func scanQueuedEvent(row *sql.Row) (*models.QueuedEvent, error) {
	var idBytes []byte
	var jobIDBytes []byte
	var kind string
	var payload []byte
	var createdMicros int64

	if err := row.Scan(&idBytes, &jobIDBytes, &kind, &payload, &createdMicros); err != nil {
		return nil, err
	}

	id, err := idFromBytes(idBytes)
	if err != nil {
		return nil, fmt.Errorf("invalid event id in db: %w", err)
	}
	var jobID string
	if jobIDBytes != nil {
		jobID, err = idFromBytes(jobIDBytes)
		if err != nil {
			return nil, fmt.Errorf("invalid job id in db: %w", err)
		}
	}

	return &models.QueuedEvent{
		ID:         id,
		JobID:      jobID,
		Kind:       models.EventKind(kind),
		Payload:    payload,
		CreatedUTC: time.UnixMicro(createdMicros).UTC(),
	}, nil
}
