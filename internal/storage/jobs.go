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

// NewJobForEvent atomically allocates a job id, inserts a job row whose
// EventQueuedAt is copied from the event and whose CreatedAt is now, and
// stamps the event's job_id. A reader seeing the job must also see the
// binding, so both writes happen in one transaction.
func (s *Store) NewJobForEvent(ctx context.Context, eventID string, eventQueuedAt time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	eventIDBytes, err := idToBytes(eventID)
	if err != nil {
		return "", fmt.Errorf("invalid event id: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	jobID, jobIDBytes := newID()
	now := time.Now().UTC()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO jobs (id, event_queued_at, created_at, finished_at)
		VALUES (?, ?, ?, NULL)
	`, jobIDBytes, eventQueuedAt.UnixMicro(), now.UnixMicro()); err != nil {
		return "", fmt.Errorf("failed to insert job: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE queued_events SET job_id = ? WHERE id = ?
	`, jobIDBytes, eventIDBytes); err != nil {
		return "", fmt.Errorf("failed to bind job to event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit job creation: %w", err)
	}
	return jobID, nil
}

// JobFinished sets the job's finished_at to now. Idempotent.
func (s *Store) JobFinished(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idBytes, err := idToBytes(jobID)
	if err != nil {
		return fmt.Errorf("invalid job id: %w", err)
	}
	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET finished_at = ? WHERE id = ?
	`, now.UnixMicro(), idBytes); err != nil {
		return fmt.Errorf("failed to mark job finished: %w", err)
	}
	return nil
}

// Job retrieves a job by id, failing with interfaces.ErrNotFound if absent.
func (s *Store) Job(ctx context.Context, jobID string) (*models.Job, error) {
	job, err := s.MaybeJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, interfaces.ErrNotFound
	}
	return job, nil
}

// MaybeJob retrieves a job by id, returning (nil, nil) if absent.
func (s *Store) MaybeJob(ctx context.Context, jobID string) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idBytes, err := idToBytes(jobID)
	if err != nil {
		return nil, fmt.Errorf("invalid job id: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, event_queued_at, created_at, finished_at
		FROM jobs WHERE id = ?
	`, idBytes)

	var gotIDBytes []byte
	var eventQueuedMicros, createdMicros int64
	var finishedMicros sql.NullInt64

	err = row.Scan(&gotIDBytes, &eventQueuedMicros, &createdMicros, &finishedMicros)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read job: %w", err)
	}

	job := &models.Job{
		ID:            jobID,
		EventQueuedAt: time.UnixMicro(eventQueuedMicros).UTC(),
		CreatedAt:     time.UnixMicro(createdMicros).UTC(),
	}
	if finishedMicros.Valid {
		job.FinishedAt = time.UnixMicro(finishedMicros.Int64).UTC()
	}
	return job, nil
}
