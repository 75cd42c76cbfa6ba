// Package eventqueue is a thin façade over the Persistence Store exposing
// the enqueue/drain protocol used by the webhook receiver and the dispatcher.
package eventqueue

import (
	"context"
	"fmt"

	"github.com/aochagavia/ci-bench-runner/internal/common"
	"github.com/aochagavia/ci-bench-runner/internal/interfaces"
	"github.com/aochagavia/ci-bench-runner/internal/models"
)

// Queue wraps a Store with the FIFO enqueue/drain semantics of §4.2. The
// external HTTP receiver calls Enqueue and returns acknowledgement only
// after the store call commits; this is the durability guarantee offered to
// the platform.
type Queue struct {
	store  interfaces.Store
	logger *common.Logger
}

// New returns a Queue backed by store.
func New(store interfaces.Store, logger *common.Logger) *Queue {
	return &Queue{store: store, logger: logger}
}

// Enqueue persists a webhook event, returning its id once the write commits.
func (q *Queue) Enqueue(ctx context.Context, kind models.EventKind, payload []byte) (string, error) {
	id, err := q.store.Enqueue(ctx, kind, payload)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue %s event: %w", kind, err)
	}
	q.logger.Debug().Str("event_id", id).Str("kind", string(kind)).Msg("event enqueued")
	return id, nil
}

// Next returns the oldest queued event, or (nil, nil) if the queue is empty.
func (q *Queue) Next(ctx context.Context) (*models.QueuedEvent, error) {
	ev, err := q.store.NextQueuedEvent(ctx)
	if err != nil {
		if err == interfaces.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read next queued event: %w", err)
	}
	return ev, nil
}

// Count returns the exact number of queued events.
func (q *Queue) Count(ctx context.Context) (int, error) {
	return q.store.QueuedEventCount(ctx)
}
