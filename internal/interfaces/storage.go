// Package interfaces defines the service contracts consumed by the
// dependency-injected components of the bench runner.
package interfaces

import (
	"context"
	"time"

	"github.com/aochagavia/ci-bench-runner/internal/models"
)

// Store is the transactional key-addressed Persistence Store. Every
// operation is atomic with respect to concurrent callers.
type Store interface {
	// Enqueue allocates a fresh event id, records the current UTC time, and
	// inserts the event. Returns the identifier.
	Enqueue(ctx context.Context, kind models.EventKind, payload []byte) (string, error)

	// NextQueuedEvent returns the event with the minimum creation timestamp.
	// Returns ErrNotFound when the queue is empty.
	NextQueuedEvent(ctx context.Context) (*models.QueuedEvent, error)

	// QueuedEventCount returns the exact count of queued events.
	QueuedEventCount(ctx context.Context) (int, error)

	// NewJobForEvent atomically allocates a job id, inserts a job row whose
	// EventQueuedAt is copied from the event and whose CreatedAt is now, and
	// stamps the event's JobID.
	NewJobForEvent(ctx context.Context, eventID string, eventQueuedAt time.Time) (string, error)

	// JobFinished sets the job's FinishedAt to now. Idempotent.
	JobFinished(ctx context.Context, jobID string) error

	// Job retrieves a job by id, failing with ErrNotFound if absent.
	Job(ctx context.Context, jobID string) (*models.Job, error)

	// MaybeJob retrieves a job by id, returning (nil, nil) if absent.
	MaybeJob(ctx context.Context, jobID string) (*models.Job, error)

	// DeleteEvent removes the event record. Idempotent with respect to
	// absent ids.
	DeleteEvent(ctx context.Context, eventID string) error

	// StoreRunResults atomically inserts one bench-run row plus one result
	// row per (name, value) pair. Returns the run id.
	StoreRunResults(ctx context.Context, results []models.Result) (string, error)

	// ResultHistory returns every result belonging to a bench run created
	// strictly after cutoff, ordered by the underlying run's creation
	// timestamp ascending.
	ResultHistory(ctx context.Context, cutoff time.Time) ([]models.Result, error)

	// StoreComparisonResult atomically stores the run row and all diff rows.
	// An empty missingScenarios stores as "absent", not as an empty JSON
	// array. Returns the comparison id.
	StoreComparisonResult(ctx context.Context, baselineCommit, candidateCommit string, missingScenarios []string, diffs []models.ScenarioDiff) (string, error)

	// ComparisonResult returns the comparison for (baselineCommit,
	// candidateCommit), or (nil, nil) if absent. Fails with ErrDataCorruption
	// if the stored JSON is malformed.
	ComparisonResult(ctx context.Context, baselineCommit, candidateCommit string) (*models.ComparisonResult, error)

	// CachegrindDiff looks up the diff text for one scenario within one
	// comparison, returning ("", nil) if absent.
	CachegrindDiff(ctx context.Context, baselineCommit, candidateCommit, scenarioName string) (string, error)

	// StoreResultCommentID records the comment used to publish results for
	// prNumber. Insertion is not idempotent; callers guard it with a prior
	// lookup.
	StoreResultCommentID(ctx context.Context, prNumber int, commentID int64) error

	// ResultCommentID returns the stored comment id for prNumber, or (0,
	// false, nil) if absent.
	ResultCommentID(ctx context.Context, prNumber int) (int64, bool, error)

	Close() error
}
