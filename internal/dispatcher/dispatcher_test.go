package dispatcher

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aochagavia/ci-bench-runner/internal/common"
	"github.com/aochagavia/ci-bench-runner/internal/eventqueue"
	"github.com/aochagavia/ci-bench-runner/internal/models"
	"github.com/aochagavia/ci-bench-runner/internal/storage"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	dir := t.TempDir()
	logger := common.NewLogger("debug")
	store, err := storage.Open(context.Background(), logger, filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestDispatcher_RunsHandlerAndAdvancesQueue(t *testing.T) {
	store := newTestStore(t)
	logger := common.NewLogger("debug")
	q := eventqueue.New(store, logger)

	var mu sync.Mutex
	var handled []string

	handlers := map[models.EventKind]HandlerFunc{
		models.EventKindIssueComment: func(ctx context.Context, event *models.QueuedEvent) error {
			mu.Lock()
			handled = append(handled, event.ID)
			mu.Unlock()
			return nil
		},
	}

	d := New(store, q, logger, handlers)
	d.Start()
	defer d.Stop()

	id, err := q.Enqueue(context.Background(), models.EventKindIssueComment, []byte("payload"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(handled) == 1 && handled[0] == id
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		n, err := store.QueuedEventCount(context.Background())
		return err == nil && n == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDispatcher_HandlerErrorStillAdvancesQueue(t *testing.T) {
	store := newTestStore(t)
	logger := common.NewLogger("debug")
	q := eventqueue.New(store, logger)

	handlers := map[models.EventKind]HandlerFunc{
		models.EventKindIssueComment: func(ctx context.Context, event *models.QueuedEvent) error {
			return assert.AnError
		},
	}

	d := New(store, q, logger, handlers)
	d.Start()
	defer d.Stop()

	_, err := q.Enqueue(context.Background(), models.EventKindIssueComment, []byte("payload"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		n, err := store.QueuedEventCount(context.Background())
		return err == nil && n == 0
	}, 2*time.Second, 10*time.Millisecond)
}
