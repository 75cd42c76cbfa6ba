package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aochagavia/ci-bench-runner/internal/common"
	"github.com/aochagavia/ci-bench-runner/internal/interfaces"
	"github.com/aochagavia/ci-bench-runner/internal/models"
)

func newUnitTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	logger := common.NewLogger("debug")
	store, err := Open(context.Background(), logger, filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestEnqueueDequeueOrder(t *testing.T) {
	store := newUnitTestStore(t)
	ctx := context.Background()

	fooID, err := store.Enqueue(ctx, "foo", []byte{1, 2, 3, 4})
	require.NoError(t, err)
	barID, err := store.Enqueue(ctx, "bar", []byte{1, 2, 3, 4})
	require.NoError(t, err)

	ev, err := store.NextQueuedEvent(ctx)
	require.NoError(t, err)
	assert.Equal(t, fooID, ev.ID)

	require.NoError(t, store.DeleteEvent(ctx, ev.ID))

	ev, err = store.NextQueuedEvent(ctx)
	require.NoError(t, err)
	assert.Equal(t, barID, ev.ID)

	require.NoError(t, store.DeleteEvent(ctx, ev.ID))
	_, err = store.NextQueuedEvent(ctx)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestJobRoundTrip(t *testing.T) {
	store := newUnitTestStore(t)
	ctx := context.Background()

	eventID, err := store.Enqueue(ctx, "foo", []byte("payload"))
	require.NoError(t, err)
	ev, err := store.NextQueuedEvent(ctx)
	require.NoError(t, err)

	jobID, err := store.NewJobForEvent(ctx, eventID, ev.CreatedUTC)
	require.NoError(t, err)

	job, err := store.Job(ctx, jobID)
	require.NoError(t, err)
	assert.False(t, job.Finished())
	assert.True(t, job.EventQueuedAt.Equal(ev.CreatedUTC))

	require.NoError(t, store.JobFinished(ctx, jobID))

	job, err = store.Job(ctx, jobID)
	require.NoError(t, err)
	assert.True(t, job.Finished())
}

func TestMaybeJobAbsent(t *testing.T) {
	store := newUnitTestStore(t)
	ctx := context.Background()

	job, err := store.MaybeJob(ctx, "00000000-0000-0000-0000-000000000000")
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestComparisonRoundTrip(t *testing.T) {
	store := newUnitTestStore(t)
	ctx := context.Background()

	const baseline = "c609978130843652696e748bb9c9f73703d79089"
	const candidate = "7faf240afbdbb4e76c47ff5f3f049c7a78c9c843"

	diffs := []models.ScenarioDiff{
		{ScenarioName: "foo", Kind: models.ScenarioKindIcount, Baseline: 42.0, Candidate: 42.5, Threshold: 0.3, CachegrindDiff: "foo diff text"},
		{ScenarioName: "bar", Kind: models.ScenarioKindIcount, Baseline: 100.0, Candidate: 104.0, Threshold: 5.0, CachegrindDiff: "bar diff text"},
	}

	_, err := store.StoreComparisonResult(ctx, baseline, candidate, nil, diffs)
	require.NoError(t, err)

	got, err := store.ComparisonResult(ctx, baseline, candidate)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, got.ScenariosMissingBaseline)
	assert.ElementsMatch(t, diffs, got.Diffs)

	diffText, err := store.CachegrindDiff(ctx, baseline, candidate, "foo")
	require.NoError(t, err)
	assert.Equal(t, "foo diff text", diffText)

	diffText, err = store.CachegrindDiff(ctx, baseline, candidate, "non-existent")
	require.NoError(t, err)
	assert.Empty(t, diffText)
}

func TestMissingScenariosPersisted(t *testing.T) {
	store := newUnitTestStore(t)
	ctx := context.Background()

	_, err := store.StoreComparisonResult(ctx, "base1", "cand1", []string{"bar"}, nil)
	require.NoError(t, err)

	got, err := store.ComparisonResult(ctx, "base1", "cand1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"bar"}, got.ScenariosMissingBaseline)
}

func TestResultCommentIDRoundTrip(t *testing.T) {
	store := newUnitTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.StoreResultCommentID(ctx, 42, 100))

	id, ok, err := store.ResultCommentID(ctx, 42)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.EqualValues(t, 100, id)

	_, ok, err = store.ResultCommentID(ctx, 43)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResultHistoryOrdering(t *testing.T) {
	store := newUnitTestStore(t)
	ctx := context.Background()

	cutoff := time.Now().Add(-time.Hour)

	_, err := store.StoreRunResults(ctx, []models.Result{{Name: "foo", Value: 1}})
	require.NoError(t, err)
	_, err = store.StoreRunResults(ctx, []models.Result{{Name: "foo", Value: 2}})
	require.NoError(t, err)

	history, err := store.ResultHistory(ctx, cutoff)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 1.0, history[0].Value)
	assert.Equal(t, 2.0, history[1].Value)
}
