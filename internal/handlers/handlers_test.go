package handlers

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aochagavia/ci-bench-runner/internal/benchpipeline"
	"github.com/aochagavia/ci-bench-runner/internal/common"
	"github.com/aochagavia/ci-bench-runner/internal/interfaces"
	"github.com/aochagavia/ci-bench-runner/internal/models"
	"github.com/aochagavia/ci-bench-runner/internal/storage"
)

// --- mocks ---

type mockPlatform struct {
	comments      map[int64]string
	nextCommentID int64
	commentsByPR  map[int]int64
	statuses      map[string]interfaces.CommitState
	pullRequests  map[int]*models.RevisionPair
}

func newMockPlatform() *mockPlatform {
	return &mockPlatform{
		comments:     make(map[int64]string),
		commentsByPR: make(map[int]int64),
		statuses:     make(map[string]interfaces.CommitState),
		pullRequests: make(map[int]*models.RevisionPair),
	}
}

func (m *mockPlatform) CreateComment(_ context.Context, prNumber int, body string) (int64, error) {
	m.nextCommentID++
	m.comments[m.nextCommentID] = body
	m.commentsByPR[prNumber] = m.nextCommentID
	return m.nextCommentID, nil
}

func (m *mockPlatform) UpdateComment(_ context.Context, commentID int64, body string) error {
	m.comments[commentID] = body
	return nil
}

func (m *mockPlatform) UpdateCommitStatus(_ context.Context, commitSHA string, state interfaces.CommitState) error {
	m.statuses[commitSHA] = state
	return nil
}

func (m *mockPlatform) GetPullRequest(_ context.Context, prNumber int) (*models.RevisionPair, error) {
	return m.pullRequests[prNumber], nil
}

type mockRunner struct {
	runFn func(ctx context.Context, rev models.Revision, workDir, outputDir string, sink interfaces.LogSink) error
}

func (r *mockRunner) CheckoutAndRunBenchmarks(ctx context.Context, rev models.Revision, workDir, outputDir string, sink interfaces.LogSink) error {
	if r.runFn != nil {
		return r.runFn(ctx, rev, workDir, outputDir, sink)
	}
	return nil
}

func newTestHandlers(t *testing.T, platform *mockPlatform, runner interfaces.BenchRunner) (*Handlers, *storage.Store) {
	t.Helper()
	logger := common.NewLogger("debug")
	store, err := storage.Open(context.Background(), logger, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	config := common.NewDefaultConfig()
	pipeline := benchpipeline.New(store, runner, platform, logger, config.AppBaseURL, t.TempDir())
	return New(platform, pipeline, config, logger), store
}

func sameRepoBranches(baseSHA, headSHA string) *models.RevisionPair {
	return &models.RevisionPair{
		Baseline:  models.Revision{Branch: "main", CommitSHA: baseSHA, CloneURL: "https://example.com/rustls/rustls.git"},
		Candidate: models.Revision{Branch: "feature", CommitSHA: headSHA, CloneURL: "https://example.com/rustls/rustls.git"},
	}
}

func issueCommentPayload(t *testing.T, prNumber int, body, login, association, action string, isPR bool) []byte {
	t.Helper()
	issue := map[string]any{"number": prNumber}
	if isPR {
		issue["pull_request"] = map[string]any{"url": "https://example.com/pr"}
	}
	payload := map[string]any{
		"action": action,
		"issue":  issue,
		"comment": map[string]any{
			"body":               body,
			"user":               map[string]any{"login": login},
			"author_association": association,
		},
	}
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	return b
}

func TestHandleIssueComment_BenchCommandTriggersPipeline(t *testing.T) {
	platform := newMockPlatform()
	platform.pullRequests[42] = sameRepoBranches("aaa", "bbb")
	h, _ := newTestHandlers(t, platform, &mockRunner{})

	event := &models.QueuedEvent{
		Kind:    models.EventKindIssueComment,
		Payload: issueCommentPayload(t, 42, "@rustls-bench bench", "someone", "OWNER", "created", true),
	}

	// The pipeline will fail to run benchmarks (no icounts.csv produced by
	// the no-op mock runner), but that failure is captured in the comment,
	// not propagated, so the handler itself should return nil.
	err := h.HandleIssueComment(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, interfaces.CommitStateSuccess, platform.statuses["bbb"])
	assert.Len(t, platform.comments, 1)
}

func TestHandleIssueComment_UnknownCommandPostsHelp(t *testing.T) {
	platform := newMockPlatform()
	h, _ := newTestHandlers(t, platform, &mockRunner{})

	event := &models.QueuedEvent{
		Kind:    models.EventKindIssueComment,
		Payload: issueCommentPayload(t, 7, "@rustls-bench frobnicate", "someone", "OWNER", "created", true),
	}

	err := h.HandleIssueComment(context.Background(), event)
	require.NoError(t, err)
	require.Len(t, platform.comments, 1)
	for _, body := range platform.comments {
		assert.Contains(t, body, "Unrecognized command")
	}
}

func TestHandleIssueComment_IgnoresPlainIssue(t *testing.T) {
	platform := newMockPlatform()
	h, _ := newTestHandlers(t, platform, &mockRunner{})

	event := &models.QueuedEvent{
		Kind:    models.EventKindIssueComment,
		Payload: issueCommentPayload(t, 7, "@rustls-bench bench", "someone", "OWNER", "created", false),
	}

	err := h.HandleIssueComment(context.Background(), event)
	require.NoError(t, err)
	assert.Empty(t, platform.comments)
}

func TestHandleIssueComment_IgnoresUntrustedAuthor(t *testing.T) {
	platform := newMockPlatform()
	platform.pullRequests[42] = sameRepoBranches("aaa", "bbb")
	h, _ := newTestHandlers(t, platform, &mockRunner{})

	event := &models.QueuedEvent{
		Kind:    models.EventKindIssueComment,
		Payload: issueCommentPayload(t, 42, "@rustls-bench bench", "rando", "NONE", "created", true),
	}

	err := h.HandleIssueComment(context.Background(), event)
	require.NoError(t, err)
	assert.Empty(t, platform.comments)
	assert.Empty(t, platform.statuses)
}

func TestHandleIssueComment_IgnoresSelfAuthoredComment(t *testing.T) {
	platform := newMockPlatform()
	h, _ := newTestHandlers(t, platform, &mockRunner{})

	event := &models.QueuedEvent{
		Kind:    models.EventKindIssueComment,
		Payload: issueCommentPayload(t, 42, "@rustls-bench bench", "rustls-bench", "OWNER", "created", true),
	}

	err := h.HandleIssueComment(context.Background(), event)
	require.NoError(t, err)
	assert.Empty(t, platform.comments)
}

func TestHandleIssueComment_IgnoresForkedPR(t *testing.T) {
	platform := newMockPlatform()
	platform.pullRequests[42] = &models.RevisionPair{
		Baseline:  models.Revision{Branch: "main", CommitSHA: "aaa", CloneURL: "https://example.com/rustls/rustls.git"},
		Candidate: models.Revision{Branch: "feature", CommitSHA: "bbb", CloneURL: "https://example.com/someone/rustls.git"},
	}
	h, _ := newTestHandlers(t, platform, &mockRunner{})

	event := &models.QueuedEvent{
		Kind:    models.EventKindIssueComment,
		Payload: issueCommentPayload(t, 42, "@rustls-bench bench", "someone", "OWNER", "created", true),
	}

	err := h.HandleIssueComment(context.Background(), event)
	require.NoError(t, err)
	assert.Empty(t, platform.comments)
	assert.Empty(t, platform.statuses)
}

func pullRequestReviewPayload(t *testing.T, prNumber int, association, state, commitID, action string) []byte {
	t.Helper()
	payload := map[string]any{
		"action": action,
		"review": map[string]any{
			"state":              state,
			"commit_id":          commitID,
			"author_association": association,
		},
		"pull_request": map[string]any{
			"number": prNumber,
			"head": map[string]any{
				"ref": "feature",
				"sha": "head-sha",
				"repo": map[string]any{
					"clone_url": "https://example.com/rustls/rustls.git",
				},
			},
			"base": map[string]any{
				"ref": "main",
				"sha": "base-sha",
				"repo": map[string]any{
					"clone_url": "https://example.com/rustls/rustls.git",
				},
			},
		},
	}
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	return b
}

func TestHandlePullRequestReview_ApprovedOverridesCandidateCommit(t *testing.T) {
	platform := newMockPlatform()
	h, _ := newTestHandlers(t, platform, &mockRunner{})

	event := &models.QueuedEvent{
		Kind:    models.EventKindPullRequestReview,
		Payload: pullRequestReviewPayload(t, 42, "MEMBER", "approved", "reviewed-sha", "submitted"),
	}

	err := h.HandlePullRequestReview(context.Background(), event)
	require.NoError(t, err)
	// The status is set on the reviewed commit, not the (possibly
	// since-force-pushed) PR head.
	_, ok := platform.statuses["reviewed-sha"]
	assert.True(t, ok)
	_, headTracked := platform.statuses["head-sha"]
	assert.False(t, headTracked)
}

func TestHandlePullRequestReview_IgnoresNonApproved(t *testing.T) {
	platform := newMockPlatform()
	h, _ := newTestHandlers(t, platform, &mockRunner{})

	event := &models.QueuedEvent{
		Kind:    models.EventKindPullRequestReview,
		Payload: pullRequestReviewPayload(t, 42, "MEMBER", "commented", "reviewed-sha", "submitted"),
	}

	err := h.HandlePullRequestReview(context.Background(), event)
	require.NoError(t, err)
	assert.Empty(t, platform.statuses)
}

func pullRequestEventPayload(t *testing.T, prNumber int, action, headCloneURL string) []byte {
	t.Helper()
	payload := map[string]any{
		"action": action,
		"number": prNumber,
		"pull_request": map[string]any{
			"number": prNumber,
			"head": map[string]any{
				"ref": "feature",
				"sha": "head-sha",
				"repo": map[string]any{
					"clone_url": headCloneURL,
				},
			},
			"base": map[string]any{
				"ref": "main",
				"sha": "base-sha",
				"repo": map[string]any{
					"clone_url": "https://example.com/rustls/rustls.git",
				},
			},
		},
	}
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	return b
}

func TestHandlePullRequestUpdate_SameRepoOpened(t *testing.T) {
	platform := newMockPlatform()
	h, _ := newTestHandlers(t, platform, &mockRunner{})

	event := &models.QueuedEvent{
		Kind:    models.EventKindPullRequest,
		Payload: pullRequestEventPayload(t, 42, "opened", "https://example.com/rustls/rustls.git"),
	}

	err := h.HandlePullRequestUpdate(context.Background(), event)
	require.NoError(t, err)
	_, ok := platform.statuses["head-sha"]
	assert.True(t, ok)
}

func TestHandlePullRequestUpdate_RejectsForkedPR(t *testing.T) {
	platform := newMockPlatform()
	h, _ := newTestHandlers(t, platform, &mockRunner{})

	event := &models.QueuedEvent{
		Kind:    models.EventKindPullRequest,
		Payload: pullRequestEventPayload(t, 42, "opened", "https://example.com/someone-else/rustls.git"),
	}

	err := h.HandlePullRequestUpdate(context.Background(), event)
	require.NoError(t, err)
	assert.Empty(t, platform.statuses)
}

func TestHandlePullRequestUpdate_IgnoresClosedAction(t *testing.T) {
	platform := newMockPlatform()
	h, _ := newTestHandlers(t, platform, &mockRunner{})

	event := &models.QueuedEvent{
		Kind:    models.EventKindPullRequest,
		Payload: pullRequestEventPayload(t, 42, "closed", "https://example.com/rustls/rustls.git"),
	}

	err := h.HandlePullRequestUpdate(context.Background(), event)
	require.NoError(t, err)
	assert.Empty(t, platform.statuses)
}
