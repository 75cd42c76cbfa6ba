package interfaces

import (
	"context"

	"github.com/aochagavia/ci-bench-runner/internal/models"
)

// CommitState is the tri-state status a PlatformClient can set on a commit.
type CommitState string

const (
	CommitStatePending CommitState = "pending"
	CommitStateSuccess CommitState = "success"
	CommitStateFailure CommitState = "failure"
)

// PlatformClient is the outbound code-hosting-platform collaborator: it
// posts/edits comments and sets commit statuses. Its implementation is
// injected; the core only depends on this interface.
type PlatformClient interface {
	CreateComment(ctx context.Context, prNumber int, body string) (commentID int64, err error)
	UpdateComment(ctx context.Context, commentID int64, body string) error
	UpdateCommitStatus(ctx context.Context, commitSHA string, state CommitState) error
	GetPullRequest(ctx context.Context, prNumber int) (*models.RevisionPair, error)
}

// LogEntry is one (command, cwd, stdout, stderr) capture accumulated by a
// BenchRunner invocation, consumed by the log_sink.
type LogEntry struct {
	Command string
	Cwd     string
	Stdout  string
	Stderr  string
}

// LogSink accumulates LogEntry captures during a benchmark run.
type LogSink interface {
	Record(entry LogEntry)
	Entries() []LogEntry
}

// BenchRunner is the injected benchmark-harness collaborator: a subprocess
// producing CSV and cachegrind artifacts. checkout_and_run_benchmarks is
// responsible for checkout and harness invocation into outputDir.
type BenchRunner interface {
	CheckoutAndRunBenchmarks(ctx context.Context, rev models.Revision, workDir, outputDir string, sink LogSink) error
}
