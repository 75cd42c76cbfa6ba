// Package benchrunner provides a production interfaces.BenchRunner: it
// checks out a revision into a scratch directory and shells out to a
// configurable harness script that is expected to populate outputDir with
// results/icounts.csv and results/cachegrind/<scenario> files (§6). The
// harness itself is trusted code from the same repository (§1 Non-goals)
// and is treated as an opaque external collaborator here.
package benchrunner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/aochagavia/ci-bench-runner/internal/interfaces"
	"github.com/aochagavia/ci-bench-runner/internal/models"
)

// ShellRunner clones the target revision with git and invokes harnessPath
// (a script living in the checked-out repository) to produce the
// benchmark artifacts.
type ShellRunner struct {
	// HarnessPath is the path, relative to the checked-out repository root,
	// of the script to invoke. It receives the output directory as its
	// sole argument.
	HarnessPath string
}

// NewShellRunner builds a ShellRunner invoking harnessPath after checkout.
func NewShellRunner(harnessPath string) *ShellRunner {
	return &ShellRunner{HarnessPath: harnessPath}
}

// CheckoutAndRunBenchmarks clones rev.CloneURL into workDir, checks out
// rev.CommitSHA, and runs the harness script with outputDir as its only
// argument. Every subprocess invocation is captured into sink regardless of
// outcome.
func (r *ShellRunner) CheckoutAndRunBenchmarks(ctx context.Context, rev models.Revision, workDir, outputDir string, sink interfaces.LogSink) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("cannot create output directory %s: %w", outputDir, err)
	}

	if err := r.run(ctx, workDir, sink, "git", "clone", "--no-tags", rev.CloneURL, "."); err != nil {
		return fmt.Errorf("git clone of %s failed: %w", rev.CloneURL, err)
	}
	if err := r.run(ctx, workDir, sink, "git", "checkout", rev.CommitSHA); err != nil {
		return fmt.Errorf("git checkout of %s failed: %w", rev.CommitSHA, err)
	}
	if err := r.run(ctx, workDir, sink, fmt.Sprintf("./%s", r.HarnessPath), outputDir); err != nil {
		return fmt.Errorf("benchmark harness failed for %s@%s: %w", rev.Branch, rev.CommitSHA, err)
	}
	return nil
}

func (r *ShellRunner) run(ctx context.Context, dir string, sink interfaces.LogSink, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	sink.Record(interfaces.LogEntry{
		Command: fmt.Sprintf("%s %v", name, args),
		Cwd:     dir,
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
	})

	return runErr
}
