// Package benchpipeline implements the Bench Pipeline: it turns a
// (baseline, candidate) revision pair into a cached or freshly computed
// comparison, renders it as a markdown report, and publishes it as a pull
// request comment and commit status.
package benchpipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aochagavia/ci-bench-runner/internal/common"
	"github.com/aochagavia/ci-bench-runner/internal/interfaces"
	"github.com/aochagavia/ci-bench-runner/internal/models"
	"github.com/aochagavia/ci-bench-runner/internal/significance"
)

// historyWindow is how far back the Significance Analyzer looks for
// historical results.
const historyWindow = 30 * 24 * time.Hour

// mainBranch is the only baseline branch the pipeline will compare against.
const mainBranch = "main"

// Pipeline wires the Store, BenchRunner, and PlatformClient collaborators
// into the five-step procedure of §4.5.
type Pipeline struct {
	store    interfaces.Store
	runner   interfaces.BenchRunner
	platform interfaces.PlatformClient
	logger   *common.Logger

	appBaseURL string
	// workDir is the parent of every job's scratch output directory.
	workDir string
}

// New builds a Pipeline. appBaseURL is used to compose cachegrind-diff
// permalinks; workDir is the base directory under which each job gets its
// own output subdirectory.
func New(store interfaces.Store, runner interfaces.BenchRunner, platform interfaces.PlatformClient, logger *common.Logger, appBaseURL, workDir string) *Pipeline {
	return &Pipeline{store: store, runner: runner, platform: platform, logger: logger, appBaseURL: appBaseURL, workDir: workDir}
}

// BenchPR runs the full bench-and-report procedure for one pull request.
// baseline branch names other than "main" are refused as out of scope.
func (p *Pipeline) BenchPR(ctx context.Context, prNumber int, branches models.RevisionPair) error {
	logger := common.LoggerFromContext(ctx, p.logger)

	if branches.Baseline.Branch != mainBranch {
		logger.Trace().Str("base_branch", branches.Baseline.Branch).Msg("ignoring bench request for PR with non-main base")
		return nil
	}

	if err := p.platform.UpdateCommitStatus(ctx, branches.Candidate.CommitSHA, interfaces.CommitStatePending); err != nil {
		logger.Warn().Err(err).Msg("failed to set pending commit status")
	}

	result, err := p.store.ComparisonResult(ctx, branches.Baseline.CommitSHA, branches.Candidate.CommitSHA)
	if err != nil {
		return fmt.Errorf("failed to look up cached comparison: %w", err)
	}

	var runErr error
	var candidateLogs, baselineLogs []interfaces.LogEntry
	if result == nil {
		result, candidateLogs, baselineLogs, runErr = p.computeAndCacheComparison(ctx, prNumber, branches)
	}

	diffURL := fmt.Sprintf("%s/comparisons/%s:%s/cachegrind-diff", p.appBaseURL, branches.Baseline.CommitSHA, branches.Candidate.CommitSHA)

	var comment string
	if runErr != nil {
		comment = renderErrorComment(runErr, branches, candidateLogs, baselineLogs)
	} else {
		comment = renderSuccessComment(result, branches, diffURL)
	}
	comment = maybeTruncateComment(comment)

	if err := p.publishComment(ctx, prNumber, comment); err != nil {
		return fmt.Errorf("failed to publish result comment: %w", err)
	}

	// Commit status always ends Success: the comment body communicates any
	// comparison failure, and a red status would block the PR for reasons
	// its author cannot address.
	if err := p.platform.UpdateCommitStatus(ctx, branches.Candidate.CommitSHA, interfaces.CommitStateSuccess); err != nil {
		logger.Warn().Err(err).Msg("failed to set success commit status")
	}

	return nil
}

func (p *Pipeline) publishComment(ctx context.Context, prNumber int, body string) error {
	commentID, ok, err := p.store.ResultCommentID(ctx, prNumber)
	if err != nil {
		return fmt.Errorf("failed to look up result comment id: %w", err)
	}
	if ok {
		return p.platform.UpdateComment(ctx, commentID, body)
	}

	newID, err := p.platform.CreateComment(ctx, prNumber, body)
	if err != nil {
		return err
	}
	if err := p.store.StoreResultCommentID(ctx, prNumber, newID); err != nil {
		return fmt.Errorf("failed to persist result comment id: %w", err)
	}
	return nil
}

// computeAndCacheComparison computes a fresh comparison (§4.5 step 3). Once
// both sides have been attempted it writes the job's aggregated logs.md,
// whether the comparison succeeded or failed, so logs remain available even
// if everything downstream fails. A failure to read the result history or to
// create the job output directory returns before any logs.md is written.
func (p *Pipeline) computeAndCacheComparison(ctx context.Context, prNumber int, branches models.RevisionPair) (*models.ComparisonResult, []interfaces.LogEntry, []interfaces.LogEntry, error) {
	logger := common.LoggerFromContext(ctx, p.logger)
	cutoff := time.Now().UTC().Add(-historyWindow)
	historicalResults, err := p.store.ResultHistory(ctx, cutoff)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("could not obtain result history: %w", err)
	}
	thresholds := significance.CalculateThresholds(historicalResults)

	jobOutputDir := filepath.Join(p.workDir, fmt.Sprintf("pr-%d-%s", prNumber, branches.Candidate.CommitSHA))
	if err := os.MkdirAll(jobOutputDir, 0o755); err != nil {
		return nil, nil, nil, fmt.Errorf("could not create job output directory: %w", err)
	}

	candidateSink := newMemLogSink()
	baselineSink := newMemLogSink()

	result, compareErr := p.compareRefs(ctx, branches, jobOutputDir, candidateSink, baselineSink, thresholds)
	candidateLogs := candidateSink.Entries()
	baselineLogs := baselineSink.Entries()

	if compareErr != nil {
		logger.Error().Err(compareErr).Msg("unable to compare refs")
	}

	logsDigest := renderLogsDigest(candidateLogs, baselineLogs)
	if err := os.WriteFile(filepath.Join(jobOutputDir, "logs.md"), []byte(logsDigest), 0o644); err != nil {
		logger.Error().Err(err).Msg("unable to write job logs")
	}

	if compareErr != nil {
		return nil, candidateLogs, baselineLogs, compareErr
	}

	if _, err := p.store.StoreComparisonResult(ctx, branches.Baseline.CommitSHA, branches.Candidate.CommitSHA, result.ScenariosMissingBaseline, result.Diffs); err != nil {
		return nil, candidateLogs, baselineLogs, fmt.Errorf("could not store comparison results: %w", err)
	}

	return result, candidateLogs, baselineLogs, nil
}

// compareRefs checks out and benchmarks both sides (candidate first,
// matching current practice), then diffs the resulting measurements. It runs
// synchronously on the calling goroutine; the benchmark subprocess waits
// block only that goroutine.
func (p *Pipeline) compareRefs(ctx context.Context, branches models.RevisionPair, jobOutputDir string, candidateSink, baselineSink interfaces.LogSink, thresholds map[string]float64) (*models.ComparisonResult, error) {
	logger := common.LoggerFromContext(ctx, p.logger)
	candidateRepoDir, err := os.MkdirTemp("", "ci-bench-candidate-")
	if err != nil {
		return nil, fmt.Errorf("unable to create temp dir: %w", err)
	}
	defer os.RemoveAll(candidateRepoDir)

	baselineRepoDir, err := os.MkdirTemp("", "ci-bench-base-")
	if err != nil {
		return nil, fmt.Errorf("unable to create temp dir: %w", err)
	}
	defer os.RemoveAll(baselineRepoDir)

	candidateOutputDir := filepath.Join(jobOutputDir, "candidate")
	baselineOutputDir := filepath.Join(jobOutputDir, "base")

	if err := p.runner.CheckoutAndRunBenchmarks(ctx, branches.Candidate, candidateRepoDir, candidateOutputDir, candidateSink); err != nil {
		return nil, err
	}
	if err := p.runner.CheckoutAndRunBenchmarks(ctx, branches.Baseline, baselineRepoDir, baselineOutputDir, baselineSink); err != nil {
		return nil, err
	}

	logger.Info().Msg("comparing results")
	baselineResults, err := readResults(filepath.Join(baselineOutputDir, "results", "icounts.csv"))
	if err != nil {
		return nil, err
	}
	candidateResults, err := readResults(filepath.Join(candidateOutputDir, "results", "icounts.csv"))
	if err != nil {
		return nil, err
	}

	diffs, missing, err := p.compareResults(ctx,
		filepath.Join(baselineOutputDir, "results", "cachegrind"),
		filepath.Join(candidateOutputDir, "results", "cachegrind"),
		baselineResults, candidateResults, thresholds)
	if err != nil {
		return nil, err
	}

	return &models.ComparisonResult{
		BaselineCommit:           branches.Baseline.CommitSHA,
		CandidateCommit:          branches.Candidate.CommitSHA,
		ScenariosMissingBaseline: missing,
		Diffs:                    diffs,
	}, nil
}

// compareResults builds a ScenarioDiff for every candidate scenario also
// present in the baseline, and collects the rest into the missing list.
func (p *Pipeline) compareResults(ctx context.Context, baselineCachegrindDir, candidateCachegrindDir string, baseline, candidate map[string]float64, thresholds map[string]float64) ([]models.ScenarioDiff, []string, error) {
	var diffs []models.ScenarioDiff
	var missing []string

	for scenario, candidateValue := range candidate {
		baselineValue, ok := baseline[scenario]
		if !ok {
			missing = append(missing, scenario)
			continue
		}

		diffText, err := cachegrindDiff(ctx, baselineCachegrindDir, candidateCachegrindDir, scenario)
		if err != nil {
			return nil, nil, err
		}

		threshold, ok := thresholds[scenario]
		if !ok {
			threshold = significance.DefaultNoiseThreshold
		}

		diffs = append(diffs, models.ScenarioDiff{
			ScenarioName:   scenario,
			Kind:           models.ScenarioKindIcount,
			Baseline:       baselineValue,
			Candidate:      candidateValue,
			Threshold:      threshold,
			CachegrindDiff: diffText,
		})
	}

	return diffs, missing, nil
}
