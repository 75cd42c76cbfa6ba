package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aochagavia/ci-bench-runner/internal/interfaces"
	"github.com/aochagavia/ci-bench-runner/internal/models"
)

// StoreComparisonResult atomically stores the comparison row and all diff
// rows. An empty missingScenarios stores as NULL ("absent"), not as an
// empty JSON array, matching the original's encoding.
func (s *Store) StoreComparisonResult(ctx context.Context, baselineCommit, candidateCommit string, missingScenarios []string, diffs []models.ScenarioDiff) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var missingJSON any
	if len(missingScenarios) > 0 {
		b, err := json.Marshal(missingScenarios)
		if err != nil {
			return "", fmt.Errorf("failed to marshal missing scenarios: %w", err)
		}
		missingJSON = string(b)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	comparisonID, comparisonIDBytes := newID()
	now := time.Now().UTC()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO comparison_runs (id, created_at, baseline_commit, candidate_commit, missing_scenarios)
		VALUES (?, ?, ?, ?, ?)
	`, comparisonIDBytes, now.UnixMicro(), baselineCommit, candidateCommit, missingJSON); err != nil {
		return "", fmt.Errorf("failed to insert comparison run: %w", err)
	}

	for _, d := range diffs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO scenario_diffs
				(comparison_id, scenario_name, kind, baseline, candidate, threshold, cachegrind_diff)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, comparisonIDBytes, d.ScenarioName, int(d.Kind), d.Baseline, d.Candidate, d.Threshold, d.CachegrindDiff); err != nil {
			return "", fmt.Errorf("failed to insert scenario diff %q: %w", d.ScenarioName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit comparison result: %w", err)
	}
	return comparisonID, nil
}

// ComparisonResult returns the comparison for (baselineCommit,
// candidateCommit), or (nil, nil) if absent. Fails with
// interfaces.ErrDataCorruption if the stored JSON is malformed.
func (s *Store) ComparisonResult(ctx context.Context, baselineCommit, candidateCommit string) (*models.ComparisonResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var idBytes []byte
	var createdMicros int64
	var missingJSON sql.NullString

	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, missing_scenarios
		FROM comparison_runs
		WHERE baseline_commit = ? AND candidate_commit = ?
	`, baselineCommit, candidateCommit)

	if err := row.Scan(&idBytes, &createdMicros, &missingJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read comparison run: %w", err)
	}

	var missing []string
	if missingJSON.Valid {
		if err := json.Unmarshal([]byte(missingJSON.String), &missing); err != nil {
			return nil, fmt.Errorf("%w: invalid missing-scenarios JSON for comparison %s:%s: %v",
				interfaces.ErrDataCorruption, baselineCommit, candidateCommit, err)
		}
	}

	diffs, err := s.scenarioDiffsForComparison(ctx, idBytes)
	if err != nil {
		return nil, err
	}

	comparisonID, err := idFromBytes(idBytes)
	if err != nil {
		return nil, fmt.Errorf("invalid comparison id in db: %w", err)
	}

	return &models.ComparisonResult{
		ID:                       comparisonID,
		CreatedAt:                time.UnixMicro(createdMicros).UTC(),
		BaselineCommit:           baselineCommit,
		CandidateCommit:          candidateCommit,
		ScenariosMissingBaseline: missing,
		Diffs:                    diffs,
	}, nil
}

func (s *Store) scenarioDiffsForComparison(ctx context.Context, comparisonIDBytes []byte) ([]models.ScenarioDiff, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT scenario_name, kind, baseline, candidate, threshold, cachegrind_diff
		FROM scenario_diffs WHERE comparison_id = ?
	`, comparisonIDBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to query scenario diffs: %w", err)
	}
	defer rows.Close()

	var diffs []models.ScenarioDiff
	for rows.Next() {
		var d models.ScenarioDiff
		var kind int
		if err := rows.Scan(&d.ScenarioName, &kind, &d.Baseline, &d.Candidate, &d.Threshold, &d.CachegrindDiff); err != nil {
			return nil, fmt.Errorf("failed to scan scenario diff: %w", err)
		}
		if kind != int(models.ScenarioKindIcount) {
			return nil, fmt.Errorf("%w: unknown scenario kind %d for scenario %q",
				interfaces.ErrDataCorruption, kind, d.ScenarioName)
		}
		d.Kind = models.ScenarioKind(kind)
		diffs = append(diffs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate scenario diffs: %w", err)
	}
	return diffs, nil
}

// CachegrindDiff looks up the diff text for one scenario within one
// comparison, returning ("", nil) if absent.
func (s *Store) CachegrindDiff(ctx context.Context, baselineCommit, candidateCommit, scenarioName string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var diff string
	err := s.db.QueryRowContext(ctx, `
		SELECT sd.cachegrind_diff
		FROM scenario_diffs sd
		JOIN comparison_runs cr ON cr.id = sd.comparison_id
		WHERE cr.baseline_commit = ? AND cr.candidate_commit = ? AND sd.scenario_name = ?
	`, baselineCommit, candidateCommit, scenarioName).Scan(&diff)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read cachegrind diff: %w", err)
	}
	return diff, nil
}
