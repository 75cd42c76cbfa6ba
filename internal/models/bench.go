package models

import "time"

// ScenarioKind is a closed enumeration of benchmark metric kinds. Only
// instruction count is defined today; the type reserves space for others
// rather than silently widening at decode time.
type ScenarioKind int

const (
	// ScenarioKindIcount is a deterministic CPU-instruction-count measurement.
	ScenarioKindIcount ScenarioKind = 0
)

// Result is a single (scenario_name, numeric_result) measurement.
type Result struct {
	Name  string
	Value float64
}

// BenchRun is a single-revision measurement set.
type BenchRun struct {
	ID        string
	CreatedAt time.Time
	Results   []Result
}

// ScenarioDiff compares one scenario's result between baseline and candidate.
type ScenarioDiff struct {
	ScenarioName   string
	Kind           ScenarioKind
	Baseline       float64
	Candidate      float64
	Threshold      float64
	CachegrindDiff string
}

// Diff returns candidate - baseline.
func (d ScenarioDiff) Diff() float64 {
	return d.Candidate - d.Baseline
}

// DiffRatio returns Diff() / Baseline.
func (d ScenarioDiff) DiffRatio() float64 {
	return d.Diff() / d.Baseline
}

// ComparisonResult is a paired measurement between a baseline and candidate
// commit, uniquely retrievable by that ordered pair.
type ComparisonResult struct {
	ID                       string
	CreatedAt                time.Time
	BaselineCommit           string
	CandidateCommit          string
	ScenariosMissingBaseline []string // nil/empty means "absent", not "[]"
	Diffs                    []ScenarioDiff
}
