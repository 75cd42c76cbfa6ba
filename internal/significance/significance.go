// Package significance computes per-scenario noise thresholds from
// historical benchmark results using inter-quartile-range fencing.
package significance

import (
	"math"
	"sort"

	"github.com/aochagavia/ci-bench-runner/internal/models"
)

// DefaultNoiseThreshold is the floor below which a significance threshold
// never falls, matching widely used compiler-benchmark practice.
const DefaultNoiseThreshold = 0.002

// iqrMultiplier is the inter-quartile-range outlier-fence factor.
const iqrMultiplier = 3.0

// minHistorySize is the minimum number of historical values a scenario must
// have before a threshold is computed for it.
const minHistorySize = 10

// CalculateThresholds groups historicalResults by name, preserving order,
// and computes a significance threshold for every scenario with at least
// minHistorySize values. Scenarios with fewer values are omitted; callers
// default to DefaultNoiseThreshold for those.
func CalculateThresholds(historicalResults []models.Result) map[string]float64 {
	order := make([]string, 0)
	byName := make(map[string][]float64)
	for _, r := range historicalResults {
		if _, ok := byName[r.Name]; !ok {
			order = append(order, r.Name)
		}
		byName[r.Name] = append(byName[r.Name], r.Value)
	}

	thresholds := make(map[string]float64, len(order))
	for _, name := range order {
		values := byName[name]
		if len(values) < minHistorySize {
			continue
		}
		thresholds[name] = thresholdFor(values)
	}
	return thresholds
}

// thresholdFor computes the IQR-fenced threshold for one scenario's
// chronologically ordered history.
func thresholdFor(values []float64) float64 {
	changes := make([]float64, 0, len(values)-1)
	for i := 0; i+1 < len(values); i++ {
		a, b := values[i], values[i+1]
		changes = append(changes, math.Abs(a-b)/a)
	}

	sort.Slice(changes, func(i, j int) bool {
		x, y := changes[i], changes[j]
		if math.IsNaN(x) || math.IsNaN(y) {
			return false
		}
		return x < y
	})

	n := len(changes)
	q1 := changes[n/4]
	q3 := changes[(n*3)/4]
	iqr := q3 - q1

	return math.Max(q3+iqrMultiplier*iqr, DefaultNoiseThreshold)
}
