package significance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aochagavia/ci-bench-runner/internal/models"
)

func resultsFor(name string, values []float64) []models.Result {
	out := make([]models.Result, len(values))
	for i, v := range values {
		out[i] = models.Result{Name: name, Value: v}
	}
	return out
}

func TestCalculateThresholds_NotEnoughResults(t *testing.T) {
	thresholds := CalculateThresholds(nil)
	assert.Empty(t, thresholds)

	thresholds = CalculateThresholds(resultsFor("foo", []float64{1, 2, 3}))
	_, ok := thresholds["foo"]
	assert.False(t, ok)
}

func TestCalculateThresholds_Floor(t *testing.T) {
	values := make([]float64, 10)
	for i := range values {
		values[i] = 100
	}
	thresholds := CalculateThresholds(resultsFor("foo", values))
	assert.InDelta(t, DefaultNoiseThreshold, thresholds["foo"], 1e-9)
}

func TestCalculateThresholds_FromHistory(t *testing.T) {
	values := []float64{100, 97, 98, 101, 100, 99, 97, 102, 99, 98}
	thresholds := CalculateThresholds(resultsFor("foo", values))
	got := math.Round(thresholds["foo"]*100) / 100
	assert.Equal(t, 0.09, got)
}
