package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeStats(t *testing.T) {
	stats := ComputeStats([]float64{4, 1, 3, 2, 5})
	assert.Equal(t, 5, stats.Count)
	assert.Equal(t, 1.0, stats.Min)
	assert.Equal(t, 5.0, stats.Max)
	assert.Equal(t, 3.0, stats.Mean)
	assert.InDelta(t, 1.41421, stats.StdDev, 1e-4)
	assert.Equal(t, 3.0, stats.P50)
	assert.Equal(t, 5.0, stats.P99)
}

func TestComputeStatsEmpty(t *testing.T) {
	assert.Equal(t, Stats{}, ComputeStats(nil))
	assert.Zero(t, Percentile(nil, 90))
	assert.Zero(t, TrendSlope(nil))
	assert.Zero(t, TrendSlope([]float64{7}))
}

func TestPercentileNearestRank(t *testing.T) {
	values := []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	cases := map[float64]float64{
		0:   10,
		10:  10,
		11:  20,
		50:  50,
		90:  90,
		99:  100,
		100: 100,
	}
	for p, want := range cases {
		if got := Percentile(values, p); got != want {
			t.Fatalf("p%.0f: expected %.0f, got %.0f", p, want, got)
		}
	}
}

func TestTrendSlope(t *testing.T) {
	assert.InDelta(t, 2.0, TrendSlope([]float64{1, 3, 5, 7, 9}), 1e-9)
	assert.InDelta(t, -0.5, TrendSlope([]float64{10, 9.5, 9, 8.5}), 1e-9)
	assert.Zero(t, TrendSlope([]float64{4, 4, 4}))
}
