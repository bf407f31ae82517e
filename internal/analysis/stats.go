// Package analysis derives statistics and diagnostics from generated
// datasets. Every function is a pure function of its input; empty input
// yields a zero result rather than an error.
package analysis

import (
	"math"
	"sort"
)

// Stats summarises a sample.
type Stats struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stdDev"`
	P50    float64 `json:"p50"`
	P90    float64 `json:"p90"`
	P95    float64 `json:"p95"`
	P99    float64 `json:"p99"`
}

// ComputeStats returns population statistics and nearest-rank percentiles.
func ComputeStats(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}
	sorted := sortedCopy(values)
	m := mean(values)
	return Stats{
		Count:  len(values),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Mean:   m,
		StdDev: stdDev(values, m),
		P50:    nearestRank(sorted, 50),
		P90:    nearestRank(sorted, 90),
		P95:    nearestRank(sorted, 95),
		P99:    nearestRank(sorted, 99),
	}
}

// Percentile returns the value at sorted index ceil(p/100*n)-1. No
// interpolation is applied.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return nearestRank(sortedCopy(values), p)
}

// TrendSlope is the least-squares slope of value against sample index.
func TrendSlope(values []float64) float64 {
	n := float64(len(values))
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

func nearestRank(sorted []float64, p float64) float64 {
	idx := int(math.Ceil(p*float64(len(sorted))/100)) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func sortedCopy(values []float64) []float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return sorted
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

func stdDev(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		diff := v - mean
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(values)))
}
