// Package aggregation downsamples metric series for display.
package aggregation

import (
	"math"

	"github.com/miradorstack/mirador-synth/internal/models"
)

// Aggregate reduces points to at most maxPoints by averaging contiguous
// buckets of ceil(len/maxPoints) points. Each output point carries the
// bucket's first timestamp, mean value and min/max bounds. Input that already
// fits, or a non-positive maxPoints, is returned unchanged.
//
// Averaging flattens spikes; use LTTB when the visual shape matters.
func Aggregate(points []models.MetricPoint, maxPoints int) []models.MetricPoint {
	if maxPoints <= 0 || len(points) <= maxPoints {
		return points
	}
	size := int(math.Ceil(float64(len(points)) / float64(maxPoints)))
	out := make([]models.MetricPoint, 0, maxPoints)
	for start := 0; start < len(points); start += size {
		end := start + size
		if end > len(points) {
			end = len(points)
		}
		out = append(out, summarise(points[start:end]))
	}
	return out
}

func summarise(bucket []models.MetricPoint) models.MetricPoint {
	lo, hi := math.Inf(1), math.Inf(-1)
	sum := 0.0
	for _, p := range bucket {
		sum += p.Value
		// Re-aggregating a bucketed series keeps the original extremes.
		pMin, pMax := p.Value, p.Value
		if p.Min != nil {
			pMin = *p.Min
		}
		if p.Max != nil {
			pMax = *p.Max
		}
		lo = math.Min(lo, pMin)
		hi = math.Max(hi, pMax)
	}
	return models.MetricPoint{
		Timestamp: bucket[0].Timestamp,
		Value:     sum / float64(len(bucket)),
		Min:       &lo,
		Max:       &hi,
	}
}

// AggregateSeries returns series with its points passed through Aggregate.
func AggregateSeries(series models.TimeSeries, maxPoints int) models.TimeSeries {
	series.Points = Aggregate(series.Points, maxPoints)
	return series
}
