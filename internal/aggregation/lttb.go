package aggregation

import (
	"math"

	"github.com/miradorstack/mirador-synth/internal/models"
)

// LTTB selects threshold points with the largest-triangle-three-buckets
// algorithm. The first and last points are always kept; every other bucket
// contributes the point forming the largest triangle with the previously
// selected point and the average of the next bucket. Selected points are
// original samples, so no Min/Max bounds are attached.
func LTTB(points []models.MetricPoint, threshold int) []models.MetricPoint {
	n := len(points)
	if threshold <= 0 || threshold >= n {
		return points
	}
	if threshold == 1 {
		return []models.MetricPoint{points[0]}
	}
	if threshold == 2 {
		return []models.MetricPoint{points[0], points[n-1]}
	}

	origin := points[0].Timestamp
	x := func(i int) float64 {
		return float64(points[i].Timestamp.Sub(origin).Milliseconds())
	}

	out := make([]models.MetricPoint, 0, threshold)
	out = append(out, points[0])

	every := float64(n-2) / float64(threshold-2)
	selected := 0
	for b := 0; b < threshold-2; b++ {
		// Average of the following bucket; the last bucket looks at the final point.
		nextStart := int(math.Floor(float64(b+1)*every)) + 1
		nextEnd := int(math.Floor(float64(b+2)*every)) + 1
		if nextEnd > n {
			nextEnd = n
		}
		if nextStart >= nextEnd {
			nextStart, nextEnd = n-1, n
		}
		avgX, avgY := 0.0, 0.0
		for i := nextStart; i < nextEnd; i++ {
			avgX += x(i)
			avgY += points[i].Value
		}
		count := float64(nextEnd - nextStart)
		avgX /= count
		avgY /= count

		start := int(math.Floor(float64(b)*every)) + 1
		end := int(math.Floor(float64(b+1)*every)) + 1
		ax, ay := x(selected), points[selected].Value

		best, bestArea := start, -1.0
		for i := start; i < end && i < n-1; i++ {
			area := math.Abs((ax-avgX)*(points[i].Value-ay) - (ax-x(i))*(avgY-ay))
			if area > bestArea {
				best, bestArea = i, area
			}
		}
		out = append(out, points[best])
		selected = best
	}
	return append(out, points[n-1])
}
