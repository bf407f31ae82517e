package analysis

import (
	"math"
	"sort"
	"time"

	"github.com/miradorstack/mirador-synth/internal/models"
)

// sigmaThreshold is the number of standard deviations above the mean at
// which a sample is flagged. A sample of identical values has no outliers.
const sigmaThreshold = 2.0

// Anomaly is a flagged metric sample.
type Anomaly struct {
	Index     int       `json:"index"`
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Score     float64   `json:"score"`
	Threshold float64   `json:"threshold"`
}

// DetectOutliers returns the indices of values at or above mean+2σ.
// [10,10,10,10,100] sits exactly on the boundary (mean 28, σ 36) and the 100
// must be reported, so the comparison is inclusive.
func DetectOutliers(values []float64) []int {
	if len(values) == 0 {
		return nil
	}
	m := mean(values)
	std := stdDev(values, m)
	if std == 0 {
		return nil
	}
	threshold := m + sigmaThreshold*std
	var out []int
	for i, v := range values {
		if v >= threshold {
			out = append(out, i)
		}
	}
	return out
}

// DetectAnomalies flags points at or above mean+2σ of the series.
func DetectAnomalies(points []models.MetricPoint) []Anomaly {
	if len(points) == 0 {
		return nil
	}
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}
	m := mean(values)
	std := stdDev(values, m)
	threshold := m + sigmaThreshold*std

	anomalies := make([]Anomaly, 0)
	for _, i := range DetectOutliers(values) {
		anomalies = append(anomalies, Anomaly{
			Index:     i,
			Timestamp: points[i].Timestamp,
			Value:     values[i],
			Score:     zScore(values[i], m, std),
			Threshold: threshold,
		})
	}
	return anomalies
}

// SlowSpan is a span whose duration is an outlier in its population.
type SlowSpan struct {
	Span        models.Span `json:"span"`
	Score       float64     `json:"score"`
	ThresholdMs float64     `json:"thresholdMs"`
}

// DetectSlowSpans flags spans whose duration reaches mean+2σ of the given
// spans.
func DetectSlowSpans(spans []models.Span) []SlowSpan {
	if len(spans) == 0 {
		return nil
	}
	durations := make([]float64, len(spans))
	for i, s := range spans {
		durations[i] = s.DurationMs
	}
	m := mean(durations)
	std := stdDev(durations, m)
	threshold := m + sigmaThreshold*std

	slow := make([]SlowSpan, 0)
	for _, i := range DetectOutliers(durations) {
		slow = append(slow, SlowSpan{
			Span:        spans[i],
			Score:       zScore(durations[i], m, std),
			ThresholdMs: threshold,
		})
	}
	return slow
}

// LogSpike is a time bucket whose error volume stands out from the rest.
type LogSpike struct {
	Start  time.Time `json:"start"`
	Errors int       `json:"errors"`
	Total  int       `json:"total"`
	Score  float64   `json:"score"`
}

// DetectLogSpikes buckets logs by width and flags buckets whose ERROR/FATAL
// count deviates from the median by at least three mean absolute deviations.
func DetectLogSpikes(logs []models.LogEntry, width time.Duration) []LogSpike {
	if len(logs) == 0 || width <= 0 {
		return nil
	}

	type bucket struct {
		errors, total int
	}
	buckets := map[time.Time]*bucket{}
	for _, entry := range logs {
		key := entry.Timestamp.Truncate(width)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
		}
		b.total++
		if entry.Level.IsErrorLike() {
			b.errors++
		}
	}

	starts := make([]time.Time, 0, len(buckets))
	counts := make([]float64, 0, len(buckets))
	for start := range buckets {
		starts = append(starts, start)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })
	for _, start := range starts {
		counts = append(counts, float64(buckets[start].errors))
	}

	median := Percentile(counts, 50)
	mad := meanAbsoluteDeviation(counts, median)
	if mad == 0 {
		mad = 1
	}

	spikes := make([]LogSpike, 0)
	for i, start := range starts {
		score := (counts[i] - median) / mad
		if score >= 3 {
			spikes = append(spikes, LogSpike{
				Start:  start,
				Errors: buckets[start].errors,
				Total:  buckets[start].total,
				Score:  score,
			})
		}
	}
	return spikes
}

func zScore(v, mean, std float64) float64 {
	if std == 0 {
		return 0
	}
	return (v - mean) / std
}

func meanAbsoluteDeviation(values []float64, center float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += math.Abs(v - center)
	}
	return sum / float64(len(values))
}
