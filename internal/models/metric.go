package models

import (
	"fmt"
	"time"
)

// MetricPoint is one sample of a series. Min and Max are only set when the
// point stands for a downsampled bucket.
type MetricPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Min       *float64  `json:"min,omitempty"`
	Max       *float64  `json:"max,omitempty"`
}

// IsBucket reports whether the point carries bucket bounds.
func (p MetricPoint) IsBucket() bool {
	return p.Min != nil && p.Max != nil
}

// TimeSeries is an ordered run of points for one metric of one service.
type TimeSeries struct {
	MetricID   string        `json:"metricId"`
	MetricName string        `json:"metricName"`
	ServiceID  string        `json:"serviceId"`
	Unit       string        `json:"unit"`
	Points     []MetricPoint `json:"points"`
}

// MetricID derives the series identifier for a (metric, service) pair.
func MetricID(metricName, serviceID string) string {
	return fmt.Sprintf("metric-%s-%s", serviceID, metricName)
}

// Values returns the raw sample values.
func (s TimeSeries) Values() []float64 {
	values := make([]float64, len(s.Points))
	for i, p := range s.Points {
		values[i] = p.Value
	}
	return values
}
