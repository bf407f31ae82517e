package models

import (
	"fmt"
	"time"
)

// TimeRange bounds a generation or query window.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration is End minus Start.
func (r TimeRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Contains reports whether t lies in [Start, End].
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// Validate rejects empty or inverted ranges.
func (r TimeRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("time range start and end are required")
	}
	if !r.End.After(r.Start) {
		return fmt.Errorf("time range end %s must be after start %s", r.End.Format(time.RFC3339), r.Start.Format(time.RFC3339))
	}
	return nil
}

// LastWindow returns the range of length window ending at end.
func LastWindow(end time.Time, window time.Duration) TimeRange {
	return TimeRange{Start: end.Add(-window), End: end}
}

// GenerationRequest asks the engine for one dataset. A zero Seed draws from the clock.
type GenerationRequest struct {
	TimeRange TimeRange
	Seed      int64
}
