package store

import (
	"fmt"
	"sort"
	"time"

	"github.com/miradorstack/mirador-synth/internal/models"
)

// Series returns a metric series by ID.
func (s *Store) Series(metricID string) (models.TimeSeries, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.metricIndex[metricID]
	if !ok {
		return models.TimeSeries{}, fmt.Errorf("series %s: %w", metricID, ErrNotFound)
	}
	return s.metrics[i], nil
}

// Metrics returns every series for service, or all series when service is empty.
func (s *Store) Metrics(service string) []models.TimeSeries {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if service == "" {
		return append([]models.TimeSeries(nil), s.metrics...)
	}
	return pick(s.metrics, s.metricService[service])
}

// Trace returns a trace by ID.
func (s *Store) Trace(traceID string) (models.Trace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.traceIndex[traceID]
	if !ok {
		return models.Trace{}, fmt.Errorf("trace %s: %w", traceID, ErrNotFound)
	}
	return s.traces[i], nil
}

// Traces returns traces touching service (all when empty) whose root starts in r (any when nil).
func (s *Store) Traces(service string, r *models.TimeRange) []models.Trace {
	s.mu.RLock()
	defer s.mu.RUnlock()
	candidates := s.traces
	if service != "" {
		candidates = pick(s.traces, s.traceService[service])
	}
	out := make([]models.Trace, 0, len(candidates))
	for _, t := range candidates {
		if r != nil && !r.Contains(t.StartTime()) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Logs returns entries in [r.Start, r.End] for service (all services when empty).
func (s *Store) Logs(service string, r models.TimeRange) []models.LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lo := sort.Search(len(s.logs), func(i int) bool { return !s.logs[i].Timestamp.Before(r.Start) })
	hi := sort.Search(len(s.logs), func(i int) bool { return s.logs[i].Timestamp.After(r.End) })
	if lo >= hi {
		return nil
	}
	if service == "" {
		return append([]models.LogEntry(nil), s.logs[lo:hi]...)
	}
	var out []models.LogEntry
	for _, i := range s.logService[service] {
		if i >= lo && i < hi {
			out = append(out, s.logs[i])
		}
	}
	return out
}

// AllLogs returns the full stream in timestamp order.
func (s *Store) AllLogs() []models.LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.LogEntry(nil), s.logs...)
}

// Rules returns the alert rules.
func (s *Store) Rules() []models.AlertRule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.AlertRule(nil), s.rules...)
}

// Rule returns a rule by ID.
func (s *Store) Rule(id string) (models.AlertRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.ruleIndex[id]
	if !ok {
		return models.AlertRule{}, fmt.Errorf("rule %s: %w", id, ErrNotFound)
	}
	return s.rules[i], nil
}

// EventFilter narrows Events. Zero fields match everything.
type EventFilter struct {
	Service    string
	RuleID     string
	ActiveOnly bool
}

// Events returns copies of the matching alert events in trigger order.
func (s *Store) Events(f EventFilter) []models.AlertEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.AlertEvent, 0, len(s.events))
	for _, e := range s.events {
		if f.Service != "" && e.Service != f.Service {
			continue
		}
		if f.RuleID != "" && e.RuleID != f.RuleID {
			continue
		}
		if f.ActiveOnly && !e.Active() {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Event returns an alert event by ID.
func (s *Store) Event(id string) (models.AlertEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.eventIndex[id]
	if !ok {
		return models.AlertEvent{}, fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	return s.events[i], nil
}

// Patterns returns the last mined failure patterns.
func (s *Store) Patterns() []models.FailurePattern {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.FailurePattern(nil), s.patterns...)
}

// Services lists every service seen in metrics, traces or logs, sorted.
func (s *Store) Services() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := map[string]struct{}{}
	for svc := range s.metricService {
		set[svc] = struct{}{}
	}
	for svc := range s.traceService {
		set[svc] = struct{}{}
	}
	for svc := range s.logService {
		set[svc] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for svc := range set {
		out = append(out, svc)
	}
	sort.Strings(out)
	return out
}

// Acknowledge marks an active, unacknowledged event as acknowledged by user at at.
func (s *Store) Acknowledge(id, user string, at time.Time) (models.AlertEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.eventIndex[id]
	if !ok {
		return models.AlertEvent{}, fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	e := &s.events[i]
	switch {
	case e.Acknowledged:
		return *e, fmt.Errorf("event %s already acknowledged: %w", id, ErrInvalidTransition)
	case !e.Active():
		return *e, fmt.Errorf("event %s already resolved: %w", id, ErrInvalidTransition)
	case at.Before(e.TriggeredAt):
		return *e, fmt.Errorf("event %s acknowledged before trigger: %w", id, ErrInvalidTransition)
	}
	e.Acknowledged = true
	e.AcknowledgedBy = user
	e.AcknowledgedAt = &at
	s.touch()
	return *e, nil
}

// Resolve closes an active event at at, which must be after its trigger.
func (s *Store) Resolve(id string, at time.Time) (models.AlertEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.eventIndex[id]
	if !ok {
		return models.AlertEvent{}, fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	e := &s.events[i]
	if !e.Active() {
		return *e, fmt.Errorf("event %s already resolved: %w", id, ErrInvalidTransition)
	}
	if !at.After(e.TriggeredAt) {
		return *e, fmt.Errorf("event %s resolved before trigger: %w", id, ErrInvalidTransition)
	}
	e.ResolvedAt = &at
	s.touch()
	return *e, nil
}

func pick[T any](items []T, idx []int) []T {
	out := make([]T, 0, len(idx))
	for _, i := range idx {
		out = append(out, items[i])
	}
	return out
}
