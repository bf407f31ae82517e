// Package store holds the most recently published dataset, indexes it for
// queries, and applies alert lifecycle commands. Generators never see it.
package store

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/miradorstack/mirador-synth/internal/models"
)

var (
	// ErrNotFound is returned when an entity ID is unknown.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition is returned when an alert command does not fit the event's lifecycle.
	ErrInvalidTransition = errors.New("invalid alert transition")
)

// Store is safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	logger *slog.Logger

	metrics       []models.TimeSeries
	metricIndex   map[string]int
	metricService map[string][]int

	traces       []models.Trace
	traceIndex   map[string]int
	traceService map[string][]int

	logs       []models.LogEntry
	logService map[string][]int

	rules     []models.AlertRule
	ruleIndex map[string]int

	events     []models.AlertEvent
	eventIndex map[string]int

	patterns []models.FailurePattern

	window      models.TimeRange
	seed        int64
	generatedAt time.Time

	version   uint64
	updatedAt time.Time
}

// New returns an empty store.
func New(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		logger:        logger,
		metricIndex:   map[string]int{},
		metricService: map[string][]int{},
		traceIndex:    map[string]int{},
		traceService:  map[string][]int{},
		logService:    map[string][]int{},
		ruleIndex:     map[string]int{},
		eventIndex:    map[string]int{},
	}
}

// Publish replaces every collection and the dataset metadata from snap under
// a single write, so readers never see two datasets mixed.
func (s *Store) Publish(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setMetrics(snap.Metrics)
	s.setTraces(snap.Traces)
	s.setLogs(snap.Logs)
	s.setRules(snap.Rules)
	s.setEvents(snap.Events)
	s.patterns = snap.Patterns
	s.window = snap.Range
	s.seed = snap.Seed
	s.generatedAt = snap.GeneratedAt
	s.touch()
}

// SetMetrics replaces the metric series.
func (s *Store) SetMetrics(series []models.TimeSeries) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setMetrics(series)
	s.touch()
}

// SetTraces replaces the traces. A trace is indexed under every service it touches.
func (s *Store) SetTraces(traces []models.Trace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setTraces(traces)
	s.touch()
}

// SetLogs replaces the log stream. Entries are kept in timestamp order.
func (s *Store) SetLogs(logs []models.LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLogs(logs)
	s.touch()
}

// SetRules replaces the alert rules.
func (s *Store) SetRules(rules []models.AlertRule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setRules(rules)
	s.touch()
}

// SetEvents replaces the alert events. The store keeps its own copy because
// Acknowledge and Resolve update events in place.
func (s *Store) SetEvents(events []models.AlertEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setEvents(events)
	s.touch()
}

// The set helpers below must be called with mu held.

func (s *Store) setMetrics(series []models.TimeSeries) {
	s.metrics = series
	s.metricIndex = make(map[string]int, len(series))
	s.metricService = map[string][]int{}
	for i, ts := range series {
		s.metricIndex[ts.MetricID] = i
		s.metricService[ts.ServiceID] = append(s.metricService[ts.ServiceID], i)
	}
}

func (s *Store) setTraces(traces []models.Trace) {
	s.traces = traces
	s.traceIndex = make(map[string]int, len(traces))
	s.traceService = map[string][]int{}
	for i, t := range traces {
		s.traceIndex[t.TraceID] = i
		seen := map[string]bool{}
		for _, span := range t.Spans {
			if !seen[span.Service] {
				seen[span.Service] = true
				s.traceService[span.Service] = append(s.traceService[span.Service], i)
			}
		}
	}
}

func (s *Store) setLogs(logs []models.LogEntry) {
	if !sort.SliceIsSorted(logs, func(i, j int) bool { return logs[i].Timestamp.Before(logs[j].Timestamp) }) {
		logs = append([]models.LogEntry(nil), logs...)
		sort.SliceStable(logs, func(i, j int) bool { return logs[i].Timestamp.Before(logs[j].Timestamp) })
	}
	s.logs = logs
	s.logService = map[string][]int{}
	for i, entry := range logs {
		s.logService[entry.Service] = append(s.logService[entry.Service], i)
	}
}

func (s *Store) setRules(rules []models.AlertRule) {
	s.rules = rules
	s.ruleIndex = make(map[string]int, len(rules))
	for i, r := range rules {
		s.ruleIndex[r.ID] = i
	}
}

func (s *Store) setEvents(events []models.AlertEvent) {
	s.events = append([]models.AlertEvent(nil), events...)
	s.eventIndex = make(map[string]int, len(events))
	for i, e := range s.events {
		s.eventIndex[e.ID] = i
	}
}

// StorePatterns records mined failure patterns. It satisfies patterns.Store.
func (s *Store) StorePatterns(_ context.Context, datasetID string, patterns []models.FailurePattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patterns = patterns
	s.logger.Debug("patterns stored", slog.String("dataset", datasetID), slog.Int("patterns", len(patterns)))
	s.touch()
	return nil
}

// touch must be called with mu held.
func (s *Store) touch() {
	s.version++
	s.updatedAt = time.Now().UTC()
}

// Version increments on every write.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// UpdatedAt is the time of the last write.
func (s *Store) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}
