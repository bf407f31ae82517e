package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/miradorstack/mirador-synth/internal/cache"
	"github.com/miradorstack/mirador-synth/internal/models"
)

// Snapshot is the persisted form of the store contents. Range, Seed and
// GeneratedAt describe the generation run the collections came from.
type Snapshot struct {
	Range       models.TimeRange `json:"range"`
	Seed        int64            `json:"seed"`
	GeneratedAt time.Time        `json:"generatedAt"`

	Metrics  []models.TimeSeries     `json:"metrics"`
	Traces   []models.Trace          `json:"traces"`
	Logs     []models.LogEntry       `json:"logs"`
	Rules    []models.AlertRule      `json:"rules"`
	Events   []models.AlertEvent     `json:"events"`
	Patterns []models.FailurePattern `json:"patterns,omitempty"`
}

// Snapshot copies the current contents.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Range:       s.window,
		Seed:        s.seed,
		GeneratedAt: s.generatedAt,
		Metrics:     append([]models.TimeSeries(nil), s.metrics...),
		Traces:      append([]models.Trace(nil), s.traces...),
		Logs:        append([]models.LogEntry(nil), s.logs...),
		Rules:       append([]models.AlertRule(nil), s.rules...),
		Events:      append([]models.AlertEvent(nil), s.events...),
		Patterns:    append([]models.FailurePattern(nil), s.patterns...),
	}
}

// Restore replaces the contents with snap.
func (s *Store) Restore(snap Snapshot) {
	s.Publish(snap)
}

// Save writes a snapshot under key in a {value, savedAt, ttl} envelope.
func (s *Store) Save(ctx context.Context, p cache.Provider, key string, ttl time.Duration) error {
	if err := cache.SaveJSON(ctx, p, key, s.Snapshot(), ttl, time.Now()); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Load restores the snapshot under key. It reports false when nothing usable
// is stored.
func (s *Store) Load(ctx context.Context, p cache.Provider, key string) (bool, error) {
	var snap Snapshot
	env, err := cache.LoadJSON(ctx, p, key, &snap, time.Now())
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return false, nil
		}
		return false, fmt.Errorf("load snapshot: %w", err)
	}
	s.Restore(snap)
	s.logger.Info("snapshot restored",
		slog.String("key", key),
		slog.Time("saved_at", time.UnixMilli(env.SavedAt).UTC()),
		slog.Int("logs", len(snap.Logs)),
	)
	return true, nil
}
