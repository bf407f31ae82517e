package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/miradorstack/mirador-synth/internal/cache"
	"github.com/miradorstack/mirador-synth/internal/engine"
	"github.com/miradorstack/mirador-synth/internal/metrics"
	"github.com/miradorstack/mirador-synth/internal/models"
	"github.com/miradorstack/mirador-synth/internal/patterns"
	"github.com/miradorstack/mirador-synth/internal/store"
	"github.com/miradorstack/mirador-synth/internal/utils"
)

// ErrNoDataset is returned by Report before the first successful refresh.
var ErrNoDataset = errors.New("no dataset published yet")

const snapshotLockTTL = 30 * time.Second

// StatusReporter receives serving-state changes, typically the gRPC health server.
type StatusReporter interface {
	SetServing(serving bool)
}

// Options tunes what each refresh generates and where snapshots go.
type Options struct {
	// Window is the length of the range ending at refresh time.
	Window time.Duration
	// Seed fixes the kernel seed; zero draws a fresh one per run.
	Seed        int64
	SnapshotKey string
	SnapshotTTL time.Duration
}

// SimulationService generates datasets, publishes them to the store and
// tracks run health.
type SimulationService struct {
	logger    *slog.Logger
	engine    *engine.Engine
	store     *store.Store
	miner     *patterns.Miner
	cache     cache.Provider
	opts      Options
	latencies *utils.LatencyTracker
	status    StatusReporter
	now       func() time.Time

	mu      sync.RWMutex
	last    *engine.Dataset
	lastErr error
}

// NewSimulationService constructs the service facade. provider may be nil
// to disable snapshots.
func NewSimulationService(logger *slog.Logger, eng *engine.Engine, st *store.Store, provider cache.Provider, opts Options) *SimulationService {
	if logger == nil {
		logger = slog.Default()
	}
	if provider == nil {
		provider = cache.NoopProvider{}
	}
	if opts.Window <= 0 {
		opts.Window = 24 * time.Hour
	}
	return &SimulationService{
		logger:    logger,
		engine:    eng,
		store:     st,
		miner:     patterns.NewMiner(logger, st),
		cache:     provider,
		opts:      opts,
		latencies: utils.NewLatencyTracker(1024),
		now:       time.Now,
	}
}

// SetStatusReporter attaches r and reports the current state to it.
func (s *SimulationService) SetStatusReporter(r StatusReporter) {
	s.mu.Lock()
	s.status = r
	ready := s.last != nil
	s.mu.Unlock()
	if r != nil {
		r.SetServing(ready)
	}
}

// Refresh generates a dataset for the window ending now and publishes it.
func (s *SimulationService) Refresh(ctx context.Context) error {
	window := models.LastWindow(s.now().UTC().Truncate(time.Minute), s.opts.Window)
	_, err := s.Generate(ctx, models.GenerationRequest{TimeRange: window, Seed: s.opts.Seed})
	return err
}

// Generate runs one generation for req and publishes the result. A failed
// run leaves the previously published dataset in place.
func (s *SimulationService) Generate(ctx context.Context, req models.GenerationRequest) (engine.Dataset, error) {
	if s.engine == nil {
		return engine.Dataset{}, fmt.Errorf("engine not configured")
	}

	start := time.Now()
	ds, err := s.engine.Generate(ctx, req)
	duration := time.Since(start)
	if err != nil {
		metrics.ObserveGeneration(duration, metrics.OutcomeError)
		s.setResult(nil, err)
		s.logger.Error("dataset generation failed", slog.Any("error", err))
		return engine.Dataset{}, fmt.Errorf("generate dataset: %w", err)
	}
	s.latencies.Observe(duration)
	metrics.ObserveGeneration(duration, metrics.OutcomeSuccess)
	if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
		snap := s.latencies.Snapshot()
		s.logger.Info("generation latency",
			slog.Duration("p50", snap.P50),
			slog.Duration("p95", snap.P95),
			slog.Duration("max", snap.Max),
			slog.Int("samples", snap.Count),
		)
	}

	s.publish(ctx, ds)
	return ds, nil
}

// publish swaps the store contents and the last dataset under mu, so Report
// never pairs one run's dataset with another run's events.
func (s *SimulationService) publish(ctx context.Context, ds engine.Dataset) {
	counts := ds.Counts()
	s.mu.Lock()
	if s.store != nil {
		s.store.Publish(store.Snapshot{
			Range:       ds.Range,
			Seed:        ds.Seed,
			GeneratedAt: ds.GeneratedAt,
			Metrics:     ds.Metrics,
			Traces:      ds.Traces,
			Logs:        ds.Logs,
			Rules:       ds.Rules,
			Events:      ds.Events,
		})
	}
	s.last = &ds
	s.lastErr = nil
	reporter := s.status
	s.mu.Unlock()
	if reporter != nil {
		reporter.SetServing(true)
	}

	datasetID := "dataset-" + strconv.FormatInt(ds.Seed, 10)
	signals := patterns.Collect(ds.Metrics, ds.Traces, ds.Logs, ds.Events)
	if _, err := s.miner.Mine(ctx, datasetID, signals); err != nil {
		s.logger.Warn("pattern mining failed", slog.Any("error", err))
	}

	metrics.AddEntities("points", counts.Points)
	metrics.AddEntities("spans", counts.Spans)
	metrics.AddEntities("logs", counts.Logs)
	metrics.AddEntities("events", counts.Events)

	if s.store != nil {
		metrics.SetDatasetVersion(s.store.Version())
		if s.opts.SnapshotKey != "" {
			s.saveSnapshot(ctx)
		}
	}

	s.logger.Info("dataset published",
		slog.Int64("seed", ds.Seed),
		slog.Int("series", counts.Series),
		slog.Int("traces", counts.Traces),
		slog.Int("logs", counts.Logs),
		slog.Int("events", counts.Events),
	)
}

// saveSnapshot writes the store under the snapshot key while holding its
// lock, so concurrent replicas never interleave writes.
func (s *SimulationService) saveSnapshot(ctx context.Context) {
	key := s.opts.SnapshotKey
	lock, ok, err := cache.TryLock(ctx, s.cache, key+":lock", snapshotLockTTL)
	if err != nil {
		s.logger.Warn("snapshot lock failed", slog.String("key", key), slog.Any("error", err))
		return
	}
	if !ok {
		s.logger.Debug("snapshot write held elsewhere", slog.String("key", key))
		return
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			s.logger.Warn("snapshot unlock failed", slog.Any("error", err))
		}
	}()

	if err := s.store.Save(ctx, s.cache, key, s.opts.SnapshotTTL); err != nil {
		s.logger.Warn("snapshot save failed", slog.String("key", key), slog.Any("error", err))
	}
}

func (s *SimulationService) setResult(ds *engine.Dataset, err error) {
	s.mu.Lock()
	if ds != nil {
		s.last = ds
	}
	s.lastErr = err
	reporter := s.status
	ready := s.last != nil
	s.mu.Unlock()
	if reporter != nil {
		reporter.SetServing(ready)
	}
}

// Restore loads the configured snapshot into the store and adopts it as the
// last dataset, so the service reports serving before its first refresh. It
// reports false when snapshots are disabled or nothing usable is cached.
func (s *SimulationService) Restore(ctx context.Context) (bool, error) {
	if s.store == nil || s.opts.SnapshotKey == "" {
		return false, nil
	}
	ok, err := s.store.Load(ctx, s.cache, s.opts.SnapshotKey)
	if err != nil || !ok {
		return false, err
	}
	snap := s.store.Snapshot()
	ds := engine.Dataset{
		Range:       snap.Range,
		Seed:        snap.Seed,
		GeneratedAt: snap.GeneratedAt,
		Metrics:     snap.Metrics,
		Traces:      snap.Traces,
		Logs:        snap.Logs,
		Rules:       snap.Rules,
		Events:      snap.Events,
	}
	s.setResult(&ds, nil)
	metrics.SetDatasetVersion(s.store.Version())
	return true, nil
}

// Dataset returns the last published dataset.
func (s *SimulationService) Dataset() (engine.Dataset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return engine.Dataset{}, false
	}
	return *s.last, true
}

// Report summarises the last published dataset, with alert events as
// currently held by the store so acknowledgements and resolutions show.
func (s *SimulationService) Report() (engine.Report, error) {
	s.mu.RLock()
	if s.last == nil {
		s.mu.RUnlock()
		return engine.Report{}, ErrNoDataset
	}
	ds := *s.last
	if s.store != nil {
		ds.Events = s.store.Events(store.EventFilter{})
	}
	s.mu.RUnlock()
	return engine.Summarize(ds), nil
}

// Acknowledge marks an alert event as acknowledged by user at the current time.
func (s *SimulationService) Acknowledge(id, user string) (models.AlertEvent, error) {
	if s.store == nil {
		return models.AlertEvent{}, fmt.Errorf("store not configured")
	}
	return s.store.Acknowledge(id, user, s.now().UTC())
}

// Resolve closes an active alert event at the current time.
func (s *SimulationService) Resolve(id string) (models.AlertEvent, error) {
	if s.store == nil {
		return models.AlertEvent{}, fmt.Errorf("store not configured")
	}
	return s.store.Resolve(id, s.now().UTC())
}

// Healthy reports whether a dataset has been published and the last run succeeded.
func (s *SimulationService) Healthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last != nil && s.lastErr == nil
}

// LastError returns the error of the most recent run, if it failed.
func (s *SimulationService) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// LatencyP95 returns the current p95 generation latency.
func (s *SimulationService) LatencyP95() time.Duration {
	if s.latencies == nil {
		return 0
	}
	return s.latencies.Percentile(95)
}
