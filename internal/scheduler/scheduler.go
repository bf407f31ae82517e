// Package scheduler drives live regeneration on a cron schedule. At most one
// refresh runs at a time; overlapping ticks and manual requests are skipped.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrRefreshInFlight is returned by RefreshNow while another refresh runs.
var ErrRefreshInFlight = errors.New("refresh already in flight")

// RefreshFunc regenerates data. It should return promptly once ctx is done.
type RefreshFunc func(ctx context.Context) error

// Option customises a Scheduler.
type Option func(*Scheduler)

// WithOnSkip registers a callback invoked whenever a refresh is skipped.
func WithOnSkip(fn func()) Option {
	return func(s *Scheduler) { s.onSkip = fn }
}

// WithTimeout bounds each refresh run.
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.timeout = d }
}

// Scheduler runs a RefreshFunc on a cron spec.
type Scheduler struct {
	cron    *cron.Cron
	spec    string
	refresh RefreshFunc
	logger  *slog.Logger
	onSkip  func()
	timeout time.Duration

	inFlight sync.Mutex
	runs     atomic.Int64
	skipped  atomic.Int64

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// New validates spec (standard five-field cron or a descriptor such as
// "@every 30s") and builds a stopped scheduler.
func New(spec string, refresh RefreshFunc, logger *slog.Logger, opts ...Option) (*Scheduler, error) {
	if refresh == nil {
		return nil, errors.New("refresh func is required")
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	cl := cronLogger{logger: logger}
	s := &Scheduler{
		spec:    spec,
		refresh: refresh,
		logger:  logger,
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			// tick guards overlap with inFlight; cron only recovers panics.
			cron.WithChain(cron.Recover(cl)),
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start schedules the refresh job. Runs stop once ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return errors.New("scheduler already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	if _, err := s.cron.AddFunc(s.spec, s.tick); err != nil {
		s.cancel()
		s.cancel = nil
		return fmt.Errorf("schedule refresh: %w", err)
	}
	s.cron.Start()
	s.logger.Info("refresh scheduler started", slog.String("schedule", s.spec))
	return nil
}

// Stop cancels any running refresh and waits for it to return or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RefreshNow runs a refresh immediately unless one is already in flight.
func (s *Scheduler) RefreshNow(ctx context.Context) error {
	if !s.inFlight.TryLock() {
		s.skip("manual")
		return ErrRefreshInFlight
	}
	defer s.inFlight.Unlock()
	return s.run(ctx)
}

// Runs reports completed refresh attempts.
func (s *Scheduler) Runs() int64 { return s.runs.Load() }

// Skipped reports refreshes dropped because another was in flight.
func (s *Scheduler) Skipped() int64 { return s.skipped.Load() }

func (s *Scheduler) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}
	if !s.inFlight.TryLock() {
		s.skip("schedule")
		return
	}
	defer s.inFlight.Unlock()
	if err := s.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("scheduled refresh failed", slog.Any("error", err))
	}
}

// run must be called with inFlight held.
func (s *Scheduler) run(ctx context.Context) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	defer s.runs.Add(1)
	return s.refresh(ctx)
}

func (s *Scheduler) skip(source string) {
	s.skipped.Add(1)
	s.logger.Debug("refresh skipped, previous run still in flight", slog.String("source", source))
	if s.onSkip != nil {
		s.onSkip()
	}
}

// cronLogger routes cron's internal logging through slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append([]any{slog.Any("error", err)}, keysAndValues...)...)
}
