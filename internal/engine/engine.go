// Package engine turns a generation request into a complete synthetic
// dataset and summarises datasets into reports.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/miradorstack/mirador-synth/internal/generators"
	"github.com/miradorstack/mirador-synth/internal/models"
	"github.com/miradorstack/mirador-synth/internal/random"
	"github.com/miradorstack/mirador-synth/internal/utils"
)

// Config bundles the generator configurations for one dataset.
type Config struct {
	Metrics    generators.MetricsConfig
	Traces     generators.TraceConfig
	TraceCount int
	Logs       generators.LogConfig
	// CorrelateLogs draws log trace IDs from the generated traces.
	CorrelateLogs bool
	Alerts        generators.AlertConfig
	Rules         []models.AlertRule
}

// DefaultConfig returns a configuration that produces a day of data for the
// default service mesh.
func DefaultConfig() Config {
	return Config{
		Metrics: generators.MetricsConfig{
			Services:   append([]string(nil), generators.DefaultServices...),
			Profiles:   generators.DefaultMetricProfiles(),
			Interval:   time.Minute,
			BaseJitter: 0.1,
		},
		Traces:        generators.DefaultTraceConfig(),
		TraceCount:    100,
		Logs:          generators.DefaultLogConfig(),
		CorrelateLogs: true,
		Alerts:        generators.DefaultAlertConfig(),
		Rules:         generators.DefaultRules(),
	}
}

// Validate checks every generator configuration up front so no generator
// starts when another would reject its input.
func (c Config) Validate() error {
	if err := c.Metrics.Validate(); err != nil {
		return err
	}
	if err := c.Traces.Validate(); err != nil {
		return err
	}
	if c.TraceCount < 0 {
		return utils.InvalidConfig("engine.Config", "trace count must not be negative, got %d", c.TraceCount)
	}
	if err := c.Logs.Validate(); err != nil {
		return err
	}
	return c.Alerts.Validate()
}

// Dataset is the joined output of one generation run.
type Dataset struct {
	Range       models.TimeRange    `json:"range"`
	Seed        int64               `json:"seed"`
	GeneratedAt time.Time           `json:"generatedAt"`
	Metrics     []models.TimeSeries `json:"metrics"`
	Traces      []models.Trace      `json:"traces"`
	Logs        []models.LogEntry   `json:"logs"`
	Rules       []models.AlertRule  `json:"rules"`
	Events      []models.AlertEvent `json:"events"`
}

// Counts reports entity totals for a dataset.
type Counts struct {
	Series int `json:"series"`
	Points int `json:"points"`
	Traces int `json:"traces"`
	Spans  int `json:"spans"`
	Logs   int `json:"logs"`
	Events int `json:"events"`
}

// Counts tallies the dataset.
func (d Dataset) Counts() Counts {
	c := Counts{
		Series: len(d.Metrics),
		Traces: len(d.Traces),
		Logs:   len(d.Logs),
		Events: len(d.Events),
	}
	for _, s := range d.Metrics {
		c.Points += len(s.Points)
	}
	for _, t := range d.Traces {
		c.Spans += len(t.Spans)
	}
	return c
}

// Engine generates datasets from a fixed configuration.
type Engine struct {
	logger *slog.Logger
	cfg    Config
	now    func() time.Time
}

// New validates cfg and constructs an Engine.
func New(cfg Config, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{logger: logger, cfg: cfg, now: time.Now}, nil
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Generate runs the metric, trace/log and alert generators in parallel, each
// on its own kernel forked from the request seed, and joins their output.
// Logs follow traces in the same task so they can reuse trace IDs. A zero
// seed is replaced by a clock-derived one, reported in the dataset.
func (e *Engine) Generate(ctx context.Context, req models.GenerationRequest) (Dataset, error) {
	if err := req.TimeRange.Validate(); err != nil {
		return Dataset{}, utils.InvalidConfig("engine.Generate", "%v", err)
	}

	root := random.New(req.Seed)
	if req.Seed == 0 {
		root = random.NewUnseeded()
	}
	// Fork before spawning so each task's sequence is independent of scheduling.
	metricsK, tracesK, logsK, alertsK := root.Fork(), root.Fork(), root.Fork(), root.Fork()

	ds := Dataset{
		Range:       req.TimeRange,
		Seed:        root.Seed(),
		GeneratedAt: e.now().UTC(),
		Rules:       append([]models.AlertRule(nil), e.cfg.Rules...),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		series, err := generators.GenerateMetrics(metricsK, req.TimeRange, e.cfg.Metrics)
		if err != nil {
			return fmt.Errorf("generate metrics: %w", err)
		}
		ds.Metrics = series
		return nil
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		traces, err := generators.GenerateTraces(tracesK, req.TimeRange, e.cfg.TraceCount, e.cfg.Traces)
		if err != nil {
			return fmt.Errorf("generate traces: %w", err)
		}
		ds.Traces = traces

		if err := gctx.Err(); err != nil {
			return err
		}
		logCfg := e.cfg.Logs
		if e.cfg.CorrelateLogs && len(traces) > 0 {
			logCfg.TraceIDs = make([]string, len(traces))
			for i, t := range traces {
				logCfg.TraceIDs[i] = t.TraceID
			}
		}
		logs, err := generators.GenerateLogs(logsK, req.TimeRange, logCfg)
		if err != nil {
			return fmt.Errorf("generate logs: %w", err)
		}
		ds.Logs = logs
		return nil
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		events, err := generators.GenerateAlerts(alertsK, req.TimeRange, e.cfg.Rules, e.cfg.Alerts)
		if err != nil {
			return fmt.Errorf("generate alerts: %w", err)
		}
		ds.Events = events
		return nil
	})

	if err := g.Wait(); err != nil {
		return Dataset{}, err
	}

	counts := ds.Counts()
	e.logger.Debug("dataset generated",
		slog.Int64("seed", ds.Seed),
		slog.Int("series", counts.Series),
		slog.Int("points", counts.Points),
		slog.Int("traces", counts.Traces),
		slog.Int("logs", counts.Logs),
		slog.Int("events", counts.Events),
	)
	return ds, nil
}
