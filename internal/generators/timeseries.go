// Package generators manufactures synthetic metric series, traces, logs and
// alert histories. Every generator is a pure function of its configuration and
// the random.Kernel it is handed, so a fixed seed reproduces a run exactly.
package generators

import (
	"math"
	"time"

	"github.com/miradorstack/mirador-synth/internal/models"
	"github.com/miradorstack/mirador-synth/internal/random"
	"github.com/miradorstack/mirador-synth/internal/utils"
)

// SeriesConfig parameterises one metric series:
//
//	value = base + amplitude*sin(2πt/period) + N(0, base*noise) + trend*t/min + spike
//
// clamped to [Min, Max].
type SeriesConfig struct {
	MetricName         string        `yaml:"metricName"`
	ServiceID          string        `yaml:"serviceId"`
	Unit               string        `yaml:"unit"`
	BaseValue          float64       `yaml:"baseValue"`
	Amplitude          float64       `yaml:"amplitude"`
	PeriodMinutes      float64       `yaml:"periodMinutes"`
	NoiseLevel         float64       `yaml:"noiseLevel"`
	TrendPerMinute     float64       `yaml:"trendPerMinute"`
	AnomalyProbability float64       `yaml:"anomalyProbability"`
	AnomalyMagnitude   float64       `yaml:"anomalyMagnitude"`
	Min                float64       `yaml:"min"`
	Max                float64       `yaml:"max"`
	Interval           time.Duration `yaml:"interval"`
	Duration           time.Duration `yaml:"duration"`
}

// Validate rejects configurations that would loop forever or produce NaN.
func (c SeriesConfig) Validate() error {
	const op = "generators.SeriesConfig"
	if c.Interval <= 0 {
		return utils.InvalidConfig(op, "interval must be positive, got %s", c.Interval)
	}
	if c.Duration < 0 {
		return utils.InvalidConfig(op, "duration must not be negative, got %s", c.Duration)
	}
	if c.Min >= c.Max {
		return utils.InvalidConfig(op, "min %.3f must be below max %.3f", c.Min, c.Max)
	}
	if c.Amplitude != 0 && c.PeriodMinutes <= 0 {
		return utils.InvalidConfig(op, "period must be positive when amplitude is %.3f", c.Amplitude)
	}
	if c.NoiseLevel < 0 {
		return utils.InvalidConfig(op, "noise level must not be negative")
	}
	if c.AnomalyProbability < 0 || c.AnomalyProbability > 1 {
		return utils.InvalidConfig(op, "anomaly probability %.3f outside [0,1]", c.AnomalyProbability)
	}
	return nil
}

// GenerateSeries emits one point per interval from start through start+Duration.
func GenerateSeries(k *random.Kernel, start time.Time, cfg SeriesConfig) (models.TimeSeries, error) {
	if err := cfg.Validate(); err != nil {
		return models.TimeSeries{}, err
	}

	series := models.TimeSeries{
		MetricID:   models.MetricID(cfg.MetricName, cfg.ServiceID),
		MetricName: cfg.MetricName,
		ServiceID:  cfg.ServiceID,
		Unit:       cfg.Unit,
		Points:     make([]models.MetricPoint, 0, int(cfg.Duration/cfg.Interval)+1),
	}

	periodMs := cfg.PeriodMinutes * float64(time.Minute/time.Millisecond)
	sigma := math.Abs(cfg.BaseValue * cfg.NoiseLevel)

	for offset := time.Duration(0); offset <= cfg.Duration; offset += cfg.Interval {
		tMs := float64(offset / time.Millisecond)

		value := cfg.BaseValue
		if cfg.Amplitude != 0 {
			value += cfg.Amplitude * math.Sin(2*math.Pi*tMs/periodMs)
		}
		value += k.Gaussian(0, sigma)
		value += cfg.TrendPerMinute * (tMs / 60000)
		if k.Float64() < cfg.AnomalyProbability {
			value += cfg.BaseValue * cfg.AnomalyMagnitude * k.Float64()
		}

		series.Points = append(series.Points, models.MetricPoint{
			Timestamp: start.Add(offset),
			Value:     clamp(value, cfg.Min, cfg.Max),
		})
	}
	return series, nil
}

// MetricProfile is the service-independent shape of a catalog metric.
type MetricProfile struct {
	Name               string  `yaml:"name"`
	Unit               string  `yaml:"unit"`
	BaseValue          float64 `yaml:"baseValue"`
	Amplitude          float64 `yaml:"amplitude"`
	PeriodMinutes      float64 `yaml:"periodMinutes"`
	NoiseLevel         float64 `yaml:"noiseLevel"`
	TrendPerMinute     float64 `yaml:"trendPerMinute"`
	AnomalyProbability float64 `yaml:"anomalyProbability"`
	AnomalyMagnitude   float64 `yaml:"anomalyMagnitude"`
	Min                float64 `yaml:"min"`
	Max                float64 `yaml:"max"`
}

// MetricsConfig fans profiles out across services.
type MetricsConfig struct {
	Services []string        `yaml:"services"`
	Profiles []MetricProfile `yaml:"profiles"`
	Interval time.Duration   `yaml:"interval"`
	// BaseJitter varies each service's base value by up to ±BaseJitter (fraction).
	BaseJitter float64 `yaml:"baseJitter"`
}

// DefaultMetricProfiles is the built-in catalog used when no profiles are configured.
func DefaultMetricProfiles() []MetricProfile {
	return []MetricProfile{
		{Name: "cpu_usage", Unit: "percent", BaseValue: 45, Amplitude: 15, PeriodMinutes: 1440, NoiseLevel: 0.08, AnomalyProbability: 0.01, AnomalyMagnitude: 0.8, Min: 0, Max: 100},
		{Name: "memory_usage", Unit: "percent", BaseValue: 60, Amplitude: 5, PeriodMinutes: 720, NoiseLevel: 0.03, TrendPerMinute: 0.0005, AnomalyProbability: 0.005, AnomalyMagnitude: 0.3, Min: 0, Max: 100},
		{Name: "request_rate", Unit: "req/s", BaseValue: 250, Amplitude: 120, PeriodMinutes: 1440, NoiseLevel: 0.1, AnomalyProbability: 0.01, AnomalyMagnitude: 1.5, Min: 0, Max: 5000},
		{Name: "error_rate", Unit: "percent", BaseValue: 0.8, Amplitude: 0.3, PeriodMinutes: 1440, NoiseLevel: 0.25, AnomalyProbability: 0.02, AnomalyMagnitude: 6, Min: 0, Max: 100},
		{Name: "latency_p99", Unit: "ms", BaseValue: 180, Amplitude: 40, PeriodMinutes: 1440, NoiseLevel: 0.12, AnomalyProbability: 0.015, AnomalyMagnitude: 2.5, Min: 1, Max: 10000},
	}
}

// Validate checks the fan-out configuration; per-series checks run in GenerateSeries.
func (c MetricsConfig) Validate() error {
	const op = "generators.MetricsConfig"
	if len(c.Services) == 0 {
		return utils.InvalidConfig(op, "at least one service is required")
	}
	if c.Interval <= 0 {
		return utils.InvalidConfig(op, "interval must be positive, got %s", c.Interval)
	}
	if c.BaseJitter < 0 || c.BaseJitter >= 1 {
		return utils.InvalidConfig(op, "base jitter %.3f outside [0,1)", c.BaseJitter)
	}
	for _, p := range c.profiles() {
		cfg := p.series("probe", c.Interval, 0)
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// GenerateMetrics produces one series per (service, profile) pair covering window.
func GenerateMetrics(k *random.Kernel, window models.TimeRange, cfg MetricsConfig) ([]models.TimeSeries, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := window.Validate(); err != nil {
		return nil, utils.InvalidConfig("generators.GenerateMetrics", "%v", err)
	}

	profiles := cfg.profiles()
	out := make([]models.TimeSeries, 0, len(cfg.Services)*len(profiles))
	for _, service := range cfg.Services {
		for _, profile := range profiles {
			seriesCfg := profile.series(service, cfg.Interval, window.Duration())
			if cfg.BaseJitter > 0 {
				seriesCfg.BaseValue *= 1 + k.UniformFloat(-cfg.BaseJitter, cfg.BaseJitter)
			}
			series, err := GenerateSeries(k, window.Start, seriesCfg)
			if err != nil {
				return nil, err
			}
			out = append(out, series)
		}
	}
	return out, nil
}

func (c MetricsConfig) profiles() []MetricProfile {
	if len(c.Profiles) == 0 {
		return DefaultMetricProfiles()
	}
	return c.Profiles
}

func (p MetricProfile) series(service string, interval, duration time.Duration) SeriesConfig {
	return SeriesConfig{
		MetricName:         p.Name,
		ServiceID:          service,
		Unit:               p.Unit,
		BaseValue:          p.BaseValue,
		Amplitude:          p.Amplitude,
		PeriodMinutes:      p.PeriodMinutes,
		NoiseLevel:         p.NoiseLevel,
		TrendPerMinute:     p.TrendPerMinute,
		AnomalyProbability: p.AnomalyProbability,
		AnomalyMagnitude:   p.AnomalyMagnitude,
		Min:                p.Min,
		Max:                p.Max,
		Interval:           interval,
		Duration:           duration,
	}
}

func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
