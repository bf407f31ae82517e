package generators

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/miradorstack/mirador-synth/internal/models"
	"github.com/miradorstack/mirador-synth/internal/random"
	"github.com/miradorstack/mirador-synth/internal/utils"
)

// ErrInvalidConfig is the sentinel every generator config error wraps.
var ErrInvalidConfig = utils.ErrInvalidConfig

const (
	businessDensity = 1.5
	nightDensity    = 0.3
	weekendDensity  = 0.6
	nightEndHour    = 7

	clusterStartProbability = 0.01
	clusterMinMinutes       = 5
	clusterMaxMinutes       = 15
)

// HourWindow is a half-open [Start, End) range of UTC hours.
type HourWindow struct {
	Start int `yaml:"start"`
	End   int `yaml:"end"`
}

func (w HourWindow) contains(hour int) bool {
	return hour >= w.Start && hour < w.End
}

// DefaultBusinessHours are the morning and afternoon peaks.
func DefaultBusinessHours() []HourWindow {
	return []HourWindow{{Start: 9, End: 12}, {Start: 14, End: 18}}
}

// LogConfig drives the Poisson arrival walk.
type LogConfig struct {
	Services               []string     `yaml:"services"`
	BaseFrequencyPerMinute float64      `yaml:"baseFrequencyPerMinute"`
	ErrorRateNormal        float64      `yaml:"errorRateNormal"`
	ErrorRatePeak          float64      `yaml:"errorRatePeak"`
	TraceIDProbability     float64      `yaml:"traceIdProbability"`
	BusinessHours          []HourWindow `yaml:"businessHours"`
	// TraceIDs, when set, is the pool correlated entries draw from so logs
	// line up with generated traces. Otherwise fresh IDs are minted.
	TraceIDs []string `yaml:"-"`
}

// DefaultLogConfig returns the stock log stream shape.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Services:               append([]string(nil), DefaultServices...),
		BaseFrequencyPerMinute: 10,
		ErrorRateNormal:        0.005,
		ErrorRatePeak:          0.1,
		TraceIDProbability:     0.2,
		BusinessHours:          DefaultBusinessHours(),
	}
}

// Validate rejects rates and windows the walk cannot use.
func (c LogConfig) Validate() error {
	const op = "generators.LogConfig"
	if len(c.Services) == 0 {
		return utils.InvalidConfig(op, "at least one service is required")
	}
	if c.BaseFrequencyPerMinute <= 0 {
		return utils.InvalidConfig(op, "base frequency must be positive, got %.3f", c.BaseFrequencyPerMinute)
	}
	for name, rate := range map[string]float64{
		"errorRateNormal":    c.ErrorRateNormal,
		"errorRatePeak":      c.ErrorRatePeak,
		"traceIdProbability": c.TraceIDProbability,
	} {
		if rate < 0 || rate > 1 {
			return utils.InvalidConfig(op, "%s %.3f outside [0,1]", name, rate)
		}
	}
	for _, w := range c.BusinessHours {
		if w.Start < 0 || w.End > 24 || w.Start >= w.End {
			return utils.InvalidConfig(op, "business hours [%d,%d) must be within [0,24) and non-empty", w.Start, w.End)
		}
	}
	return nil
}

func (c LogConfig) businessHours() []HourWindow {
	if c.BusinessHours == nil {
		return DefaultBusinessHours()
	}
	return c.BusinessHours
}

// DensityAt returns the traffic multiplier for t. Business hours win over
// night and weekend dampening.
func (c LogConfig) DensityAt(t time.Time) float64 {
	hour := t.UTC().Hour()
	for _, w := range c.businessHours() {
		if w.contains(hour) {
			return businessDensity
		}
	}
	if hour < nightEndHour {
		return nightDensity
	}
	if utils.IsWeekend(t) {
		return weekendDensity
	}
	return 1.0
}

// errorCluster tracks an elevated-error burst.
type errorCluster struct {
	until   time.Time
	service string
}

func (c errorCluster) active(t time.Time) bool {
	return t.Before(c.until)
}

// GenerateLogs walks window one minute at a time. Each minute receives
// poisson(base*density) entries spread across it, so the stream is monotonic
// before the final sort.
func GenerateLogs(k *random.Kernel, window models.TimeRange, cfg LogConfig) ([]models.LogEntry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := window.Validate(); err != nil {
		return nil, utils.InvalidConfig("generators.GenerateLogs", "%v", err)
	}

	expected := int(window.Duration().Minutes() * cfg.BaseFrequencyPerMinute)
	logs := make([]models.LogEntry, 0, expected)
	var cluster errorCluster

	for t := window.Start; t.Before(window.End); t = t.Add(time.Minute) {
		if !cluster.active(t) && k.Float64() < clusterStartProbability {
			cluster = errorCluster{
				until:   t.Add(time.Duration(k.UniformInt(clusterMinMinutes, clusterMaxMinutes)) * time.Minute),
				service: random.Pick(k, cfg.Services),
			}
		}
		inCluster := cluster.active(t)
		rate := cfg.ErrorRateNormal
		if inCluster {
			rate = cfg.ErrorRatePeak
		}

		step := time.Minute
		if remaining := window.End.Sub(t); remaining < step {
			step = remaining
		}
		n := k.Poisson(cfg.BaseFrequencyPerMinute * cfg.DensityAt(t))
		offsets := make([]time.Duration, n)
		for i := range offsets {
			offsets[i] = time.Duration(k.UniformFloat(0, float64(step)))
		}
		sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })

		for _, off := range offsets {
			service := random.Pick(k, cfg.Services)
			if inCluster && k.Bool(0.5) {
				service = cluster.service
			}
			logs = append(logs, newLogEntry(k, cfg, t.Add(off), service, levelFor(k.Float64(), rate)))
		}
	}

	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].Timestamp.Before(logs[j].Timestamp)
	})
	return logs, nil
}

// levelFor maps a uniform draw onto the ordered cascade ERROR, WARN, INFO,
// DEBUG, FATAL for the given error rate.
func levelFor(u, rate float64) models.LogLevel {
	errorCut := 0.7 * rate
	warnCut := errorCut + 0.15*rate
	rest := 1 - warnCut
	infoCut := warnCut + 0.9*rest
	debugCut := infoCut + 0.099*rest
	switch {
	case u < errorCut:
		return models.LogLevelError
	case u < warnCut:
		return models.LogLevelWarn
	case u < infoCut:
		return models.LogLevelInfo
	case u < debugCut:
		return models.LogLevelDebug
	default:
		return models.LogLevelFatal
	}
}

func newLogEntry(k *random.Kernel, cfg LogConfig, ts time.Time, service string, level models.LogLevel) models.LogEntry {
	entry := models.LogEntry{
		ID:        newEntityID(k),
		Timestamp: ts,
		Service:   service,
		Level:     level,
		Context: map[string]models.Scalar{
			"requestId": models.StringValue(k.HexID(6)),
			"host":      models.StringValue(fmt.Sprintf("%s-%d", service, k.UniformInt(1, 4))),
		},
	}

	if k.Float64() < cfg.TraceIDProbability {
		if len(cfg.TraceIDs) > 0 {
			entry.TraceID = random.Pick(k, cfg.TraceIDs)
		} else {
			entry.TraceID = newTraceID(k)
		}
	}

	tmpl := random.Pick(k, logTemplates[level])
	entry.Message = tmpl.render(k, entry.Context)
	return entry
}

type logTemplate struct {
	text   string
	fields []string
}

// render fills %s placeholders and records the drawn values as context.
func (t logTemplate) render(k *random.Kernel, ctx map[string]models.Scalar) string {
	args := make([]any, 0, len(t.fields))
	for _, field := range t.fields {
		switch field {
		case "durationMs":
			v := k.ExponentialInRange(2, 3000)
			ctx[field] = models.NumberValue(v)
			args = append(args, fmt.Sprintf("%.0f", v))
		case "userId":
			v := k.UniformInt(1000, 99999)
			ctx[field] = models.IntValue(v)
			args = append(args, fmt.Sprint(v))
		case "retry":
			v := k.UniformInt(1, 5)
			ctx["retrying"] = models.BoolValue(true)
			ctx["attempt"] = models.IntValue(v)
			args = append(args, fmt.Sprint(v))
		case "statusCode":
			v := random.Pick(k, []int{500, 502, 503, 504})
			ctx[field] = models.IntValue(v)
			args = append(args, fmt.Sprint(v))
		case "peer":
			v := random.Pick(k, DefaultServices)
			ctx[field] = models.StringValue(v)
			args = append(args, v)
		}
	}
	if len(args) == 0 {
		return t.text
	}
	return fmt.Sprintf(t.text, args...)
}

var logTemplates = map[models.LogLevel][]logTemplate{
	models.LogLevelDebug: {
		{text: "cache lookup for user %s", fields: []string{"userId"}},
		{text: "connection pool stats refreshed"},
		{text: "outgoing call to %s prepared", fields: []string{"peer"}},
	},
	models.LogLevelInfo: {
		{text: "request completed in %sms", fields: []string{"durationMs"}},
		{text: "user %s authenticated", fields: []string{"userId"}},
		{text: "health check passed"},
		{text: "call to %s succeeded", fields: []string{"peer"}},
	},
	models.LogLevelWarn: {
		{text: "slow response from %s: %sms", fields: []string{"peer", "durationMs"}},
		{text: "retrying request, attempt %s", fields: []string{"retry"}},
		{text: "connection pool nearly exhausted"},
	},
	models.LogLevelError: {
		{text: "upstream %s returned %s", fields: []string{"peer", "statusCode"}},
		{text: "database query failed after %sms", fields: []string{"durationMs"}},
		{text: "failed to process request for user %s", fields: []string{"userId"}},
	},
	models.LogLevelFatal: {
		{text: "out of memory, shutting down"},
		{text: "unrecoverable state in %s client", fields: []string{"peer"}},
	},
}

func newEntityID(k *random.Kernel) string {
	id, err := uuid.NewRandomFromReader(k)
	if err != nil {
		return k.HexID(16)
	}
	return id.String()
}

