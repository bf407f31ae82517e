package generators

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/miradorstack/mirador-synth/internal/models"
	"github.com/miradorstack/mirador-synth/internal/random"
	"github.com/miradorstack/mirador-synth/internal/utils"
)

const (
	defaultMaxDepth          = 10
	defaultMaxSpans          = 20
	defaultBranchProbability = 0.7
	rootDurationMinMs        = 10
	rootDurationMaxMs        = 50
)

// TraceConfig controls the shape of generated call trees.
type TraceConfig struct {
	Services []string `yaml:"services"`
	// Operations overrides the built-in operation catalog per service.
	Operations map[string][]string `yaml:"operations"`
	// MaxDepth bounds the number of spans on any root-to-leaf path.
	MaxDepth          int     `yaml:"maxDepth"`
	MaxSpans          int     `yaml:"maxSpans"`
	BranchProbability float64 `yaml:"branchProbability"`
	ErrorRate         float64 `yaml:"errorRate"`
	DurationMinMs     float64 `yaml:"durationMinMs"`
	DurationMaxMs     float64 `yaml:"durationMaxMs"`
}

// DefaultTraceConfig returns the stock trace shape.
func DefaultTraceConfig() TraceConfig {
	return TraceConfig{
		Services:          append([]string(nil), DefaultServices...),
		MaxDepth:          defaultMaxDepth,
		MaxSpans:          defaultMaxSpans,
		BranchProbability: defaultBranchProbability,
		ErrorRate:         0.05,
		DurationMinMs:     5,
		DurationMaxMs:     400,
	}
}

func (c TraceConfig) withDefaults() TraceConfig {
	if c.MaxDepth == 0 {
		c.MaxDepth = defaultMaxDepth
	}
	if c.MaxSpans == 0 {
		c.MaxSpans = defaultMaxSpans
	}
	return c
}

// Validate rejects configurations that cannot produce a well-formed tree.
func (c TraceConfig) Validate() error {
	const op = "generators.TraceConfig"
	c = c.withDefaults()
	if len(c.Services) < 2 {
		return utils.InvalidConfig(op, "at least two services are required to build downstream calls, got %d", len(c.Services))
	}
	if c.MaxDepth < 1 {
		return utils.InvalidConfig(op, "max depth must be at least 1, got %d", c.MaxDepth)
	}
	if c.MaxSpans < 1 {
		return utils.InvalidConfig(op, "max spans must be at least 1, got %d", c.MaxSpans)
	}
	if c.BranchProbability < 0 || c.BranchProbability > 1 {
		return utils.InvalidConfig(op, "branch probability %.3f outside [0,1]", c.BranchProbability)
	}
	if c.ErrorRate < 0 || c.ErrorRate > 1 {
		return utils.InvalidConfig(op, "error rate %.3f outside [0,1]", c.ErrorRate)
	}
	if c.DurationMinMs < 0 || c.DurationMaxMs < 0 {
		return utils.InvalidConfig(op, "duration bounds must not be negative")
	}
	if c.DurationMinMs >= c.DurationMaxMs {
		return utils.InvalidConfig(op, "duration min %.1fms must be below max %.1fms", c.DurationMinMs, c.DurationMaxMs)
	}
	return nil
}

// expansion is one pending node of the iterative expansion. remaining is the
// number of further levels allowed below the span and is copied, never shared.
type expansion struct {
	index     int
	remaining int
}

// GenerateTrace builds a single call tree whose root starts at start.
func GenerateTrace(k *random.Kernel, start time.Time, cfg TraceConfig) (models.Trace, error) {
	if err := cfg.Validate(); err != nil {
		return models.Trace{}, err
	}
	cfg = cfg.withDefaults()

	traceID := newTraceID(k)
	rootService := random.Pick(k, cfg.Services)
	root := newSpan(k, cfg, traceID, "", rootService, start, k.ExponentialInRange(rootDurationMinMs, rootDurationMaxMs), false)
	root.Tags["span.kind"] = "server"

	spans := []models.Span{root}
	visited := make(map[string]struct{}, cfg.MaxSpans)
	stack := []expansion{{index: 0, remaining: cfg.MaxDepth - 1}}

	for len(stack) > 0 {
		next := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		parent := spans[next.index]
		if next.remaining <= 0 {
			continue
		}
		if _, seen := visited[parent.SpanID]; seen {
			continue
		}
		visited[parent.SpanID] = struct{}{}

		branches := k.UniformInt(1, 3)
		for b := 0; b < branches && len(spans) < cfg.MaxSpans; b++ {
			service := downstreamService(k, cfg.Services, parent.Service)
			hasError := k.Float64() < cfg.ErrorRate
			offset := k.UniformFloat(0, math.Max(parent.DurationMs, 1)/2)
			childStart := parent.StartTime.Add(utils.Milliseconds(offset))
			child := newSpan(k, cfg, traceID, parent.SpanID, service, childStart, k.ExponentialInRange(cfg.DurationMinMs, cfg.DurationMaxMs), hasError)
			spans = append(spans, child)

			if k.Float64() < cfg.BranchProbability {
				stack = append(stack, expansion{index: len(spans) - 1, remaining: next.remaining - 1})
			}
		}
	}

	return assembleTrace(traceID, spans), nil
}

// GenerateTraces builds count traces with roots spread uniformly over window,
// returned in start order.
func GenerateTraces(k *random.Kernel, window models.TimeRange, count int, cfg TraceConfig) ([]models.Trace, error) {
	const op = "generators.GenerateTraces"
	if count < 0 {
		return nil, utils.InvalidConfig(op, "trace count must not be negative, got %d", count)
	}
	if err := window.Validate(); err != nil {
		return nil, utils.InvalidConfig(op, "%v", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	span := float64(window.Duration())
	traces := make([]models.Trace, 0, count)
	for i := 0; i < count; i++ {
		start := window.Start.Add(time.Duration(k.UniformFloat(0, span)))
		trace, err := GenerateTrace(k, start, cfg)
		if err != nil {
			return nil, err
		}
		traces = append(traces, trace)
	}
	sort.SliceStable(traces, func(i, j int) bool {
		return traces[i].StartTime().Before(traces[j].StartTime())
	})
	return traces, nil
}

func assembleTrace(traceID string, spans []models.Span) models.Trace {
	root := spans[0]
	end := root.EndTime()
	status := models.SpanStatusSuccess
	for _, s := range spans {
		if e := s.EndTime(); e.After(end) {
			end = e
		}
		if s.Status == models.SpanStatusError {
			status = models.SpanStatusError
		}
	}
	return models.Trace{
		TraceID:         traceID,
		RootSpanID:      root.SpanID,
		Spans:           spans,
		TotalDurationMs: float64(end.Sub(root.StartTime)) / float64(time.Millisecond),
		SpanCount:       len(spans),
		Status:          status,
	}
}

func newSpan(k *random.Kernel, cfg TraceConfig, traceID, parentID, service string, start time.Time, durationMs float64, hasError bool) models.Span {
	operation := random.Pick(k, operationsFor(cfg.Operations, service))
	span := models.Span{
		SpanID:       k.HexID(8),
		TraceID:      traceID,
		ParentSpanID: parentID,
		Service:      service,
		Operation:    operation,
		StartTime:    start,
		DurationMs:   durationMs,
		Status:       models.SpanStatusSuccess,
		Tags: map[string]string{
			"component": componentFor(operation),
			"span.kind": "client",
		},
	}

	statusCode := 200
	if hasError {
		span.Status = models.SpanStatusError
		span.Tags["error"] = "true"
		statusCode = random.Pick(k, []int{500, 502, 503, 504})
		span.Logs = []models.SpanLog{{
			Timestamp: start.Add(utils.Milliseconds(durationMs * 0.9)),
			Fields: map[string]string{
				"event":   "error",
				"message": random.Pick(k, spanErrorMessages),
			},
		}}
	}
	if span.Tags["component"] == "http" {
		span.Tags["http.status_code"] = strconv.Itoa(statusCode)
	}
	return span
}

func downstreamService(k *random.Kernel, services []string, current string) string {
	candidate := random.Pick(k, services)
	if candidate != current {
		return candidate
	}
	// Shift to a neighbour so the draw stays a single kernel call.
	for i, s := range services {
		if s == current {
			return services[(i+1+k.Intn(len(services)-1))%len(services)]
		}
	}
	return candidate
}

func newTraceID(k *random.Kernel) string {
	id, err := uuid.NewRandomFromReader(k)
	if err != nil {
		return k.HexID(16)
	}
	return strings.ReplaceAll(id.String(), "-", "")
}
