package generators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/mirador-synth/internal/models"
	"github.com/miradorstack/mirador-synth/internal/random"
)

// depthOf walks parent links and fails the test if it meets a cycle.
func depthOf(t *testing.T, byID map[string]models.Span, span models.Span) int {
	t.Helper()
	depth := 1
	seen := map[string]bool{span.SpanID: true}
	for !span.IsRoot() {
		parent, ok := byID[span.ParentSpanID]
		require.True(t, ok, "parent %s of %s missing", span.ParentSpanID, span.SpanID)
		require.False(t, seen[parent.SpanID], "cycle through %s", parent.SpanID)
		seen[parent.SpanID] = true
		span = parent
		depth++
	}
	return depth
}

func TestGenerateTraceWellFormed(t *testing.T) {
	cfg := DefaultTraceConfig()
	cfg.MaxDepth = 4
	cfg.MaxSpans = 200
	cfg.BranchProbability = 1
	cfg.ErrorRate = 0.2
	k := random.New(11)

	for i := 0; i < 50; i++ {
		trace, err := GenerateTrace(k, t0, cfg)
		require.NoError(t, err)
		require.Equal(t, len(trace.Spans), trace.SpanCount)

		byID := map[string]models.Span{}
		roots := 0
		hasError := false
		for _, s := range trace.Spans {
			require.NotContains(t, byID, s.SpanID)
			byID[s.SpanID] = s
			require.Equal(t, trace.TraceID, s.TraceID)
			require.GreaterOrEqual(t, s.DurationMs, 0.0)
			if s.IsRoot() {
				roots++
				require.Equal(t, trace.RootSpanID, s.SpanID)
			}
			if s.Status == models.SpanStatusError {
				hasError = true
				require.NotEmpty(t, s.Logs)
			}
		}
		require.Equal(t, 1, roots)

		for _, s := range trace.Spans {
			require.LessOrEqual(t, depthOf(t, byID, s), cfg.MaxDepth)
			if !s.IsRoot() {
				assert.NotEqual(t, byID[s.ParentSpanID].Service, s.Service)
			}
		}
		if hasError {
			assert.Equal(t, models.SpanStatusError, trace.Status)
		} else {
			assert.Equal(t, models.SpanStatusSuccess, trace.Status)
		}
		root, _ := trace.Root()
		assert.GreaterOrEqual(t, trace.TotalDurationMs, root.DurationMs)
	}
}

func TestGenerateTraceDepthOneIsRootOnly(t *testing.T) {
	cfg := DefaultTraceConfig()
	cfg.MaxDepth = 1
	cfg.BranchProbability = 1
	trace, err := GenerateTrace(random.New(5), t0, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, trace.SpanCount)
}

func TestGenerateTraceHonoursSpanCap(t *testing.T) {
	cfg := DefaultTraceConfig()
	cfg.BranchProbability = 1
	cfg.MaxSpans = 20
	k := random.New(6)
	for i := 0; i < 20; i++ {
		trace, err := GenerateTrace(k, t0, cfg)
		require.NoError(t, err)
		assert.LessOrEqual(t, trace.SpanCount, 20)
	}
}

func TestGenerateTraceRejectsInvalid(t *testing.T) {
	cases := map[string]func(*TraceConfig){
		"single service": func(c *TraceConfig) { c.Services = []string{"only"} },
		"duration order": func(c *TraceConfig) { c.DurationMinMs, c.DurationMaxMs = 50, 50 },
		"negative min":   func(c *TraceConfig) { c.DurationMinMs = -1 },
		"error rate":     func(c *TraceConfig) { c.ErrorRate = 2 },
		"branch prob":    func(c *TraceConfig) { c.BranchProbability = -0.1 },
		"depth":          func(c *TraceConfig) { c.MaxDepth = -3 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultTraceConfig()
			mutate(&cfg)
			_, err := GenerateTrace(random.New(1), t0, cfg)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestGenerateTracesSortedInWindow(t *testing.T) {
	window := models.TimeRange{Start: t0, End: t0.Add(time.Hour)}
	traces, err := GenerateTraces(random.New(8), window, 100, DefaultTraceConfig())
	require.NoError(t, err)
	require.Len(t, traces, 100)

	ids := map[string]bool{}
	for i, tr := range traces {
		require.False(t, ids[tr.TraceID])
		ids[tr.TraceID] = true
		assert.Len(t, tr.TraceID, 32)
		assert.True(t, window.Contains(tr.StartTime()))
		if i > 0 {
			assert.False(t, tr.StartTime().Before(traces[i-1].StartTime()))
		}
	}
}
