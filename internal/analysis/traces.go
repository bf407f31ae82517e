package analysis

import (
	"sort"

	"github.com/miradorstack/mirador-synth/internal/models"
)

// CriticalPath is the longest root-to-leaf chain of spans by summed duration.
type CriticalPath struct {
	Spans      []models.Span `json:"spans"`
	DurationMs float64       `json:"durationMs"`
}

// Services lists the services along the path, root first.
func (p CriticalPath) Services() []string {
	out := make([]string, len(p.Spans))
	for i, s := range p.Spans {
		out[i] = s.Service
	}
	return out
}

// FindCriticalPath walks the trace depth-first from its root and keeps the
// root-to-leaf chain with the largest accumulated duration. The first path
// found wins ties.
func FindCriticalPath(trace models.Trace) CriticalPath {
	root, ok := trace.Root()
	if !ok {
		return CriticalPath{}
	}
	children := trace.Children()

	type frame struct {
		span  models.Span
		path  []models.Span
		total float64
	}

	var best CriticalPath
	visited := map[string]bool{}
	stack := []frame{{span: root, path: []models.Span{root}, total: root.DurationMs}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[f.span.SpanID] {
			continue
		}
		visited[f.span.SpanID] = true

		kids := children[f.span.SpanID]
		if len(kids) == 0 {
			if best.Spans == nil || f.total > best.DurationMs {
				best = CriticalPath{Spans: f.path, DurationMs: f.total}
			}
			continue
		}
		// Push in reverse so children are explored in their recorded order.
		for i := len(kids) - 1; i >= 0; i-- {
			child := kids[i]
			path := make([]models.Span, len(f.path), len(f.path)+1)
			copy(path, f.path)
			stack = append(stack, frame{
				span:  child,
				path:  append(path, child),
				total: f.total + child.DurationMs,
			})
		}
	}
	return best
}

// ConcurrencyStats measures how much of a trace ran in parallel.
type ConcurrencyStats struct {
	MaxConcurrent        int     `json:"maxConcurrentSpans"`
	TotalSpans           int     `json:"totalSpans"`
	ParallelizationRatio float64 `json:"parallelizationRatio"`
}

// MeasureConcurrency sweeps span start/end events in time order. An end and
// a start at the same instant are processed end first, so back-to-back spans
// never count as overlapping.
func MeasureConcurrency(spans []models.Span) ConcurrencyStats {
	if len(spans) == 0 {
		return ConcurrencyStats{}
	}
	type event struct {
		atNanos int64
		delta   int
	}
	events := make([]event, 0, 2*len(spans))
	for _, s := range spans {
		events = append(events,
			event{atNanos: s.StartTime.UnixNano(), delta: 1},
			event{atNanos: s.EndTime().UnixNano(), delta: -1},
		)
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].atNanos != events[j].atNanos {
			return events[i].atNanos < events[j].atNanos
		}
		return events[i].delta < events[j].delta
	})

	current, peak := 0, 0
	for _, e := range events {
		current += e.delta
		if current > peak {
			peak = current
		}
	}
	return ConcurrencyStats{
		MaxConcurrent:        peak,
		TotalSpans:           len(spans),
		ParallelizationRatio: float64(peak) / float64(len(spans)),
	}
}

// ServiceEdge is an aggregated caller→callee relation observed in traces.
type ServiceEdge struct {
	Source        string  `json:"source"`
	Target        string  `json:"target"`
	CallCount     int     `json:"callCount"`
	ErrorCount    int     `json:"errorCount"`
	ErrorRate     float64 `json:"errorRate"`
	AvgDurationMs float64 `json:"avgDurationMs"`
}

// BuildServiceGraph aggregates parent/child span pairs across traces into
// service edges, sorted by source then target.
func BuildServiceGraph(traces []models.Trace) []ServiceEdge {
	type key struct{ source, target string }
	type acc struct {
		calls, errors int
		duration      float64
	}
	edges := map[key]*acc{}
	for _, trace := range traces {
		byID := make(map[string]models.Span, len(trace.Spans))
		for _, s := range trace.Spans {
			byID[s.SpanID] = s
		}
		for _, s := range trace.Spans {
			parent, ok := byID[s.ParentSpanID]
			if s.IsRoot() || !ok {
				continue
			}
			k := key{source: parent.Service, target: s.Service}
			a, ok := edges[k]
			if !ok {
				a = &acc{}
				edges[k] = a
			}
			a.calls++
			a.duration += s.DurationMs
			if s.Status == models.SpanStatusError {
				a.errors++
			}
		}
	}

	out := make([]ServiceEdge, 0, len(edges))
	for k, a := range edges {
		out = append(out, ServiceEdge{
			Source:        k.source,
			Target:        k.target,
			CallCount:     a.calls,
			ErrorCount:    a.errors,
			ErrorRate:     float64(a.errors) / float64(a.calls),
			AvgDurationMs: a.duration / float64(a.calls),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Target < out[j].Target
	})
	return out
}

// ServiceLatency returns span duration statistics per service.
func ServiceLatency(traces []models.Trace) map[string]Stats {
	durations := map[string][]float64{}
	for _, trace := range traces {
		for _, s := range trace.Spans {
			durations[s.Service] = append(durations[s.Service], s.DurationMs)
		}
	}
	out := make(map[string]Stats, len(durations))
	for service, values := range durations {
		out[service] = ComputeStats(values)
	}
	return out
}

// AllSpans flattens the spans of every trace.
func AllSpans(traces []models.Trace) []models.Span {
	var out []models.Span
	for _, t := range traces {
		out = append(out, t.Spans...)
	}
	return out
}
