package models

import "time"

// SpanStatus is the terminal state of a span or trace.
type SpanStatus string

const (
	SpanStatusSuccess SpanStatus = "SUCCESS"
	SpanStatusError   SpanStatus = "ERROR"
)

// SpanLog is a timestamped event recorded inside a span.
type SpanLog struct {
	Timestamp time.Time         `json:"timestamp"`
	Fields    map[string]string `json:"fields"`
}

// Span is a single timed operation. ParentSpanID is empty for the root.
type Span struct {
	SpanID       string            `json:"spanId"`
	TraceID      string            `json:"traceId"`
	ParentSpanID string            `json:"parentSpanId,omitempty"`
	Service      string            `json:"service"`
	Operation    string            `json:"operation"`
	StartTime    time.Time         `json:"startTime"`
	DurationMs   float64           `json:"durationMs"`
	Status       SpanStatus        `json:"status"`
	Tags         map[string]string `json:"tags,omitempty"`
	Logs         []SpanLog         `json:"logs,omitempty"`
}

// IsRoot reports whether the span has no parent.
func (s Span) IsRoot() bool {
	return s.ParentSpanID == ""
}

// EndTime is StartTime plus the span duration.
func (s Span) EndTime() time.Time {
	return s.StartTime.Add(time.Duration(s.DurationMs * float64(time.Millisecond)))
}

// Trace is the tree of spans rooted at RootSpanID.
type Trace struct {
	TraceID         string     `json:"traceId"`
	RootSpanID      string     `json:"rootSpanId"`
	Spans           []Span     `json:"spans"`
	TotalDurationMs float64    `json:"totalDurationMs"`
	SpanCount       int        `json:"spanCount"`
	Status          SpanStatus `json:"status"`
}

// Root returns the root span, if present.
func (t Trace) Root() (Span, bool) {
	for _, s := range t.Spans {
		if s.SpanID == t.RootSpanID {
			return s, true
		}
	}
	return Span{}, false
}

// Children indexes spans by parent span ID, preserving span order.
func (t Trace) Children() map[string][]Span {
	children := make(map[string][]Span, len(t.Spans))
	for _, s := range t.Spans {
		if s.IsRoot() {
			continue
		}
		children[s.ParentSpanID] = append(children[s.ParentSpanID], s)
	}
	return children
}

// StartTime is the root span start, or the zero time for an empty trace.
func (t Trace) StartTime() time.Time {
	if root, ok := t.Root(); ok {
		return root.StartTime
	}
	return time.Time{}
}
