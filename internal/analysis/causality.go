package analysis

import (
	"sort"
	"strings"
	"time"

	"github.com/miradorstack/mirador-synth/internal/models"
)

// TimelineEvent is the first sign of trouble from a service.
type TimelineEvent struct {
	Service string    `json:"service"`
	Time    time.Time `json:"time"`
	Kind    string    `json:"kind"`
	Detail  string    `json:"detail,omitempty"`
}

// BuildTimeline merges alert triggers, error logs and error spans into one
// stream ordered by time.
func BuildTimeline(events []models.AlertEvent, logs []models.LogEntry, traces []models.Trace) []TimelineEvent {
	timeline := make([]TimelineEvent, 0, len(events))
	for _, e := range events {
		timeline = append(timeline, TimelineEvent{Service: e.Service, Time: e.TriggeredAt, Kind: "alert", Detail: e.RuleID})
	}
	for _, entry := range logs {
		if entry.Level.IsErrorLike() {
			timeline = append(timeline, TimelineEvent{Service: entry.Service, Time: entry.Timestamp, Kind: "log", Detail: entry.Message})
		}
	}
	for _, trace := range traces {
		for _, s := range trace.Spans {
			if s.Status == models.SpanStatusError {
				timeline = append(timeline, TimelineEvent{Service: s.Service, Time: s.StartTime, Kind: "span", Detail: s.Operation})
			}
		}
	}
	sort.SliceStable(timeline, func(i, j int) bool {
		return timeline[i].Time.Before(timeline[j].Time)
	})
	return timeline
}

// CausalityResult scores how well upstream callers explain a service's trouble.
type CausalityResult struct {
	Score            float64  `json:"score"`
	Notes            []string `json:"notes,omitempty"`
	SuggestedService string   `json:"suggestedService,omitempty"`
}

// UpstreamCause inspects the callers of rootService and the timeline to
// derive a causality score in [0,1]. A caller supports the hypothesis when its
// first event precedes the root's, or when it has no events but its calls
// into the root fail.
func UpstreamCause(rootService string, timeline []TimelineEvent, edges []ServiceEdge) CausalityResult {
	result := CausalityResult{}
	if rootService == "" || len(edges) == 0 || len(timeline) == 0 {
		return result
	}

	rootTime := firstEventTime(rootService, timeline)
	if rootTime.IsZero() {
		rootTime = timeline[0].Time
	}

	totalUpstream := 0
	supporting := 0
	var suggested ServiceEdge
	for _, edge := range edges {
		if !strings.EqualFold(edge.Target, rootService) || strings.EqualFold(edge.Source, rootService) {
			continue
		}
		totalUpstream++
		srcTime := firstEventTime(edge.Source, timeline)
		if srcTime.IsZero() {
			if edge.ErrorRate > 0 {
				supporting++
				result.Notes = append(result.Notes, edge.Source+" error rate influencing "+rootService)
				if suggested.Source == "" || edge.ErrorRate > suggested.ErrorRate {
					suggested = edge
				}
			}
			continue
		}
		if srcTime.Before(rootTime) {
			supporting++
			result.Notes = append(result.Notes, edge.Source+" precedes "+rootService)
			if suggested.Source == "" || edge.CallCount > suggested.CallCount {
				suggested = edge
			}
		} else {
			result.Notes = append(result.Notes, edge.Source+" occurs after "+rootService)
		}
	}

	if totalUpstream == 0 {
		return result
	}
	result.Score = 0.4 + 0.6*float64(supporting)/float64(totalUpstream)
	result.SuggestedService = suggested.Source
	return result
}

func firstEventTime(service string, events []TimelineEvent) time.Time {
	for _, event := range events {
		if strings.EqualFold(event.Service, service) {
			return event.Time
		}
	}
	return time.Time{}
}
