package engine

import (
	"sort"
	"time"

	"github.com/miradorstack/mirador-synth/internal/analysis"
	"github.com/miradorstack/mirador-synth/internal/models"
)

const (
	logSpikeWidth = 5 * time.Minute
	topSeries     = 10
)

// SeriesSummary describes one metric series.
type SeriesSummary struct {
	MetricID  string         `json:"metricId"`
	Stats     analysis.Stats `json:"stats"`
	Trend     float64        `json:"trend"`
	Anomalies int            `json:"anomalies"`
}

// TraceSummary describes the trace population.
type TraceSummary struct {
	Count              int                       `json:"count"`
	ErrorTraces        int                       `json:"errorTraces"`
	SlowSpans          int                       `json:"slowSpans"`
	Duration           analysis.Stats            `json:"duration"`
	AvgParallelization float64                   `json:"avgParallelization"`
	MaxConcurrent      int                       `json:"maxConcurrent"`
	CriticalServices   map[string]int            `json:"criticalServices"`
	ServiceLatency     map[string]analysis.Stats `json:"serviceLatency"`
}

// Cause names the most likely upstream culprit for a noisy service.
type Cause struct {
	Service string                   `json:"service"`
	Result  analysis.CausalityResult `json:"result"`
}

// Report is the analysis of a dataset.
type Report struct {
	Range        models.TimeRange          `json:"range"`
	Seed         int64                     `json:"seed"`
	Counts       Counts                    `json:"counts"`
	Series       []SeriesSummary           `json:"series"`
	Traces       TraceSummary              `json:"traces"`
	ServiceGraph []analysis.ServiceEdge    `json:"serviceGraph"`
	Logs         analysis.LogStatistics    `json:"logs"`
	LogSpikes    []analysis.LogSpike       `json:"logSpikes,omitempty"`
	Alerts       analysis.AlertCorrelation `json:"alerts"`
	Breaches     []Breach                  `json:"breaches,omitempty"`
	Cause        *Cause                    `json:"cause,omitempty"`
}

// Summarize runs the analysis routines over ds. Series are listed by anomaly
// count, most anomalous first, capped at ten.
func Summarize(ds Dataset) Report {
	report := Report{
		Range:     ds.Range,
		Seed:      ds.Seed,
		Counts:    ds.Counts(),
		Logs:      analysis.CalculateLogStatistics(ds.Logs),
		LogSpikes: analysis.DetectLogSpikes(ds.Logs, logSpikeWidth),
		Alerts:    analysis.CorrelateAlerts(ds.Events, ds.Rules),
		Breaches:  FindBreaches(ds.Rules, ds.Metrics),
	}

	for _, s := range ds.Metrics {
		values := s.Values()
		report.Series = append(report.Series, SeriesSummary{
			MetricID:  s.MetricID,
			Stats:     analysis.ComputeStats(values),
			Trend:     analysis.TrendSlope(values),
			Anomalies: len(analysis.DetectAnomalies(s.Points)),
		})
	}
	sort.SliceStable(report.Series, func(i, j int) bool {
		return report.Series[i].Anomalies > report.Series[j].Anomalies
	})
	if len(report.Series) > topSeries {
		report.Series = report.Series[:topSeries]
	}

	report.Traces = summarizeTraces(ds.Traces)
	report.ServiceGraph = analysis.BuildServiceGraph(ds.Traces)

	if noisy := noisiestService(report.Alerts); noisy != "" {
		timeline := analysis.BuildTimeline(ds.Events, ds.Logs, ds.Traces)
		report.Cause = &Cause{
			Service: noisy,
			Result:  analysis.UpstreamCause(noisy, timeline, report.ServiceGraph),
		}
	}
	return report
}

func summarizeTraces(traces []models.Trace) TraceSummary {
	summary := TraceSummary{
		Count:            len(traces),
		CriticalServices: map[string]int{},
		ServiceLatency:   analysis.ServiceLatency(traces),
	}
	if len(traces) == 0 {
		return summary
	}

	durations := make([]float64, 0, len(traces))
	ratio := 0.0
	for _, t := range traces {
		durations = append(durations, t.TotalDurationMs)
		if t.Status == models.SpanStatusError {
			summary.ErrorTraces++
		}
		conc := analysis.MeasureConcurrency(t.Spans)
		ratio += conc.ParallelizationRatio
		summary.MaxConcurrent = max(summary.MaxConcurrent, conc.MaxConcurrent)
		for _, service := range analysis.FindCriticalPath(t).Services() {
			summary.CriticalServices[service]++
		}
	}
	summary.Duration = analysis.ComputeStats(durations)
	summary.AvgParallelization = ratio / float64(len(traces))
	summary.SlowSpans = len(analysis.DetectSlowSpans(analysis.AllSpans(traces)))
	return summary
}

// noisiestService is the service with the most active alerts, ties broken by name.
func noisiestService(c analysis.AlertCorrelation) string {
	counts := map[string]int{}
	for _, events := range c.ActiveBySeverity {
		for _, e := range events {
			counts[e.Service]++
		}
	}
	best, bestCount := "", 0
	for service, n := range counts {
		if n > bestCount || (n == bestCount && service < best) {
			best, bestCount = service, n
		}
	}
	return best
}
