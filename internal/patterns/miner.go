package patterns

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/miradorstack/mirador-synth/internal/analysis"
	"github.com/miradorstack/mirador-synth/internal/models"
)

// Store abstracts persistence for mined patterns.
type Store interface {
	StorePatterns(ctx context.Context, datasetID string, patterns []models.FailurePattern) error
}

// Signal is one failure observation attributed to a service.
type Signal struct {
	Service  string
	DataType models.DataType
	Selector string
	At       time.Time
}

// Collect extracts failure signals from a dataset: alert firings, ERROR and
// FATAL logs, error spans and metric anomalies.
func Collect(series []models.TimeSeries, traces []models.Trace, logs []models.LogEntry, events []models.AlertEvent) []Signal {
	var signals []Signal
	for _, e := range events {
		signals = append(signals, Signal{Service: e.Service, DataType: models.DataTypeAlerts, Selector: "alerts:" + e.RuleID, At: e.TriggeredAt})
	}
	for _, entry := range logs {
		if entry.Level.IsErrorLike() {
			signals = append(signals, Signal{Service: entry.Service, DataType: models.DataTypeLogs, Selector: "logs:" + string(entry.Level), At: entry.Timestamp})
		}
	}
	for _, t := range traces {
		for _, s := range t.Spans {
			if s.Status == models.SpanStatusError {
				signals = append(signals, Signal{Service: s.Service, DataType: models.DataTypeTraces, Selector: "traces:" + s.Operation, At: s.StartTime})
			}
		}
	}
	for _, s := range series {
		for _, a := range analysis.DetectAnomalies(s.Points) {
			signals = append(signals, Signal{Service: s.ServiceID, DataType: models.DataTypeMetrics, Selector: "metrics:" + s.MetricName, At: a.Timestamp})
		}
	}
	return signals
}

// Miner mines simple frequency-based failure patterns from dataset signals.
type Miner struct {
	store  Store
	logger *slog.Logger
}

// NewMiner constructs a Miner; store may be nil for dry runs.
func NewMiner(logger *slog.Logger, store Store) *Miner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Miner{store: store, logger: logger}
}

// Mine groups signals by service and returns one hotspot pattern per
// service, most prevalent first.
func (m *Miner) Mine(ctx context.Context, datasetID string, signals []Signal) ([]models.FailurePattern, error) {
	if len(signals) == 0 {
		return nil, nil
	}

	serviceStats := make(map[string]*serviceAggregate)
	for _, sig := range signals {
		agg := ensureAggregate(serviceStats, sig.Service)
		agg.count++
		if sig.At.After(agg.lastSeen) {
			agg.lastSeen = sig.At
		}
		if sig.Selector == "" {
			continue
		}
		agg.selectorCounts[sig.Selector]++
		agg.selectorTypes[sig.Selector] = sig.DataType
	}

	patterns := make([]models.FailurePattern, 0, len(serviceStats))
	for service, agg := range serviceStats {
		pattern := models.FailurePattern{
			ID:          "pattern-" + service,
			Name:        service + " hotspot",
			Description: "Mined from generated failure signals",
			Services:    []string{service},
			Prevalence:  float64(agg.count) / float64(len(signals)),
			LastSeen:    agg.lastSeen,
		}
		for _, sel := range agg.topSelectors(3) {
			pattern.Signals = append(pattern.Signals, models.SignalSummary{
				SignalType: string(agg.selectorTypes[sel]),
				Selector:   sel,
				Count:      agg.selectorCounts[sel],
				Share:      float64(agg.selectorCounts[sel]) / float64(agg.count),
			})
		}
		patterns = append(patterns, pattern)
	}

	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].Prevalence != patterns[j].Prevalence {
			return patterns[i].Prevalence > patterns[j].Prevalence
		}
		return patterns[i].ID < patterns[j].ID
	})

	if m.store != nil && len(patterns) > 0 {
		if err := m.store.StorePatterns(ctx, datasetID, patterns); err != nil {
			m.logger.Warn("pattern store failed", slog.Any("error", err))
		}
	}

	return patterns, nil
}

type serviceAggregate struct {
	count          int
	lastSeen       time.Time
	selectorCounts map[string]int
	selectorTypes  map[string]models.DataType
}

func ensureAggregate(m map[string]*serviceAggregate, service string) *serviceAggregate {
	if service == "" {
		service = "unknown"
	}
	agg, ok := m[service]
	if !ok {
		agg = &serviceAggregate{
			selectorCounts: make(map[string]int),
			selectorTypes:  make(map[string]models.DataType),
		}
		m[service] = agg
	}
	return agg
}

func (agg *serviceAggregate) topSelectors(limit int) []string {
	selectors := make([]string, 0, len(agg.selectorCounts))
	for sel := range agg.selectorCounts {
		selectors = append(selectors, sel)
	}
	sort.Slice(selectors, func(i, j int) bool {
		ci, cj := agg.selectorCounts[selectors[i]], agg.selectorCounts[selectors[j]]
		if ci != cj {
			return ci > cj
		}
		return selectors[i] < selectors[j]
	})
	if len(selectors) > limit {
		selectors = selectors[:limit]
	}
	return selectors
}
