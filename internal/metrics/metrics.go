package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels generation runs that produced a dataset.
	OutcomeSuccess = "success"
	// OutcomeError labels runs rejected by validation or cancelled.
	OutcomeError = "error"
)

var (
	generationRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_synth",
			Name:      "generation_runs_total",
			Help:      "Total number of dataset generation runs, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	generationDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mirador_synth",
			Name:      "generation_seconds",
			Help:      "Dataset generation latency in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8},
		},
	)

	entitiesGeneratedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_synth",
			Name:      "entities_generated_total",
			Help:      "Entities produced by successful runs, partitioned by kind.",
		},
		[]string{"kind"},
	)

	refreshSkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mirador_synth",
			Name:      "refresh_skipped_total",
			Help:      "Live refreshes skipped because a previous run was still in flight.",
		},
	)

	datasetVersion = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mirador_synth",
			Name:      "dataset_version",
			Help:      "Store version after the last publish.",
		},
	)
)

// Register attaches mirador-synth collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		generationRunsTotal,
		generationDurationSeconds,
		entitiesGeneratedTotal,
		refreshSkippedTotal,
		datasetVersion,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveGeneration records a generation duration and outcome label.
func ObserveGeneration(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	generationRunsTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	generationDurationSeconds.Observe(duration.Seconds())
}

// AddEntities counts n generated entities of kind (points, spans, logs, events).
func AddEntities(kind string, n int) {
	if n <= 0 {
		return
	}
	entitiesGeneratedTotal.WithLabelValues(kind).Add(float64(n))
}

// IncRefreshSkipped counts one skipped live refresh.
func IncRefreshSkipped() {
	refreshSkippedTotal.Inc()
}

// SetDatasetVersion publishes the store version.
func SetDatasetVersion(v uint64) {
	datasetVersion.Set(float64(v))
}
