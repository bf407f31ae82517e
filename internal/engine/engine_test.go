package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/mirador-synth/internal/generators"
	"github.com/miradorstack/mirador-synth/internal/models"
)

var day = models.TimeRange{
	Start: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
}

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.Metrics.Services = []string{"api-gateway", "order-service"}
	cfg.Metrics.Interval = 5 * time.Minute
	cfg.TraceCount = 20
	cfg.Logs.BaseFrequencyPerMinute = 2
	return cfg
}

func TestGenerateIsReproducible(t *testing.T) {
	eng, err := New(smallConfig(), nil)
	require.NoError(t, err)

	req := models.GenerationRequest{TimeRange: day, Seed: 1234}
	a, err := eng.Generate(context.Background(), req)
	require.NoError(t, err)
	b, err := eng.Generate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, int64(1234), a.Seed)
	assert.Equal(t, a.Metrics, b.Metrics)
	assert.Equal(t, a.Traces, b.Traces)
	assert.Equal(t, a.Logs, b.Logs)
	assert.Equal(t, a.Events, b.Events)

	counts := a.Counts()
	assert.Equal(t, 2*len(generators.DefaultMetricProfiles()), counts.Series)
	assert.Equal(t, 20, counts.Traces)
	assert.NotZero(t, counts.Logs)
	assert.NotZero(t, counts.Events)
}

func TestGenerateCorrelatesLogsWithTraces(t *testing.T) {
	cfg := smallConfig()
	cfg.Logs.TraceIDProbability = 1
	eng, err := New(cfg, nil)
	require.NoError(t, err)

	ds, err := eng.Generate(context.Background(), models.GenerationRequest{TimeRange: day, Seed: 9})
	require.NoError(t, err)

	traceIDs := map[string]bool{}
	for _, tr := range ds.Traces {
		traceIDs[tr.TraceID] = true
	}
	for _, entry := range ds.Logs {
		require.True(t, traceIDs[entry.TraceID], "log %s references unknown trace %s", entry.ID, entry.TraceID)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := smallConfig()
	cfg.Metrics.Interval = 0
	_, err := New(cfg, nil)
	assert.ErrorIs(t, err, generators.ErrInvalidConfig)

	cfg = smallConfig()
	cfg.Logs.BaseFrequencyPerMinute = -1
	_, err = New(cfg, nil)
	assert.ErrorIs(t, err, generators.ErrInvalidConfig)
}

func TestGenerateRejectsBadRange(t *testing.T) {
	eng, err := New(smallConfig(), nil)
	require.NoError(t, err)
	_, err = eng.Generate(context.Background(), models.GenerationRequest{TimeRange: models.TimeRange{Start: day.End, End: day.Start}})
	assert.ErrorIs(t, err, generators.ErrInvalidConfig)
}

func TestGenerateHonoursCancellation(t *testing.T) {
	eng, err := New(smallConfig(), nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = eng.Generate(ctx, models.GenerationRequest{TimeRange: day, Seed: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSummarize(t *testing.T) {
	eng, err := New(smallConfig(), nil)
	require.NoError(t, err)
	ds, err := eng.Generate(context.Background(), models.GenerationRequest{TimeRange: day, Seed: 5})
	require.NoError(t, err)

	report := Summarize(ds)
	assert.Equal(t, ds.Counts(), report.Counts)
	assert.NotEmpty(t, report.Series)
	assert.LessOrEqual(t, len(report.Series), topSeries)
	assert.Equal(t, 20, report.Traces.Count)
	assert.NotEmpty(t, report.ServiceGraph)
	assert.Equal(t, len(ds.Logs), report.Logs.TotalCount)
	assert.Equal(t, len(ds.Events), report.Alerts.Total)
	assert.GreaterOrEqual(t, report.Traces.MaxConcurrent, 1)

	for i := 1; i < len(report.Series); i++ {
		assert.GreaterOrEqual(t, report.Series[i-1].Anomalies, report.Series[i].Anomalies)
	}
}

func TestSummarizeEmptyDataset(t *testing.T) {
	report := Summarize(Dataset{})
	assert.Zero(t, report.Counts)
	assert.Zero(t, report.Traces.Count)
	assert.Nil(t, report.Cause)
}
