package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/mirador-synth/internal/cache"
	"github.com/miradorstack/mirador-synth/internal/models"
)

var t0 = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

func seeded(t *testing.T) *Store {
	t.Helper()
	s := New(nil)
	s.SetMetrics([]models.TimeSeries{
		{MetricID: "metric-api-cpu", MetricName: "cpu", ServiceID: "api"},
		{MetricID: "metric-db-cpu", MetricName: "cpu", ServiceID: "db"},
	})
	s.SetTraces([]models.Trace{{
		TraceID:    "t1",
		RootSpanID: "r",
		Spans: []models.Span{
			{SpanID: "r", Service: "api", StartTime: t0},
			{SpanID: "c", ParentSpanID: "r", Service: "db", StartTime: t0},
		},
	}})
	s.SetLogs([]models.LogEntry{
		{ID: "l3", Service: "db", Timestamp: t0.Add(3 * time.Minute)},
		{ID: "l1", Service: "api", Timestamp: t0.Add(time.Minute)},
		{ID: "l2", Service: "db", Timestamp: t0.Add(2 * time.Minute)},
	})
	s.SetRules([]models.AlertRule{{ID: "cpu", Severity: models.AlertSeverityWarning}})
	s.SetEvents([]models.AlertEvent{{ID: "e1", RuleID: "cpu", Service: "api", TriggeredAt: t0}})
	return s
}

func TestStoreIndexes(t *testing.T) {
	s := seeded(t)

	series, err := s.Series("metric-db-cpu")
	require.NoError(t, err)
	assert.Equal(t, "db", series.ServiceID)
	_, err = s.Series("nope")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Len(t, s.Metrics("api"), 1)
	assert.Len(t, s.Metrics(""), 2)
	assert.Len(t, s.Traces("db", nil), 1)
	assert.Empty(t, s.Traces("cache", nil))
	later := models.TimeRange{Start: t0.Add(time.Hour), End: t0.Add(2 * time.Hour)}
	assert.Empty(t, s.Traces("", &later))

	logs := s.Logs("", models.TimeRange{Start: t0, End: t0.Add(2 * time.Minute)})
	require.Len(t, logs, 2)
	assert.Equal(t, "l1", logs[0].ID)
	assert.Equal(t, "l2", logs[1].ID)

	dbLogs := s.Logs("db", models.TimeRange{Start: t0, End: t0.Add(time.Hour)})
	require.Len(t, dbLogs, 2)
	assert.Equal(t, "l2", dbLogs[0].ID)

	assert.Equal(t, []string{"api", "db"}, s.Services())
}

func TestAcknowledgeAndResolve(t *testing.T) {
	s := seeded(t)
	v := s.Version()

	_, err := s.Acknowledge("e1", "alice", t0.Add(-time.Minute))
	assert.ErrorIs(t, err, ErrInvalidTransition)

	ev, err := s.Acknowledge("e1", "alice", t0.Add(2*time.Minute))
	require.NoError(t, err)
	assert.True(t, ev.Acknowledged)
	assert.Equal(t, "alice", ev.AcknowledgedBy)
	assert.Greater(t, s.Version(), v)

	_, err = s.Acknowledge("e1", "bob", t0.Add(3*time.Minute))
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = s.Resolve("e1", t0)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	ev, err = s.Resolve("e1", t0.Add(20*time.Minute))
	require.NoError(t, err)
	require.NotNil(t, ev.ResolvedAt)
	assert.False(t, ev.Active())

	_, err = s.Resolve("e1", t0.Add(30*time.Minute))
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = s.Resolve("missing", t0)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Empty(t, s.Events(EventFilter{ActiveOnly: true}))
	assert.Len(t, s.Events(EventFilter{Service: "api"}), 1)
}

func TestSetEventsDoesNotAliasCaller(t *testing.T) {
	events := []models.AlertEvent{{ID: "e1", TriggeredAt: t0}}
	s := New(nil)
	s.SetEvents(events)
	_, err := s.Acknowledge("e1", "alice", t0.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, events[0].Acknowledged)
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	provider := cache.NewMemoryProvider()
	s := seeded(t)
	_, err := s.Acknowledge("e1", "alice", t0.Add(time.Minute))
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, provider, "snapshot", time.Hour))

	restored := New(nil)
	ok, err := restored.Load(ctx, provider, "snapshot")
	require.NoError(t, err)
	require.True(t, ok)

	ev, err := restored.Event("e1")
	require.NoError(t, err)
	assert.True(t, ev.Acknowledged)
	assert.Len(t, restored.AllLogs(), 3)
	_, err = restored.Trace("t1")
	assert.NoError(t, err)

	empty := New(nil)
	ok, err = empty.Load(ctx, provider, "absent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func datasetFor(tag string, seed int64) Snapshot {
	return Snapshot{
		Range:   models.TimeRange{Start: t0, End: t0.Add(time.Hour)},
		Seed:    seed,
		Metrics: []models.TimeSeries{{MetricID: "metric-" + tag, ServiceID: tag}},
		Logs:    []models.LogEntry{{ID: "log-" + tag, Service: tag, Timestamp: t0}},
		Rules:   []models.AlertRule{{ID: "rule-" + tag}},
		Events:  []models.AlertEvent{{ID: "event-" + tag, RuleID: "rule-" + tag, Service: tag, TriggeredAt: t0}},
	}
}

func TestPublishSwapsEverythingInOneWrite(t *testing.T) {
	s := seeded(t)
	require.NoError(t, s.StorePatterns(context.Background(), "old", []models.FailurePattern{{ID: "p1"}}))
	v := s.Version()

	s.Publish(datasetFor("checkout", 7))
	assert.Equal(t, v+1, s.Version())

	_, err := s.Trace("t1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Event("e1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, s.Patterns())
	assert.Equal(t, []string{"checkout"}, s.Services())

	snap := s.Snapshot()
	assert.Equal(t, int64(7), snap.Seed)
	assert.Equal(t, t0.Add(time.Hour), snap.Range.End)
}

func TestPublishIsNeverObservedHalfDone(t *testing.T) {
	s := New(nil)
	s.Publish(datasetFor("a", 1))

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			if i%2 == 0 {
				s.Publish(datasetFor("b", 2))
			} else {
				s.Publish(datasetFor("a", 1))
			}
		}
	}()

	for i := 0; i < 2000; i++ {
		snap := s.Snapshot()
		require.Len(t, snap.Metrics, 1)
		require.Len(t, snap.Events, 1)
		tag := snap.Metrics[0].ServiceID
		require.Equal(t, tag, snap.Events[0].Service)
		require.Equal(t, "rule-"+tag, snap.Rules[0].ID)
	}
	close(stop)
	<-done
}
