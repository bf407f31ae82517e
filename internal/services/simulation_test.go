package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/miradorstack/mirador-synth/internal/cache"
	"github.com/miradorstack/mirador-synth/internal/engine"
	"github.com/miradorstack/mirador-synth/internal/models"
	"github.com/miradorstack/mirador-synth/internal/store"
)

var testDay = models.TimeRange{
	Start: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
}

type statusRecorder struct {
	states []bool
}

func (r *statusRecorder) SetServing(serving bool) {
	r.states = append(r.states, serving)
}

func newTestService(t *testing.T, provider cache.Provider, opts Options) (*SimulationService, *store.Store) {
	t.Helper()
	cfg := engine.DefaultConfig()
	cfg.Metrics.Services = []string{"api-gateway", "order-service"}
	cfg.Metrics.Interval = 10 * time.Minute
	cfg.TraceCount = 10
	cfg.Logs.BaseFrequencyPerMinute = 1

	eng, err := engine.New(cfg, nil)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	st := store.New(nil)
	return NewSimulationService(nil, eng, st, provider, opts), st
}

func TestGeneratePublishesToStore(t *testing.T) {
	svc, st := newTestService(t, nil, Options{})
	recorder := &statusRecorder{}
	svc.SetStatusReporter(recorder)

	if _, err := svc.Report(); !errors.Is(err, ErrNoDataset) {
		t.Fatalf("expected ErrNoDataset before first run, got %v", err)
	}

	ds, err := svc.Generate(context.Background(), models.GenerationRequest{TimeRange: testDay, Seed: 42})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !svc.Healthy() {
		t.Fatalf("expected healthy after successful run")
	}
	if got := len(st.Metrics("")); got != len(ds.Metrics) {
		t.Fatalf("expected %d series in store, got %d", len(ds.Metrics), got)
	}
	if got := len(st.Events(store.EventFilter{})); got != len(ds.Events) {
		t.Fatalf("expected %d events in store, got %d", len(ds.Events), got)
	}
	if len(st.Patterns()) == 0 {
		t.Fatalf("expected mined patterns in store")
	}
	if len(recorder.states) != 2 || recorder.states[0] || !recorder.states[1] {
		t.Fatalf("expected not-serving then serving, got %v", recorder.states)
	}

	report, err := svc.Report()
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.Seed != 42 || report.Counts.Traces != 10 {
		t.Fatalf("unexpected report header: seed=%d traces=%d", report.Seed, report.Counts.Traces)
	}
	if svc.LatencyP95() <= 0 {
		t.Fatalf("expected a recorded latency")
	}
}

func TestFailedGenerationKeepsPreviousDataset(t *testing.T) {
	svc, _ := newTestService(t, nil, Options{})
	if _, err := svc.Generate(context.Background(), models.GenerationRequest{TimeRange: testDay, Seed: 1}); err != nil {
		t.Fatalf("generate: %v", err)
	}

	inverted := models.TimeRange{Start: testDay.End, End: testDay.Start}
	if _, err := svc.Generate(context.Background(), models.GenerationRequest{TimeRange: inverted, Seed: 1}); err == nil {
		t.Fatalf("expected inverted range to fail")
	}
	if svc.Healthy() {
		t.Fatalf("expected unhealthy after failed run")
	}
	if svc.LastError() == nil {
		t.Fatalf("expected last error to be recorded")
	}
	ds, ok := svc.Dataset()
	if !ok || ds.Seed != 1 {
		t.Fatalf("expected previous dataset to survive, got ok=%v seed=%d", ok, ds.Seed)
	}
}

func TestSnapshotRoundTripThroughCache(t *testing.T) {
	provider := cache.NewMemoryProvider()
	opts := Options{SnapshotKey: "synth:snapshot", SnapshotTTL: time.Hour}
	svc, st := newTestService(t, provider, opts)
	if _, err := svc.Generate(context.Background(), models.GenerationRequest{TimeRange: testDay, Seed: 7}); err != nil {
		t.Fatalf("generate: %v", err)
	}

	fresh, freshStore := newTestService(t, provider, opts)
	recorder := &statusRecorder{}
	fresh.SetStatusReporter(recorder)
	ok, err := fresh.Restore(context.Background())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !ok {
		t.Fatalf("expected snapshot to be found")
	}
	if len(freshStore.AllLogs()) != len(st.AllLogs()) {
		t.Fatalf("expected %d restored logs, got %d", len(st.AllLogs()), len(freshStore.AllLogs()))
	}

	if !fresh.Healthy() {
		t.Fatalf("expected restored service to be healthy before any refresh")
	}
	if n := len(recorder.states); n == 0 || !recorder.states[n-1] {
		t.Fatalf("expected restore to report serving, got %v", recorder.states)
	}
	report, err := fresh.Report()
	if err != nil {
		t.Fatalf("report after restore: %v", err)
	}
	if report.Seed != 7 || !report.Range.Start.Equal(testDay.Start) || !report.Range.End.Equal(testDay.End) {
		t.Fatalf("unexpected restored report header: seed=%d range=%v", report.Seed, report.Range)
	}
	if report.Counts.Logs != len(st.AllLogs()) {
		t.Fatalf("expected %d logs in restored report, got %d", len(st.AllLogs()), report.Counts.Logs)
	}
}

func TestReportNeverMixesDatasets(t *testing.T) {
	svc, _ := newTestService(t, nil, Options{})
	ctx := context.Background()

	events := map[int64]int{}
	for _, seed := range []int64{1, 2} {
		ds, err := svc.Generate(ctx, models.GenerationRequest{TimeRange: testDay, Seed: seed})
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		events[seed] = len(ds.Events)
	}

	done := make(chan error, 1)
	go func() {
		for i := 0; i < 20; i++ {
			seed := int64(i%2 + 1)
			if _, err := svc.Generate(ctx, models.GenerationRequest{TimeRange: testDay, Seed: seed}); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	for {
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("generate: %v", err)
			}
			return
		default:
		}
		report, err := svc.Report()
		if err != nil {
			t.Fatalf("report: %v", err)
		}
		if report.Counts.Events != events[report.Seed] {
			t.Fatalf("report for seed %d carries %d events, want %d", report.Seed, report.Counts.Events, events[report.Seed])
		}
	}
}

func TestRestoreWithoutSnapshotKey(t *testing.T) {
	svc, _ := newTestService(t, cache.NewMemoryProvider(), Options{})
	ok, err := svc.Restore(context.Background())
	if err != nil || ok {
		t.Fatalf("expected no-op restore, got ok=%v err=%v", ok, err)
	}
}

func TestAlertCommandsUseServiceClock(t *testing.T) {
	svc, _ := newTestService(t, nil, Options{})
	svc.now = func() time.Time { return testDay.End.Add(time.Hour) }

	ds, err := svc.Generate(context.Background(), models.GenerationRequest{TimeRange: testDay, Seed: 3})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := svc.Acknowledge("missing", "oncall"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	before, err := svc.Report()
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	for _, e := range ds.Events {
		if !e.Active() || e.Acknowledged {
			continue
		}
		acked, err := svc.Acknowledge(e.ID, "oncall")
		if err != nil {
			t.Fatalf("acknowledge: %v", err)
		}
		if !acked.AcknowledgedAt.Equal(testDay.End.Add(time.Hour)) {
			t.Fatalf("expected acknowledgement at service clock, got %v", acked.AcknowledgedAt)
		}
		resolved, err := svc.Resolve(e.ID)
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if resolved.Active() {
			t.Fatalf("expected event to be resolved")
		}
		after, err := svc.Report()
		if err != nil {
			t.Fatalf("report: %v", err)
		}
		if after.Alerts.Acknowledged != before.Alerts.Acknowledged+1 || after.Alerts.Active != before.Alerts.Active-1 {
			t.Fatalf("expected report to reflect store commands, before=%+v after=%+v", before.Alerts, after.Alerts)
		}
		return
	}
}

func TestRefreshUsesWindowEndingNow(t *testing.T) {
	svc, _ := newTestService(t, nil, Options{Window: 2 * time.Hour, Seed: 11})
	svc.now = func() time.Time { return testDay.End.Add(30 * time.Second) }

	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	ds, _ := svc.Dataset()
	if !ds.Range.End.Equal(testDay.End) || ds.Range.Duration() != 2*time.Hour {
		t.Fatalf("unexpected refresh window %v", ds.Range)
	}
}
