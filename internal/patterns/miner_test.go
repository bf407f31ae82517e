package patterns

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/miradorstack/mirador-synth/internal/models"
)

type fakePatternStore struct {
	stored int
}

func (f *fakePatternStore) StorePatterns(ctx context.Context, datasetID string, patterns []models.FailurePattern) error {
	f.stored += len(patterns)
	return nil
}

func TestMinerMinesPatterns(t *testing.T) {
	store := &fakePatternStore{}
	miner := NewMiner(nil, store)

	now := time.Now()
	signals := []Signal{
		{Service: "checkout", DataType: models.DataTypeMetrics, Selector: "metrics:cpu_usage", At: now},
		{Service: "checkout", DataType: models.DataTypeLogs, Selector: "logs:ERROR", At: now.Add(10 * time.Minute)},
		{Service: "checkout", DataType: models.DataTypeLogs, Selector: "logs:ERROR", At: now.Add(5 * time.Minute)},
		{Service: "payments", DataType: models.DataTypeTraces, Selector: "traces:Charge", At: now},
	}

	patterns, err := miner.Mine(context.Background(), "dataset", signals)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(patterns) != 2 {
		t.Fatalf("expected 2 patterns, got %d", len(patterns))
	}
	top := patterns[0]
	if top.ID != "pattern-checkout" || top.Prevalence != 0.75 {
		t.Fatalf("unexpected top pattern: %+v", top)
	}
	if !top.LastSeen.Equal(now.Add(10 * time.Minute)) {
		t.Fatalf("expected last seen to track the latest signal")
	}
	if top.Signals[0].Selector != "logs:ERROR" || top.Signals[0].Count != 2 {
		t.Fatalf("unexpected leading signal: %+v", top.Signals[0])
	}
	if store.stored != 2 {
		t.Fatalf("expected patterns to be stored, got %d", store.stored)
	}
}

func TestMinerStoreFailureIsNotFatal(t *testing.T) {
	miner := NewMiner(nil, StoreFunc(func(context.Context, string, []models.FailurePattern) error {
		return errors.New("down")
	}))
	patterns, err := miner.Mine(context.Background(), "d", []Signal{{Service: "a", Selector: "x"}})
	if err != nil || len(patterns) != 1 {
		t.Fatalf("expected pattern despite store failure, got %v, %v", patterns, err)
	}
}

func TestCollect(t *testing.T) {
	now := time.Now()
	signals := Collect(
		nil,
		[]models.Trace{{Spans: []models.Span{{Service: "a", Operation: "op", Status: models.SpanStatusError}, {Service: "b", Status: models.SpanStatusSuccess}}}},
		[]models.LogEntry{{Service: "a", Level: models.LogLevelFatal}, {Service: "a", Level: models.LogLevelInfo}},
		[]models.AlertEvent{{Service: "c", RuleID: "r", TriggeredAt: now}},
	)
	if len(signals) != 3 {
		t.Fatalf("expected 3 signals, got %d", len(signals))
	}
}
