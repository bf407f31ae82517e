package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second register should tolerate duplicates: %v", err)
	}
}

func TestObserveGenerationIsGathered(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	ObserveGeneration(-time.Second, "anything")
	AddEntities("logs", 5)
	IncRefreshSkipped()
	SetDatasetVersion(3)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := map[string]bool{}
	for _, mf := range families {
		found[mf.GetName()] = true
		if mf.GetName() == "mirador_synth_generation_runs_total" {
			for _, m := range mf.GetMetric() {
				for _, l := range m.GetLabel() {
					if l.GetName() == "outcome" && l.GetValue() != OutcomeSuccess {
						t.Fatalf("unexpected outcome label %q", l.GetValue())
					}
				}
			}
		}
	}
	for _, name := range []string{
		"mirador_synth_generation_runs_total",
		"mirador_synth_generation_seconds",
		"mirador_synth_entities_generated_total",
		"mirador_synth_refresh_skipped_total",
		"mirador_synth_dataset_version",
	} {
		if !found[name] {
			t.Fatalf("metric %s not gathered", name)
		}
	}
}
