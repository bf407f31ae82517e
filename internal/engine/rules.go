package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/miradorstack/mirador-synth/internal/generators"
	"github.com/miradorstack/mirador-synth/internal/models"
)

// RuleFile is the YAML root of a rule pack.
type RuleFile struct {
	Rules []RuleSpec `yaml:"rules"`
}

// RuleSpec is the on-disk form of an alert rule. Condition and severity are
// free text so packs can use "≠", "gt" or "Critical".
type RuleSpec struct {
	ID              string  `yaml:"id"`
	Name            string  `yaml:"name"`
	Metric          string  `yaml:"metric"`
	Condition       string  `yaml:"condition"`
	Threshold       float64 `yaml:"threshold"`
	DurationMinutes int     `yaml:"duration_minutes"`
	Severity        string  `yaml:"severity"`
	Enabled         *bool   `yaml:"enabled"`
}

// LoadRules reads a rule pack from path. An empty path or a missing file
// yields the built-in rules.
func LoadRules(path string, logger *slog.Logger) ([]models.AlertRule, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		return generators.DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("rule pack not found, using built-in rules", slog.String("path", path))
			return generators.DefaultRules(), nil
		}
		return nil, err
	}
	rules, err := ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("rule pack %s: %w", path, err)
	}
	logger.Info("loaded rule pack", slog.String("path", path), slog.Int("rules", len(rules)))
	return rules, nil
}

// ParseRules decodes and validates a YAML rule pack.
func ParseRules(data []byte) ([]models.AlertRule, error) {
	var file RuleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(file.Rules))
	rules := make([]models.AlertRule, 0, len(file.Rules))
	for i, spec := range file.Rules {
		if spec.ID == "" {
			return nil, fmt.Errorf("rule %d: id is required", i)
		}
		if _, dup := seen[spec.ID]; dup {
			return nil, fmt.Errorf("rule %s: duplicate id", spec.ID)
		}
		seen[spec.ID] = struct{}{}

		cond, err := models.ParseCondition(spec.Condition)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", spec.ID, err)
		}
		sev, err := models.ParseAlertSeverity(spec.Severity)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", spec.ID, err)
		}
		if spec.DurationMinutes < 0 {
			return nil, fmt.Errorf("rule %s: duration must not be negative", spec.ID)
		}
		enabled := true
		if spec.Enabled != nil {
			enabled = *spec.Enabled
		}
		name := spec.Name
		if name == "" {
			name = spec.ID
		}
		rules = append(rules, models.AlertRule{
			ID:              spec.ID,
			Name:            name,
			Metric:          spec.Metric,
			Condition:       cond,
			Threshold:       spec.Threshold,
			DurationMinutes: spec.DurationMinutes,
			Severity:        sev,
			Enabled:         enabled,
		})
	}
	return rules, nil
}

// Breach is a sustained rule violation found in a metric series.
type Breach struct {
	RuleID   string    `json:"ruleId"`
	MetricID string    `json:"metricId"`
	Service  string    `json:"service"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Peak     float64   `json:"peak"`
}

// FindBreaches evaluates enabled rules against every series of the rule's
// metric. A run of breaching points counts once it spans at least the
// rule's duration.
func FindBreaches(rules []models.AlertRule, series []models.TimeSeries) []Breach {
	var out []Breach
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		minSpan := time.Duration(rule.DurationMinutes) * time.Minute
		for _, s := range series {
			if s.MetricName != rule.Metric {
				continue
			}
			out = append(out, breachesIn(rule, s, minSpan)...)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

func breachesIn(rule models.AlertRule, s models.TimeSeries, minSpan time.Duration) []Breach {
	var out []Breach
	var current *Breach
	flush := func() {
		if current != nil && current.End.Sub(current.Start) >= minSpan {
			out = append(out, *current)
		}
		current = nil
	}
	for _, p := range s.Points {
		if !rule.Breached(p.Value) {
			flush()
			continue
		}
		if current == nil {
			current = &Breach{RuleID: rule.ID, MetricID: s.MetricID, Service: s.ServiceID, Start: p.Timestamp, Peak: p.Value}
		}
		current.End = p.Timestamp
		if rule.Condition == models.ConditionLess {
			current.Peak = min(current.Peak, p.Value)
		} else {
			current.Peak = max(current.Peak, p.Value)
		}
	}
	flush()
	return out
}
