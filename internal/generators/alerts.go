package generators

import (
	"math"
	"sort"
	"time"

	"github.com/miradorstack/mirador-synth/internal/models"
	"github.com/miradorstack/mirador-synth/internal/random"
	"github.com/miradorstack/mirador-synth/internal/utils"
)

const (
	resolveMinMinutes = 15
	resolveMaxMinutes = 90
	ackWindow         = 10 * time.Minute
)

// AlertConfig shapes the history generated for each enabled rule.
type AlertConfig struct {
	Services []string `yaml:"services"`
	// EventDensity is the expected number of firings per rule per day.
	EventDensity   float64  `yaml:"eventDensity"`
	AckProbability float64  `yaml:"ackProbability"`
	Responders     []string `yaml:"responders"`
}

// DefaultAlertConfig returns the stock alert history shape.
func DefaultAlertConfig() AlertConfig {
	return AlertConfig{
		Services:       append([]string(nil), DefaultServices...),
		EventDensity:   2,
		AckProbability: 0.7,
		Responders:     append([]string(nil), ackUsers...),
	}
}

// Validate rejects non-positive density and out-of-range probabilities.
func (c AlertConfig) Validate() error {
	const op = "generators.AlertConfig"
	if len(c.Services) == 0 {
		return utils.InvalidConfig(op, "at least one service is required")
	}
	if c.EventDensity <= 0 {
		return utils.InvalidConfig(op, "event density must be positive, got %.3f", c.EventDensity)
	}
	if c.AckProbability < 0 || c.AckProbability > 1 {
		return utils.InvalidConfig(op, "ack probability %.3f outside [0,1]", c.AckProbability)
	}
	return nil
}

func (c AlertConfig) responders() []string {
	if len(c.Responders) == 0 {
		return ackUsers
	}
	return c.Responders
}

// DefaultRules is the rule set used when no rule pack is configured. The
// metrics line up with DefaultMetricProfiles.
func DefaultRules() []models.AlertRule {
	return []models.AlertRule{
		{ID: "rule-high-cpu", Name: "High CPU usage", Metric: "cpu_usage", Condition: models.ConditionGreater, Threshold: 85, DurationMinutes: 5, Severity: models.AlertSeverityWarning, Enabled: true},
		{ID: "rule-memory-pressure", Name: "Memory pressure", Metric: "memory_usage", Condition: models.ConditionGreater, Threshold: 90, DurationMinutes: 10, Severity: models.AlertSeverityCritical, Enabled: true},
		{ID: "rule-error-rate", Name: "Elevated error rate", Metric: "error_rate", Condition: models.ConditionGreater, Threshold: 5, DurationMinutes: 3, Severity: models.AlertSeverityCritical, Enabled: true},
		{ID: "rule-latency-p99", Name: "P99 latency above SLO", Metric: "latency_p99", Condition: models.ConditionGreater, Threshold: 1000, DurationMinutes: 5, Severity: models.AlertSeverityWarning, Enabled: true},
		{ID: "rule-traffic-drop", Name: "Traffic drop", Metric: "request_rate", Condition: models.ConditionLess, Threshold: 10, DurationMinutes: 15, Severity: models.AlertSeverityInfo, Enabled: false},
	}
}

// GenerateAlerts produces round(days*density) events per enabled rule,
// ordered by trigger time. Events whose resolution would fall after the
// window end are left active.
func GenerateAlerts(k *random.Kernel, window models.TimeRange, rules []models.AlertRule, cfg AlertConfig) ([]models.AlertEvent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := window.Validate(); err != nil {
		return nil, utils.InvalidConfig("generators.GenerateAlerts", "%v", err)
	}

	days := window.Duration().Hours() / 24
	perRule := int(math.Round(days * cfg.EventDensity))
	span := float64(window.Duration())

	var events []models.AlertEvent
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		for i := 0; i < perRule; i++ {
			triggered := window.Start.Add(time.Duration(k.UniformFloat(0, span)))
			event := models.AlertEvent{
				ID:          newEntityID(k),
				RuleID:      rule.ID,
				Service:     random.Pick(k, cfg.Services),
				TriggeredAt: triggered,
			}

			resolved := triggered.Add(time.Duration(k.ExponentialInRange(resolveMinMinutes, resolveMaxMinutes) * float64(time.Minute)))
			if !resolved.After(window.End) {
				event.ResolvedAt = &resolved
			}

			if k.Float64() < cfg.AckProbability {
				acked := triggered.Add(time.Duration(k.UniformFloat(0, float64(ackWindow))))
				event.Acknowledged = true
				event.AcknowledgedBy = random.Pick(k, cfg.responders())
				event.AcknowledgedAt = &acked
			}
			events = append(events, event)
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].TriggeredAt.Before(events[j].TriggeredAt)
	})
	return events, nil
}
