package models

import (
	"fmt"
	"strings"
	"time"
)

// Condition compares a metric value against a rule threshold.
type Condition string

const (
	ConditionGreater  Condition = ">"
	ConditionLess     Condition = "<"
	ConditionEqual    Condition = "="
	ConditionNotEqual Condition = "!="
)

// ParseCondition accepts the symbolic forms used in rule packs, including "≠" and "==".
func ParseCondition(v string) (Condition, error) {
	switch strings.TrimSpace(v) {
	case ">", "gt":
		return ConditionGreater, nil
	case "<", "lt":
		return ConditionLess, nil
	case "=", "==", "eq":
		return ConditionEqual, nil
	case "!=", "≠", "ne":
		return ConditionNotEqual, nil
	default:
		return "", fmt.Errorf("unknown condition %q", v)
	}
}

// Evaluate reports whether value breaches threshold under the condition.
func (c Condition) Evaluate(value, threshold float64) bool {
	switch c {
	case ConditionGreater:
		return value > threshold
	case ConditionLess:
		return value < threshold
	case ConditionEqual:
		return value == threshold
	case ConditionNotEqual:
		return value != threshold
	default:
		return false
	}
}

// AlertSeverity ranks alert rules.
type AlertSeverity string

const (
	AlertSeverityCritical AlertSeverity = "critical"
	AlertSeverityWarning  AlertSeverity = "warning"
	AlertSeverityInfo     AlertSeverity = "info"
)

// ParseAlertSeverity accepts any casing of a known severity.
func ParseAlertSeverity(v string) (AlertSeverity, error) {
	switch s := AlertSeverity(strings.ToLower(strings.TrimSpace(v))); s {
	case AlertSeverityCritical, AlertSeverityWarning, AlertSeverityInfo:
		return s, nil
	default:
		return "", fmt.Errorf("unknown severity %q", v)
	}
}

// AlertRule describes when an alert fires.
type AlertRule struct {
	ID              string        `json:"id" yaml:"id"`
	Name            string        `json:"name" yaml:"name"`
	Metric          string        `json:"metric" yaml:"metric"`
	Condition       Condition     `json:"condition" yaml:"condition"`
	Threshold       float64       `json:"threshold" yaml:"threshold"`
	DurationMinutes int           `json:"durationMinutes" yaml:"durationMinutes"`
	Severity        AlertSeverity `json:"severity" yaml:"severity"`
	Enabled         bool          `json:"enabled" yaml:"enabled"`
}

// Breached evaluates the rule condition against a single value.
func (r AlertRule) Breached(value float64) bool {
	return r.Condition.Evaluate(value, r.Threshold)
}

// AlertEvent is one firing of a rule. ResolvedAt is nil while the alert is active.
type AlertEvent struct {
	ID             string     `json:"id"`
	RuleID         string     `json:"ruleId"`
	Service        string     `json:"service"`
	TriggeredAt    time.Time  `json:"triggeredAt"`
	ResolvedAt     *time.Time `json:"resolvedAt,omitempty"`
	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedBy string     `json:"acknowledgedBy,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledgedAt,omitempty"`
}

// Active reports whether the event is still unresolved.
func (e AlertEvent) Active() bool {
	return e.ResolvedAt == nil
}
