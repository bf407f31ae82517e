package analysis

import (
	"sort"
	"time"

	"github.com/miradorstack/mirador-synth/internal/models"
)

// AlertCorrelation groups active alerts and reports lifecycle latencies.
type AlertCorrelation struct {
	// ActiveBySeverity holds unresolved events, most recent trigger first.
	ActiveBySeverity map[models.AlertSeverity][]models.AlertEvent `json:"activeBySeverity"`
	Total            int                                          `json:"total"`
	Active           int                                          `json:"active"`
	Resolved         int                                          `json:"resolved"`
	Acknowledged     int                                          `json:"acknowledged"`
	MTTR             time.Duration                                `json:"mttr"`
	MTTA             time.Duration                                `json:"mtta"`
}

// CorrelateAlerts groups active events by the severity of their rule.
// Events whose rule is unknown are grouped as info.
func CorrelateAlerts(events []models.AlertEvent, rules []models.AlertRule) AlertCorrelation {
	out := AlertCorrelation{
		ActiveBySeverity: map[models.AlertSeverity][]models.AlertEvent{},
		Total:            len(events),
	}
	severity := make(map[string]models.AlertSeverity, len(rules))
	for _, r := range rules {
		severity[r.ID] = r.Severity
	}

	var resolveTotal, ackTotal time.Duration
	for _, e := range events {
		if e.ResolvedAt != nil {
			out.Resolved++
			resolveTotal += e.ResolvedAt.Sub(e.TriggeredAt)
		} else {
			out.Active++
			sev, ok := severity[e.RuleID]
			if !ok || sev == "" {
				sev = models.AlertSeverityInfo
			}
			out.ActiveBySeverity[sev] = append(out.ActiveBySeverity[sev], e)
		}
		if e.Acknowledged && e.AcknowledgedAt != nil {
			out.Acknowledged++
			ackTotal += e.AcknowledgedAt.Sub(e.TriggeredAt)
		}
	}

	for sev := range out.ActiveBySeverity {
		group := out.ActiveBySeverity[sev]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].TriggeredAt.After(group[j].TriggeredAt)
		})
	}
	if out.Resolved > 0 {
		out.MTTR = resolveTotal / time.Duration(out.Resolved)
	}
	if out.Acknowledged > 0 {
		out.MTTA = ackTotal / time.Duration(out.Acknowledged)
	}
	return out
}
