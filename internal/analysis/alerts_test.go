package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/mirador-synth/internal/models"
)

func ptr(t time.Time) *time.Time { return &t }

func TestCorrelateAlerts(t *testing.T) {
	rules := []models.AlertRule{
		{ID: "cpu", Severity: models.AlertSeverityWarning},
		{ID: "errors", Severity: models.AlertSeverityCritical},
	}
	events := []models.AlertEvent{
		{ID: "1", RuleID: "cpu", TriggeredAt: t0, ResolvedAt: ptr(t0.Add(20 * time.Minute)), Acknowledged: true, AcknowledgedAt: ptr(t0.Add(2 * time.Minute))},
		{ID: "2", RuleID: "cpu", TriggeredAt: t0.Add(time.Hour), ResolvedAt: ptr(t0.Add(time.Hour + 40*time.Minute))},
		{ID: "3", RuleID: "errors", TriggeredAt: t0.Add(2 * time.Hour), Acknowledged: true, AcknowledgedAt: ptr(t0.Add(2*time.Hour + 4*time.Minute))},
		{ID: "4", RuleID: "errors", TriggeredAt: t0.Add(3 * time.Hour)},
		{ID: "5", RuleID: "gone", TriggeredAt: t0.Add(4 * time.Hour)},
	}

	c := CorrelateAlerts(events, rules)
	assert.Equal(t, 5, c.Total)
	assert.Equal(t, 3, c.Active)
	assert.Equal(t, 2, c.Resolved)
	assert.Equal(t, 2, c.Acknowledged)
	assert.Equal(t, 30*time.Minute, c.MTTR)
	assert.Equal(t, 3*time.Minute, c.MTTA)

	critical := c.ActiveBySeverity[models.AlertSeverityCritical]
	require.Len(t, critical, 2)
	assert.Equal(t, "4", critical[0].ID)
	assert.Equal(t, "3", critical[1].ID)
	assert.Len(t, c.ActiveBySeverity[models.AlertSeverityInfo], 1)
	assert.Empty(t, c.ActiveBySeverity[models.AlertSeverityWarning])
}

func TestCorrelateAlertsEmpty(t *testing.T) {
	c := CorrelateAlerts(nil, nil)
	assert.Zero(t, c.Total)
	assert.Zero(t, c.MTTR)
	assert.Zero(t, c.MTTA)
	assert.Empty(t, c.ActiveBySeverity)
}
