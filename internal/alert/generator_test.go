package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bhuwanb23/profitpulse-anomaly/internal/domain/anomaly"
)

func TestGenerator_GenerateAlert(t *testing.T) {
	g := NewGenerator(nil, zap.NewNop())
	data := anomaly.Record{"cpu_usage": 99.0}

	a := g.GenerateAlert(data, anomaly.SeverityHigh, "")
	require.NotNil(t, a)
	assert.Equal(t, int64(1), a.AlertID)
	assert.Equal(t, int64(1), a.AnomalyID)
	assert.Equal(t, "Anomaly detected with high severity", a.Message)
	assert.Equal(t, anomaly.AlertSource, a.Source)
	assert.Equal(t, 0, a.Level())
	assert.False(t, a.IsHandled())

	// The alert's data is a snapshot, insulated from later mutation.
	data["cpu_usage"] = 1.0
	assert.Equal(t, 99.0, a.Data["cpu_usage"])

	b := g.GenerateAlert(anomaly.Record{}, anomaly.SeverityLow, "{severity} anomaly on stream")
	require.NotNil(t, b)
	assert.Equal(t, int64(2), b.AlertID)
	assert.Equal(t, "low anomaly on stream", b.Message)
}

func TestGenerator_SuppressedAlertLeavesNoTrace(t *testing.T) {
	fp := NewFalsePositiveDetector()
	fp.AddPattern(FalsePositivePattern{Fields: anomaly.Record{"job": "nightly_batch"}})
	g := NewGenerator(fp, zap.NewNop())

	fired := 0
	g.RegisterHandler(func(*anomaly.Alert) { fired++ })

	a := g.GenerateAlert(anomaly.Record{"job": "nightly_batch"}, anomaly.SeverityCritical, "")
	assert.Nil(t, a)
	assert.Equal(t, 0, fired)
	assert.Empty(t, g.AlertHistory(0, nil))

	// The suppressed anomaly did not consume an id.
	b := g.GenerateAlert(anomaly.Record{"job": "other"}, anomaly.SeverityLow, "")
	require.NotNil(t, b)
	assert.Equal(t, int64(1), b.AlertID)
}

func TestGenerator_HandlerIsolation(t *testing.T) {
	g := NewGenerator(nil, zap.NewNop())

	calls := []string{}
	g.RegisterHandler(func(*anomaly.Alert) { calls = append(calls, "first") })
	g.RegisterHandler(func(*anomaly.Alert) { panic("handler exploded") })
	g.RegisterHandler(func(*anomaly.Alert) { calls = append(calls, "third") })

	var a *anomaly.Alert
	assert.NotPanics(t, func() {
		a = g.GenerateAlert(anomaly.Record{}, anomaly.SeverityMedium, "")
	})
	require.NotNil(t, a)
	assert.Equal(t, []string{"first", "third"}, calls)
}

func TestGenerator_DuplicateHandlerRegistrationsBothFire(t *testing.T) {
	g := NewGenerator(nil, zap.NewNop())

	count := 0
	h := func(*anomaly.Alert) { count++ }
	g.RegisterHandler(h)
	g.RegisterHandler(h)

	g.GenerateAlert(anomaly.Record{}, anomaly.SeverityLow, "")
	assert.Equal(t, 2, count)
}

func TestGenerator_GenerateBatchAlerts(t *testing.T) {
	fp := NewFalsePositiveDetector()
	fp.AddPattern(FalsePositivePattern{Fields: anomaly.Record{"known": "benign"}})
	g := NewGenerator(fp, zap.NewNop())

	data := []anomaly.Record{
		{"v": 1.0},
		{"known": "benign"},
		{"v": 3.0},
	}
	severities := []anomaly.Severity{anomaly.SeverityLow, anomaly.SeverityHigh, anomaly.SeverityCritical}

	out := g.GenerateBatchAlerts(data, severities, "")
	require.Len(t, out, 3)
	assert.NotNil(t, out[0])
	assert.Nil(t, out[1])
	assert.NotNil(t, out[2])
	assert.Equal(t, anomaly.SeverityCritical, out[2].Severity)

	// Mismatched lengths yield an all-nil result rather than a panic.
	short := g.GenerateBatchAlerts(data, severities[:2], "")
	require.Len(t, short, 3)
	for _, a := range short {
		assert.Nil(t, a)
	}
}

func TestGenerator_AlertHistoryFilters(t *testing.T) {
	g := NewGenerator(nil, zap.NewNop())
	base := time.Now()

	g.now = func() time.Time { return base.Add(-48 * time.Hour) }
	g.GenerateAlert(anomaly.Record{}, anomaly.SeverityLow, "")

	g.now = func() time.Time { return base.Add(-time.Hour) }
	g.GenerateAlert(anomaly.Record{}, anomaly.SeverityHigh, "")
	g.GenerateAlert(anomaly.Record{}, anomaly.SeverityLow, "")

	g.now = func() time.Time { return base }

	assert.Len(t, g.AlertHistory(0, nil), 3)
	assert.Len(t, g.AlertHistory(24, nil), 2)

	high := anomaly.SeverityHigh
	byHigh := g.AlertHistory(24, &high)
	require.Len(t, byHigh, 1)
	assert.Equal(t, anomaly.SeverityHigh, byHigh[0].Severity)
}

func TestGenerator_OpenAlerts(t *testing.T) {
	g := NewGenerator(nil, zap.NewNop())

	a := g.GenerateAlert(anomaly.Record{}, anomaly.SeverityLow, "")
	b := g.GenerateAlert(anomaly.Record{}, anomaly.SeverityHigh, "")
	require.NotNil(t, a)
	require.NotNil(t, b)

	a.MarkHandled(time.Now())
	open := g.OpenAlerts()
	require.Len(t, open, 1)
	assert.Equal(t, b.AlertID, open[0].AlertID)
}
