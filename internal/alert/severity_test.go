package alert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bhuwanb23/profitpulse-anomaly/internal/domain/anomaly"
)

func defaultClassifier(t *testing.T) *SeverityClassifier {
	t.Helper()
	c, err := NewSeverityClassifier(DefaultSeverityThresholds(), nil)
	require.NoError(t, err)
	return c
}

func TestSeverityClassifier_BandMapping(t *testing.T) {
	c := defaultClassifier(t)

	tests := []struct {
		score float64
		want  anomaly.Severity
	}{
		{0.0, anomaly.SeverityLow},
		{0.2, anomaly.SeverityLow},
		{0.3, anomaly.SeverityMedium},
		{0.5, anomaly.SeverityMedium},
		{0.6, anomaly.SeverityHigh},
		{0.7, anomaly.SeverityHigh},
		{0.8, anomaly.SeverityCritical},
		{0.9, anomaly.SeverityCritical},
		{1.0, anomaly.SeverityCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.ScoreToSeverity(tt.score), "score %.2f", tt.score)
	}
}

func TestSeverityClassifier_ScoreRenormalizesOverPresentColumns(t *testing.T) {
	c := defaultClassifier(t)

	// With only anomaly_score present its weight renormalizes to 1.
	assert.InDelta(t, 0.7, c.SeverityScore(map[string]float64{ColAnomalyScore: 0.7}), 1e-9)

	// All columns equal keeps the score at that value regardless of weights.
	full := map[string]float64{
		ColAnomalyScore:    0.4,
		ColFrequencyFactor: 0.4,
		ColImpactFactor:    0.4,
	}
	assert.InDelta(t, 0.4, c.SeverityScore(full), 1e-9)

	// An empty row scores zero.
	assert.Equal(t, 0.0, c.SeverityScore(map[string]float64{}))
	assert.Equal(t, 0.0, c.SeverityScore(map[string]float64{"unrelated": 5}))
}

func TestSeverityClassifier_ScoreClamped(t *testing.T) {
	c := defaultClassifier(t)
	assert.Equal(t, 1.0, c.SeverityScore(map[string]float64{ColAnomalyScore: 7}))
	assert.Equal(t, 0.0, c.SeverityScore(map[string]float64{ColAnomalyScore: -3}))
}

func TestSeverityClassifier_ClassifyPreservesOrder(t *testing.T) {
	c := defaultClassifier(t)

	rows := []map[string]float64{
		{ColAnomalyScore: 0.9},
		{ColAnomalyScore: 0.1},
		{ColAnomalyScore: 0.5},
	}
	got := c.Classify(rows)
	require.Len(t, got, 3)
	assert.Equal(t, anomaly.SeverityCritical, got[0])
	assert.Equal(t, anomaly.SeverityLow, got[1])
	assert.Equal(t, anomaly.SeverityMedium, got[2])

	batches := c.BatchClassify([][]map[string]float64{rows, rows[:1]})
	require.Len(t, batches, 2)
	assert.Len(t, batches[0], 3)
	assert.Len(t, batches[1], 1)
}

func TestSeverityThresholds_Validate(t *testing.T) {
	assert.NoError(t, DefaultSeverityThresholds().Validate())
	assert.Error(t, SeverityThresholds{Low: 0.6, Medium: 0.3, High: 0.8}.Validate())
	assert.Error(t, SeverityThresholds{Low: 0, Medium: 0.5, High: 0.8}.Validate())

	_, err := NewSeverityClassifier(SeverityThresholds{Low: 0.9, Medium: 0.5, High: 0.1}, nil)
	assert.Error(t, err)
}

func TestImpactAssessor_WeightedSum(t *testing.T) {
	a := NewImpactAssessor(nil)

	scores := a.AssessImpact([]map[string]float64{
		{ColFinancialImpact: 1, ColOperationalImpact: 1, ColReputationalImpact: 1, ColRegulatoryImpact: 1},
		{ColFinancialImpact: 0.5},
		{},
		{"unrelated": 1},
	})
	require.Len(t, scores, 4)
	assert.InDelta(t, 1.0, scores[0], 1e-9)
	assert.InDelta(t, 0.2, scores[1], 1e-9)
	assert.Equal(t, 0.0, scores[2])
	assert.Equal(t, 0.0, scores[3])
}
