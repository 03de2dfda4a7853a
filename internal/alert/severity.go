// Package alert turns confirmed anomalies into classified, deduplicated,
// escalating alerts.
package alert

import (
	"github.com/bhuwanb23/profitpulse-anomaly/internal/domain/anomaly"
	"github.com/bhuwanb23/profitpulse-anomaly/internal/domain/errors"
)

// SeverityThresholds are the monotonically increasing cut points that
// partition [0, 1] into the four severity bands.
type SeverityThresholds struct {
	Low    float64 `json:"low"`
	Medium float64 `json:"medium"`
	High   float64 `json:"high"`
}

// DefaultSeverityThresholds partition scores at 0.3 / 0.6 / 0.8.
func DefaultSeverityThresholds() SeverityThresholds {
	return SeverityThresholds{Low: 0.3, Medium: 0.6, High: 0.8}
}

// Validate enforces ordered, contiguous bands inside [0, 1].
func (t SeverityThresholds) Validate() error {
	if !(t.Low > 0 && t.Low < t.Medium && t.Medium < t.High && t.High < 1) {
		return errors.NewValidationError("BAD_SEVERITY_THRESHOLDS",
			"severity thresholds must satisfy 0 < low < medium < high < 1")
	}
	return nil
}

// Severity score feature columns recognized by the classifier.
const (
	ColAnomalyScore    = "anomaly_score"
	ColFrequencyFactor = "frequency_factor"
	ColImpactFactor    = "impact_factor"
)

// SeverityClassifier maps anomaly context rows to ordinal severities via a
// weighted score over whichever recognized columns are present.
type SeverityClassifier struct {
	thresholds SeverityThresholds
	weights    map[string]float64
}

// NewSeverityClassifier builds a classifier. Nil weights select the default
// weighting of 0.5 / 0.25 / 0.25 over score, frequency, and impact.
func NewSeverityClassifier(thresholds SeverityThresholds, weights map[string]float64) (*SeverityClassifier, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	if weights == nil {
		weights = map[string]float64{
			ColAnomalyScore:    0.5,
			ColFrequencyFactor: 0.25,
			ColImpactFactor:    0.25,
		}
	}
	return &SeverityClassifier{thresholds: thresholds, weights: weights}, nil
}

// SeverityScore computes the weighted sum over the columns present in the
// row. Absent columns contribute zero and the weights renormalize over the
// present subset. The result is clamped to [0, 1].
func (c *SeverityClassifier) SeverityScore(row map[string]float64) float64 {
	total := 0.0
	weightPresent := 0.0
	for col, w := range c.weights {
		v, ok := row[col]
		if !ok {
			continue
		}
		total += w * v
		weightPresent += w
	}
	if weightPresent == 0 {
		return 0
	}
	return clamp01(total / weightPresent)
}

// ScoreToSeverity maps a score onto its band. Bands are contiguous, ordered,
// and cover all of [0, 1].
func (c *SeverityClassifier) ScoreToSeverity(score float64) anomaly.Severity {
	switch {
	case score < c.thresholds.Low:
		return anomaly.SeverityLow
	case score < c.thresholds.Medium:
		return anomaly.SeverityMedium
	case score < c.thresholds.High:
		return anomaly.SeverityHigh
	default:
		return anomaly.SeverityCritical
	}
}

// Classify applies score computation and band mapping per row, preserving
// order and cardinality.
func (c *SeverityClassifier) Classify(rows []map[string]float64) []anomaly.Severity {
	out := make([]anomaly.Severity, len(rows))
	for i, row := range rows {
		out[i] = c.ScoreToSeverity(c.SeverityScore(row))
	}
	return out
}

// BatchClassify applies Classify per row set, preserving batch order.
func (c *SeverityClassifier) BatchClassify(batches [][]map[string]float64) [][]anomaly.Severity {
	out := make([][]anomaly.Severity, len(batches))
	for i, rows := range batches {
		out[i] = c.Classify(rows)
	}
	return out
}

// SeverityDescription returns the static operator-facing text for a level.
func (c *SeverityClassifier) SeverityDescription(s anomaly.Severity) string {
	return s.Description()
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
