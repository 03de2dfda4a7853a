package detector

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/bhuwanb23/profitpulse-anomaly/internal/domain/errors"
)

// StatMethod selects the statistical bound used by the detector. Chosen once
// at construction; never re-dispatched per call.
type StatMethod int

const (
	// StatZScore flags a row when any column's absolute z-score exceeds the
	// threshold, using per-column mean/std fitted on training data.
	StatZScore StatMethod = iota
)

// ParseStatMethod converts a configuration string into a StatMethod.
func ParseStatMethod(s string) (StatMethod, error) {
	switch s {
	case "", "zscore":
		return StatZScore, nil
	default:
		return 0, errors.NewValidationError("UNKNOWN_STAT_METHOD", "unknown statistical method: "+s)
	}
}

// Statistical is the z-score anomaly detector. It fits per-column mean and
// standard deviation on training data and labels a row anomalous when any
// column deviates beyond the threshold.
type Statistical struct {
	method    StatMethod
	threshold float64

	trained bool
	means   []float64
	stds    []float64
}

// NewStatistical creates a z-score detector. A non-positive threshold falls
// back to the conventional 3-sigma bound.
func NewStatistical(method StatMethod, threshold float64) *Statistical {
	if threshold <= 0 {
		threshold = 3.0
	}
	return &Statistical{method: method, threshold: threshold}
}

func (d *Statistical) Name() string { return "statistical" }

// Train fits per-column mean/std. Columns with zero variance get a unit std
// so later z-scores stay finite.
func (d *Statistical) Train(X [][]float64) error {
	if len(X) == 0 || len(X[0]) == 0 {
		return errors.NewTrainingError(d.Name(), "empty training matrix")
	}
	cols := len(X[0])
	d.means = make([]float64, cols)
	d.stds = make([]float64, cols)

	col := make([]float64, len(X))
	for j := 0; j < cols; j++ {
		for i, row := range X {
			if len(row) != cols {
				return errors.NewTrainingError(d.Name(), "ragged training matrix")
			}
			col[i] = row[j]
		}
		mean, std := stat.MeanStdDev(col, nil)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		d.means[j] = mean
		d.stds[j] = std
	}
	d.trained = true
	return nil
}

func (d *Statistical) Predict(X [][]float64) ([]int, error) {
	scores, err := d.AnomalyScores(X)
	if err != nil {
		return nil, err
	}
	labels := make([]int, len(scores))
	for i, s := range scores {
		if s > d.threshold {
			labels[i] = -1
		} else {
			labels[i] = 1
		}
	}
	return labels, nil
}

// AnomalyScores returns the maximum absolute column z-score per row.
func (d *Statistical) AnomalyScores(X [][]float64) ([]float64, error) {
	if !d.trained {
		return nil, ErrNotTrained
	}
	if err := validateMatrix(d.Name(), X, len(d.means)); err != nil {
		return nil, err
	}
	scores := make([]float64, len(X))
	for i, row := range X {
		maxZ := 0.0
		for j, v := range row {
			z := math.Abs(v-d.means[j]) / d.stds[j]
			if z > maxZ {
				maxZ = z
			}
		}
		scores[i] = maxZ
	}
	return scores, nil
}
