package detector

import (
	"github.com/bhuwanb23/profitpulse-anomaly/internal/domain/errors"
)

// DBSCAN fits a density model on training data and, at prediction time, maps
// points falling in low-density regions to -1 and everything else to 1.
//
// The binary mapping is a deliberate simplification of DBSCAN's native
// multi-cluster output: a point is "noise" when fewer than minSamples
// training points (itself excluded) lie within eps of it.
type DBSCAN struct {
	eps        float64
	minSamples int

	trained bool
	cols    int
	points  [][]float64
}

// NewDBSCAN creates a density-based detector. Non-positive parameters fall
// back to eps=0.5, minSamples=5.
func NewDBSCAN(eps float64, minSamples int) *DBSCAN {
	if eps <= 0 {
		eps = 0.5
	}
	if minSamples <= 0 {
		minSamples = 5
	}
	return &DBSCAN{eps: eps, minSamples: minSamples}
}

func (d *DBSCAN) Name() string { return "dbscan" }

func (d *DBSCAN) Train(X [][]float64) error {
	if len(X) == 0 || len(X[0]) == 0 {
		return errors.NewTrainingError(d.Name(), "empty training matrix")
	}
	d.cols = len(X[0])
	d.points = make([][]float64, len(X))
	for i, row := range X {
		if len(row) != d.cols {
			return errors.NewTrainingError(d.Name(), "ragged training matrix")
		}
		d.points[i] = append([]float64(nil), row...)
	}
	d.trained = true
	return nil
}

func (d *DBSCAN) Predict(X [][]float64) ([]int, error) {
	if !d.trained {
		return nil, ErrNotTrained
	}
	if err := validateMatrix(d.Name(), X, d.cols); err != nil {
		return nil, err
	}
	labels := make([]int, len(X))
	for i, row := range X {
		if d.neighbors(row) < d.minSamples {
			labels[i] = -1
		} else {
			labels[i] = 1
		}
	}
	return labels, nil
}

// AnomalyScores returns the density deficit per row: 0 when the neighborhood
// is at least minSamples, approaching 1 as the neighborhood empties.
func (d *DBSCAN) AnomalyScores(X [][]float64) ([]float64, error) {
	if !d.trained {
		return nil, ErrNotTrained
	}
	if err := validateMatrix(d.Name(), X, d.cols); err != nil {
		return nil, err
	}
	scores := make([]float64, len(X))
	for i, row := range X {
		n := d.neighbors(row)
		if n >= d.minSamples {
			scores[i] = 0
		} else {
			scores[i] = 1 - float64(n)/float64(d.minSamples)
		}
	}
	return scores, nil
}

func (d *DBSCAN) neighbors(x []float64) int {
	count := 0
	eps2 := d.eps * d.eps
	for _, p := range d.points {
		dist2 := 0.0
		for j := range p {
			diff := x[j] - p[j]
			dist2 += diff * diff
		}
		// exclude an exact self-match
		if dist2 <= eps2 && dist2 > 0 {
			count++
		}
	}
	return count
}
