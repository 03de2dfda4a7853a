package detector

import (
	"math"
	"sort"

	"github.com/bhuwanb23/profitpulse-anomaly/internal/domain/errors"
)

// OneClassSVM fits a one-class boundary around the training distribution and
// labels points outside it as anomalous.
//
// This is a kernel-distance simplification of the full support-vector
// formulation: similarity to the training mass is the mean RBF kernel value
// against the training points, and the decision boundary is placed at the
// nu-quantile of the training points' own similarities. Points less similar
// than roughly the nu fraction of training data fall outside.
type OneClassSVM struct {
	nu    float64
	gamma float64

	trained  bool
	cols     int
	support  [][]float64
	boundary float64
}

// NewOneClassSVM creates a one-class boundary model. nu is the expected
// anomaly fraction in (0, 1); gamma the RBF kernel width. Out-of-range
// values fall back to the conventional defaults (0.05, 0.1).
func NewOneClassSVM(nu, gamma float64) *OneClassSVM {
	if nu <= 0 || nu >= 1 {
		nu = 0.05
	}
	if gamma <= 0 {
		gamma = 0.1
	}
	return &OneClassSVM{nu: nu, gamma: gamma}
}

func (d *OneClassSVM) Name() string { return "one_class_svm" }

func (d *OneClassSVM) Train(X [][]float64) error {
	if len(X) == 0 || len(X[0]) == 0 {
		return errors.NewTrainingError(d.Name(), "empty training matrix")
	}
	d.cols = len(X[0])
	d.support = make([][]float64, len(X))
	for i, row := range X {
		if len(row) != d.cols {
			return errors.NewTrainingError(d.Name(), "ragged training matrix")
		}
		d.support[i] = append([]float64(nil), row...)
	}

	sims := make([]float64, len(d.support))
	for i, row := range d.support {
		sims[i] = d.similarity(row)
	}
	sort.Float64s(sims)

	// boundary at the nu-quantile: the nu fraction of least-similar
	// training points sit on or outside it
	idx := int(d.nu * float64(len(sims)))
	if idx >= len(sims) {
		idx = len(sims) - 1
	}
	d.boundary = sims[idx]
	d.trained = true
	return nil
}

func (d *OneClassSVM) Predict(X [][]float64) ([]int, error) {
	if !d.trained {
		return nil, ErrNotTrained
	}
	if err := validateMatrix(d.Name(), X, d.cols); err != nil {
		return nil, err
	}
	labels := make([]int, len(X))
	for i, row := range X {
		if d.similarity(row) < d.boundary {
			labels[i] = -1
		} else {
			labels[i] = 1
		}
	}
	return labels, nil
}

// AnomalyScores returns boundary-relative dissimilarity: values above 1 lie
// outside the fitted boundary.
func (d *OneClassSVM) AnomalyScores(X [][]float64) ([]float64, error) {
	if !d.trained {
		return nil, ErrNotTrained
	}
	if err := validateMatrix(d.Name(), X, d.cols); err != nil {
		return nil, err
	}
	scores := make([]float64, len(X))
	for i, row := range X {
		sim := d.similarity(row)
		if d.boundary > 0 {
			scores[i] = (d.boundary - sim) / d.boundary
		} else {
			scores[i] = 1 - sim
		}
	}
	return scores, nil
}

// similarity is the mean RBF kernel value between x and the training points.
func (d *OneClassSVM) similarity(x []float64) float64 {
	total := 0.0
	for _, sv := range d.support {
		dist2 := 0.0
		for j := range sv {
			diff := x[j] - sv[j]
			dist2 += diff * diff
		}
		total += math.Exp(-d.gamma * dist2)
	}
	return total / float64(len(d.support))
}
