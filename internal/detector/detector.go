// Package detector provides the closed set of anomaly detector variants and
// the ensemble that combines their votes.
package detector

import (
	"sort"

	"github.com/bhuwanb23/profitpulse-anomaly/internal/domain/anomaly"
	"github.com/bhuwanb23/profitpulse-anomaly/internal/domain/errors"
)

// Detector is the common contract shared by all variants. Train fits the
// model on a sample matrix (rows are samples, columns features), Predict
// returns one binary label in {-1, 1} per row, and AnomalyScores returns a
// continuous score per row where higher means more anomalous.
type Detector interface {
	Name() string
	Train(X [][]float64) error
	Predict(X [][]float64) ([]int, error)
	AnomalyScores(X [][]float64) ([]float64, error)
}

// ErrNotTrained is returned by Predict/AnomalyScores before a successful fit.
var ErrNotTrained = errors.NewInternalError("detector has not been trained")

func validateMatrix(name string, X [][]float64, wantCols int) error {
	if len(X) == 0 {
		return errors.NewValidationError("EMPTY_INPUT", name+": empty sample matrix")
	}
	for _, row := range X {
		if len(row) != wantCols {
			return errors.NewValidationError("COLUMN_MISMATCH", name+": row width does not match training data")
		}
	}
	return nil
}

// Schema fixes the column order of a feature space so that map-shaped
// feature vectors translate into consistent matrix rows.
type Schema struct {
	cols []string
}

// NewSchema builds a schema from the union of feature names across the
// warmup vectors, in sorted order.
func NewSchema(vectors []anomaly.FeatureVector) Schema {
	seen := make(map[string]struct{})
	for _, fv := range vectors {
		for name := range fv.Values {
			seen[name] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for name := range seen {
		cols = append(cols, name)
	}
	sort.Strings(cols)
	return Schema{cols: cols}
}

// Columns returns the ordered feature names.
func (s Schema) Columns() []string {
	return append([]string(nil), s.cols...)
}

// Row projects a feature vector onto the schema's column order. Features the
// vector lacks contribute zero.
func (s Schema) Row(fv anomaly.FeatureVector) []float64 {
	row := make([]float64, len(s.cols))
	for i, name := range s.cols {
		row[i] = fv.Values[name]
	}
	return row
}

// Matrix projects a batch of feature vectors.
func (s Schema) Matrix(vectors []anomaly.FeatureVector) [][]float64 {
	X := make([][]float64, len(vectors))
	for i, fv := range vectors {
		X[i] = s.Row(fv)
	}
	return X
}
