package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bhuwanb23/profitpulse-anomaly/internal/domain/anomaly"
)

func denseCluster() [][]float64 {
	// 20 points packed inside a 0.2-radius ball around the origin.
	X := make([][]float64, 20)
	for i := range X {
		f := float64(i) / 100
		X[i] = []float64{f, -f}
	}
	return X
}

func TestDBSCAN_NoiseMapping(t *testing.T) {
	d := NewDBSCAN(0.5, 5)
	require.NoError(t, d.Train(denseCluster()))

	labels, err := d.Predict([][]float64{
		{0.05, -0.05}, // inside the cluster
		{50, 50},      // far away
	})
	require.NoError(t, err)
	assert.Equal(t, anomaly.LabelNormal, labels[0])
	assert.Equal(t, anomaly.LabelAnomaly, labels[1])
}

func TestDBSCAN_DensityDeficitScores(t *testing.T) {
	d := NewDBSCAN(0.5, 5)
	require.NoError(t, d.Train(denseCluster()))

	scores, err := d.AnomalyScores([][]float64{{0.05, -0.05}, {50, 50}})
	require.NoError(t, err)
	assert.Equal(t, 0.0, scores[0])
	assert.Equal(t, 1.0, scores[1])
}

func TestDBSCAN_SelfMatchExcluded(t *testing.T) {
	// Four identical points: each sees only three neighbors, itself excluded.
	X := [][]float64{{1, 1}, {1, 1}, {1, 1}, {1, 1}}
	d := NewDBSCAN(0.5, 4)
	require.NoError(t, d.Train(X))

	labels, err := d.Predict([][]float64{{1, 1}})
	require.NoError(t, err)
	assert.Equal(t, anomaly.LabelAnomaly, labels[0])
}

func TestSchema_RowProjection(t *testing.T) {
	vectors := []anomaly.FeatureVector{
		{Values: map[string]float64{"b": 2, "a": 1}},
		{Values: map[string]float64{"c": 3}},
	}
	s := NewSchema(vectors)
	assert.Equal(t, []string{"a", "b", "c"}, s.Columns())

	row := s.Row(anomaly.FeatureVector{Values: map[string]float64{"c": 9, "a": 7}})
	assert.Equal(t, []float64{7, 0, 9}, row)

	X := s.Matrix(vectors)
	require.Len(t, X, 2)
	assert.Equal(t, []float64{1, 2, 0}, X[0])
	assert.Equal(t, []float64{0, 0, 3}, X[1])
}
