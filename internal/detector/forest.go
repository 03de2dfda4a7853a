package detector

import (
	"math"
	"math/rand"
	"time"

	"github.com/bhuwanb23/profitpulse-anomaly/internal/domain/errors"
)

// TrainResult carries fit diagnostics so training failures can be reported
// without raising.
type TrainResult struct {
	Success     bool                   `json:"success"`
	Model       string                 `json:"model"`
	Samples     int                    `json:"samples"`
	Features    int                    `json:"features"`
	Trees       int                    `json:"trees"`
	DurationMS  int64                  `json:"duration_ms"`
	Error       string                 `json:"error,omitempty"`
	Diagnostics map[string]interface{} `json:"diagnostics,omitempty"`
}

// IsolationForest is the general outlier-scoring estimator behind the
// machine-learning detector variant. Shorter average isolation path means a
// more anomalous point.
type IsolationForest struct {
	trees      int
	sampleSize int
	threshold  float64
	rng        *rand.Rand

	trained bool
	cols    int
	forest  []*isoTree
	cFactor float64
}

type isoTree struct {
	splitCol  int
	splitVal  float64
	left      *isoTree
	right     *isoTree
	size      int
	depth     int
	isLeaf    bool
}

// NewIsolationForest creates a forest estimator. Zero values select the
// conventional 100 trees, 256-point subsamples, and a 0.6 score threshold.
func NewIsolationForest(trees, sampleSize int, threshold float64, seed int64) *IsolationForest {
	if trees <= 0 {
		trees = 100
	}
	if sampleSize <= 0 {
		sampleSize = 256
	}
	if threshold <= 0 {
		threshold = 0.6
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &IsolationForest{
		trees:      trees,
		sampleSize: sampleSize,
		threshold:  threshold,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

func (d *IsolationForest) Name() string { return "isolation_forest" }

// Train satisfies the Detector contract; Fit carries the diagnostics.
func (d *IsolationForest) Train(X [][]float64) error {
	result := d.Fit(X)
	if !result.Success {
		return errors.NewTrainingError(d.Name(), result.Error)
	}
	return nil
}

// Fit builds the forest and reports diagnostics rather than raising.
func (d *IsolationForest) Fit(X [][]float64) TrainResult {
	start := time.Now()
	result := TrainResult{Model: d.Name(), Trees: d.trees, Samples: len(X)}

	if len(X) == 0 || len(X[0]) == 0 {
		result.Error = "empty training matrix"
		return result
	}
	cols := len(X[0])
	for _, row := range X {
		if len(row) != cols {
			result.Error = "ragged training matrix"
			return result
		}
	}
	result.Features = cols

	sample := d.sampleSize
	if sample > len(X) {
		sample = len(X)
	}
	maxDepth := int(math.Ceil(math.Log2(float64(sample)))) + 1

	d.cols = cols
	d.forest = make([]*isoTree, d.trees)
	for t := 0; t < d.trees; t++ {
		sub := d.subsample(X, sample)
		d.forest[t] = d.buildTree(sub, 0, maxDepth)
	}
	d.cFactor = averagePathLength(sample)
	d.trained = true

	result.Success = true
	result.DurationMS = time.Since(start).Milliseconds()
	result.Diagnostics = map[string]interface{}{
		"subsample_size": sample,
		"max_depth":      maxDepth,
	}
	return result
}

func (d *IsolationForest) Predict(X [][]float64) ([]int, error) {
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

// AnomalyScores returns the standard isolation score 2^(-E(h)/c(n)) in
// (0, 1); values near 1 indicate short isolation paths.
func (d *IsolationForest) AnomalyScores(X [][]float64) ([]float64, error) {
	if !d.trained {
		return nil, ErrNotTrained
	}
	if err := validateMatrix(d.Name(), X, d.cols); err != nil {
		return nil, err
	}
	scores := make([]float64, len(X))
	for i, row := range X {
		totalPath := 0.0
		for _, tree := range d.forest {
			totalPath += pathLength(tree, row)
		}
		avgPath := totalPath / float64(len(d.forest))
		scores[i] = math.Pow(2, -avgPath/d.cFactor)
	}
	return scores, nil
}

func (d *IsolationForest) subsample(X [][]float64, n int) [][]float64 {
	idx := d.rng.Perm(len(X))[:n]
	sub := make([][]float64, n)
	for i, j := range idx {
		sub[i] = X[j]
	}
	return sub
}

func (d *IsolationForest) buildTree(X [][]float64, depth, maxDepth int) *isoTree {
	if len(X) <= 1 || depth >= maxDepth {
		return &isoTree{isLeaf: true, size: len(X), depth: depth}
	}

	col := d.rng.Intn(d.cols)
	lo, hi := X[0][col], X[0][col]
	for _, row := range X {
		if row[col] < lo {
			lo = row[col]
		}
		if row[col] > hi {
			hi = row[col]
		}
	}
	if lo == hi {
		return &isoTree{isLeaf: true, size: len(X), depth: depth}
	}
	split := lo + d.rng.Float64()*(hi-lo)

	var left, right [][]float64
	for _, row := range X {
		if row[col] < split {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}
	return &isoTree{
		splitCol: col,
		splitVal: split,
		left:     d.buildTree(left, depth+1, maxDepth),
		right:    d.buildTree(right, depth+1, maxDepth),
		size:     len(X),
		depth:    depth,
	}
}

func pathLength(t *isoTree, x []float64) float64 {
	for !t.isLeaf {
		if x[t.splitCol] < t.splitVal {
			t = t.left
		} else {
			t = t.right
		}
	}
	return float64(t.depth) + averagePathLength(t.size)
}

// averagePathLength is c(n), the expected path length of an unsuccessful
// BST search over n points.
func averagePathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	h := math.Log(float64(n-1)) + 0.5772156649 // Euler-Mascheroni
	return 2*h - 2*float64(n-1)/float64(n)
}
