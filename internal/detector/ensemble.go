package detector

import (
	"sync"

	"go.uber.org/zap"

	"github.com/bhuwanb23/profitpulse-anomaly/internal/domain/errors"
)

// VotingMethod selects how base-model votes combine. Parsed once at
// construction.
type VotingMethod int

const (
	// VoteMajority weighs every trained model equally.
	VoteMajority VotingMethod = iota
	// VoteWeighted applies the configured per-model weights.
	VoteWeighted
)

// ParseVotingMethod converts a configuration string into a VotingMethod.
func ParseVotingMethod(s string) (VotingMethod, error) {
	switch s {
	case "", "majority":
		return VoteMajority, nil
	case "weighted":
		return VoteWeighted, nil
	default:
		return 0, errors.NewValidationError("UNKNOWN_VOTING_METHOD", "unknown voting method: "+s)
	}
}

// Ensemble combines the closed set of detector variants into one decision.
// Training tolerates per-model failures: the ensemble is trained as long as
// at least one base model fitted successfully, and prediction queries only
// the successfully trained subset.
type Ensemble struct {
	mu      sync.RWMutex
	logger  *zap.Logger
	voting  VotingMethod
	members []member
}

type member struct {
	detector Detector
	weight   float64
	trained  bool
}

// NewEnsemble builds an ensemble over the given detectors. weights pairs
// with detectors by position; missing or non-positive entries default to 1.
func NewEnsemble(voting VotingMethod, detectors []Detector, weights []float64, logger *zap.Logger) *Ensemble {
	members := make([]member, len(detectors))
	for i, d := range detectors {
		w := 1.0
		if voting == VoteWeighted && i < len(weights) && weights[i] > 0 {
			w = weights[i]
		}
		members[i] = member{detector: d, weight: w}
	}
	return &Ensemble{logger: logger, voting: voting, members: members}
}

// Train fits every base model independently. A failure in one model is
// logged and excludes that model's vote; Train errors only when every base
// model failed.
func (e *Ensemble) Train(X [][]float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	trainedAny := false
	for i := range e.members {
		m := &e.members[i]
		if err := m.detector.Train(X); err != nil {
			m.trained = false
			e.logger.Warn("base model training failed",
				zap.String("model", m.detector.Name()),
				zap.Error(err),
			)
			continue
		}
		m.trained = true
		trainedAny = true
	}
	if !trainedAny {
		return errors.NewTrainingError("ensemble", "every base model failed to fit")
	}
	return nil
}

// Trained reports whether at least one base model fitted successfully.
func (e *Ensemble) Trained() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, m := range e.members {
		if m.trained {
			return true
		}
	}
	return false
}

// TrainedModels lists the names of the successfully trained base models.
func (e *Ensemble) TrainedModels() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var names []string
	for _, m := range e.members {
		if m.trained {
			names = append(names, m.detector.Name())
		}
	}
	return names
}

// Predict combines the trained base models' votes by weighted sum and
// returns one label in {-1, 1} per row. Ties resolve in favor of 1
// ("normal") to bias toward precision and avoid alert fatigue. A base model
// whose predict call fails is skipped for that batch.
func (e *Ensemble) Predict(X [][]float64) ([]int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(X) == 0 {
		return []int{}, nil
	}

	sums := make([]float64, len(X))
	voted := false
	for _, m := range e.members {
		if !m.trained {
			continue
		}
		labels, err := m.detector.Predict(X)
		if err != nil {
			e.logger.Warn("base model prediction failed",
				zap.String("model", m.detector.Name()),
				zap.Error(err),
			)
			continue
		}
		for i, l := range labels {
			sums[i] += m.weight * float64(l)
		}
		voted = true
	}
	if !voted {
		return nil, ErrNotTrained
	}

	out := make([]int, len(X))
	for i, s := range sums {
		if s < 0 {
			out[i] = -1
		} else {
			out[i] = 1
		}
	}
	return out, nil
}

// AnomalyScores averages the trained base models' continuous scores.
func (e *Ensemble) AnomalyScores(X [][]float64) ([]float64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(X) == 0 {
		return []float64{}, nil
	}

	sums := make([]float64, len(X))
	weightTotal := 0.0
	for _, m := range e.members {
		if !m.trained {
			continue
		}
		scores, err := m.detector.AnomalyScores(X)
		if err != nil {
			continue
		}
		for i, s := range scores {
			sums[i] += m.weight * s
		}
		weightTotal += m.weight
	}
	if weightTotal == 0 {
		return nil, ErrNotTrained
	}
	for i := range sums {
		sums[i] /= weightTotal
	}
	return sums, nil
}

// DefaultDetectors constructs the four standard variants with the given
// parameters, in the canonical ensemble order: statistical, one-class SVM,
// DBSCAN, isolation forest.
func DefaultDetectors(zThreshold, nu, gamma, eps float64, minSamples, trees, sampleSize int, forestThreshold float64, seed int64) []Detector {
	return []Detector{
		NewStatistical(StatZScore, zThreshold),
		NewOneClassSVM(nu, gamma),
		NewDBSCAN(eps, minSamples),
		NewIsolationForest(trees, sampleSize, forestThreshold, seed),
	}
}
