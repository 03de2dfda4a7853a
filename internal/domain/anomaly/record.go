package anomaly

import (
	"time"
)

// Stream type identifiers with dedicated feature extraction. Any other value
// falls through to the generic numeric pass-through extractor.
const (
	StreamSystemMetrics  = "system_metrics"
	StreamTransactions   = "transactions"
	StreamNetworkTraffic = "network_traffic"
	StreamUserBehavior   = "user_behavior"

	// StreamTypeTransaction is the record-level tag carried by transaction
	// records; the transactions stream ingests records of this type.
	StreamTypeTransaction = "transaction"
)

// Record is a flat mapping of field name to scalar value (number, string,
// bool, or timestamp) produced by an upstream extraction client.
type Record map[string]interface{}

// Clone returns a shallow copy. Entries remain shared scalars, so the copy is
// safe to hand to another goroutine as long as values are not mutated in place.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Prediction is the per-row output of a detector: a binary label in {-1, 1}
// and an optional continuous anomaly score.
type Prediction struct {
	Label int     `json:"label"`
	Score float64 `json:"score"`
}

const (
	// LabelAnomaly marks a record whose score crossed the learned boundary.
	LabelAnomaly = -1
	// LabelNormal marks an unremarkable record.
	LabelNormal = 1
)

// QualityMetrics captures the per-record data quality assessment.
type QualityMetrics struct {
	Timestamp     time.Time `json:"timestamp"`
	MissingValues int       `json:"missing_values"`
	Outliers      int       `json:"outliers"`
	Duplicates    int       `json:"duplicates"`
	TotalFields   int       `json:"total_fields"`
	FilledFields  int       `json:"filled_fields"`
	QualityScore  float64   `json:"quality_score"`
}

// FeatureVector is the stream-type-specific numeric view of a record,
// consumed immediately by the detector ensemble.
type FeatureVector struct {
	Timestamp  time.Time          `json:"timestamp"`
	StreamType string             `json:"stream_type"`
	Values     map[string]float64 `json:"values"`
}
