package stream

import (
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"github.com/bhuwanb23/profitpulse-anomaly/internal/domain/anomaly"
)

// maxFeatureHistory bounds the retained per-stream feature vectors used for
// trend-style derived features.
const maxFeatureHistory = 200

// FeatureExtractor derives a numeric feature vector from a raw record,
// dispatching on stream type. Unknown stream types fall back to passing
// numeric fields through unchanged.
type FeatureExtractor struct {
	mu      sync.Mutex
	history map[string][]anomaly.FeatureVector
}

// NewFeatureExtractor creates an extractor with empty per-stream history.
func NewFeatureExtractor() *FeatureExtractor {
	return &FeatureExtractor{
		history: make(map[string][]anomaly.FeatureVector),
	}
}

// Extract derives the stream-type-specific features of a record. Every
// output carries the extraction timestamp and stream type alongside the
// numeric values.
func (e *FeatureExtractor) Extract(rec anomaly.Record, streamType string) anomaly.FeatureVector {
	fv := anomaly.FeatureVector{
		Timestamp:  time.Now(),
		StreamType: streamType,
		Values:     make(map[string]float64),
	}

	switch streamType {
	case anomaly.StreamSystemMetrics:
		e.extractSystemMetrics(rec, &fv)
	case anomaly.StreamTypeTransaction, anomaly.StreamTransactions:
		e.extractTransaction(rec, &fv)
	default:
		e.extractGeneric(rec, &fv)
	}

	e.appendHistory(streamType, fv)
	return fv
}

// History returns a snapshot of the retained feature vectors for one stream.
func (e *FeatureExtractor) History(streamType string) []anomaly.FeatureVector {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]anomaly.FeatureVector(nil), e.history[streamType]...)
}

func (e *FeatureExtractor) extractSystemMetrics(rec anomaly.Record, fv *anomaly.FeatureVector) {
	passThrough(rec, fv, "cpu_usage", "memory_usage", "error_rate", "requests_per_second")

	in, okIn := toFloat(rec["network_in_bytes"])
	out, okOut := toFloat(rec["network_out_bytes"])
	if okIn || okOut {
		fv.Values["network_total_bytes"] = in + out
	}

	// trend feature over the retained window
	if ma, ok := e.rollingMean(anomaly.StreamSystemMetrics, "cpu_usage"); ok {
		fv.Values["cpu_usage_ma"] = ma
	}
}

func (e *FeatureExtractor) extractTransaction(rec anomaly.Record, fv *anomaly.FeatureVector) {
	// Amounts may arrive as strings from the accounting extractors; parse
	// exactly before converting to the detector's float space.
	if amt, ok := transactionAmount(rec["transaction_amount"]); ok {
		fv.Values["transaction_amount"] = amt
	}

	if t, ok := rec["transaction_type"].(string); ok {
		fv.Values["is_purchase"] = boolFeature(strings.EqualFold(t, "purchase"))
	}
	if loc, ok := rec["location"].(string); ok {
		fv.Values["location_hash"] = locationHash(loc)
	}
	if d, ok := rec["device_type"].(string); ok {
		fv.Values["is_mobile"] = boolFeature(strings.EqualFold(d, "mobile"))
	}
	if flagged, ok := rec["is_flagged"].(bool); ok {
		fv.Values["is_flagged"] = boolFeature(flagged)
	}
}

func (e *FeatureExtractor) extractGeneric(rec anomaly.Record, fv *anomaly.FeatureVector) {
	for field, value := range rec {
		if f, ok := toFloat(value); ok {
			fv.Values[field] = f
		}
	}
}

func (e *FeatureExtractor) appendHistory(streamType string, fv anomaly.FeatureVector) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h := append(e.history[streamType], fv)
	if len(h) > maxFeatureHistory {
		h = h[len(h)-maxFeatureHistory:]
	}
	e.history[streamType] = h
}

func (e *FeatureExtractor) rollingMean(streamType, feature string) (float64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var vals []float64
	for _, fv := range e.history[streamType] {
		if v, ok := fv.Values[feature]; ok {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return 0, false
	}
	return stat.Mean(vals, nil), true
}

func passThrough(rec anomaly.Record, fv *anomaly.FeatureVector, fields ...string) {
	for _, field := range fields {
		if f, ok := toFloat(rec[field]); ok {
			fv.Values[field] = f
		}
	}
}

// transactionAmount parses an amount that may be numeric or a decimal string.
func transactionAmount(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case string:
		d, err := decimal.NewFromString(n)
		if err != nil {
			return 0, false
		}
		return d.InexactFloat64(), true
	default:
		if f, ok := toFloat(v); ok {
			return decimal.NewFromFloat(f).InexactFloat64(), true
		}
	}
	return 0, false
}

// locationHash maps a location string to a stable value in [0, 1].
func locationHash(loc string) float64 {
	h := fnv.New32a()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(loc))))
	return float64(h.Sum32()) / float64(math.MaxUint32)
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
