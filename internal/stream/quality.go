package stream

import (
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/bhuwanb23/profitpulse-anomaly/internal/domain/anomaly"
)

const (
	// outlierZThreshold is the z-score bound beyond which a numeric field
	// value counts as an outlier against its recent window.
	outlierZThreshold = 3.0

	// minOutlierSamples is the minimum per-field history before the z-score
	// bound is meaningful.
	minOutlierSamples = 10

	// maxQualityHistory bounds the rolling QualityMetrics history.
	maxQualityHistory = 1000

	// trendDelta is the minimum window-mean difference treated as a trend.
	trendDelta = 0.05
)

// Weights for the normalized quality score combination.
const (
	filledWeight    = 0.5
	outlierWeight   = 0.3
	duplicateWeight = 0.2
)

// QualityReport aggregates the rolling quality history.
type QualityReport struct {
	OverallQualityScore   float64 `json:"overall_quality_score"`
	TotalRecordsProcessed int     `json:"total_records_processed"`
	MissingValuesTotal    int     `json:"missing_values_total"`
	OutliersTotal         int     `json:"outliers_total"`
	QualityTrend          string  `json:"quality_trend"`
}

// DataQualityMonitor scores each record for completeness and cleanliness.
//
// Duplicates are detected by exact field-map match: an FNV-1a signature over
// sorted key/value pairs, compared against the last window of signatures.
// Outliers are numeric values beyond a z-score bound over the recently seen
// values of the same field. Both are windowed heuristics, not guarantees.
type DataQualityMonitor struct {
	mu sync.Mutex

	windowSize       int
	qualityThreshold float64

	fieldWindows map[string][]float64
	recentSigs   []uint64
	sigSet       map[uint64]int

	history       []anomaly.QualityMetrics
	totalRecords  int
	totalMissing  int
	totalOutliers int
}

// NewDataQualityMonitor creates a monitor with the given rolling window size
// and alerting threshold.
func NewDataQualityMonitor(windowSize int, qualityThreshold float64) *DataQualityMonitor {
	if windowSize <= 0 {
		windowSize = 100
	}
	return &DataQualityMonitor{
		windowSize:       windowSize,
		qualityThreshold: qualityThreshold,
		fieldWindows:     make(map[string][]float64),
		sigSet:           make(map[uint64]int),
	}
}

// AssessQuality scores one record and appends the result to the rolling
// history. Malformed or missing fields degrade the score; they never raise.
func (m *DataQualityMonitor) AssessQuality(rec anomaly.Record) anomaly.QualityMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	metrics := anomaly.QualityMetrics{
		Timestamp:   time.Now(),
		TotalFields: len(rec),
	}

	numericSeen := 0
	for field, value := range rec {
		if isMissing(value) {
			metrics.MissingValues++
			continue
		}
		metrics.FilledFields++

		if f, ok := toFloat(value); ok {
			numericSeen++
			if m.isOutlier(field, f) {
				metrics.Outliers++
			}
			m.pushFieldValue(field, f)
		}
	}

	if m.isDuplicate(rec) {
		metrics.Duplicates = 1
	}
	m.pushSignature(recordSignature(rec))

	metrics.QualityScore = m.score(metrics, numericSeen)

	m.history = append(m.history, metrics)
	if len(m.history) > maxQualityHistory {
		m.history = m.history[len(m.history)-maxQualityHistory:]
	}
	m.totalRecords++
	m.totalMissing += metrics.MissingValues
	m.totalOutliers += metrics.Outliers

	return metrics
}

// Report aggregates the rolling history into a point-in-time quality report.
// The trend compares the mean of the most recent window against the mean of
// the preceding window of equal size.
func (m *DataQualityMonitor) Report() QualityReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	report := QualityReport{
		TotalRecordsProcessed: m.totalRecords,
		MissingValuesTotal:    m.totalMissing,
		OutliersTotal:         m.totalOutliers,
		QualityTrend:          "stable",
	}
	if len(m.history) == 0 {
		report.OverallQualityScore = 1.0
		return report
	}

	scores := make([]float64, len(m.history))
	for i, h := range m.history {
		scores[i] = h.QualityScore
	}
	report.OverallQualityScore = stat.Mean(scores, nil)

	half := m.windowSize
	if half > len(scores)/2 {
		half = len(scores) / 2
	}
	if half > 0 {
		recent := stat.Mean(scores[len(scores)-half:], nil)
		prior := stat.Mean(scores[len(scores)-2*half:len(scores)-half], nil)
		switch {
		case recent-prior > trendDelta:
			report.QualityTrend = "improving"
		case prior-recent > trendDelta:
			report.QualityTrend = "degrading"
		}
	}
	return report
}

// AlertNeeded reports whether the rolling overall quality score has fallen
// below the configured threshold.
func (m *DataQualityMonitor) AlertNeeded() bool {
	return m.Report().OverallQualityScore < m.qualityThreshold
}

func (m *DataQualityMonitor) score(q anomaly.QualityMetrics, numericSeen int) float64 {
	if q.TotalFields == 0 {
		return 0
	}
	filledRatio := float64(q.FilledFields) / float64(q.TotalFields)

	outlierRatio := 0.0
	if numericSeen > 0 {
		outlierRatio = float64(q.Outliers) / float64(numericSeen)
	}

	dupRatio := float64(q.Duplicates)

	score := filledWeight*filledRatio +
		outlierWeight*(1-outlierRatio) +
		duplicateWeight*(1-dupRatio)
	return clamp01(score)
}

func (m *DataQualityMonitor) isOutlier(field string, value float64) bool {
	window := m.fieldWindows[field]
	if len(window) < minOutlierSamples {
		return false
	}
	mean, std := stat.MeanStdDev(window, nil)
	if std == 0 || math.IsNaN(std) {
		return value != mean
	}
	return math.Abs(value-mean)/std > outlierZThreshold
}

func (m *DataQualityMonitor) pushFieldValue(field string, value float64) {
	window := append(m.fieldWindows[field], value)
	if len(window) > m.windowSize {
		window = window[len(window)-m.windowSize:]
	}
	m.fieldWindows[field] = window
}

func (m *DataQualityMonitor) isDuplicate(rec anomaly.Record) bool {
	return m.sigSet[recordSignature(rec)] > 0
}

func (m *DataQualityMonitor) pushSignature(sig uint64) {
	m.recentSigs = append(m.recentSigs, sig)
	m.sigSet[sig]++
	if len(m.recentSigs) > m.windowSize {
		old := m.recentSigs[0]
		m.recentSigs = m.recentSigs[1:]
		if m.sigSet[old] <= 1 {
			delete(m.sigSet, old)
		} else {
			m.sigSet[old]--
		}
	}
}

// recordSignature hashes the record's sorted field/value pairs so exact
// repeats collide regardless of map iteration order.
func recordSignature(rec anomaly.Record) uint64 {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := fnv.New64a()
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%v;", k, rec[k])
	}
	return h.Sum64()
}

func isMissing(v interface{}) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	return false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
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
