package alert

import (
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/bhuwanb23/profitpulse-anomaly/internal/domain/anomaly"
)

const (
	defaultSimilarityThreshold = 0.95
	defaultFrequencyThreshold  = 10
	patternHistoryWindow       = 24 * time.Hour
	maxPatternHistory          = 10000
)

// FalsePositivePattern is a stored descriptor of anomaly data known to be
// benign. Incoming anomalies whose shared fields match a pattern closely
// enough are suppressed.
type FalsePositivePattern struct {
	Name   string
	Fields anomaly.Record
}

type signatureEntry struct {
	count    int
	lastSeen time.Time
}

// FalsePositiveDetector gates whether a detected anomaly becomes a visible
// alert. Suppression fires on either a close match against a stored pattern
// or a signature that has recurred often within the tracked window.
type FalsePositiveDetector struct {
	mu                  sync.Mutex
	patterns            []FalsePositivePattern
	patternHistory      map[uint64]signatureEntry
	similarityThreshold float64
	frequencyThreshold  int
	now                 func() time.Time
}

// NewFalsePositiveDetector builds a detector with defaults: similarity 0.95,
// frequency 10.
func NewFalsePositiveDetector() *FalsePositiveDetector {
	return &FalsePositiveDetector{
		patternHistory:      make(map[uint64]signatureEntry),
		similarityThreshold: defaultSimilarityThreshold,
		frequencyThreshold:  defaultFrequencyThreshold,
		now:                 time.Now,
	}
}

// AddPattern appends unconditionally. Duplicates are permitted.
func (d *FalsePositiveDetector) AddPattern(p FalsePositivePattern) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.patterns = append(d.patterns, p)
}

// Patterns returns a snapshot of the stored pattern list.
func (d *FalsePositiveDetector) Patterns() []FalsePositivePattern {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]FalsePositivePattern, len(d.patterns))
	copy(out, d.patterns)
	return out
}

// IsFalsePositive reports whether the anomaly should be suppressed. The
// check is read-only: it never records the anomaly or mutates severity
// state. Recurrence tracking happens separately via RecordSignature.
func (d *FalsePositiveDetector) IsFalsePositive(data anomaly.Record) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, p := range d.patterns {
		if similarity(data, p.Fields) >= d.similarityThreshold {
			return true
		}
	}

	entry, ok := d.patternHistory[signature(data)]
	if ok && entry.count >= d.frequencyThreshold &&
		d.now().Sub(entry.lastSeen) <= patternHistoryWindow {
		return true
	}
	return false
}

// RecordSignature notes one occurrence of the anomaly's signature so that
// frequent repeats eventually suppress. Stale entries outside the tracking
// window reset rather than accumulate forever.
func (d *FalsePositiveDetector) RecordSignature(data anomaly.Record) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	sig := signature(data)
	entry := d.patternHistory[sig]
	if now.Sub(entry.lastSeen) > patternHistoryWindow {
		entry.count = 0
	}
	entry.count++
	entry.lastSeen = now
	d.patternHistory[sig] = entry

	if len(d.patternHistory) > maxPatternHistory {
		for k, e := range d.patternHistory {
			if now.Sub(e.lastSeen) > patternHistoryWindow {
				delete(d.patternHistory, k)
			}
		}
	}
}

// similarity scores field agreement between an anomaly and a pattern over
// the pattern's own fields. Numeric fields compare by relative closeness,
// everything else by exact equality. No shared fields means no match.
func similarity(data, pattern anomaly.Record) float64 {
	if len(pattern) == 0 {
		return 0
	}
	matched := 0.0
	compared := 0
	for k, pv := range pattern {
		dv, ok := data[k]
		if !ok {
			continue
		}
		compared++
		pf, pok := numeric(pv)
		df, dok := numeric(dv)
		if pok && dok {
			matched += numericCloseness(df, pf)
		} else if fmt.Sprint(dv) == fmt.Sprint(pv) {
			matched++
		}
	}
	if compared == 0 {
		return 0
	}
	return matched / float64(len(pattern))
}

func numericCloseness(a, b float64) float64 {
	if a == b {
		return 1
	}
	denom := math.Max(math.Abs(a), math.Abs(b))
	if denom == 0 {
		return 1
	}
	return clamp01(1 - math.Abs(a-b)/denom)
}

func numeric(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	}
	return 0, false
}

// signature hashes the record's sorted key=value pairs so that equivalent
// anomalies collapse onto one recurrence counter.
func signature(data anomaly.Record) uint64 {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	h := fnv.New64a()
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%v;", k, data[k])
	}
	return h.Sum64()
}
