// Package streaming drives the end-to-end anomaly pipeline: ingestion,
// quality, detection, alerting, and fan-out.
package streaming

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bhuwanb23/profitpulse-anomaly/internal/domain/anomaly"
)

// RecordSource supplies one record per poll for a stream. Implementations
// may block on I/O and should honor ctx cancellation.
type RecordSource interface {
	Next(ctx context.Context, streamID, streamType string) (anomaly.Record, error)
}

// SyntheticSource generates plausible records per stream type, with
// occasional injected anomalies. It stands in for real extraction clients
// in development and tests.
type SyntheticSource struct {
	mu          sync.Mutex
	rng         *rand.Rand
	anomalyRate float64
}

// NewSyntheticSource builds a source. anomalyRate is the probability a
// record carries injected anomalous values.
func NewSyntheticSource(seed int64, anomalyRate float64) *SyntheticSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &SyntheticSource{
		rng:         rand.New(rand.NewSource(seed)),
		anomalyRate: anomalyRate,
	}
}

func (s *SyntheticSource) Next(_ context.Context, streamID, streamType string) (anomaly.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	anomalous := s.rng.Float64() < s.anomalyRate

	switch streamType {
	case anomaly.StreamSystemMetrics:
		return s.systemMetrics(anomalous), nil
	case anomaly.StreamTypeTransaction, anomaly.StreamTransactions:
		return s.transaction(anomalous), nil
	case anomaly.StreamNetworkTraffic:
		return s.networkTraffic(anomalous), nil
	default:
		return s.userBehavior(anomalous), nil
	}
}

func (s *SyntheticSource) systemMetrics(anomalous bool) anomaly.Record {
	cpu := 20 + s.rng.Float64()*40
	mem := 30 + s.rng.Float64()*30
	errRate := s.rng.Float64() * 0.02
	if anomalous {
		cpu = 92 + s.rng.Float64()*8
		errRate = 0.3 + s.rng.Float64()*0.5
	}
	return anomaly.Record{
		"cpu_usage":           cpu,
		"memory_usage":        mem,
		"error_rate":          errRate,
		"requests_per_second": 100 + s.rng.Float64()*200,
		"network_in_bytes":    float64(s.rng.Intn(1 << 20)),
		"network_out_bytes":   float64(s.rng.Intn(1 << 20)),
	}
}

func (s *SyntheticSource) transaction(anomalous bool) anomaly.Record {
	amount := 10 + s.rng.Float64()*190
	if anomalous {
		amount = 50000 + s.rng.Float64()*100000
	}
	return anomaly.Record{
		"transaction_id":     uuid.New().String(),
		"transaction_amount": amount,
		"transaction_type":   pick(s.rng, "purchase", "refund", "transfer"),
		"location":           pick(s.rng, "new_york", "london", "tokyo", "berlin"),
		"device_type":        pick(s.rng, "mobile", "desktop"),
		"is_flagged":         anomalous,
	}
}

func (s *SyntheticSource) networkTraffic(anomalous bool) anomaly.Record {
	packets := 1000 + s.rng.Float64()*4000
	if anomalous {
		packets = 500000 + s.rng.Float64()*500000
	}
	return anomaly.Record{
		"packets_per_second": packets,
		"bytes_per_second":   packets * (200 + s.rng.Float64()*800),
		"active_connections": float64(50 + s.rng.Intn(200)),
		"dropped_packets":    s.rng.Float64() * 10,
	}
}

func (s *SyntheticSource) userBehavior(anomalous bool) anomaly.Record {
	actions := 1 + s.rng.Float64()*20
	if anomalous {
		actions = 500 + s.rng.Float64()*1000
	}
	return anomaly.Record{
		"actions_per_minute": actions,
		"session_duration":   60 + s.rng.Float64()*3000,
		"failed_logins":      float64(s.rng.Intn(3)),
		"pages_visited":      float64(1 + s.rng.Intn(30)),
	}
}

func pick(rng *rand.Rand, options ...string) string {
	return options[rng.Intn(len(options))]
}
