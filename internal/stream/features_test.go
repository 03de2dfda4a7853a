package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bhuwanb23/profitpulse-anomaly/internal/domain/anomaly"
)

func TestFeatureExtractor_SystemMetrics(t *testing.T) {
	e := NewFeatureExtractor()

	fv := e.Extract(anomaly.Record{
		"cpu_usage":           45.0,
		"memory_usage":        60.0,
		"error_rate":          0.01,
		"requests_per_second": 120.0,
		"network_in_bytes":    1000.0,
		"network_out_bytes":   500.0,
		"hostname":            "web-1",
	}, anomaly.StreamSystemMetrics)

	assert.Equal(t, anomaly.StreamSystemMetrics, fv.StreamType)
	assert.Equal(t, 45.0, fv.Values["cpu_usage"])
	assert.Equal(t, 1500.0, fv.Values["network_total_bytes"])
	assert.NotContains(t, fv.Values, "hostname")
}

func TestFeatureExtractor_SystemMetricsRollingMean(t *testing.T) {
	e := NewFeatureExtractor()

	e.Extract(anomaly.Record{"cpu_usage": 10.0}, anomaly.StreamSystemMetrics)
	fv := e.Extract(anomaly.Record{"cpu_usage": 30.0}, anomaly.StreamSystemMetrics)

	// The moving average covers history prior to this extraction.
	assert.Equal(t, 10.0, fv.Values["cpu_usage_ma"])
}

func TestFeatureExtractor_Transaction(t *testing.T) {
	e := NewFeatureExtractor()

	tests := []struct {
		name   string
		rec    anomaly.Record
		assert func(t *testing.T, values map[string]float64)
	}{
		{
			name: "numeric amount",
			rec: anomaly.Record{
				"transaction_amount": 99.5,
				"transaction_type":   "purchase",
				"device_type":        "mobile",
				"is_flagged":         false,
			},
			assert: func(t *testing.T, values map[string]float64) {
				assert.Equal(t, 99.5, values["transaction_amount"])
				assert.Equal(t, 1.0, values["is_purchase"])
				assert.Equal(t, 1.0, values["is_mobile"])
				assert.Equal(t, 0.0, values["is_flagged"])
			},
		},
		{
			name: "string decimal amount",
			rec: anomaly.Record{
				"transaction_amount": "123.45",
				"transaction_type":   "refund",
			},
			assert: func(t *testing.T, values map[string]float64) {
				assert.InDelta(t, 123.45, values["transaction_amount"], 1e-9)
				assert.Equal(t, 0.0, values["is_purchase"])
			},
		},
		{
			name: "unparseable amount is skipped",
			rec: anomaly.Record{
				"transaction_amount": "not-a-number",
			},
			assert: func(t *testing.T, values map[string]float64) {
				assert.NotContains(t, values, "transaction_amount")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fv := e.Extract(tt.rec, anomaly.StreamTypeTransaction)
			tt.assert(t, fv.Values)
		})
	}
}

func TestFeatureExtractor_LocationHashStable(t *testing.T) {
	e := NewFeatureExtractor()

	a := e.Extract(anomaly.Record{"location": "London"}, anomaly.StreamTypeTransaction)
	b := e.Extract(anomaly.Record{"location": " london "}, anomaly.StreamTypeTransaction)

	require.Contains(t, a.Values, "location_hash")
	assert.Equal(t, a.Values["location_hash"], b.Values["location_hash"])
	assert.GreaterOrEqual(t, a.Values["location_hash"], 0.0)
	assert.LessOrEqual(t, a.Values["location_hash"], 1.0)
}

func TestFeatureExtractor_GenericPassThrough(t *testing.T) {
	e := NewFeatureExtractor()

	fv := e.Extract(anomaly.Record{
		"packets_per_second": 4200.0,
		"interface":          "eth0",
	}, anomaly.StreamNetworkTraffic)

	assert.Equal(t, 4200.0, fv.Values["packets_per_second"])
	assert.NotContains(t, fv.Values, "interface")
}
