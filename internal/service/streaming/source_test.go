package streaming

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bhuwanb23/profitpulse-anomaly/internal/domain/anomaly"
)

func TestSyntheticSource_FieldNamesPerStreamType(t *testing.T) {
	src := NewSyntheticSource(1, 0)
	ctx := context.Background()

	tests := []struct {
		streamType string
		fields     []string
	}{
		{anomaly.StreamSystemMetrics, []string{
			"cpu_usage", "memory_usage", "error_rate",
			"requests_per_second", "network_in_bytes", "network_out_bytes"}},
		{anomaly.StreamTransactions, []string{
			"transaction_id", "transaction_amount", "transaction_type",
			"location", "device_type", "is_flagged"}},
		{anomaly.StreamNetworkTraffic, []string{
			"packets_per_second", "bytes_per_second",
			"active_connections", "dropped_packets"}},
		{anomaly.StreamUserBehavior, []string{
			"actions_per_minute", "session_duration",
			"failed_logins", "pages_visited"}},
	}
	for _, tt := range tests {
		t.Run(tt.streamType, func(t *testing.T) {
			rec, err := src.Next(ctx, tt.streamType, tt.streamType)
			require.NoError(t, err)
			for _, f := range tt.fields {
				assert.Contains(t, rec, f)
			}
		})
	}
}

func TestSyntheticSource_AnomalyRateInjectsExtremes(t *testing.T) {
	src := NewSyntheticSource(7, 1) // every record anomalous
	ctx := context.Background()

	rec, err := src.Next(ctx, anomaly.StreamTransactions, anomaly.StreamTransactions)
	require.NoError(t, err)
	assert.Equal(t, true, rec["is_flagged"])
	assert.GreaterOrEqual(t, rec["transaction_amount"].(float64), 50000.0)

	rec, err = src.Next(ctx, anomaly.StreamSystemMetrics, anomaly.StreamSystemMetrics)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, rec["cpu_usage"].(float64), 92.0)
}

func TestSyntheticSource_Deterministic(t *testing.T) {
	a := NewSyntheticSource(99, 0.1)
	b := NewSyntheticSource(99, 0.1)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		ra, err := a.Next(ctx, anomaly.StreamNetworkTraffic, anomaly.StreamNetworkTraffic)
		require.NoError(t, err)
		rb, err := b.Next(ctx, anomaly.StreamNetworkTraffic, anomaly.StreamNetworkTraffic)
		require.NoError(t, err)
		assert.Equal(t, ra, rb)
	}
}
