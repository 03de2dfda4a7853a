package stream

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bhuwanb23/profitpulse-anomaly/internal/domain/anomaly"
)

func TestDataStream_OverflowEvictsOldest(t *testing.T) {
	s := NewDataStream("system_metrics", "system_metrics", 1000)

	for i := 0; i < 1100; i++ {
		s.AddData(anomaly.Record{"seq": float64(i)})
	}

	stats := s.Stats()
	assert.Equal(t, 1000, stats.BufferSize)
	assert.Equal(t, 1000, stats.MaxBufferSize)
	assert.Equal(t, int64(1100), stats.UpdateCount)

	// The surviving entries are the most recent 1000, oldest first.
	entries := s.LatestData(1000)
	require.Len(t, entries, 1000)
	assert.Equal(t, 100.0, entries[0].Record["seq"])
	assert.Equal(t, 1099.0, entries[999].Record["seq"])
}

func TestDataStream_LatestDataOrderAndBounds(t *testing.T) {
	s := NewDataStream("tx", "transaction", 5)

	for i := 0; i < 3; i++ {
		s.AddData(anomaly.Record{"id": fmt.Sprintf("r%d", i)})
	}

	tests := []struct {
		name string
		n    int
		want []string
	}{
		{"fewer than buffered", 2, []string{"r1", "r2"}},
		{"exactly buffered", 3, []string{"r0", "r1", "r2"}},
		{"more than buffered", 10, []string{"r0", "r1", "r2"}},
		{"zero", 0, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.LatestData(tt.n)
			require.Len(t, got, len(tt.want))
			for i, id := range tt.want {
				assert.Equal(t, id, got[i].Record["id"])
			}
		})
	}
}

func TestDataStream_SnapshotIsolation(t *testing.T) {
	s := NewDataStream("net", "network_traffic", 3)
	s.AddData(anomaly.Record{"v": 1.0})

	snap := s.LatestData(3)
	s.AddData(anomaly.Record{"v": 2.0})

	// The earlier snapshot is unaffected by later writes.
	require.Len(t, snap, 1)
	assert.Equal(t, 1.0, snap[0].Record["v"])
}
