package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bhuwanb23/profitpulse-anomaly/internal/domain/anomaly"
)

func dialTestHub(t *testing.T) (*Handler, *websocket.Conn, func()) {
	t.Helper()

	h := NewHandler(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	h.Start(ctx)

	srv := httptest.NewServer(http.HandlerFunc(h.HandleAlertEvents))
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	return h, conn, func() {
		conn.Close()
		h.Stop()
		cancel()
		srv.Close()
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) AlertEvent {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev AlertEvent
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestAlertEventHub_ConnectAndBroadcast(t *testing.T) {
	h, conn, teardown := dialTestHub(t)
	defer teardown()

	welcome := readEvent(t, conn)
	assert.Equal(t, AlertEventConnected, welcome.Type)

	require.Eventually(t, func() bool {
		return h.Hub().ClientCount() == 1
	}, time.Second, 10*time.Millisecond)

	a := &anomaly.Alert{
		AlertID:   1,
		AnomalyID: 1,
		Timestamp: time.Now(),
		Severity:  anomaly.SeverityCritical,
		Message:   "Anomaly detected with critical severity",
		Data:      anomaly.Record{"cpu_usage": 99.0},
		Source:    anomaly.AlertSource,
	}
	h.Hub().BroadcastAlert(anomaly.StreamSystemMetrics, a)

	ev := readEvent(t, conn)
	assert.Equal(t, AlertEventGenerated, ev.Type)
	assert.Equal(t, anomaly.StreamSystemMetrics, ev.StreamID)
	assert.Equal(t, "CRITICAL", ev.Severity)
	assert.Equal(t, float64(1), ev.Alert["alert_id"])
}

func TestAlertEventHub_StopShutsDownClients(t *testing.T) {
	h, conn, teardown := dialTestHub(t)
	defer teardown()

	readEvent(t, conn) // welcome
	h.Stop()

	require.Eventually(t, func() bool {
		return h.Hub().ClientCount() == 0
	}, time.Second, 10*time.Millisecond)
	assert.Error(t, h.HealthCheck())
}

func TestAlertEventHub_EnqueueDropsWhenFull(t *testing.T) {
	// Hub is never run, so the buffered broadcast channel fills up and
	// further events must be dropped instead of blocking.
	hub := NewAlertEventHub(zap.NewNop())
	a := &anomaly.Alert{Severity: anomaly.SeverityLow}

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			hub.BroadcastAlert("s", a)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("enqueue blocked on full broadcast queue")
	}
	assert.Len(t, hub.broadcast, 100)
}

func TestClient_FilterMatching(t *testing.T) {
	c := &AlertClient{}

	ev := &AlertEvent{
		Type:     AlertEventGenerated,
		StreamID: "transactions",
		Severity: anomaly.SeverityHigh.String(),
	}

	assert.True(t, c.shouldReceiveEvent(ev), "no filters means receive everything")

	c.filters.Severities = []string{anomaly.SeverityCritical.String()}
	assert.False(t, c.shouldReceiveEvent(ev))

	c.filters.Severities = []string{anomaly.SeverityHigh.String(), anomaly.SeverityCritical.String()}
	assert.True(t, c.shouldReceiveEvent(ev))

	c.filters.StreamIDs = []string{"system_metrics"}
	assert.False(t, c.shouldReceiveEvent(ev))

	c.filters.StreamIDs = nil
	c.filters.EventTypes = []AlertEventType{AlertEventEscalated}
	assert.False(t, c.shouldReceiveEvent(ev))
}
