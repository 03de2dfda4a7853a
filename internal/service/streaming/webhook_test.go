package streaming

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bhuwanb23/profitpulse-anomaly/internal/domain/anomaly"
	"github.com/bhuwanb23/profitpulse-anomaly/internal/domain/errors"
)

func testAlert() *anomaly.Alert {
	return &anomaly.Alert{
		AlertID:   42,
		AnomalyID: 7,
		Timestamp: time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC),
		Severity:  anomaly.SeverityHigh,
		Message:   "Anomaly detected with high severity",
		Data:      anomaly.Record{"cpu_usage": 97.1},
		Source:    anomaly.AlertSource,
	}
}

func TestWebhookNotifier_DeliversSignedPayload(t *testing.T) {
	var (
		gotBody      []byte
		gotSignature string
		gotType      string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSignature = r.Header.Get("X-Webhook-Signature")
		gotType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, "s3cret", 10, zap.NewNop())
	require.NoError(t, n.Notify(context.Background(), testAlert()))

	assert.Equal(t, "application/json", gotType)

	mac := hmac.New(sha256.New, []byte("s3cret"))
	mac.Write(gotBody)
	assert.Equal(t, "sha256="+hex.EncodeToString(mac.Sum(nil)), gotSignature)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, "HIGH", payload["severity"])
	assert.Equal(t, float64(42), payload["alert_id"])
	assert.Equal(t, anomaly.AlertSource, payload["source"])
}

func TestWebhookNotifier_NoSignatureWithoutSecret(t *testing.T) {
	var gotSignature string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get("X-Webhook-Signature")
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, "", 10, zap.NewNop())
	require.NoError(t, n.Notify(context.Background(), testAlert()))
	assert.Empty(t, gotSignature)
}

func TestWebhookNotifier_ServerErrorIsDeliveryError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, "", 10, zap.NewNop())
	err := n.Notify(context.Background(), testAlert())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeDelivery))
}

func TestWebhookNotifier_RateLimitDropsAlert(t *testing.T) {
	var delivered int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		delivered++
	}))
	defer srv.Close()

	// Burst of 2 at 1 rps: the third immediate send must be dropped.
	n := NewWebhookNotifier(srv.URL, "", 1, zap.NewNop())
	require.NoError(t, n.Notify(context.Background(), testAlert()))
	require.NoError(t, n.Notify(context.Background(), testAlert()))

	err := n.Notify(context.Background(), testAlert())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeDelivery))
	assert.Equal(t, 2, delivered)
}
