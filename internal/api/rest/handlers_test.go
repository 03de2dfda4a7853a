package rest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bhuwanb23/profitpulse-anomaly/internal/domain/anomaly"
	"github.com/bhuwanb23/profitpulse-anomaly/internal/infrastructure/config"
	"github.com/bhuwanb23/profitpulse-anomaly/internal/service/streaming"
)

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	cfg, err := config.LoadFromFile("")
	require.NoError(t, err)

	svc, err := streaming.NewService(cfg,
		streaming.NewSyntheticSource(1, 0.05), nil, nil, zap.NewNop())
	require.NoError(t, err)

	mux := http.NewServeMux()
	NewHandler(svc, zap.NewNop()).RegisterRoutes(mux)
	return mux
}

func get(t *testing.T, mux *http.ServeMux, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHandler_Health(t *testing.T) {
	rec := get(t, newTestMux(t), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestHandler_StreamsStatus(t *testing.T) {
	rec := get(t, newTestMux(t), "/api/v1/streams")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, anomaly.StreamSystemMetrics)
	assert.Contains(t, body, anomaly.StreamTransactions)
}

func TestHandler_StreamData(t *testing.T) {
	mux := newTestMux(t)

	rec := get(t, mux, "/api/v1/streams/system_metrics/data")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, mux, "/api/v1/streams/system_metrics/data?n=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(t, mux, "/api/v1/streams/system_metrics/data?n=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_UnknownStreamStats(t *testing.T) {
	mux := newTestMux(t)

	rec := get(t, mux, "/api/v1/streams/no_such_stream/stats")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(t, mux, "/api/v1/streams/no_such_stream/quality")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_AlertHistoryQueryValidation(t *testing.T) {
	mux := newTestMux(t)

	rec := get(t, mux, "/api/v1/alerts")
	assert.Equal(t, http.StatusOK, rec.Code)
	var body []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body)

	rec = get(t, mux, "/api/v1/alerts?hours=-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(t, mux, "/api/v1/alerts?severity=catastrophic")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(t, mux, "/api/v1/alerts?severity=critical&hours=1.5")
	assert.Equal(t, http.StatusOK, rec.Code)
}
