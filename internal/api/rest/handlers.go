// Package rest exposes read-only HTTP access to stream status and alert
// history. It is an outer surface over the streaming core, not part of it.
package rest

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/bhuwanb23/profitpulse-anomaly/internal/domain/anomaly"
	"github.com/bhuwanb23/profitpulse-anomaly/internal/service/streaming"
)

// Handler serves the read-only API over the streaming service.
type Handler struct {
	svc    *streaming.Service
	logger *zap.Logger
}

// NewHandler creates a new REST API handler
func NewHandler(svc *streaming.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// RegisterRoutes sets up all routes
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/streams", h.handleStreamsStatus)
	mux.HandleFunc("GET /api/v1/streams/{id}/data", h.handleStreamData)
	mux.HandleFunc("GET /api/v1/streams/{id}/quality", h.handleStreamQuality)
	mux.HandleFunc("GET /api/v1/streams/{id}/stats", h.handleStreamStats)
	mux.HandleFunc("GET /api/v1/alerts", h.handleAlertHistory)
	mux.HandleFunc("GET /health", h.handleHealth)
}

func (h *Handler) handleStreamsStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.svc.StreamsStatus())
}

func (h *Handler) handleStreamData(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	n := 10
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.writeError(w, http.StatusBadRequest, "n must be a positive integer")
			return
		}
		n = parsed
	}
	h.writeJSON(w, http.StatusOK, h.svc.StreamData(id, n))
}

func (h *Handler) handleStreamQuality(w http.ResponseWriter, r *http.Request) {
	report, ok := h.svc.QualityReport(r.PathValue("id"))
	if !ok {
		h.writeError(w, http.StatusNotFound, "unknown stream")
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

func (h *Handler) handleStreamStats(w http.ResponseWriter, r *http.Request) {
	stats, ok := h.svc.ProcessorStats(r.PathValue("id"))
	if !ok {
		h.writeError(w, http.StatusNotFound, "unknown stream")
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleAlertHistory(w http.ResponseWriter, r *http.Request) {
	hoursBack := 24.0
	if raw := r.URL.Query().Get("hours"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			h.writeError(w, http.StatusBadRequest, "hours must be a positive number")
			return
		}
		hoursBack = parsed
	}

	var severityFilter *anomaly.Severity
	if raw := r.URL.Query().Get("severity"); raw != "" {
		sev, err := anomaly.ParseSeverity(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "unknown severity")
			return
		}
		severityFilter = &sev
	}

	alerts := h.svc.Generator().AlertHistory(hoursBack, severityFilter)
	out := make([]map[string]interface{}, len(alerts))
	for i, a := range alerts {
		out[i] = a.ToDict()
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}
