package websocket

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Upgrader configuration for WebSocket connections
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler manages WebSocket endpoints
type Handler struct {
	logger        *zap.Logger
	alertEventHub *AlertEventHub
}

// NewHandler creates a new WebSocket handler
func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{
		logger:        logger,
		alertEventHub: NewAlertEventHub(logger),
	}
}

// Start initializes the WebSocket handler
func (h *Handler) Start(ctx context.Context) {
	go h.alertEventHub.Run(ctx)
}

// Stop gracefully shuts down the WebSocket handler
func (h *Handler) Stop() {
	h.alertEventHub.Stop()
}

// Hub returns the alert event hub for publishing events
func (h *Handler) Hub() *AlertEventHub {
	return h.alertEventHub
}

// HandleAlertEvents handles WebSocket connections for alert events
func (h *Handler) HandleAlertEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("failed to upgrade WebSocket connection",
			zap.Error(err),
			zap.String("remote_addr", r.RemoteAddr),
		)
		return
	}

	client := NewAlertClient(conn, h.alertEventHub)
	h.alertEventHub.RegisterClient(client)

	go client.WritePump()
	go client.ReadPump()

	h.logger.Info("new WebSocket connection established",
		zap.String("client_id", client.ID.String()),
		zap.String("remote_addr", r.RemoteAddr),
	)
}

// HealthCheck verifies the event hub is still running
func (h *Handler) HealthCheck() error {
	select {
	case <-h.alertEventHub.done:
		return ErrEventHubNotRunning
	default:
		return nil
	}
}

// Errors
var (
	ErrEventHubNotRunning = &WebSocketError{Code: "WS001", Message: "Event hub is not running"}
)

// WebSocketError represents a WebSocket-specific error
type WebSocketError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *WebSocketError) Error() string {
	return e.Code + ": " + e.Message
}
