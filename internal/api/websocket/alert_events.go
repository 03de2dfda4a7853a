// Package websocket fans alert events out to subscribed clients in real
// time.
package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/bhuwanb23/profitpulse-anomaly/internal/domain/anomaly"
)

// AlertEventType represents the type of alert event
type AlertEventType string

const (
	AlertEventGenerated AlertEventType = "alert.generated"
	AlertEventEscalated AlertEventType = "alert.escalated"
	AlertEventHandled   AlertEventType = "alert.handled"
	AlertEventConnected AlertEventType = "connection.established"
)

// AlertEvent represents a real-time alert event pushed to subscribers
type AlertEvent struct {
	ID        string                 `json:"id"`
	Type      AlertEventType         `json:"type"`
	StreamID  string                 `json:"stream_id,omitempty"`
	Severity  string                 `json:"severity,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Alert     map[string]interface{} `json:"alert,omitempty"`
	Data      interface{}            `json:"data,omitempty"`
}

// AlertEventHub manages WebSocket connections for alert events
type AlertEventHub struct {
	logger      *zap.Logger
	clients     map[uuid.UUID]*AlertClient
	clientsLock sync.RWMutex
	broadcast   chan *AlertEvent
	register    chan *AlertClient
	unregister  chan *AlertClient
	done        chan struct{}
	stopOnce    sync.Once
}

// AlertClient represents a WebSocket client subscribed to alert events
type AlertClient struct {
	ID      uuid.UUID
	conn    *websocket.Conn
	send    chan *AlertEvent
	hub     *AlertEventHub
	filters AlertEventFilters
}

// AlertEventFilters defines per-client filters for alert events
type AlertEventFilters struct {
	StreamIDs  []string         `json:"stream_ids,omitempty"`
	Severities []string         `json:"severities,omitempty"`
	EventTypes []AlertEventType `json:"event_types,omitempty"`
}

// NewAlertEventHub creates a new alert event hub
func NewAlertEventHub(logger *zap.Logger) *AlertEventHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertEventHub{
		logger:     logger,
		clients:    make(map[uuid.UUID]*AlertClient),
		broadcast:  make(chan *AlertEvent, 100),
		register:   make(chan *AlertClient),
		unregister: make(chan *AlertClient),
		done:       make(chan struct{}),
	}
}

// Run starts the event hub loop. It returns when ctx is cancelled or Stop
// is called.
func (h *AlertEventHub) Run(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case <-h.done:
			h.shutdown()
			return
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		case event := <-h.broadcast:
			h.broadcastEvent(event)
		case <-ticker.C:
			h.pingClients()
		}
	}
}

// Stop gracefully shuts down the hub. Safe to call more than once.
func (h *AlertEventHub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
}

// ClientCount returns the number of connected clients.
func (h *AlertEventHub) ClientCount() int {
	h.clientsLock.RLock()
	defer h.clientsLock.RUnlock()
	return len(h.clients)
}

// BroadcastAlert broadcasts a generated alert to all subscribers
func (h *AlertEventHub) BroadcastAlert(streamID string, a *anomaly.Alert) {
	h.enqueue(&AlertEvent{
		ID:        uuid.New().String(),
		Type:      AlertEventGenerated,
		StreamID:  streamID,
		Severity:  a.Severity.String(),
		Timestamp: time.Now(),
		Alert:     a.ToDict(),
	})
}

// BroadcastEscalation broadcasts an escalation level change
func (h *AlertEventHub) BroadcastEscalation(a *anomaly.Alert) {
	h.enqueue(&AlertEvent{
		ID:        uuid.New().String(),
		Type:      AlertEventEscalated,
		Severity:  a.Severity.String(),
		Timestamp: time.Now(),
		Alert:     a.ToDict(),
	})
}

func (h *AlertEventHub) enqueue(event *AlertEvent) {
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("broadcast queue full, dropping event",
			zap.String("event_type", string(event.Type)))
	}
}

// RegisterClient registers a new WebSocket client
func (h *AlertEventHub) RegisterClient(client *AlertClient) {
	h.register <- client
}

// UnregisterClient unregisters a WebSocket client
func (h *AlertEventHub) UnregisterClient(client *AlertClient) {
	h.unregister <- client
}

func (h *AlertEventHub) registerClient(client *AlertClient) {
	h.clientsLock.Lock()
	defer h.clientsLock.Unlock()

	h.clients[client.ID] = client
	h.logger.Info("WebSocket client registered",
		zap.String("client_id", client.ID.String()),
	)

	welcome := &AlertEvent{
		ID:        uuid.New().String(),
		Type:      AlertEventConnected,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"client_id": client.ID.String(),
			"message":   "Connected to anomaly alert stream",
		},
	}

	select {
	case client.send <- welcome:
	default:
	}
}

func (h *AlertEventHub) unregisterClient(client *AlertClient) {
	h.clientsLock.Lock()
	defer h.clientsLock.Unlock()

	if _, exists := h.clients[client.ID]; exists {
		delete(h.clients, client.ID)
		close(client.send)
		h.logger.Info("WebSocket client unregistered",
			zap.String("client_id", client.ID.String()),
		)
	}
}

// broadcastEvent delivers to a snapshot of the client set. A full or failed
// client is removed without aborting delivery to the rest.
func (h *AlertEventHub) broadcastEvent(event *AlertEvent) {
	h.clientsLock.RLock()
	snapshot := make([]*AlertClient, 0, len(h.clients))
	for _, client := range h.clients {
		snapshot = append(snapshot, client)
	}
	h.clientsLock.RUnlock()

	var failed []*AlertClient
	for _, client := range snapshot {
		if !client.shouldReceiveEvent(event) {
			continue
		}
		select {
		case client.send <- event:
		default:
			h.logger.Warn("client send channel full, closing connection",
				zap.String("client_id", client.ID.String()),
			)
			failed = append(failed, client)
		}
	}

	for _, client := range failed {
		h.unregisterClient(client)
	}
}

func (h *AlertEventHub) pingClients() {
	h.clientsLock.RLock()
	snapshot := make([]*AlertClient, 0, len(h.clients))
	for _, client := range h.clients {
		snapshot = append(snapshot, client)
	}
	h.clientsLock.RUnlock()

	for _, client := range snapshot {
		if err := client.conn.WriteControl(
			websocket.PingMessage,
			nil,
			time.Now().Add(10*time.Second),
		); err != nil {
			h.logger.Error("failed to ping client",
				zap.String("client_id", client.ID.String()),
				zap.Error(err),
			)
			h.unregisterClient(client)
		}
	}
}

func (h *AlertEventHub) shutdown() {
	h.clientsLock.Lock()
	defer h.clientsLock.Unlock()

	for _, client := range h.clients {
		close(client.send)
		client.conn.Close()
	}
	h.clients = make(map[uuid.UUID]*AlertClient)
}

// AlertClient methods

// NewAlertClient creates a new alert WebSocket client
func NewAlertClient(conn *websocket.Conn, hub *AlertEventHub) *AlertClient {
	return &AlertClient{
		ID:   uuid.New(),
		conn: conn,
		send: make(chan *AlertEvent, 10),
		hub:  hub,
	}
}

// ReadPump pumps messages from the WebSocket connection to the hub
func (c *AlertClient) ReadPump() {
	defer func() {
		c.hub.UnregisterClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Error("WebSocket read error",
					zap.String("client_id", c.ID.String()),
					zap.Error(err),
				)
			}
			break
		}

		var msg map[string]interface{}
		if err := json.Unmarshal(message, &msg); err != nil {
			c.hub.logger.Error("failed to parse client message",
				zap.String("client_id", c.ID.String()),
				zap.Error(err),
			)
			continue
		}

		if msgType, ok := msg["type"].(string); ok {
			switch msgType {
			case "update_filters":
				c.updateFilters(msg)
			case "ping":
				pong := &AlertEvent{
					ID:        uuid.New().String(),
					Type:      "pong",
					Timestamp: time.Now(),
				}
				select {
				case c.send <- pong:
				default:
				}
			}
		}
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *AlertClient) WritePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(event); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *AlertClient) shouldReceiveEvent(event *AlertEvent) bool {
	if len(c.filters.EventTypes) > 0 {
		found := false
		for _, et := range c.filters.EventTypes {
			if et == event.Type {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(c.filters.StreamIDs) > 0 && event.StreamID != "" {
		found := false
		for _, id := range c.filters.StreamIDs {
			if id == event.StreamID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(c.filters.Severities) > 0 && event.Severity != "" {
		found := false
		for _, s := range c.filters.Severities {
			if s == event.Severity {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	return true
}

func (c *AlertClient) updateFilters(msg map[string]interface{}) {
	filters, ok := msg["filters"].(map[string]interface{})
	if !ok {
		return
	}

	if streamIDs, ok := filters["stream_ids"].([]interface{}); ok {
		c.filters.StreamIDs = make([]string, 0, len(streamIDs))
		for _, id := range streamIDs {
			if s, ok := id.(string); ok {
				c.filters.StreamIDs = append(c.filters.StreamIDs, s)
			}
		}
	}

	if severities, ok := filters["severities"].([]interface{}); ok {
		c.filters.Severities = make([]string, 0, len(severities))
		for _, sv := range severities {
			if s, ok := sv.(string); ok {
				c.filters.Severities = append(c.filters.Severities, s)
			}
		}
	}

	if eventTypes, ok := filters["event_types"].([]interface{}); ok {
		c.filters.EventTypes = make([]AlertEventType, 0, len(eventTypes))
		for _, et := range eventTypes {
			if s, ok := et.(string); ok {
				c.filters.EventTypes = append(c.filters.EventTypes, AlertEventType(s))
			}
		}
	}

	c.hub.logger.Info("client filters updated",
		zap.String("client_id", c.ID.String()),
		zap.Any("filters", c.filters),
	)
}
