package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pal/internal/common"
	"github.com/ternarybob/pal/internal/interfaces"
	"github.com/ternarybob/pal/internal/services/events"
)

const writeTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // GUI runs on the same machine
	},
}

// WSMessage is the envelope for every message sent to GUI clients
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// HelloMessage is sent once per connection so clients can detect a server restart
type HelloMessage struct {
	ClientID         string `json:"client_id"`
	ServerInstanceID string `json:"server_instance_id"`
	Version          string `json:"version"`
}

type wsClient struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// WebSocketHandler streams engine events (answers, learning results, proactive messages) to the GUI
type WebSocketHandler struct {
	logger           arbor.ILogger
	clients          map[*wsClient]bool
	mu               sync.RWMutex
	allowedEvents    map[string]bool // empty = allow all
	serverInstanceID string
}

func NewWebSocketHandler(eventService interfaces.EventService, logger arbor.ILogger, config *common.WebSocketConfig) *WebSocketHandler {
	h := &WebSocketHandler{
		logger:           logger,
		clients:          make(map[*wsClient]bool),
		allowedEvents:    make(map[string]bool),
		serverInstanceID: common.NewClientID(),
	}

	if config != nil {
		for _, eventType := range config.AllowedEvents {
			h.allowedEvents[eventType] = true
		}
	}

	if eventService != nil {
		for _, eventType := range events.AllEventTypes {
			if !h.allowed(string(eventType)) {
				continue
			}
			if err := eventService.Subscribe(eventType, h.handleEvent); err != nil {
				logger.Warn().Err(err).Str("event", string(eventType)).Msg("Failed to subscribe WebSocket handler")
			}
		}
	}

	logger.Debug().
		Str("server_instance_id", h.serverInstanceID).
		Int("allowed_events", len(h.allowedEvents)).
		Msg("WebSocket handler initialized")
	return h
}

func (h *WebSocketHandler) allowed(eventType string) bool {
	return len(h.allowedEvents) == 0 || h.allowedEvents[eventType]
}

func (h *WebSocketHandler) handleEvent(ctx context.Context, event interfaces.Event) error {
	h.Broadcast(string(event.Type), event.Payload)
	return nil
}

// ClientCount returns the number of connected clients
func (h *WebSocketHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket upgrades the connection and keeps it until the client goes away
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	client := &wsClient{id: common.NewClientID(), conn: conn}

	h.mu.Lock()
	h.clients[client] = true
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Str("client_id", client.id).Int("clients", clientCount).Msg("WebSocket client connected")

	h.send(client, "hello", HelloMessage{
		ClientID:         client.id,
		ServerInstanceID: h.serverInstanceID,
		Version:          common.GetVersion(),
	})

	defer func() {
		h.mu.Lock()
		delete(h.clients, client)
		remaining := len(h.clients)
		h.mu.Unlock()

		conn.Close()
		h.logger.Debug().Str("client_id", client.id).Int("clients", remaining).Msg("WebSocket client disconnected")
	}()

	// Clients only listen; reads keep the connection alive and detect close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Msg("WebSocket error")
			}
			return
		}
	}
}

func (h *WebSocketHandler) send(client *wsClient, messageType string, payload interface{}) {
	data, err := json.Marshal(WSMessage{Type: messageType, Payload: payload})
	if err != nil {
		h.logger.Error().Err(err).Str("type", messageType).Msg("Failed to marshal WebSocket message")
		return
	}
	if err := client.write(data); err != nil {
		h.logger.Warn().Err(err).Str("client_id", client.id).Msg("Failed to send WebSocket message")
	}
}

// Broadcast sends a message to every connected client
func (h *WebSocketHandler) Broadcast(messageType string, payload interface{}) {
	data, err := json.Marshal(WSMessage{Type: messageType, Payload: payload})
	if err != nil {
		h.logger.Error().Err(err).Str("type", messageType).Msg("Failed to marshal WebSocket message")
		return
	}

	h.mu.RLock()
	clients := make([]*wsClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if err := client.write(data); err != nil {
			h.logger.Warn().Err(err).Str("client_id", client.id).Msg("Failed to broadcast to client")
		}
	}
}
