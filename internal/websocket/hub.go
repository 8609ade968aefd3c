// Package websocket pushes progress events (achievement unlocks, level
// ups) to connected clients. Each connection is registered under the user
// it authenticated as, so events reach only that user's open tabs.
package websocket

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/safetylearn/safetylearn-web/internal/logger"
	"github.com/safetylearn/safetylearn-web/internal/models"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Allow connections from any origin for development
		// In production, implement proper origin checking
		return true
	},
}

// Event is the wire envelope for progress notifications.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type achievementPayload struct {
	Achievement models.Achievement `json:"achievement"`
}

type levelUpPayload struct {
	Level int `json:"level"`
}

type userMessage struct {
	userID string
	data   []byte
}

type Hub struct {
	clients    map[*Client]bool
	send       chan userMessage
	register   chan *Client
	unregister chan *Client
	logger     *logger.Log
}

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string
	send   chan []byte
}

func NewHub() *Hub {
	return &Hub{
		send:       make(chan userMessage),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		logger:     logger.New(),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.logger.Debugf("Client connected for user %s. Total: %d", client.userID, len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.logger.Debugf("Client disconnected. Total: %d", len(h.clients))
			}

		case msg := <-h.send:
			for client := range h.clients {
				if client.userID != msg.userID {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// AchievementUnlocked implements services.Notifier.
func (h *Hub) AchievementUnlocked(userID string, achievement models.Achievement) {
	h.emit(userID, Event{
		Type:    "achievement-unlocked",
		Payload: achievementPayload{Achievement: achievement},
	})
}

// LevelUp implements services.Notifier.
func (h *Hub) LevelUp(userID string, level int) {
	h.emit(userID, Event{
		Type:    "level-up",
		Payload: levelUpPayload{Level: level},
	})
}

func (h *Hub) emit(userID string, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.WithError(err).Error("Failed to marshal websocket event")
		return
	}

	// Non-blocking from the caller's side: Run owns delivery.
	go func() {
		h.send <- userMessage{userID: userID, data: data}
	}()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.WithError(err).Warn("WebSocket read error")
			}
			break
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			c.hub.logger.WithError(err).Warn("WebSocket write error")
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// ServeWS upgrades the request and registers the connection for the user.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Error("WebSocket upgrade error")
		return
	}

	client := &Client{hub: h, conn: conn, userID: userID, send: make(chan []byte, 256)}
	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}
