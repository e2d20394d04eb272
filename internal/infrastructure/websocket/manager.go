// Package websocket pushes chat events from the gateway to the browser UI.
// One client per authenticated email; events are JSON frames.
package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"bidchat/pkg/logger"
)

// Event is a frame pushed to the UI.
type Event struct {
	Type    string      `json:"type"` // "chat.message", "presence"
	Payload interface{} `json:"payload,omitempty"`
}

// Client represents one browser connection.
type Client struct {
	Email string
	Conn  *websocket.Conn
	Send  chan []byte
}

// Manager tracks the active browser connections.
type Manager struct {
	clients    map[string]*Client
	Register   chan *Client
	Unregister chan *Client
	mutex      sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		clients:    make(map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Start runs the registry loop until ctx is done.
func (m *Manager) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case client := <-m.Register:
				m.mutex.Lock()
				m.clients[client.Email] = client
				m.mutex.Unlock()
				logger.Info("UI client registered: %s", client.Email)

			case client := <-m.Unregister:
				m.mutex.Lock()
				if _, ok := m.clients[client.Email]; ok {
					delete(m.clients, client.Email)
					close(client.Send)
				}
				m.mutex.Unlock()
				logger.Info("UI client unregistered: %s", client.Email)

			case <-ctx.Done():
				return
			}
		}
	}()
}

// SendToUser pushes an event to one connected browser. A missing or slow
// client is dropped silently; the UI repaints from the transcript endpoint
// on reconnect anyway.
func (m *Manager) SendToUser(email string, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Error("Failed to encode UI event: %v", err)
		return
	}

	m.mutex.RLock()
	client, ok := m.clients[email]
	m.mutex.RUnlock()
	if !ok {
		return
	}

	select {
	case client.Send <- payload:
	default:
		logger.Warn("Dropping UI event for slow client %s", email)
	}
}

// ReadPump drains inbound frames until the connection dies. The UI never
// sends anything meaningful over the socket; it exists for pushes.
func (c *Client) ReadPump(m *Manager) {
	defer func() {
		m.Unregister <- c
		c.Conn.Close()
	}()

	for {
		_, _, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("UI socket error for %s: %v", c.Email, err)
			}
			return
		}
	}
}

// WritePump forwards queued events to the connection.
func (c *Client) WritePump() {
	defer c.Conn.Close()

	for {
		message, ok := <-c.Send
		if !ok {
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}

		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			logger.Warn("UI socket write failed for %s: %v", c.Email, err)
			return
		}
	}
}
