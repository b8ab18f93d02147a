package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// Client is one live observer connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	id   string
}

// ID returns the connection identifier.
func (c *Client) ID() string {
	return c.id
}

// Hub maintains the set of live clients and fans events out to them.
type Hub struct {
	mu      sync.Mutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

// NewHub creates an empty hub. A nil logger uses slog.Default().
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds c to the live set. Registering twice is a no-op.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; ok {
		return
	}
	h.clients[c] = struct{}{}
	h.logger.Debug("client registered", "client_id", c.id, "clients", len(h.clients))
}

// Unregister removes c and closes its send channel. Unregistering a client
// that is not registered is a no-op.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

// Count returns the number of live clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast sends an event to every live client. Clients whose buffer is
// full are dropped after the pass; nothing is reported to the caller.
func (h *Hub) Broadcast(event string, data any) {
	frame, err := json.Marshal(Message{Event: event, Data: data})
	if err != nil {
		h.logger.Error("failed to marshal broadcast", "event", event, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var failed []*Client
	for c := range h.clients {
		select {
		case c.send <- frame:
		default:
			failed = append(failed, c)
		}
	}
	for _, c := range failed {
		h.removeLocked(c)
		h.logger.Warn("dropped slow client", "client_id", c.id, "event", event)
	}
}

// Send delivers an event to c alone. It reports false, and drops the
// client, if c's buffer is full; it reports false if c is not registered.
func (h *Hub) Send(c *Client, event string, data any) bool {
	frame, err := json.Marshal(Message{Event: event, Data: data})
	if err != nil {
		h.logger.Error("failed to marshal message", "event", event, "error", err)
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		h.removeLocked(c)
		h.logger.Warn("dropped slow client", "client_id", c.id, "event", event)
		return false
	}
}

func (h *Hub) removeLocked(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.logger.Debug("client unregistered", "client_id", c.id, "clients", len(h.clients))
}
