package websocket

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/wricardo/cabinsmart/cabin/service"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	defaultSendBuffer     = 256
	defaultMaxMessageSize = 64 * 1024

	malformedMessage = "Mensaje inválido"
)

// HandlerOptions tunes per-connection resources. Zero values use defaults.
type HandlerOptions struct {
	SendBuffer     int
	MaxMessageSize int64
}

// Handler accepts WebSocket connections and runs one session per
// connection.
type Handler struct {
	hub        *Hub
	dispatcher *Dispatcher
	logger     *slog.Logger
	opts       HandlerOptions
	upgrader   websocket.Upgrader
}

func NewHandler(hub *Hub, dispatcher *Dispatcher, logger *slog.Logger, opts HandlerOptions) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaultSendBuffer
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = defaultMaxMessageSize
	}
	return &Handler{
		hub:        hub,
		dispatcher: dispatcher,
		logger:     logger,
		opts:       opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The cabin frontend is served from its own origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request and starts the session goroutines.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err, "remote_addr", r.RemoteAddr)
		return
	}

	c := &Client{
		hub:  h.hub,
		conn: conn,
		send: make(chan []byte, h.opts.SendBuffer),
		id:   uuid.NewString(),
	}
	logger := h.logger.With("client_id", c.id)

	h.hub.Register(c)
	go c.writePump()

	snap, err := h.dispatcher.Service().Snapshot(r.Context())
	if err != nil {
		logger.Error("failed to load initial state", "error", err)
		h.hub.Unregister(c)
		return
	}
	h.hub.Send(c, EventInitialState, InitialState{
		Seats:          SeatMap(snap.Seats),
		BathroomQueue:  snap.Queue,
		BathroomStatus: snap.Status,
		ConnectedUsers: h.hub.Count(),
	})
	h.hub.Broadcast(EventUserCountUpdated, UserCountUpdated{Count: h.hub.Count()})
	logger.Info("client connected", "remote_addr", r.RemoteAddr, "clients", h.hub.Count())

	go h.readPump(c, logger)
}

// readPump decodes frames one at a time and dispatches them. Request errors
// are reported to the client; any other failure ends the session.
func (h *Handler) readPump(c *Client, logger *slog.Logger) {
	defer func() {
		h.hub.Unregister(c)
		c.conn.Close()
		h.hub.Broadcast(EventUserCountUpdated, UserCountUpdated{Count: h.hub.Count()})
		logger.Info("client disconnected", "clients", h.hub.Count())
	}()

	c.conn.SetReadLimit(h.opts.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read error", "error", err)
			}
			return
		}

		cmd, err := DecodeCommand(frame)
		switch {
		case errors.Is(err, ErrUnknownEvent):
			logger.Debug("ignoring unknown event", "error", err)
			continue
		case err != nil:
			logger.Warn("malformed message", "error", err)
			h.hub.Send(c, EventError, ErrorMessage{Message: malformedMessage})
			continue
		}

		reply, err := h.dispatcher.Dispatch(context.Background(), cmd)
		if err != nil {
			if service.IsClientError(err) {
				h.hub.Send(c, EventError, ErrorMessage{Message: service.UserMessage(err)})
				continue
			}
			logger.Error("command failed, closing session", "command", cmd, "error", err)
			return
		}
		h.hub.Send(c, reply.Event, reply.Data)
	}
}

// writePump writes queued frames, one WebSocket message each, and keeps the
// connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
