package handlers

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"chatterbox-backend/internal/config"
	"chatterbox-backend/internal/models"
	"chatterbox-backend/internal/services"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ConnState is the lifecycle state of a realtime connection
type ConnState int32

const (
	StateConnecting ConnState = iota
	StateActive
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	default:
		return "closed"
	}
}

// Client is one WebSocket connection. Writes happen only in writePump.
type Client struct {
	id     string
	userID string
	conn   *websocket.Conn
	cfg    config.RealtimeConfig
	send   chan services.WSMessage
	done   chan struct{}
	once   sync.Once
	state  atomic.Int32
	logger zerolog.Logger
}

func newClient(conn *websocket.Conn, userID string, cfg config.RealtimeConfig) *Client {
	id := uuid.New().String()
	return &Client{
		id:     id,
		userID: userID,
		conn:   conn,
		cfg:    cfg,
		send:   make(chan services.WSMessage, cfg.SendBuffer),
		done:   make(chan struct{}),
		logger: log.With().Str("user_id", userID).Str("handle", id).Logger(),
	}
}

func (c *Client) ID() string     { return c.id }
func (c *Client) UserID() string { return c.userID }

// State returns the current lifecycle state
func (c *Client) State() ConnState { return ConnState(c.state.Load()) }

// Send queues msg for the write pump. A full buffer means the peer is not
// keeping up: the frame is dropped and the connection closed.
func (c *Client) Send(msg services.WSMessage) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- msg:
		return true
	case <-c.done:
		return false
	default:
		c.logger.Warn().Str("event", msg.Event).Msg("Send buffer full, closing slow connection")
		c.Close()
		return false
	}
}

// Close moves the connection to Closed. It is safe to call more than once.
func (c *Client) Close() {
	c.once.Do(func() {
		c.state.Store(int32(StateClosed))
		close(c.done)
	})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod())
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			if err := c.write(msg); err != nil {
				c.logger.Debug().Err(err).Msg("Failed to write message")
				c.Close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			c.flush()
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// flush writes what is still queued when the connection closes
func (c *Client) flush() {
	for {
		select {
		case msg := <-c.send:
			if err := c.write(msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Client) write(msg services.WSMessage) error {
	c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
	return c.conn.WriteJSON(msg)
}

func (c *Client) readPump(ctx context.Context, router *services.EventRouter) {
	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Error().Err(err).Msg("WebSocket error")
			}
			return
		}

		if router.Handle(ctx, c, data) {
			c.logger.Info().Msg("Closing connection")
			return
		}
	}
}

// WebSocketHandler handles WebSocket connections
type WebSocketHandler struct {
	router   *services.EventRouter
	cfg      config.RealtimeConfig
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(router *services.EventRouter, cfg config.RealtimeConfig) *WebSocketHandler {
	h := &WebSocketHandler{
		router: router,
		cfg:    cfg,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 || slices.Contains(h.cfg.AllowedOrigins, "*") {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || slices.Contains(h.cfg.AllowedOrigins, origin)
}

// HandleWebSocket handles GET /ws?user_id=<id>
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.URL.Query().Get("user_id")

	if _, err := h.router.LookupUser(ctx, userID); err != nil {
		if errors.Is(err, models.ErrValidation) || errors.Is(err, models.ErrNotFound) {
			respondError(w, "user_id must identify an existing user", http.StatusBadRequest)
			return
		}
		respondServiceError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	client := newClient(conn, userID, h.cfg)
	go client.writePump()
	defer client.Close()

	if err := h.router.Connect(ctx, client); err != nil {
		client.logger.Error().Err(err).Msg("Failed to bind WebSocket session")
		return
	}
	if !client.state.CompareAndSwap(int32(StateConnecting), int32(StateActive)) {
		// replaced by a newer connection while binding
		return
	}
	client.logger.Info().Msg("WebSocket connection established")

	client.readPump(ctx, h.router)

	h.router.Disconnect(context.WithoutCancel(ctx), client)
	client.logger.Info().Msg("WebSocket connection closed")
}
