package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/FocuswithJustin/JuniperReader/internal/commands"
	"github.com/FocuswithJustin/JuniperReader/internal/logging"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// InvokeMessage is a command sent over the WebSocket bridge.
type InvokeMessage struct {
	ID   string          `json:"id"`
	Cmd  string          `json:"cmd"`
	Args json.RawMessage `json:"args,omitempty"`
}

// InvokeReply answers the InvokeMessage with the same ID.
type InvokeReply struct {
	ID    string `json:"id"`
	OK    bool   `json:"ok"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// Client represents a WebSocket client connection.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	bucket *messageRateBucket
	remote string
}

// Hub tracks connected clients so they can be counted and closed on shutdown.
type Hub struct {
	clients map[*Client]bool
	mu      sync.RWMutex
}

// NewHub creates a new WebSocket hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
	}
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()
	logging.WebSocketEvent("client_connected", "remote_addr", client.remote, "clients", count)
}

// unregister removes client and closes its send channel, which stops its
// write loop.
func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	count := len(h.clients)
	h.mu.Unlock()
	logging.WebSocketEvent("client_disconnected", "remote_addr", client.remote, "clients", count)
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll closes every client connection.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		client.conn.Close()
	}
}

// messageRateBucket implements a token bucket for message rate limiting.
type messageRateBucket struct {
	tokens         float64
	capacity       float64
	refillRate     float64 // tokens per second
	lastRefillTime time.Time
}

// newMessageRateBucket allows bursts of twice the per-second rate. A
// non-positive rate disables limiting.
func newMessageRateBucket(messagesPerSecond int) *messageRateBucket {
	if messagesPerSecond <= 0 {
		return nil
	}
	capacity := float64(messagesPerSecond) * 2.0
	return &messageRateBucket{
		tokens:         capacity,
		capacity:       capacity,
		refillRate:     float64(messagesPerSecond),
		lastRefillTime: time.Now(),
	}
}

// allow is only called from the client's read loop.
func (mb *messageRateBucket) allow() bool {
	if mb == nil {
		return true
	}
	now := time.Now()
	elapsed := now.Sub(mb.lastRefillTime).Seconds()
	mb.tokens = min(mb.capacity, mb.tokens+elapsed*mb.refillRate)
	mb.lastRefillTime = now

	if mb.tokens >= 1.0 {
		mb.tokens--
		return true
	}
	return false
}

// isOriginAllowed checks the Origin header against the allowed list. An
// empty list allows any origin, as does a request without Origin, which
// only non-browser clients send.
func isOriginAllowed(origin string, allowedOrigins []string) bool {
	if len(allowedOrigins) == 0 || origin == "" {
		return true
	}
	for _, allowed := range allowedOrigins {
		if allowed == "*" || origin == allowed {
			return true
		}
	}
	return false
}

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if isOriginAllowed(origin, s.cfg.AllowedOrigins) {
				return true
			}
			logging.SecurityEvent("websocket_origin_rejected", "api", "origin", origin)
			return false
		},
	}
}

// handleWebSocket upgrades the connection and answers invoke messages.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		logging.WebSocketEvent("upgrade_failed", "error", err.Error())
		return
	}

	if s.cfg.WebSocket.MaxMessageSize > 0 {
		conn.SetReadLimit(s.cfg.WebSocket.MaxMessageSize)
	}

	client := &Client{
		hub:    s.hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		bucket: newMessageRateBucket(s.cfg.WebSocket.MaxMessageRate),
		remote: getClientIP(r),
	}

	s.hub.register(client)

	// The request context ends when this handler returns; keep its values.
	go client.writePump()
	go client.readPump(context.WithoutCancel(r.Context()), s.surface)
}

// readPump answers each message in order until the connection fails.
func (c *Client) readPump(ctx context.Context, surface *commands.Surface) {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.WebSocketEvent("unexpected_close", "remote_addr", c.remote, "error", err.Error())
			}
			return
		}

		if !c.bucket.allow() {
			logging.SecurityEvent("websocket_rate_limited", "api", "remote_addr", c.remote)
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "Rate limit exceeded"),
				time.Now().Add(writeWait))
			return
		}

		reply := c.answer(ctx, surface, message)
		data, err := json.Marshal(reply)
		if err != nil {
			logging.Error("failed to encode websocket reply", "error", err)
			continue
		}

		select {
		case c.send <- data:
		default:
			logging.WebSocketEvent("send_buffer_full", "remote_addr", c.remote)
			return
		}
	}
}

func (c *Client) answer(ctx context.Context, surface *commands.Surface, message []byte) InvokeReply {
	var msg InvokeMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return InvokeReply{OK: false, Error: "invalid message: " + err.Error()}
	}

	req := commands.Request{Cmd: msg.Cmd, Args: msg.Args}
	if err := validateInvokeArgs(req); err != nil {
		return InvokeReply{ID: msg.ID, OK: false, Error: err.Error()}
	}

	resp := surface.Invoke(ctx, req)
	return InvokeReply{ID: msg.ID, OK: resp.OK, Data: resp.Data, Error: resp.Error}
}

// writePump writes replies and keeps the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
