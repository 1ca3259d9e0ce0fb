// Package ws pushes board events to browsers over WebSocket so a user with
// the board open in several tabs sees every edit and save land.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/okian/pickem/pkg/logger"
	"github.com/okian/pickem/pkg/metrics"
)

// Message is the frame written for every published event.
type Message struct {
	Type   string    `json:"type"`
	UserID string    `json:"userId"`
	Data   any       `json:"data,omitempty"`
	SentAt time.Time `json:"sentAt"`
}

// Hub keeps the open connections of every user.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]map[*conn]struct{}

	upgrader       websocket.Upgrader
	origins        []string
	writeTimeout   time.Duration
	readTimeout    time.Duration
	pingInterval   time.Duration
	maxMessageSize int64
	sendBuffer     int
	logger         logger.Logger
}

type conn struct {
	id     string
	userID string
	ws     *websocket.Conn
	send   chan []byte
	hub    *Hub
}

// NewHub creates a hub with default timeouts.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		conns:          make(map[string]map[*conn]struct{}),
		writeTimeout:   10 * time.Second,
		readTimeout:    60 * time.Second,
		pingInterval:   30 * time.Second,
		maxMessageSize: 1024,
		sendBuffer:     64,
		logger:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// Register attaches GET /ws/{user} to mux.
func (h *Hub) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.HandleFunc("GET /ws/{user}", h.HandleConnect)
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.origins) == 0 {
		return true
	}
	for _, o := range h.origins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// HandleConnect upgrades the request and subscribes it to the user's events.
func (h *Hub) HandleConnect(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user")
	if userID == "" {
		http.Error(w, "missing user", http.StatusBadRequest)
		return
	}
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the client.
		h.logger.Warn(r.Context(), "websocket upgrade failed",
			logger.String("user", userID),
			logger.Error(err))
		return
	}

	c := &conn{
		id:     uuid.NewString(),
		userID: userID,
		ws:     ws,
		send:   make(chan []byte, h.sendBuffer),
		hub:    h,
	}
	h.register(c)

	go c.writePump()
	go c.readPump()
}

func (h *Hub) register(c *conn) {
	h.mu.Lock()
	set, ok := h.conns[c.userID]
	if !ok {
		set = make(map[*conn]struct{})
		h.conns[c.userID] = set
	}
	set[c] = struct{}{}
	total := h.countLocked()
	h.mu.Unlock()

	metrics.UpdateWSConnections(total)
	h.logger.Debug(context.Background(), "websocket connected",
		logger.String("connection", c.id),
		logger.String("user", c.userID),
		logger.Int("total", total))
}

// unregister drops c and closes its send channel once.
func (h *Hub) unregister(c *conn) {
	h.mu.Lock()
	set, ok := h.conns[c.userID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := set[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.conns, c.userID)
	}
	total := h.countLocked()
	h.mu.Unlock()

	metrics.UpdateWSConnections(total)
	h.logger.Debug(context.Background(), "websocket disconnected",
		logger.String("connection", c.id),
		logger.String("user", c.userID))
}

func (h *Hub) countLocked() int {
	n := 0
	for _, set := range h.conns {
		n += len(set)
	}
	return n
}

// Publish writes event to every connection userID has open. Connections
// whose buffer is full are dropped rather than waited on.
func (h *Hub) Publish(userID, event string, data any) {
	raw, err := json.Marshal(Message{Type: event, UserID: userID, Data: data, SentAt: time.Now().UTC()})
	if err != nil {
		h.logger.Error(context.Background(), "failed to encode event",
			logger.String("event", event),
			logger.Error(err))
		return
	}

	var slow []*conn
	h.mu.RLock()
	for c := range h.conns[userID] {
		select {
		case c.send <- raw:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	metrics.RecordWSBroadcast()
	for _, c := range slow {
		h.logger.Warn(context.Background(), "websocket send buffer full, closing",
			logger.String("connection", c.id),
			logger.String("user", c.userID))
		h.unregister(c)
	}
}

// Connections reports how many connections userID has open; an empty id
// counts every user.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if userID == "" {
		return h.countLocked()
	}
	return len(h.conns[userID])
}

// Close disconnects every client. Hijacked connections are not closed by
// http.Server.Shutdown, so callers close the hub alongside it.
func (h *Hub) Close() {
	h.mu.RLock()
	var all []*conn
	for _, set := range h.conns {
		for c := range set {
			all = append(all, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range all {
		h.unregister(c)
	}
}

func (c *conn) writePump() {
	ticker := time.NewTicker(c.hub.pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
		c.hub.unregister(c)
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.hub.writeTimeout))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.hub.writeTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only keeps the read deadline moving; clients have nothing to say.
func (c *conn) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.ws.Close()
	}()

	c.ws.SetReadLimit(c.hub.maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.hub.readTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.hub.readTimeout))
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug(context.Background(), "websocket closed",
					logger.String("connection", c.id),
					logger.Error(err))
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(c.hub.readTimeout))
	}
}
