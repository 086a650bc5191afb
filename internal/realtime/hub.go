// Package realtime pushes session changes to open browser tabs over
// websockets, so a sign-out on one tab is seen by the others.
package realtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sakif/wastenot/internal/model"
	"github.com/sakif/wastenot/internal/session"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 8
)

// EventSource is where session events come from.
type EventSource interface {
	Subscribe(fn func(session.Event)) (unsubscribe func())
}

// Message is what a client receives. Current is true when the event is
// about the token this connection was opened with.
type Message struct {
	Type    session.EventType `json:"type"`
	UserID  string            `json:"userId"`
	User    *model.User       `json:"user,omitempty"`
	Current bool              `json:"current"`
}

type client struct {
	userID string
	conn   *websocket.Conn
	send   chan []byte

	mu      sync.Mutex
	tokenID string
	closed  bool
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// trySend queues payload without blocking. It reports false when the
// buffer is full.
func (c *client) trySend(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Hub fans session events out to connected clients of the same user.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]map[*client]struct{}

	unsubscribe func()
}

// NewHub creates a hub subscribed to src. allowedOrigins restricts the
// Origin header on upgrade; empty allows same-host requests only.
func NewHub(src EventSource, allowedOrigins []string, logger *slog.Logger) *Hub {
	h := &Hub{
		logger:  logger.With(slog.String("component", "realtime")),
		clients: make(map[string]map[*client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	h.unsubscribe = src.Subscribe(h.dispatch)
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil // gorilla's default same-origin check
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin] || set["*"]
	}
}

// Close unsubscribes from the event source and disconnects every client.
func (h *Hub) Close() {
	h.unsubscribe()
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.clients {
		for c := range set {
			c.close()
		}
	}
	h.clients = make(map[string]map[*client]struct{})
}

// Connections returns the number of open connections for userID.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Serve upgrades the request and streams events for userID until the
// connection drops or the token it was opened with is signed out.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID, tokenID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &client{userID: userID, tokenID: tokenID, send: make(chan []byte, sendBuffer), conn: conn}
	h.register(c)
	h.logger.Debug("websocket connected", slog.String("userID", userID))

	go h.writePump(c)
	h.readPump(c)
	return nil
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	if h.clients[c.userID] == nil {
		h.clients[c.userID] = make(map[*client]struct{})
	}
	h.clients[c.userID][c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if set := h.clients[c.userID]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.userID)
		}
	}
	h.mu.Unlock()
	c.close()
}

// dispatch runs on the publisher's goroutine, so it never blocks: a client
// whose buffer is full is dropped.
func (h *Hub) dispatch(ev session.Event) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients[ev.UserID]))
	for c := range h.clients[ev.UserID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		msg, last := c.message(ev)
		payload, err := json.Marshal(msg)
		if err != nil {
			h.logger.Error("encoding session event", slog.String("error", err.Error()))
			continue
		}
		if !c.trySend(payload) {
			h.logger.Warn("dropping slow websocket client", slog.String("userID", c.userID))
			h.unregister(c)
			continue
		}
		if last {
			h.unregister(c)
		}
	}
}

// message builds the client's view of ev and reports whether the
// connection should close after it is sent.
func (c *client) message(ev session.Event) (Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	msg := Message{Type: ev.Type, UserID: ev.UserID, User: ev.User}
	switch ev.Type {
	case session.EventSignedOut:
		msg.Current = ev.TokenID == c.tokenID
		return msg, msg.Current
	case session.EventTokenRefreshed:
		if ev.PreviousTokenID == c.tokenID {
			c.tokenID = ev.TokenID
			msg.Current = true
		}
	default:
		msg.Current = ev.TokenID == c.tokenID
	}
	return msg, false
}

func (h *Hub) readPump(c *client) {
	defer h.unregister(c)

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		// Clients never send anything meaningful; reading only detects close.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
