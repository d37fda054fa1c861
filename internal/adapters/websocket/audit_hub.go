// Package websocket provides the live operator audit stream: a fan-out
// broadcaster of domain.AuditEvent to connected operator dashboards.
package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wagateway/core/internal/core/domain"
)

// AuditHub broadcasts every appended domain.AuditEvent to connected
// operator clients, generalizing log_hub.go's LogHub from a raw
// io.Writer log tap into a typed event broadcaster: one audit append
// (C9) fans out to N connected dashboards, same drop-if-full design so a
// slow viewer never backs up the append path.
type AuditHub struct {
	clients   map[*auditClient]struct{}
	broadcast chan domain.AuditEvent
	register  chan *auditClient
	unregister chan *auditClient
	mu        sync.RWMutex
	secretKey string
	upgrader  websocket.Upgrader
}

type auditClient struct {
	hub  *AuditHub
	conn *websocket.Conn
	send chan []byte
}

const (
	auditBroadcastBufferSize = 256
	auditClientBufferSize    = 64

	auditWriteWait      = 10 * time.Second
	auditPongWait       = 60 * time.Second
	auditPingPeriod     = (auditPongWait * 9) / 10
	auditMaxMessageSize = 512
)

// NewAuditHub constructs a hub gated by secretKey (MESH_SECRET).
func NewAuditHub(secretKey string) *AuditHub {
	return &AuditHub{
		clients:    make(map[*auditClient]struct{}),
		broadcast:  make(chan domain.AuditEvent, auditBroadcastBufferSize),
		register:   make(chan *auditClient),
		unregister: make(chan *auditClient),
		secretKey:  secretKey,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Run starts the hub's event loop; call as a goroutine.
func (h *AuditHub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			count := len(h.clients)
			h.mu.Unlock()
			slog.Info("audit stream client connected", "clients", count)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			slog.Info("audit stream client disconnected", "clients", count)

		case event := <-h.broadcast:
			msg, err := json.Marshal(event)
			if err != nil {
				slog.Error("audit stream: marshal event failed", "error", err)
				continue
			}
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// slow client: drop rather than block the append path
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Publish queues event for broadcast to every connected operator client.
// Non-blocking: a full broadcast buffer drops the event rather than stall
// the caller (the audit chain's authoritative record is the store, not
// this stream).
func (h *AuditHub) Publish(event domain.AuditEvent) {
	select {
	case h.broadcast <- event:
	default:
		slog.Warn("audit stream broadcast buffer full, dropping event", "event_id", event.EventID)
	}
}

// ServeWS upgrades the connection, gated by a matching ?secret_key=.
// Route: GET /internal/audit/stream?secret_key=MESH_SECRET
func (h *AuditHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	if key := r.URL.Query().Get("secret_key"); key == "" || key != h.secretKey {
		http.Error(w, "invalid or missing secret_key", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("audit stream: websocket upgrade failed", "error", err)
		return
	}

	c := &auditClient{hub: h, conn: conn, send: make(chan []byte, auditClientBufferSize)}
	h.register <- c

	go c.writePump()
	go c.readPump()
}

func (c *auditClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(auditMaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(auditPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(auditPongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Debug("audit stream read error", "error", err)
			}
			break
		}
	}
}

func (c *auditClient) writePump() {
	ticker := time.NewTicker(auditPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(auditWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte("\n"))
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(auditWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ClientCount returns the current number of connected operator clients.
func (h *AuditHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
