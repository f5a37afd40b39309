// Package live pushes participant stats to connected admin dashboards over
// websockets.
package live

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vytor/assessment/internal/logger"
)

const writeWait = 10 * time.Second

// Message is one frame sent to dashboards.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub tracks open dashboard connections.
type Hub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{conns: make(map[*websocket.Conn]struct{})}
}

func (h *Hub) Add(ctx context.Context, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = struct{}{}
	logger.FromContext(ctx).WithPrefix("live").Info("dashboard connected (total: %d)", len(h.conns))
}

// Remove closes conn and forgets it. Safe to call twice.
func (h *Hub) Remove(ctx context.Context, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[conn]; !ok {
		return
	}
	delete(h.conns, conn)
	conn.Close()
	logger.FromContext(ctx).WithPrefix("live").Info("dashboard disconnected (total: %d)", len(h.conns))
}

func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Broadcast writes msg to every connection, dropping the ones that fail.
func (h *Hub) Broadcast(ctx context.Context, msg Message) {
	log := logger.FromContext(ctx).WithPrefix("live")
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error("failed to marshal %s message: %v", msg.Type, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		if err := Send(conn, data); err != nil {
			log.Warn("write failed, dropping dashboard: %v", err)
			conn.Close()
			delete(h.conns, conn)
		}
	}
}

// Close disconnects every dashboard.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		conn.Close()
		delete(h.conns, conn)
	}
}

// Send writes one pre-encoded text frame with a deadline.
func Send(conn *websocket.Conn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}
