package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/vytor/assessment/internal/live"
	"github.com/vytor/assessment/internal/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Dashboards authenticate with the admin key, not the origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleAdminLive streams stats to an admin dashboard. The key comes from the
// header or, for browsers that cannot set headers on websockets, the "key"
// query parameter.
func (s *Server) handleAdminLive(w http.ResponseWriter, r *http.Request) {
	key := adminKey(r)
	if key == "" {
		key = r.URL.Query().Get("key")
	}

	stats, err := s.Admin.ListStats(r.Context(), key)
	if err != nil {
		handleError(w, r, err)
		return
	}

	log := logger.FromContext(r.Context())
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed: %v", err)
		return
	}

	data, err := json.Marshal(live.Message{Type: live.MessageStats, Data: stats})
	if err == nil {
		err = live.Send(conn, data)
	}
	if err != nil {
		log.Warn("failed to send initial stats: %v", err)
		conn.Close()
		return
	}

	s.Hub.Add(r.Context(), conn)
	defer s.Hub.Remove(r.Context(), conn)

	conn.SetReadLimit(512)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
