package gateway

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// registry tracks live stream sessions so shutdown can close them all.
type registry struct {
	mu       sync.Mutex
	sessions map[*websocket.Conn]string
}

func newRegistry() *registry {
	return &registry{sessions: make(map[*websocket.Conn]string)}
}

func (r *registry) register(conn *websocket.Conn, keyID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := uuid.NewString()
	r.sessions[conn] = id
	slog.Info("stream session opened", "session", id, "key_id", keyID, "sessions", len(r.sessions))
	return id
}

func (r *registry) unregister(conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.sessions[conn]; ok {
		delete(r.sessions, conn)
		conn.Close()
		slog.Info("stream session closed", "session", id, "sessions", len(r.sessions))
	}
}

func (r *registry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// closeAll sends a close frame to every session and drops it. The read loops
// observe the closed connections and return.
func (r *registry) closeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "gateway shutting down")
	for conn, id := range r.sessions {
		if err := conn.WriteMessage(websocket.CloseMessage, msg); err != nil {
			slog.Error("close frame failed", "session", id, "error", err)
		}
		conn.Close()
		delete(r.sessions, conn)
	}
}
