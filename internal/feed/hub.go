package feed

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"account-service/pkg/jwt"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Message is pushed to every connection of the affected user.
type Message struct {
	Type   string          `json:"type"`
	UserID string          `json:"user_id"`
	Data   json.RawMessage `json:"data,omitempty"`
	TS     int64           `json:"ts"`
}

// safeConn serialises writes; gorilla/websocket allows one concurrent writer.
type safeConn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *safeConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(v)
}

func (c *safeConn) close() { c.ws.Close() }

// Hub tracks websocket connections per user.
type Hub struct {
	tokens *jwt.Manager

	mu    sync.RWMutex
	conns map[string][]*safeConn
}

// NewHub creates a feed hub guarded by tokens.
func NewHub(tokens *jwt.Manager) *Hub {
	return &Hub{tokens: tokens, conns: make(map[string][]*safeConn)}
}

// Routes returns a chi.Router for the /ws mount point.
func (h *Hub) Routes() chi.Router {
	r := chi.NewRouter()
	r.With(h.tokens.RequireAuth).Get("/profile", h.HandleWS)
	return r
}

// HandleWS upgrades the connection and subscribes it to the caller's changes.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	userID := jwt.ClaimsFrom(r.Context()).User.ID
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[feed] upgrade error: %v", err)
		return
	}

	conn := &safeConn{ws: ws}
	h.add(userID, conn)
	log.Printf("[feed] client connected for user %s", userID)

	// Block until the client disconnects
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}

	h.remove(userID, conn)
	conn.close()
	log.Printf("[feed] client disconnected for user %s", userID)
}

// Broadcast pushes a change of kind to all connections of userID and
// returns how many received it.
func (h *Hub) Broadcast(userID, kind string, data json.RawMessage) int {
	h.mu.RLock()
	conns := append([]*safeConn(nil), h.conns[userID]...)
	h.mu.RUnlock()

	msg := Message{Type: kind, UserID: userID, Data: data, TS: time.Now().Unix()}
	sent := 0
	for _, c := range conns {
		if err := c.writeJSON(msg); err != nil {
			log.Printf("[feed] write error: %v", err)
			continue
		}
		sent++
	}
	return sent
}

// Connections reports how many sockets are open for userID.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}

func (h *Hub) add(userID string, conn *safeConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[userID] = append(h.conns[userID], conn)
}

func (h *Hub) remove(userID string, conn *safeConn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns := h.conns[userID]
	for i, c := range conns {
		if c == conn {
			h.conns[userID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(h.conns[userID]) == 0 {
		delete(h.conns, userID)
	}
}
