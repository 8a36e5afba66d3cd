package realtime

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Client represents a single websocket client connection.
// The network conn itself is managed by the ws handler.
type Client interface {
	Send(message []byte) bool
	Close()
}

// Event is pushed to connected clients after every mutation so they can
// invalidate the matching cache tags.
type Event struct {
	Type    string    `json:"type"`
	Entity  string    `json:"entity"`
	ID      string    `json:"id"`
	ActorID string    `json:"actorId"`
	Version uint64    `json:"version"`
	At      time.Time `json:"at"`
}

// Event types.
const (
	Created       = "created"
	Updated       = "updated"
	Deleted       = "deleted"
	StatusChanged = "status_changed"
	// Hello is sent once per connection and carries the current version.
	Hello = "hello"
)

// Hub maintains active user connections and broadcasts events to them.
type Hub struct {
	mu              sync.RWMutex
	userIDToClients map[string]map[Client]struct{}
	version         atomic.Uint64
	logger          *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		userIDToClients: make(map[string]map[Client]struct{}),
		logger:          logger,
	}
}

// Register adds a client under a user ID.
func (h *Hub) Register(userID string, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.userIDToClients[userID]; !ok {
		h.userIDToClients[userID] = make(map[Client]struct{})
	}
	h.userIDToClients[userID][client] = struct{}{}
}

// Unregister removes a client; if user has no more clients, cleans up map.
func (h *Hub) Unregister(userID string, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.userIDToClients[userID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.userIDToClients, userID)
		}
	}
}

// Connections returns the number of registered clients.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, clients := range h.userIDToClients {
		n += len(clients)
	}
	return n
}

// Broadcast sends a message to all clients of a user.
func (h *Hub) Broadcast(userID string, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.userIDToClients[userID] {
		if !c.Send(message) {
			h.logger.Debug("websocket send failed", zap.String("user_id", userID))
		}
	}
}

// BroadcastAll sends a message to every connected client.
func (h *Hub) BroadcastAll(message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for userID, clients := range h.userIDToClients {
		for c := range clients {
			if !c.Send(message) {
				h.logger.Debug("websocket send failed", zap.String("user_id", userID))
			}
		}
	}
}

// Version returns the version of the last published event.
func (h *Hub) Version() uint64 { return h.version.Load() }

// Publish stamps evt with the next hub version and sends it to everyone.
func (h *Hub) Publish(evt Event) Event {
	evt.Version = h.version.Add(1)
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	b, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("marshal realtime event", zap.Error(err))
		return evt
	}
	h.BroadcastAll(b)
	return evt
}
