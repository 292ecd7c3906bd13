package ws

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// client is one live connection. gorilla/websocket allows a single
// concurrent writer, so every send goes through the write mutex.
type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *client) send(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

// Hub tracks the set of live connections and fans events out to all of
// them. There is no reconnection or session resumption: a new physical
// connection is always a fresh entry.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	logger  *slog.Logger
}

// NewHub creates an empty connection registry
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		logger:  logger.With("component", "ws_hub"),
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("websocket connection registered", "connections", n)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.logger.Info("websocket connection closed", "connections", n)
	}
}

// Broadcast sends an event to every live connection. A connection whose
// send fails is closed and dropped in the same pass, so the registry heals
// itself without a separate reaper.
func (h *Hub) Broadcast(v any) {
	h.mu.Lock()
	snapshot := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		snapshot = append(snapshot, c)
	}
	h.mu.Unlock()

	for _, c := range snapshot {
		if err := c.send(v); err != nil {
			h.logger.Debug("dropping dead connection", "error", err)
			c.conn.Close()
			h.unregister(c)
		}
	}
}

// Count returns the number of live connections
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
