package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/tegward/housepoints/internal/model"
)

// Event is a real-time update pushed to connected clients so open
// scoreboard, log, and profile views can refresh without polling.
type Event struct {
	Type    string `json:"type"`
	UserID  int64  `json:"user_id,omitempty"`
	GroupID int64  `json:"group_id,omitempty"`
	TypeID  string `json:"type_id,omitempty"`
	Delta   int    `json:"delta,omitempty"`
	TS      int64  `json:"ts,omitempty"`
}

// AdjustedEvent builds the event broadcast after a point adjustment.
func AdjustedEvent(entry *model.NotifEntry, groupID int64) Event {
	return Event{
		Type:    "points_adjusted",
		UserID:  entry.UserID,
		GroupID: groupID,
		TypeID:  entry.TypeID,
		Delta:   entry.Delta,
		TS:      entry.TS,
	}
}

// ResetEvent builds the event broadcast after a season reset.
func ResetEvent(ts int64) Event {
	return Event{Type: "points_reset", TS: ts}
}

// Hub maintains the set of active WebSocket clients and broadcasts events.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Broadcast sends an event to all connected clients.
func (h *Hub) Broadcast(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Client buffer full, drop rather than block the writer
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
