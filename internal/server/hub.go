package server

import (
	"sync"

	"github.com/google/uuid"
)

// Event is a change notification pushed to SSE clients. Active carries the
// template IDs active after the change settled, so clients can refresh
// without a follow-up request.
type Event struct {
	Kind   string   `json:"kind"`
	Role   string   `json:"role,omitempty"`
	Table  string   `json:"table,omitempty"`
	Active []string `json:"active"`
}

// Hub fans change events out to subscribed SSE clients. Sends never block:
// a client that cannot keep up misses pings and catches up on the next one.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]chan Event
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[string]chan Event)}
}

// Subscribe registers a new client and returns its ID and event channel.
// The caller must Unsubscribe with the same ID when done.
func (h *Hub) Subscribe() (string, <-chan Event) {
	id := uuid.New().String()
	ch := make(chan Event, 8)

	h.mu.Lock()
	h.clients[id] = ch
	h.mu.Unlock()
	return id, ch
}

// Unsubscribe removes a client and closes its channel.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	ch, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
	}
	h.mu.Unlock()
	if ok {
		close(ch)
	}
}

// Broadcast delivers the event to every subscriber that has buffer room.
func (h *Hub) Broadcast(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.clients {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Len reports the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
