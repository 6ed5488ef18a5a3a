// Package websocket pushes submission workflow events to connected staff.
package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Message is one frame on the staff feed. Type joins entity and action,
// e.g. "submission_item_reviewed".
type Message struct {
	Type   string         `json:"type"`
	Entity string         `json:"entity"`
	Action string         `json:"action"`
	ID     int64          `json:"id,omitempty"`
	At     time.Time      `json:"at"`
	Extra  map[string]any `json:"extra,omitempty"`
}

func NewMessage(entity, action string, id int64, extra map[string]any) Message {
	return Message{
		Type:   fmt.Sprintf("%s_%s", entity, action),
		Entity: entity,
		Action: action,
		ID:     id,
		At:     time.Now().UTC(),
		Extra:  extra,
	}
}

// Hub tracks open staff feed connections. Events are best effort: a staff
// client that cannot keep up loses frames rather than stalling the engine.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
	dropped atomic.Int64
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("staff feed connected", "person_id", c.personID, "clients", n)
}

// Unregister is idempotent; the client's send channel is closed once.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	if ok {
		h.logger.Debug("staff feed disconnected", "person_id", c.personID)
	}
}

// Broadcast encodes msg once and offers it to each staff client without
// blocking. The read lock is held so Unregister cannot close a channel
// mid-send.
func (h *Hub) Broadcast(msg Message) {
	frame, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("encode staff event", "type", msg.Type, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.offer(frame) {
			h.dropped.Add(1)
			h.logger.Warn("staff feed lagging, event dropped", "person_id", c.personID, "type", msg.Type)
		}
	}
}

// Publish is the submission engine's event sink.
func (h *Hub) Publish(entity, action string, id int64, extra map[string]any) {
	h.Broadcast(NewMessage(entity, action, id, extra))
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped counts events lost to lagging staff clients since start.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}
