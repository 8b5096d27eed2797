package ws

import (
	"log"
	"sync"

	"fieldmap-realtime/internal/observability"
)

// Hub maintains per-user rooms of active websocket connections.
// "Send to user X" is a room broadcast, so a user with several open
// tabs or devices receives every event on all of them.
type Hub struct {
	rooms map[string]map[*Conn]bool
	mu    sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Conn]bool)}
}

// Add registers a connection in the user's room.
func (h *Hub) Add(userID string, conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[userID]; !ok {
		h.rooms[userID] = make(map[*Conn]bool)
	}
	h.rooms[userID][conn] = true
}

// Remove drops a connection; empty rooms are deleted.
func (h *Hub) Remove(userID string, conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[userID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.rooms, userID)
		}
	}
}

// EmitToUser sends an event to every connection in the user's room.
func (h *Hub) EmitToUser(userID, event string, data any) {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.rooms[userID]))
	for conn := range h.rooms[userID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		h.write(userID, conn, event, data)
	}
}

// Broadcast sends an event to every connected client.
func (h *Hub) Broadcast(event string, data any) {
	h.mu.RLock()
	targets := make(map[string][]*Conn, len(h.rooms))
	for userID, conns := range h.rooms {
		for conn := range conns {
			targets[userID] = append(targets[userID], conn)
		}
	}
	h.mu.RUnlock()

	for userID, conns := range targets {
		for _, conn := range conns {
			h.write(userID, conn, event, data)
		}
	}
}

func (h *Hub) write(userID string, conn *Conn, event string, data any) {
	if err := conn.WriteEvent(event, data); err != nil {
		log.Printf("websocket write error: %v", err)
		conn.Close()
		h.Remove(userID, conn)
		observability.IncWSEvent("ws_write_error")
	}
}
