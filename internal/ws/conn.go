package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"fieldmap-realtime/internal/models"
)

// Event is the wire envelope for both directions.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Conn is an authenticated websocket connection. It only ever exists
// in the authenticated state: the gateway closes unauthenticated
// sockets before one is constructed.
type Conn struct {
	ID          string
	User        models.User
	ConnectedAt time.Time

	sock *websocket.Conn
	mu   sync.Mutex
}

func newConn(sock *websocket.Conn, user models.User) *Conn {
	return &Conn{
		ID:          uuid.NewString(),
		User:        user,
		ConnectedAt: time.Now(),
		sock:        sock,
	}
}

// WriteEvent serializes one envelope to the socket. Gorilla permits a
// single concurrent writer, so writes are serialized here.
func (c *Conn) WriteEvent(event string, data any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sock.WriteJSON(Event{Event: event, Data: data})
}

func (c *Conn) Close() error {
	return c.sock.Close()
}
