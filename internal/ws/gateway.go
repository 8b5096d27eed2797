package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"fieldmap-realtime/internal/auth"
	"fieldmap-realtime/internal/models"
	"fieldmap-realtime/internal/observability"
	"fieldmap-realtime/internal/registry"
	"fieldmap-realtime/internal/repositories"
)

const authCookieName = "auth_token"

// Gateway is the stateful websocket endpoint. Each connection is
// authenticated before upgrade, registered in the shared registry, and
// joined to its user's room.
type Gateway struct {
	hub      *Hub
	registry registry.Registry
	verifier auth.Verifier
	users    repositories.UserRepository
}

// NewGateway constructs a Gateway.
func NewGateway(hub *Hub, reg registry.Registry, verifier auth.Verifier, users repositories.UserRepository) *Gateway {
	return &Gateway{hub: hub, registry: reg, verifier: verifier, users: users}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub exposes room-addressed sends to the HTTP handlers.
func (g *Gateway) Hub() *Hub {
	return g.hub
}

// Handle authenticates and upgrades one websocket connection, then
// serves its events until disconnect.
func (g *Gateway) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("fieldmap-realtime/ws").Start(c.Request.Context(), "ws.handshake",
		trace.WithAttributes(attribute.String("client.address", c.ClientIP())))
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := extractToken(c)
	if token == "" {
		observability.IncWSAuthFailure()
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	userID, err := g.verifier.Verify(token)
	if err != nil {
		observability.IncWSAuthFailure()
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	user, err := g.users.GetUser(c.Request.Context(), userID)
	if err != nil || !user.IsActive {
		// Revoked or unapproved accounts cannot hold a live connection
		// even with a previously valid token.
		observability.IncWSAuthFailure()
		c.JSON(http.StatusUnauthorized, gin.H{"error": "account inactive or unknown"})
		return
	}

	sock, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	conn := newConn(sock, user)

	// Lifecycle work runs on a background context: the request context
	// dies with the handshake, not with the connection.
	bg := context.Background()

	g.hub.Add(user.ID, conn)
	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")

	// Registry writes are awaited before the presence broadcast so the
	// full list this connect triggers already includes this user.
	g.registryOp("record_socket", g.registry.RecordSocket(bg, conn.ID, user.ID))
	g.registryOp("add_user_socket", g.registry.AddUserSocket(bg, user.ID, conn.ID))
	g.registryOp("set_presence", g.registry.SetPresence(bg, models.NewOnlineUser(user, conn.ConnectedAt)))

	g.broadcastPresence(bg)
	log.Printf("ws connect user=%s socket=%s", user.ID, conn.ID)

	_ = observability.PublishEvent(bg, "ws_events.realtime", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_connect",
		Payload:   map[string]any{"user_id": user.ID, "conn_id": conn.ID},
	}, observability.BuildHeaders(observability.RequestIDFromRequest(c.Request), span.SpanContext().TraceID().String()))

	defer g.disconnect(bg, conn)

	for {
		_, payload, err := sock.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("ws read error user=%s: %v", user.ID, err)
			}
			return
		}

		var event eventPayload
		if err := json.Unmarshal(payload, &event); err != nil || event.Event == "" {
			continue
		}
		g.dispatch(bg, conn, event)
	}
}

type eventPayload struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (g *Gateway) dispatch(ctx context.Context, conn *Conn, event eventPayload) {
	observability.IncWSEvent(event.Event)

	switch event.Event {
	case "ping":
		_ = conn.WriteEvent("pong", gin.H{"timestamp": time.Now().UnixMilli()})

	case "users:list":
		users, err := g.registry.ListPresence(ctx)
		if err != nil {
			log.Printf("list presence failed: %v", err)
			observability.IncRegistryError("list_presence")
			return
		}
		_ = conn.WriteEvent("users:online", users)

	case "chat:typing":
		var data struct {
			ReceiverID string `json:"receiverId"`
		}
		if json.Unmarshal(event.Data, &data) != nil || data.ReceiverID == "" {
			return
		}
		g.hub.EmitToUser(data.ReceiverID, "chat:typing", gin.H{
			"userId": conn.User.ID,
			"name":   conn.User.Name,
		})

	case "chat:stop-typing":
		var data struct {
			ReceiverID string `json:"receiverId"`
		}
		if json.Unmarshal(event.Data, &data) != nil || data.ReceiverID == "" {
			return
		}
		g.hub.EmitToUser(data.ReceiverID, "chat:stop-typing", gin.H{"userId": conn.User.ID})

	case "location:update":
		var data struct {
			Lat      float64 `json:"lat"`
			Lng      float64 `json:"lng"`
			Accuracy float64 `json:"accuracy"`
		}
		// A missing or zero coordinate is treated as a no-op: GPS
		// readings can legitimately be unavailable for a while.
		if json.Unmarshal(event.Data, &data) != nil || data.Lat == 0 || data.Lng == 0 {
			return
		}
		loc := models.Location{
			UserID:    conn.User.ID,
			Name:      conn.User.Name,
			Image:     conn.User.Image,
			Lat:       data.Lat,
			Lng:       data.Lng,
			Accuracy:  data.Accuracy,
			UpdatedAt: time.Now().UTC().Format(time.RFC3339),
		}
		g.registryOp("set_location", g.registry.SetLocation(ctx, loc))
		g.hub.Broadcast("location:updated", loc)

	case "location:stop":
		g.registryOp("clear_location", g.registry.ClearLocation(ctx, conn.User.ID))
		g.hub.Broadcast("location:removed", gin.H{"userId": conn.User.ID})

	case "location:list":
		locations, err := g.registry.ListLocations(ctx)
		if err != nil {
			log.Printf("list locations failed: %v", err)
			observability.IncRegistryError("list_locations")
			return
		}
		_ = conn.WriteEvent("location:all", locations)
	}
}

func (g *Gateway) disconnect(ctx context.Context, conn *Conn) {
	g.hub.Remove(conn.User.ID, conn)
	conn.Close()
	observability.DecWSActive()
	observability.IncWSEvent("ws_disconnect")

	// Resolve the user from the shared socket index rather than local
	// state, so cleanup also works when another process accepted the
	// connect under horizontal scaling.
	userID, err := g.registry.ForgetSocket(ctx, conn.ID)
	if err != nil {
		log.Printf("forget socket failed: %v", err)
		observability.IncRegistryError("forget_socket")
		return
	}
	if userID == "" {
		return
	}

	remaining, err := g.registry.RemoveUserSocket(ctx, userID, conn.ID)
	if err != nil {
		log.Printf("remove user socket failed: %v", err)
		observability.IncRegistryError("remove_user_socket")
		return
	}

	// Check-then-clear is two registry calls, not one atomic step. Two
	// near-simultaneous disconnects can double-clear (harmless) or a
	// racing reconnect can transiently drop presence; the next
	// connect/disconnect or users:list heals it.
	if remaining == 0 {
		g.registryOp("clear_presence", g.registry.ClearPresence(ctx, userID))
		g.registryOp("clear_location", g.registry.ClearLocation(ctx, userID))
		g.hub.Broadcast("location:removed", gin.H{"userId": userID})
		log.Printf("ws offline user=%s", userID)
	} else {
		log.Printf("ws disconnect user=%s remaining_sockets=%d", userID, remaining)
	}

	g.broadcastPresence(ctx)

	_ = observability.PublishEvent(ctx, "ws_events.realtime", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_disconnect",
		Payload: map[string]any{
			"user_id":     userID,
			"conn_id":     conn.ID,
			"duration_ms": time.Since(conn.ConnectedAt).Milliseconds(),
		},
	}, nil)
}

// broadcastPresence pushes the full presence list to every client.
// Full-state refreshes trade payload size for consistency; there is no
// delta protocol to get out of sync.
func (g *Gateway) broadcastPresence(ctx context.Context) {
	users, err := g.registry.ListPresence(ctx)
	if err != nil {
		log.Printf("list presence failed: %v", err)
		observability.IncRegistryError("list_presence")
		return
	}
	g.hub.Broadcast("users:online", users)
}

func (g *Gateway) registryOp(op string, err error) {
	if err != nil {
		// Registry failures are best-effort: log, count, keep the
		// connection alive.
		log.Printf("registry %s failed: %v", op, err)
		observability.IncRegistryError(op)
	}
}

func extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && header[:7] == "Bearer " {
		return header[7:]
	}
	if token := c.Query("token"); token != "" {
		return token
	}
	if cookie, err := c.Cookie(authCookieName); err == nil && cookie != "" {
		return cookie
	}
	return ""
}
