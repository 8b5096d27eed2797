package registry

import (
	"context"

	"fieldmap-realtime/internal/models"
)

// Registry is the cross-process record of live connections, presence
// snapshots, and active location shares. All mutations are single-key
// operations; composite invariants (presence entry exists iff the
// user's socket set is nonempty) are maintained by call ordering in
// the gateway, not by transactions.
type Registry interface {
	// RecordSocket maps a socket id to the user that owns it.
	RecordSocket(ctx context.Context, socketID, userID string) error
	// ForgetSocket removes the socket mapping and returns the prior
	// user id, or "" if the socket was never recorded.
	ForgetSocket(ctx context.Context, socketID string) (string, error)

	AddUserSocket(ctx context.Context, userID, socketID string) error
	// RemoveUserSocket drops one socket from the user's set and
	// returns how many sockets remain.
	RemoveUserSocket(ctx context.Context, userID, socketID string) (int, error)

	SetPresence(ctx context.Context, user models.OnlineUser) error
	ClearPresence(ctx context.Context, userID string) error
	ListPresence(ctx context.Context) ([]models.OnlineUser, error)

	SetLocation(ctx context.Context, loc models.Location) error
	ClearLocation(ctx context.Context, userID string) error
	ListLocations(ctx context.Context) ([]models.Location, error)
}
