package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"fieldmap-realtime/internal/models"
)

func TestSocketIndexRoundTrip(t *testing.T) {
	reg := NewMemory()
	ctx := context.Background()

	require.NoError(t, reg.RecordSocket(ctx, "s1", "u1"))

	userID, err := reg.ForgetSocket(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "u1", userID)

	// Unknown sockets resolve to empty, not an error.
	userID, err = reg.ForgetSocket(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "", userID)
}

func TestUserSocketCounting(t *testing.T) {
	reg := NewMemory()
	ctx := context.Background()

	require.NoError(t, reg.AddUserSocket(ctx, "u1", "s1"))
	require.NoError(t, reg.AddUserSocket(ctx, "u1", "s2"))

	remaining, err := reg.RemoveUserSocket(ctx, "u1", "s1")
	require.NoError(t, err)
	require.Equal(t, 1, remaining)

	remaining, err = reg.RemoveUserSocket(ctx, "u1", "s2")
	require.NoError(t, err)
	require.Equal(t, 0, remaining)

	// Removing from an empty set stays at zero.
	remaining, err = reg.RemoveUserSocket(ctx, "u1", "s2")
	require.NoError(t, err)
	require.Equal(t, 0, remaining)
}

func TestPresenceOverwriteAndClear(t *testing.T) {
	reg := NewMemory()
	ctx := context.Background()

	require.NoError(t, reg.SetPresence(ctx, models.OnlineUser{ID: "u1", Name: "Ana"}))
	require.NoError(t, reg.SetPresence(ctx, models.OnlineUser{ID: "u1", Name: "Ana Maria"}))

	users, err := reg.ListPresence(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, "Ana Maria", users[0].Name)

	require.NoError(t, reg.ClearPresence(ctx, "u1"))
	require.NoError(t, reg.ClearPresence(ctx, "u1"))

	users, err = reg.ListPresence(ctx)
	require.NoError(t, err)
	require.Empty(t, users)
}

func TestLocationLifecycle(t *testing.T) {
	reg := NewMemory()
	ctx := context.Background()

	loc := models.Location{UserID: "u1", Name: "Ana", Lat: -23.55, Lng: -46.63, Accuracy: 5}
	require.NoError(t, reg.SetLocation(ctx, loc))

	locations, err := reg.ListLocations(ctx)
	require.NoError(t, err)
	require.Len(t, locations, 1)
	require.Equal(t, loc.Lat, locations[0].Lat)

	require.NoError(t, reg.ClearLocation(ctx, "u1"))
	require.NoError(t, reg.ClearLocation(ctx, "u1"))

	locations, err = reg.ListLocations(ctx)
	require.NoError(t, err)
	require.Empty(t, locations)
}
