package registry

import (
	"context"
	"sync"

	"fieldmap-realtime/internal/models"
)

// Memory is an in-process Registry used in tests and single-process
// deployments. It mirrors the redis semantics exactly, including
// idempotent clears.
type Memory struct {
	mu          sync.Mutex
	socketUsers map[string]string
	userSockets map[string]map[string]struct{}
	presence    map[string]models.OnlineUser
	locations   map[string]models.Location
}

// NewMemory creates an empty in-memory registry.
func NewMemory() *Memory {
	return &Memory{
		socketUsers: make(map[string]string),
		userSockets: make(map[string]map[string]struct{}),
		presence:    make(map[string]models.OnlineUser),
		locations:   make(map[string]models.Location),
	}
}

func (m *Memory) RecordSocket(_ context.Context, socketID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.socketUsers[socketID] = userID
	return nil
}

func (m *Memory) ForgetSocket(_ context.Context, socketID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	userID := m.socketUsers[socketID]
	delete(m.socketUsers, socketID)
	return userID, nil
}

func (m *Memory) AddUserSocket(_ context.Context, userID, socketID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.userSockets[userID]; !ok {
		m.userSockets[userID] = make(map[string]struct{})
	}
	m.userSockets[userID][socketID] = struct{}{}
	return nil
}

func (m *Memory) RemoveUserSocket(_ context.Context, userID, socketID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sockets, ok := m.userSockets[userID]
	if !ok {
		return 0, nil
	}
	delete(sockets, socketID)
	if len(sockets) == 0 {
		delete(m.userSockets, userID)
		return 0, nil
	}
	return len(sockets), nil
}

func (m *Memory) SetPresence(_ context.Context, user models.OnlineUser) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.presence[user.ID] = user
	return nil
}

func (m *Memory) ClearPresence(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.presence, userID)
	return nil
}

func (m *Memory) ListPresence(_ context.Context) ([]models.OnlineUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	users := make([]models.OnlineUser, 0, len(m.presence))
	for _, u := range m.presence {
		users = append(users, u)
	}
	return users, nil
}

func (m *Memory) SetLocation(_ context.Context, loc models.Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations[loc.UserID] = loc
	return nil
}

func (m *Memory) ClearLocation(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locations, userID)
	return nil
}

func (m *Memory) ListLocations(_ context.Context) ([]models.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	locations := make([]models.Location, 0, len(m.locations))
	for _, loc := range m.locations {
		locations = append(locations, loc)
	}
	return locations, nil
}
