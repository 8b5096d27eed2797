package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"fieldmap-realtime/internal/models"
)

const (
	onlineUsersKey     = "online_users"
	socketMapKey       = "socket_user_map"
	userSocketsPrefix  = "user_sockets:"
	activeLocationsKey = "active_locations"
)

// Redis is the go-redis backed registry shared by all gateway processes.
type Redis struct {
	client *goredis.Client
}

// NewRedis connects to redis and verifies the connection.
func NewRedis(addr, password string) (*Redis, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{client: client}, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) RecordSocket(ctx context.Context, socketID, userID string) error {
	return r.client.HSet(ctx, socketMapKey, socketID, userID).Err()
}

func (r *Redis) ForgetSocket(ctx context.Context, socketID string) (string, error) {
	userID, err := r.client.HGet(ctx, socketMapKey, socketID).Result()
	if err == goredis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if err := r.client.HDel(ctx, socketMapKey, socketID).Err(); err != nil {
		return "", err
	}
	return userID, nil
}

func (r *Redis) AddUserSocket(ctx context.Context, userID, socketID string) error {
	return r.client.SAdd(ctx, userSocketsPrefix+userID, socketID).Err()
}

func (r *Redis) RemoveUserSocket(ctx context.Context, userID, socketID string) (int, error) {
	if err := r.client.SRem(ctx, userSocketsPrefix+userID, socketID).Err(); err != nil {
		return 0, err
	}
	remaining, err := r.client.SCard(ctx, userSocketsPrefix+userID).Result()
	if err != nil {
		return 0, err
	}
	return int(remaining), nil
}

func (r *Redis) SetPresence(ctx context.Context, user models.OnlineUser) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return r.client.HSet(ctx, onlineUsersKey, user.ID, data).Err()
}

func (r *Redis) ClearPresence(ctx context.Context, userID string) error {
	return r.client.HDel(ctx, onlineUsersKey, userID).Err()
}

func (r *Redis) ListPresence(ctx context.Context) ([]models.OnlineUser, error) {
	raw, err := r.client.HGetAll(ctx, onlineUsersKey).Result()
	if err != nil {
		return nil, err
	}
	users := make([]models.OnlineUser, 0, len(raw))
	for _, val := range raw {
		var u models.OnlineUser
		if err := json.Unmarshal([]byte(val), &u); err != nil {
			continue
		}
		users = append(users, u)
	}
	return users, nil
}

func (r *Redis) SetLocation(ctx context.Context, loc models.Location) error {
	data, err := json.Marshal(loc)
	if err != nil {
		return err
	}
	return r.client.HSet(ctx, activeLocationsKey, loc.UserID, data).Err()
}

func (r *Redis) ClearLocation(ctx context.Context, userID string) error {
	return r.client.HDel(ctx, activeLocationsKey, userID).Err()
}

func (r *Redis) ListLocations(ctx context.Context) ([]models.Location, error) {
	raw, err := r.client.HGetAll(ctx, activeLocationsKey).Result()
	if err != nil {
		return nil, err
	}
	locations := make([]models.Location, 0, len(raw))
	for _, val := range raw {
		var loc models.Location
		if err := json.Unmarshal([]byte(val), &loc); err != nil {
			continue
		}
		locations = append(locations, loc)
	}
	return locations, nil
}
