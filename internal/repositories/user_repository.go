package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"fieldmap-realtime/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository resolves account records for the gateway and handlers.
type UserRepository interface {
	GetUser(ctx context.Context, userID string) (models.User, error)
	ListActiveUsers(ctx context.Context, excludeUserID string) ([]models.User, error)
	SetPublicKey(ctx context.Context, userID, publicKey string) error
	GetPublicKey(ctx context.Context, userID string) (*string, error)
}

// UserRepo is a sqlx-backed repository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// GetUser retrieves a single user.
func (r *UserRepo) GetUser(ctx context.Context, userID string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT id, name, email, image, role, is_active, public_key FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// ListActiveUsers returns all active users except the caller, ordered by name.
func (r *UserRepo) ListActiveUsers(ctx context.Context, excludeUserID string) ([]models.User, error) {
	var users []models.User
	err := r.db.SelectContext(ctx, &users, `SELECT id, name, email, image, role, is_active, public_key FROM users WHERE is_active = TRUE AND id <> $1 ORDER BY name ASC`, excludeUserID)
	return users, err
}

// SetPublicKey stores the user's E2E public key as an opaque string.
func (r *UserRepo) SetPublicKey(ctx context.Context, userID, publicKey string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET public_key=$2 WHERE id=$1`, userID, publicKey)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrUserNotFound
	}
	return nil
}

// GetPublicKey returns the user's stored public key, nil if never published.
func (r *UserRepo) GetPublicKey(ctx context.Context, userID string) (*string, error) {
	var key *string
	err := r.db.GetContext(ctx, &key, `SELECT public_key FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	return key, err
}
