package models

import "time"

// User is the denormalized account record the gateway authenticates against.
type User struct {
	ID        string  `db:"id" json:"id"`
	Name      string  `db:"name" json:"name"`
	Email     string  `db:"email" json:"email"`
	Image     *string `db:"image" json:"image"`
	Role      string  `db:"role" json:"role"`
	IsActive  bool    `db:"is_active" json:"isActive"`
	PublicKey *string `db:"public_key" json:"-"`
}

// OnlineUser is the presence registry entry stored per connected user.
// It is overwritten on every reconnect, so the displayed name and
// avatar are last-connect-wins.
type OnlineUser struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Email       string  `json:"email"`
	Image       *string `json:"image"`
	Role        string  `json:"role"`
	ConnectedAt string  `json:"connectedAt"`
}

// NewOnlineUser builds the presence snapshot for a user connecting now.
func NewOnlineUser(u User, at time.Time) OnlineUser {
	return OnlineUser{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Image:       u.Image,
		Role:        u.Role,
		ConnectedAt: at.UTC().Format(time.RFC3339),
	}
}
