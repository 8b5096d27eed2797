package repositories

import (
	"context"
	"encoding/json"

	"github.com/jmoiron/sqlx"
)

// Audit event types recorded by this service.
const (
	AuditMessageSent = "MESSAGE_SENT"
)

// AuditRepository records security-relevant events. Only metadata is
// stored, never message content.
type AuditRepository interface {
	Record(ctx context.Context, eventType, userID, ipAddress string, metadata map[string]any) error
}

// AuditRepo is a sqlx-backed repository.
type AuditRepo struct {
	db *sqlx.DB
}

// NewAuditRepo constructs AuditRepo.
func NewAuditRepo(db *sqlx.DB) *AuditRepo {
	return &AuditRepo{db: db}
}

// Record appends an audit row.
func (r *AuditRepo) Record(ctx context.Context, eventType, userID, ipAddress string, metadata map[string]any) error {
	data, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO audit_logs (event_type, user_id, ip_address, metadata) VALUES ($1, $2, $3, $4)`,
		eventType, userID, ipAddress, data)
	return err
}
