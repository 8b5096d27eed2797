package repositories

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"fieldmap-realtime/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines interactions for encrypted chat messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, senderID, receiverID, encryptedContent, iv string) (models.Message, error)
	GetConversation(ctx context.Context, userID, peerID string, limit int, before string) ([]models.Message, error)
	ListConversations(ctx context.Context, userID string) ([]models.ConversationPreview, error)
	MarkConversationRead(ctx context.Context, userID, peerID string) (int, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage stores the ciphertext and nonce verbatim.
func (r *MessageRepo) CreateMessage(ctx context.Context, senderID, receiverID, encryptedContent, iv string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (id, sender_id, receiver_id, encrypted_content, iv) VALUES ($1, $2, $3, $4, $5) RETURNING id, sender_id, receiver_id, encrypted_content, iv, is_read, created_at`,
		uuid.NewString(), senderID, receiverID, encryptedContent, iv).
		Scan(&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.EncryptedContent, &msg.IV, &msg.IsRead, &msg.CreatedAt)
	return msg, err
}

// GetConversation returns up to limit messages between the two users in
// chronological order. A non-empty before id acts as an exclusive
// cursor for paging backwards through history.
func (r *MessageRepo) GetConversation(ctx context.Context, userID, peerID string, limit int, before string) ([]models.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var cursor *models.Message
	if before != "" {
		var found models.Message
		err := r.db.GetContext(ctx, &found, `SELECT id, sender_id, receiver_id, encrypted_content, iv, is_read, created_at FROM messages WHERE id=$1`, before)
		if err == nil {
			cursor = &found
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	}

	query, args := conversationQuery(userID, peerID, limit, cursor)

	var msgs []models.Message
	if err := r.db.SelectContext(ctx, &msgs, query, args...); err != nil {
		return nil, err
	}

	// Newest-first from the query; callers want chronological order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// conversationQuery builds the history page query. The cursor compares
// on (created_at, id) so messages sharing the cursor's timestamp are
// not skipped between pages.
func conversationQuery(userID, peerID string, limit int, cursor *models.Message) (string, []interface{}) {
	query := `SELECT id, sender_id, receiver_id, encrypted_content, iv, is_read, created_at
        FROM messages
        WHERE ((sender_id=$1 AND receiver_id=$2) OR (sender_id=$2 AND receiver_id=$1))`
	args := []interface{}{userID, peerID}

	if cursor != nil {
		query += ` AND (created_at < $3 OR (created_at = $3 AND id < $4))`
		args = append(args, cursor.CreatedAt, cursor.ID)
	}

	query += ` ORDER BY created_at DESC, id DESC LIMIT ` + strconv.Itoa(limit)
	return query, args
}

// ListConversations builds the inbox: one preview per peer, most
// recent conversation first.
func (r *MessageRepo) ListConversations(ctx context.Context, userID string) ([]models.ConversationPreview, error) {
	var peerIDs []string
	err := r.db.SelectContext(ctx, &peerIDs, `SELECT DISTINCT CASE WHEN sender_id=$1 THEN receiver_id ELSE sender_id END
        FROM messages WHERE sender_id=$1 OR receiver_id=$1`, userID)
	if err != nil {
		return nil, err
	}

	previews := make([]models.ConversationPreview, 0, len(peerIDs))
	for _, peerID := range peerIDs {
		var last models.Message
		err := r.db.GetContext(ctx, &last, `SELECT id, sender_id, receiver_id, encrypted_content, iv, is_read, created_at
            FROM messages
            WHERE (sender_id=$1 AND receiver_id=$2) OR (sender_id=$2 AND receiver_id=$1)
            ORDER BY created_at DESC LIMIT 1`, userID, peerID)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, err
		}

		var unread int
		if err := r.db.GetContext(ctx, &unread, `SELECT COUNT(*) FROM messages WHERE sender_id=$1 AND receiver_id=$2 AND is_read = FALSE`, peerID, userID); err != nil {
			return nil, err
		}

		var peer models.User
		err = r.db.GetContext(ctx, &peer, `SELECT id, name, email, image, role, is_active, public_key FROM users WHERE id=$1`, peerID)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, err
		}

		previews = append(previews, models.ConversationPreview{
			PeerID:      peer.ID,
			PeerName:    peer.Name,
			PeerEmail:   peer.Email,
			PeerImage:   peer.Image,
			PeerRole:    peer.Role,
			LastMessage: last,
			UnreadCount: unread,
		})
	}

	sortPreviews(previews)
	return previews, nil
}

// MarkConversationRead flips all unread messages from peer to user and
// returns how many rows changed. Re-marking an already-read
// conversation affects zero rows.
func (r *MessageRepo) MarkConversationRead(ctx context.Context, userID, peerID string) (int, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET is_read = TRUE WHERE sender_id=$1 AND receiver_id=$2 AND is_read = FALSE`, peerID, userID)
	if err != nil {
		return 0, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// UnreadCount returns the total unread messages addressed to the user.
func (r *MessageRepo) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM messages WHERE receiver_id=$1 AND is_read = FALSE`, userID)
	return count, err
}

func sortPreviews(previews []models.ConversationPreview) {
	sort.Slice(previews, func(i, j int) bool {
		return previews[i].LastMessage.CreatedAt.After(previews[j].LastMessage.CreatedAt)
	})
}
