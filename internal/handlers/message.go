package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fieldmap-realtime/internal/models"
	"fieldmap-realtime/internal/observability"
	"fieldmap-realtime/internal/repositories"
	"fieldmap-realtime/internal/telemetry"
	"fieldmap-realtime/internal/ws"
)

// MessageHandler manages the encrypted-message endpoints. Persistence
// is durable before any real-time fan-out happens.
type MessageHandler struct {
	messageRepo repositories.MessageRepository
	userRepo    repositories.UserRepository
	auditRepo   repositories.AuditRepository
	emitter     *telemetry.AuditEmitter
	hub         *ws.Hub
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(messageRepo repositories.MessageRepository, userRepo repositories.UserRepository, auditRepo repositories.AuditRepository, emitter *telemetry.AuditEmitter, hub *ws.Hub) *MessageHandler {
	return &MessageHandler{
		messageRepo: messageRepo,
		userRepo:    userRepo,
		auditRepo:   auditRepo,
		emitter:     emitter,
		hub:         hub,
	}
}

// Send stores a ciphertext message and pushes it to both parties'
// rooms. The sender's own room is included so their other tabs and
// devices stay in sync without polling.
func (h *MessageHandler) Send(c *gin.Context) {
	var req struct {
		ReceiverID       string `json:"receiverId" binding:"required"`
		EncryptedContent string `json:"encryptedContent" binding:"required"`
		IV               string `json:"iv" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	senderID := c.GetString("userID")

	receiver, err := h.userRepo.GetUser(c.Request.Context(), req.ReceiverID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "receiver not found or inactive"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve receiver"})
		return
	}
	if !receiver.IsActive {
		c.JSON(http.StatusNotFound, gin.H{"error": "receiver not found or inactive"})
		return
	}

	msg, err := h.messageRepo.CreateMessage(c.Request.Context(), senderID, req.ReceiverID, req.EncryptedContent, req.IV)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}

	// Audit carries metadata only, never ciphertext.
	metadata := map[string]any{
		"message_id":    msg.ID,
		"receiver_id":   receiver.ID,
		"receiver_name": receiver.Name,
	}
	if err := h.auditRepo.Record(c.Request.Context(), repositories.AuditMessageSent, senderID, observability.IPFromRequest(c.Request), metadata); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record audit event"})
		return
	}
	h.emitter.Emit(c.Request.Context(), repositories.AuditMessageSent, requestIDFromContext(c), senderID, metadata)

	h.hub.EmitToUser(req.ReceiverID, "chat:message", msg)
	h.hub.EmitToUser(senderID, "chat:message", msg)

	c.JSON(http.StatusCreated, msg)
}

// GetConversation returns one page of message history with a peer, in
// chronological order.
func (h *MessageHandler) GetConversation(c *gin.Context) {
	peerID := c.Query("peer_id")
	if peerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "peer_id is required"})
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
			return
		}
		limit = parsed
	}

	userID := c.GetString("userID")
	msgs, err := h.messageRepo.GetConversation(c.Request.Context(), userID, peerID, limit, c.Query("before"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// ListConversations returns the caller's inbox.
func (h *MessageHandler) ListConversations(c *gin.Context) {
	userID := c.GetString("userID")

	conversations, err := h.messageRepo.ListConversations(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversations"})
		return
	}
	if conversations == nil {
		conversations = []models.ConversationPreview{}
	}

	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

// MarkRead flips all unread messages from a peer and notifies them in
// real time. Zero affected rows suppresses the notification; marking
// an already-read conversation is a no-op.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	var req struct {
		PeerID string `json:"peerId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	count, err := h.messageRepo.MarkConversationRead(c.Request.Context(), userID, req.PeerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark messages read"})
		return
	}

	if count > 0 {
		h.hub.EmitToUser(req.PeerID, "chat:read", gin.H{"readBy": userID})
	}

	c.JSON(http.StatusOK, gin.H{"marked_count": count})
}

// UnreadCount returns the caller's total unread messages.
func (h *MessageHandler) UnreadCount(c *gin.Context) {
	userID := c.GetString("userID")

	count, err := h.messageRepo.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count unread messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}

// ListUsers returns the active users the caller can start a
// conversation with.
func (h *MessageHandler) ListUsers(c *gin.Context) {
	userID := c.GetString("userID")

	users, err := h.userRepo.ListActiveUsers(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load users"})
		return
	}

	type userResponse struct {
		ID    string  `json:"id"`
		Name  string  `json:"name"`
		Email string  `json:"email"`
		Image *string `json:"image"`
		Role  string  `json:"role"`
	}
	resp := make([]userResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, userResponse{ID: u.ID, Name: u.Name, Email: u.Email, Image: u.Image, Role: u.Role})
	}

	c.JSON(http.StatusOK, gin.H{"users": resp})
}
