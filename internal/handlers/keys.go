package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"fieldmap-realtime/internal/repositories"
)

// KeyHandler stores and serves E2E public keys. Keys are opaque
// strings to the server; no parsing or validation happens here beyond
// non-emptiness.
type KeyHandler struct {
	userRepo repositories.UserRepository
}

// NewKeyHandler builds a KeyHandler.
func NewKeyHandler(userRepo repositories.UserRepository) *KeyHandler {
	return &KeyHandler{userRepo: userRepo}
}

// SetPublicKey stores the caller's public key.
func (h *KeyHandler) SetPublicKey(c *gin.Context) {
	var req struct {
		PublicKey string `json:"publicKey" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	if err := h.userRepo.SetPublicKey(c.Request.Context(), userID, req.PublicKey); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store public key"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GetPublicKey returns a peer's published public key, null if the peer
// has never published one.
func (h *KeyHandler) GetPublicKey(c *gin.Context) {
	peerID := c.Param("user_id")

	key, err := h.userRepo.GetPublicKey(c.Request.Context(), peerID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load public key"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"userId": peerID, "publicKey": key})
}
