package models

import "time"

// Message is a persisted chat message. The content is ciphertext
// produced client-side; the server never sees plaintext.
type Message struct {
	ID               string    `db:"id" json:"id"`
	SenderID         string    `db:"sender_id" json:"senderId"`
	ReceiverID       string    `db:"receiver_id" json:"receiverId"`
	EncryptedContent string    `db:"encrypted_content" json:"encryptedContent"`
	IV               string    `db:"iv" json:"iv"`
	IsRead           bool      `db:"is_read" json:"isRead"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
}

// ConversationPreview summarizes one peer conversation for the inbox view.
type ConversationPreview struct {
	PeerID      string  `json:"peerId"`
	PeerName    string  `json:"peerName"`
	PeerEmail   string  `json:"peerEmail"`
	PeerImage   *string `json:"peerImage"`
	PeerRole    string  `json:"peerRole"`
	LastMessage Message `json:"lastMessage"`
	UnreadCount int     `json:"unreadCount"`
}
