package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Clients bind against the camelCase field names the websocket events
// already use; the HTTP message record must match.
func TestMessageWireFormatIsCamelCase(t *testing.T) {
	msg := Message{
		ID:               "m1",
		SenderID:         "alice",
		ReceiverID:       "bob",
		EncryptedContent: "ZW5j",
		IV:               "aXY=",
		IsRead:           true,
		CreatedAt:        time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &fields))
	for _, key := range []string{"id", "senderId", "receiverId", "encryptedContent", "iv", "isRead", "createdAt"} {
		require.Contains(t, fields, key)
	}
	require.Len(t, fields, 7)
}

func TestConversationPreviewWireFormatIsCamelCase(t *testing.T) {
	data, err := json.Marshal(ConversationPreview{PeerID: "bob", UnreadCount: 2})
	require.NoError(t, err)

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &fields))
	for _, key := range []string{"peerId", "peerName", "peerEmail", "peerImage", "peerRole", "lastMessage", "unreadCount"} {
		require.Contains(t, fields, key)
	}
}
