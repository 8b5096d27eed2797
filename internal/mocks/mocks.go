package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"fieldmap-realtime/internal/models"
)

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) GetUser(ctx context.Context, userID string) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) ListActiveUsers(ctx context.Context, excludeUserID string) ([]models.User, error) {
	args := m.Called(ctx, excludeUserID)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

func (m *UserRepositoryMock) SetPublicKey(ctx context.Context, userID, publicKey string) error {
	args := m.Called(ctx, userID, publicKey)
	return args.Error(0)
}

func (m *UserRepositoryMock) GetPublicKey(ctx context.Context, userID string) (*string, error) {
	args := m.Called(ctx, userID)
	var key *string
	if val := args.Get(0); val != nil {
		key = val.(*string)
	}
	return key, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, senderID, receiverID, encryptedContent, iv string) (models.Message, error) {
	args := m.Called(ctx, senderID, receiverID, encryptedContent, iv)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) GetConversation(ctx context.Context, userID, peerID string, limit int, before string) ([]models.Message, error) {
	args := m.Called(ctx, userID, peerID, limit, before)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) ListConversations(ctx context.Context, userID string) ([]models.ConversationPreview, error) {
	args := m.Called(ctx, userID)
	var previews []models.ConversationPreview
	if val := args.Get(0); val != nil {
		previews = val.([]models.ConversationPreview)
	}
	return previews, args.Error(1)
}

func (m *MessageRepositoryMock) MarkConversationRead(ctx context.Context, userID, peerID string) (int, error) {
	args := m.Called(ctx, userID, peerID)
	return args.Int(0), args.Error(1)
}

func (m *MessageRepositoryMock) UnreadCount(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

type AuditRepositoryMock struct {
	mock.Mock
}

func (m *AuditRepositoryMock) Record(ctx context.Context, eventType, userID, ipAddress string, metadata map[string]any) error {
	args := m.Called(ctx, eventType, userID, ipAddress, metadata)
	return args.Error(0)
}

type VerifierMock struct {
	mock.Mock
}

func (m *VerifierMock) Verify(token string) (string, error) {
	args := m.Called(token)
	return args.String(0), args.Error(1)
}

type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}
