package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fieldmap-realtime/internal/mocks"
	"fieldmap-realtime/internal/repositories"
)

func newKeyRouter(h *KeyHandler, userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(fakeAuth(userID, "Alice"))
	r.PUT("/api/auth/public-key", h.SetPublicKey)
	r.GET("/api/auth/public-key/:user_id", h.GetPublicKey)
	return r
}

func TestSetPublicKey(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	userRepo.On("SetPublicKey", mock.Anything, "alice", `{"kty":"EC"}`).Return(nil)

	r := newKeyRouter(NewKeyHandler(userRepo), "alice")

	body, _ := json.Marshal(gin.H{"publicKey": `{"kty":"EC"}`})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/auth/public-key", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"ok":true}`, w.Body.String())
	userRepo.AssertExpectations(t)
}

func TestSetPublicKeyRequiresBody(t *testing.T) {
	r := newKeyRouter(NewKeyHandler(new(mocks.UserRepositoryMock)), "alice")

	body, _ := json.Marshal(gin.H{})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/auth/public-key", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetPublicKey(t *testing.T) {
	key := `{"kty":"EC","crv":"P-256"}`
	userRepo := new(mocks.UserRepositoryMock)
	userRepo.On("GetPublicKey", mock.Anything, "bob").Return(&key, nil)

	r := newKeyRouter(NewKeyHandler(userRepo), "alice")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/public-key/bob", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		UserID    string  `json:"userId"`
		PublicKey *string `json:"publicKey"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "bob", resp.UserID)
	require.NotNil(t, resp.PublicKey)
	require.Equal(t, key, *resp.PublicKey)
}

func TestGetPublicKeyUnpublishedIsNull(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	userRepo.On("GetPublicKey", mock.Anything, "bob").Return(nil, nil)

	r := newKeyRouter(NewKeyHandler(userRepo), "alice")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/public-key/bob", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"userId":"bob","publicKey":null}`, w.Body.String())
}

func TestGetPublicKeyUnknownUser(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	userRepo.On("GetPublicKey", mock.Anything, "ghost").Return(nil, repositories.ErrUserNotFound)

	r := newKeyRouter(NewKeyHandler(userRepo), "alice")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/public-key/ghost", nil))

	require.Equal(t, http.StatusNotFound, w.Code)
}
