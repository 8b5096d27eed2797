package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fieldmap-realtime/internal/auth"
	"fieldmap-realtime/internal/mocks"
	"fieldmap-realtime/internal/models"
)

func newAuthRouter(verifier *mocks.VerifierMock, users *mocks.UserRepositoryMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", AuthMiddleware(verifier, users), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"userId": c.GetString("userID")})
	})
	return r
}

func TestAuthMiddlewarePassesActiveUser(t *testing.T) {
	verifier := new(mocks.VerifierMock)
	verifier.On("Verify", "good-token").Return("alice", nil)
	users := new(mocks.UserRepositoryMock)
	users.On("GetUser", mock.Anything, "alice").Return(models.User{ID: "alice", Name: "Alice", IsActive: true}, nil)

	r := newAuthRouter(verifier, users)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"userId":"alice"}`, w.Body.String())
}

func TestAuthMiddlewareMissingHeader(t *testing.T) {
	r := newAuthRouter(new(mocks.VerifierMock), new(mocks.UserRepositoryMock))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddlewareMalformedHeader(t *testing.T) {
	r := newAuthRouter(new(mocks.VerifierMock), new(mocks.UserRepositoryMock))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Basic abc123")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddlewareRejectsBadToken(t *testing.T) {
	verifier := new(mocks.VerifierMock)
	verifier.On("Verify", "forged").Return("", auth.ErrInvalidToken)

	r := newAuthRouter(verifier, new(mocks.UserRepositoryMock))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer forged")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddlewareRejectsInactiveUser(t *testing.T) {
	verifier := new(mocks.VerifierMock)
	verifier.On("Verify", "good-token").Return("carol", nil)
	users := new(mocks.UserRepositoryMock)
	users.On("GetUser", mock.Anything, "carol").Return(models.User{ID: "carol", IsActive: false}, nil)

	r := newAuthRouter(verifier, users)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddlewareRejectsUnknownUser(t *testing.T) {
	verifier := new(mocks.VerifierMock)
	verifier.On("Verify", "good-token").Return("ghost", nil)
	users := new(mocks.UserRepositoryMock)
	users.On("GetUser", mock.Anything, "ghost").Return(models.User{}, errors.New("not found"))

	r := newAuthRouter(verifier, users)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}
