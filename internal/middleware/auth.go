package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"fieldmap-realtime/internal/auth"
	"fieldmap-realtime/internal/repositories"
)

// AuthMiddleware validates the Authorization header and rejects
// inactive or unknown accounts. The resolved user id is stored on the
// gin context under "userID".
func AuthMiddleware(verifier auth.Verifier, users repositories.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		userID, err := verifier.Verify(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		user, err := users.GetUser(c.Request.Context(), userID)
		if err != nil || !user.IsActive {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "account inactive or unknown"})
			return
		}

		c.Set("userID", user.ID)
		c.Set("userName", user.Name)
		c.Next()
	}
}
