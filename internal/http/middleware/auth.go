package middleware

import (
	"net/http"
	"strings"

	jwtlib "budgetauth/internal/lib/jwt"

	"github.com/gin-gonic/gin"
)

const (
	// ContextUserID is the gin context key holding the authenticated user id.
	ContextUserID = "userID"
	// ContextAccessToken is the gin context key holding the raw bearer token.
	ContextAccessToken = "accessToken"
)

// Auth validates the bearer token against the access secret and injects the
// authenticated user id into the request context.
func Auth(accessSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "missing bearer token"})
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")

		claims, err := jwtlib.ParseToken(token, accessSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "invalid or expired token"})
			return
		}
		userID, err := jwtlib.Subject(claims)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "invalid token subject"})
			return
		}

		c.Set(ContextUserID, userID)
		c.Set(ContextAccessToken, token)
		c.Next()
	}
}
