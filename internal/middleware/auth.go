package middleware

import (
	"net/http"
	"strings"

	"threadspire/internal/auth"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	CurrentUserKey = "user_id"
	SessionUserKey = "user_id"
)

// LoadUser resolves the caller from the session cookie or a bearer token and
// stores the id on both the gin context and the request context. Requests
// without credentials pass through anonymous; a bad bearer token is
// rejected.
func LoadUser(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var userID string
		if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
			sub, err := auth.ParseToken(jwtSecret, strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				abortJSON(c, http.StatusUnauthorized, "invalid_token", "bearer token is invalid or expired")
				return
			}
			userID = sub
		} else if id, ok := sessions.Default(c).Get(SessionUserKey).(string); ok {
			userID = id
		}

		if userID != "" {
			c.Set(CurrentUserKey, userID)
			c.Request = c.Request.WithContext(auth.WithUser(c.Request.Context(), userID))
		}
		c.Next()
	}
}

// AuthRequired rejects anonymous callers. LoadUser must run first.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := c.Get(CurrentUserKey); !ok {
			abortJSON(c, http.StatusUnauthorized, "unauthenticated", "authentication required")
			return
		}
		c.Next()
	}
}

func abortJSON(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"code": code, "message": message}})
}
