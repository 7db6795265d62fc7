package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// RequireQueueSecret gates the queue management endpoints behind a shared
// bearer secret. These endpoints are called by schedulers and operators,
// never by end users.
func RequireQueueSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			// Fail closed on missing configuration.
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "queue secret not configured"})
			return
		}

		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid bearer token"})
			return
		}

		c.Next()
	}
}
