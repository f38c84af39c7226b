package handlers

import (
	"github.com/gin-gonic/gin"
)

// IdentityMiddleware lifts the caller identity forwarded by the API
// gateway into the request context. Requests without an identity still
// pass through; handlers reject them where identity is required.
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID := c.GetHeader("X-User-ID"); userID != "" {
			c.Set("user_id", userID)
		}
		c.Next()
	}
}
