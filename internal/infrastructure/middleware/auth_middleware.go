package middleware

import (
	"strings"

	"castdeck/internal/core/services"

	"github.com/gin-gonic/gin"
)

// OptionalAuthMiddleware resolves a bearer token into a user_id when one is
// present. Rooms work without a login; the user id only scopes ownership, so
// a missing or invalid token never blocks the request.
func OptionalAuthMiddleware(authService services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			if claims, err := authService.ValidateToken(parts[1]); err == nil {
				c.Set("user_id", string(claims.UserID))
			}
		}

		c.Next()
	}
}
