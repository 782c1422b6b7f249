package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pratik860s/Autopart-Backend/internal/auth"
	"github.com/pratik860s/Autopart-Backend/internal/models"
	"github.com/pratik860s/Autopart-Backend/internal/utils"
)

const (
	// ContextKeyUserID holds the key for user ID in Gin context.
	ContextKeyUserID = "userID"
	// ContextKeyUserRole holds the key for the caller's role in Gin context.
	ContextKeyUserRole = "userRole"
)

// AuthMiddleware creates a Gin middleware for JWT authentication.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}"})
			return
		}

		tokenString := parts[1]
		claims, err := auth.ValidateJWT(tokenString, jwtSecret)
		if err != nil {
			errMsg := fmt.Sprintf("Invalid or expired token: %v", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errMsg})
			return
		}

		// Set user info in context for handlers to use
		c.Set(ContextKeyUserID, claims.UserID) // Store as string (Crockford representation)
		c.Set(ContextKeyUserRole, claims.Role)

		c.Next()
	}
}

// RequireRole creates a Gin middleware allowing only the given roles.
// Assumes AuthMiddleware runs first.
func RequireRole(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get(ContextKeyUserRole)
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		role, ok := value.(models.UserRole)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		for _, allowed := range roles {
			if role == allowed {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient privileges"})
	}
}

// AdminMiddleware creates a Gin middleware to check for admin privileges.
// Assumes AuthMiddleware runs first.
func AdminMiddleware() gin.HandlerFunc {
	return RequireRole(models.RoleAdmin)
}

// CallerID extracts the authenticated user's id from the Gin context.
func CallerID(c *gin.Context) (utils.SixID, bool) {
	value, exists := c.Get(ContextKeyUserID)
	if !exists {
		return utils.SixID{}, false
	}
	idStr, ok := value.(string)
	if !ok {
		return utils.SixID{}, false
	}
	id, err := utils.ParseSixID(idStr)
	if err != nil {
		return utils.SixID{}, false
	}
	return id, true
}

// CallerRole extracts the authenticated user's role from the Gin context.
func CallerRole(c *gin.Context) models.UserRole {
	value, exists := c.Get(ContextKeyUserRole)
	if !exists {
		return ""
	}
	role, _ := value.(models.UserRole)
	return role
}
