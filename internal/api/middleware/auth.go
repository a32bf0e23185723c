package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"greendrake/rentals/internal/models"
	"greendrake/rentals/internal/permissions"
	"greendrake/rentals/internal/utils"
)

const (
	// ContextKeyUserID holds the key for user ID in Gin context.
	ContextKeyUserID = "userID"
	// ContextKeyRole holds the key for the user's role in Gin context.
	ContextKeyRole = "role"
	// ContextKeyIsAdmin holds the key for admin status in Gin context.
	ContextKeyIsAdmin = "isAdmin"
)

// ActorFrom returns the identity AuthGate attached to the request, or permissions.Anonymous.
func ActorFrom(c *gin.Context) permissions.Actor {
	value, exists := c.Get(ContextKeyUserID)
	if !exists {
		return permissions.Anonymous
	}
	userID, ok := value.(utils.SixID)
	if !ok || userID.IsZero() {
		return permissions.Anonymous
	}
	role, _ := c.Get(ContextKeyRole)
	r, _ := role.(models.Role)
	return permissions.Actor{
		UserID:        userID,
		Role:          r,
		IsAdmin:       c.GetBool(ContextKeyIsAdmin),
		Authenticated: true,
	}
}

func setActor(c *gin.Context, actor permissions.Actor) {
	if !actor.Authenticated {
		return
	}
	c.Set(ContextKeyUserID, actor.UserID)
	c.Set(ContextKeyRole, actor.Role)
	c.Set(ContextKeyIsAdmin, actor.IsAdmin)
}

// Require aborts unless perm allows the request. The action follows the HTTP method;
// anonymous callers get 401, authenticated ones 403.
func Require(perm permissions.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := ActorFrom(c)
		if perm.Allows(actor, permissions.ActionFor(c.Request.Method), nil) {
			c.Next()
			return
		}
		if !actor.Authenticated {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication credentials were not provided"})
			return
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "You do not have permission to perform this action"})
	}
}

// RequireAuth aborts anonymous requests with 401.
func RequireAuth() gin.HandlerFunc {
	return Require(permissions.IsAuthenticated)
}

// AdminMiddleware creates a Gin middleware to check for admin privileges.
// Assumes AuthGate runs first.
func AdminMiddleware() gin.HandlerFunc {
	return Require(permissions.IsAdmin)
}
