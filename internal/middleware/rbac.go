// Package middleware (rbac.go) implements scope-based authorization.
// Scopes come from the JWT claims or from the scopes of the API key that authenticated
// the request; AuthMiddleware must run first.

package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/package-gallery/gallery/internal/auth"
)

func scopesFromContext(c *gin.Context) ([]string, bool) {
	v, exists := c.Get(ContextScopesKey)
	if !exists {
		return nil, false
	}
	scopes, ok := v.([]string)
	return scopes, ok
}

// CurrentScopes returns the scopes granted to the request, or nil outside AuthMiddleware
func CurrentScopes(c *gin.Context) []string {
	scopes, _ := scopesFromContext(c)
	return scopes
}

// RequireScope checks if authenticated user has the required scope
func RequireScope(scope auth.Scope) gin.HandlerFunc {
	return func(c *gin.Context) {
		userScopes, ok := scopesFromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			return
		}

		if !auth.HasScope(userScopes, scope) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "Missing required scope",
				"details": "Required scope: " + string(scope),
			})
			return
		}

		c.Next()
	}
}

// RequireAnyScope checks if authenticated user has at least one of the required scopes
func RequireAnyScope(scopes ...auth.Scope) gin.HandlerFunc {
	return func(c *gin.Context) {
		userScopes, ok := scopesFromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			return
		}

		if !auth.HasAnyScope(userScopes, scopes) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Missing required scope"})
			return
		}

		c.Next()
	}
}
