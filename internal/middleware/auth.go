// Package middleware provides the Gin HTTP middleware of the gallery API: request ids,
// metrics, request logging, authentication and scope checks.
//
// Order is set in internal/api/router.go:
//
//	Recovery → RequestID → Metrics → Logger → AuditContext → Auth → RequireScope → Handler
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/package-gallery/gallery/internal/auth"
	"github.com/package-gallery/gallery/internal/db/models"
)

// Context keys set by AuthMiddleware
const (
	ContextUserKey       = "user"
	ContextUserIDKey     = "user_id"
	ContextAuthMethodKey = "auth_method"
	ContextScopesKey     = "scopes"
)

// UserLookup loads the account a JWT was issued to
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// APIKeyAuthenticator resolves an API key to its account and credential
type APIKeyAuthenticator interface {
	AuthenticateAPIKey(ctx context.Context, key string) (*models.User, *models.Credential, error)
}

// AuthMiddleware validates the bearer token (JWT or API key) and stores the account and its
// scopes in the context. Tokens starting with apiKeyPrefix + "_" are API keys; an
// authenticator error other than auth.ErrInvalidAPIKey is a server failure.
func AuthMiddleware(apiKeyPrefix string, users UserLookup, apiKeys APIKeyAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.ExtractBearerToken(c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		if auth.LooksLikeAPIKey(token, apiKeyPrefix) {
			user, cred, err := apiKeys.AuthenticateAPIKey(c.Request.Context(), token)
			if err != nil {
				if errors.Is(err, auth.ErrInvalidAPIKey) {
					c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
					return
				}
				slog.Error("api key authentication failed", "error", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Authentication failed"})
				return
			}
			setIdentity(c, user, "api_key", credentialScopes(cred))
			c.Set("credential_id", cred.ID)
			c.Next()
			return
		}

		claims, err := auth.ValidateJWT(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}

		user, err := users.GetByID(c.Request.Context(), claims.UserID)
		if err != nil {
			slog.Error("failed to load user for token", "user_id", claims.UserID, "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user"})
			return
		}
		if user == nil || user.IsDeleted {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
			return
		}

		scopes := claims.Scopes
		if scopes == nil {
			scopes = []string{}
		}
		setIdentity(c, user, "jwt", scopes)
		c.Next()
	}
}

func setIdentity(c *gin.Context, user *models.User, method string, scopes []string) {
	c.Set(ContextUserKey, user)
	c.Set(ContextUserIDKey, user.ID)
	c.Set(ContextAuthMethodKey, method)
	c.Set(ContextScopesKey, scopes)
}

// credentialScopes returns the distinct actions an API key may perform as its own user.
// Scopes held on behalf of another owner (an organization) only apply to that owner's
// packages and grant no API permission.
func credentialScopes(cred *models.Credential) []string {
	seen := make(map[string]bool)
	scopes := make([]string, 0, len(cred.Scopes))
	for _, s := range cred.Scopes {
		if s.OwnerID != nil && *s.OwnerID != cred.UserID {
			continue
		}
		if seen[s.AllowedAction] {
			continue
		}
		seen[s.AllowedAction] = true
		scopes = append(scopes, s.AllowedAction)
	}
	return scopes
}

// CurrentUser returns the authenticated account, or nil outside AuthMiddleware
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(ContextUserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}
