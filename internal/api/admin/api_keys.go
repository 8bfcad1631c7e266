// api_keys.go implements the admin endpoint that issues API keys to an account.
package admin

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/package-gallery/gallery/internal/auth"
	"github.com/package-gallery/gallery/internal/config"
	"github.com/package-gallery/gallery/internal/db/models"
	"github.com/package-gallery/gallery/internal/middleware"
)

// APIKeyIssuer creates API key credentials
type APIKeyIssuer interface {
	CreateAPIKey(ctx context.Context, user *models.User, prefix string, description *string, scopes []string, expires *time.Time) (string, *models.Credential, error)
}

// APIKeyHandlers handles API key management endpoints
type APIKeyHandlers struct {
	prefix   string
	accounts AccountLookup
	issuer   APIKeyIssuer
}

// NewAPIKeyHandlers creates a new APIKeyHandlers instance
func NewAPIKeyHandlers(cfg *config.Config, accounts AccountLookup, issuer APIKeyIssuer) *APIKeyHandlers {
	return &APIKeyHandlers{prefix: cfg.Auth.APIKeys.Prefix, accounts: accounts, issuer: issuer}
}

// CreateAPIKeyRequest represents the request to create a new API key
type CreateAPIKeyRequest struct {
	Description *string  `json:"description"`
	Scopes      []string `json:"scopes" binding:"required"`
	ExpiresAt   *string  `json:"expires_at"` // RFC3339 format
}

// CreateAPIKeyResponse represents the response when creating an API key
type CreateAPIKeyResponse struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Description *string    `json:"description"`
	Key         string     `json:"key"` // Only returned once during creation
	KeyPrefix   string     `json:"key_prefix"`
	Scopes      []string   `json:"scopes"`
	ExpiresAt   *time.Time `json:"expires_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// @Summary      Create API key
// @Description  Issue an API key to an account. The caller can only grant scopes it holds itself. Requires api_keys:manage scope.
// @Tags         API Keys
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        username  path  string               true  "Account username"
// @Param        body      body  CreateAPIKeyRequest  true  "API key creation request"
// @Success      201  {object}  CreateAPIKeyResponse  "API key created (full key returned once)"
// @Failure      400  {object}  map[string]interface{}  "Invalid request or scopes"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      403  {object}  map[string]interface{}  "Scopes exceed the caller's permissions"
// @Failure      404  {object}  map[string]interface{}  "Account not found"
// @Failure      409  {object}  map[string]interface{}  "Account deleted"
// @Router       /api/v1/admin/accounts/{username}/api-keys [post]
// CreateAPIKeyHandler issues a new API key to the account
// POST /api/v1/admin/accounts/:username/api-keys
func (h *APIKeyHandlers) CreateAPIKeyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateAPIKeyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		if len(req.Scopes) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "At least one scope is required"})
			return
		}
		if err := auth.ValidateScopes(req.Scopes); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid scopes: " + err.Error()})
			return
		}

		if middleware.CurrentUser(c) == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		requested := make([]auth.Scope, len(req.Scopes))
		for i, s := range req.Scopes {
			requested[i] = auth.Scope(s)
		}
		if !auth.HasAllScopes(middleware.CurrentScopes(c), requested) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Requested scopes exceed your permissions"})
			return
		}

		var expiresAt *time.Time
		if req.ExpiresAt != nil {
			parsed, err := time.Parse(time.RFC3339, *req.ExpiresAt)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid expires_at format. Use RFC3339"})
				return
			}
			expiresAt = &parsed
		}

		username := c.Param("username")
		account, err := h.accounts.GetByUsername(c.Request.Context(), username)
		if err != nil {
			slog.Error("failed to look up account", "username", username, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up account"})
			return
		}
		if account == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
			return
		}
		if account.IsDeleted {
			c.JSON(http.StatusConflict, gin.H{"error": "Account is deleted"})
			return
		}

		key, cred, err := h.issuer.CreateAPIKey(c.Request.Context(), account, h.prefix, req.Description, req.Scopes, expiresAt)
		if err != nil {
			slog.Error("failed to create API key", "username", username, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create API key"})
			return
		}

		resp := CreateAPIKeyResponse{
			ID:          cred.ID,
			Username:    account.Username,
			Description: cred.Description,
			Key:         key,
			Scopes:      req.Scopes,
			ExpiresAt:   cred.Expires,
			CreatedAt:   cred.CreatedAt,
		}
		if cred.KeyPrefix != nil {
			resp.KeyPrefix = *cred.KeyPrefix
		}
		c.JSON(http.StatusCreated, resp)
	}
}
