// Package account implements the endpoints an authenticated user calls on their own account.
package account

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/package-gallery/gallery/internal/db/models"
	"github.com/package-gallery/gallery/internal/middleware"
	"github.com/package-gallery/gallery/internal/services"
)

// DeletionRequester files self-service account deletion requests
type DeletionRequester interface {
	RequestAccountDeletion(ctx context.Context, user *models.User) (*models.SupportIssue, error)
}

// DeletionRequestReader returns the caller's most recent deletion request
type DeletionRequestReader interface {
	LatestAccountDeletionRequest(ctx context.Context, user *models.User) (*models.SupportIssue, error)
}

// @Summary      Request account deletion
// @Description  File a request to delete the caller's own account. The request is processed by an administrator or the deletion processor.
// @Tags         Account
// @Security     Bearer
// @Produce      json
// @Success      201  {object}  map[string]interface{}  "issue: models.SupportIssue"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      409  {object}  map[string]interface{}  "A request is already open"
// @Router       /api/v1/account/deletion-request [post]
// RequestDeletionHandler files a deletion request for the authenticated account
// POST /api/v1/account/deletion-request
func RequestDeletionHandler(requests DeletionRequester) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		issue, err := requests.RequestAccountDeletion(c.Request.Context(), user)
		if errors.Is(err, services.ErrDeletionAlreadyRequested) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			slog.Error("failed to file account deletion request", "username", user.Username, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to file deletion request"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{"issue": issue})
	}
}

// @Summary      Get account deletion request
// @Description  Return the caller's most recent deletion request and its status history.
// @Tags         Account
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "issue: models.SupportIssue"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      404  {object}  map[string]interface{}  "No deletion request filed"
// @Router       /api/v1/account/deletion-request [get]
// GetDeletionRequestHandler returns the latest deletion request of the authenticated account
// GET /api/v1/account/deletion-request
func GetDeletionRequestHandler(requests DeletionRequestReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		issue, err := requests.LatestAccountDeletionRequest(c.Request.Context(), user)
		if err != nil {
			slog.Error("failed to load account deletion request", "username", user.Username, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load deletion request"})
			return
		}
		if issue == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "No deletion request found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"issue": issue})
	}
}
