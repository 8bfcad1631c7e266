// accounts.go implements the admin account deletion endpoints.
package admin

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/package-gallery/gallery/internal/config"
	"github.com/package-gallery/gallery/internal/db/models"
	"github.com/package-gallery/gallery/internal/middleware"
	"github.com/package-gallery/gallery/internal/services"
)

// AccountLookup finds accounts by username
type AccountLookup interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// DeletionRecordLookup finds the record written when a confirmed account was deleted
type DeletionRecordLookup interface {
	GetByDeletedAccountID(ctx context.Context, accountID string) (*models.AccountDelete, error)
}

// AccountDeleter runs an account deletion
type AccountDeleter interface {
	DeleteAccount(ctx context.Context, userToBeDeleted, userToExecuteTheDelete *models.User, commitAsTransaction bool, policy services.OrphanPackagePolicy) (*services.DeleteAccountStatus, error)
}

// AccountHandlers handles admin account endpoints
type AccountHandlers struct {
	defaults config.AccountDeletionConfig
	accounts AccountLookup
	records  DeletionRecordLookup
	deleter  AccountDeleter
}

// NewAccountHandlers creates a new AccountHandlers instance
func NewAccountHandlers(cfg *config.Config, accounts AccountLookup, records DeletionRecordLookup, deleter AccountDeleter) *AccountHandlers {
	return &AccountHandlers{
		defaults: cfg.AccountDeletion,
		accounts: accounts,
		records:  records,
		deleter:  deleter,
	}
}

// DeleteAccountRequest is the optional body of DELETE /api/v1/admin/accounts/:username.
// Omitted fields fall back to the account_deletion config.
type DeleteAccountRequest struct {
	OrphanPolicy        *string `json:"orphan_policy"`
	CommitAsTransaction *bool   `json:"commit_as_transaction"`
}

// @Summary      Delete account
// @Description  Delete a user or organization account. Requires users:write scope.
// @Tags         Accounts
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        username  path  string                true   "Account username"
// @Param        body      body  DeleteAccountRequest  false  "Deletion options"
// @Success      200  {object}  services.DeleteAccountStatus
// @Failure      400  {object}  map[string]interface{}  "Invalid request"
// @Failure      404  {object}  map[string]interface{}  "Account not found"
// @Failure      409  {object}  services.DeleteAccountStatus  "Account already deleted"
// @Failure      422  {object}  services.DeleteAccountStatus  "Deletion refused or failed"
// @Router       /api/v1/admin/accounts/{username} [delete]
// DeleteAccountHandler deletes an account on behalf of the authenticated admin
// DELETE /api/v1/admin/accounts/:username
func (h *AccountHandlers) DeleteAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req DeleteAccountRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
			return
		}

		policyName := h.defaults.OrphanPolicy
		if req.OrphanPolicy != nil {
			policyName = *req.OrphanPolicy
		}
		policy, err := services.ParseOrphanPackagePolicy(policyName)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		commit := h.defaults.CommitAsTransaction
		if req.CommitAsTransaction != nil {
			commit = *req.CommitAsTransaction
		}

		admin := middleware.CurrentUser(c)
		if admin == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		username := c.Param("username")
		account, err := h.accounts.GetByUsername(c.Request.Context(), username)
		if err != nil {
			slog.Error("failed to load account", "username", username, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve account"})
			return
		}
		if account == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
			return
		}

		alreadyDeleted := account.IsDeleted
		status, err := h.deleter.DeleteAccount(c.Request.Context(), account, admin, commit, policy)
		if err != nil {
			slog.Error("account deletion rejected", "username", username, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete account"})
			return
		}

		switch {
		case alreadyDeleted:
			c.JSON(http.StatusConflict, status)
		case !status.Success:
			c.JSON(http.StatusUnprocessableEntity, status)
		default:
			c.JSON(http.StatusOK, status)
		}
	}
}

// @Summary      Get account deletion record
// @Description  Get who deleted a confirmed account and when. Requires users:read scope.
// @Tags         Accounts
// @Security     Bearer
// @Produce      json
// @Param        username  path  string  true  "Account username"
// @Success      200  {object}  models.AccountDelete
// @Failure      404  {object}  map[string]interface{}  "Account or deletion record not found"
// @Router       /api/v1/admin/accounts/{username}/deletion [get]
// GetAccountDeletionHandler returns the deletion record of a deleted account
// GET /api/v1/admin/accounts/:username/deletion
func (h *AccountHandlers) GetAccountDeletionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.Param("username")
		account, err := h.accounts.GetByUsername(c.Request.Context(), username)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve account"})
			return
		}
		if account == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
			return
		}

		record, err := h.records.GetByDeletedAccountID(c.Request.Context(), account.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve deletion record"})
			return
		}
		if record == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "No deletion record for account"})
			return
		}

		c.JSON(http.StatusOK, record)
	}
}
