// audit_logs.go implements the admin endpoints that read the audit log, e.g. the history of
// account deletions and deletion requests.
package admin

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/package-gallery/gallery/internal/db/models"
	"github.com/package-gallery/gallery/internal/db/repositories"
)

// AuditLogReader reads persisted audit log entries
type AuditLogReader interface {
	ListAuditLogs(ctx context.Context, filters repositories.AuditFilters, limit, offset int) ([]*models.AuditLog, int, error)
	GetAuditLog(ctx context.Context, logID string) (*models.AuditLog, error)
}

// AuditLogHandlers handles audit log endpoints
type AuditLogHandlers struct {
	logs AuditLogReader
}

// NewAuditLogHandlers creates a new AuditLogHandlers instance
func NewAuditLogHandlers(logs AuditLogReader) *AuditLogHandlers {
	return &AuditLogHandlers{logs: logs}
}

func optionalQuery(c *gin.Context, key string) *string {
	if v := c.Query(key); v != "" {
		return &v
	}
	return nil
}

func optionalTime(c *gin.Context, key string) (*time.Time, error) {
	v := c.Query(key)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// @Summary      List audit logs
// @Description  List audit log entries, newest first. Requires audit:read scope.
// @Tags         Audit
// @Security     Bearer
// @Produce      json
// @Param        action         query  string  false  "Action, e.g. account.delete"
// @Param        resource_type  query  string  false  "user or organization"
// @Param        resource_id    query  string  false  "Account name"
// @Param        user_id        query  string  false  "Acting user ID"
// @Param        start_date     query  string  false  "RFC3339 lower bound"
// @Param        end_date       query  string  false  "RFC3339 upper bound"
// @Param        page           query  int     false  "Page number (default 1)"
// @Param        per_page       query  int     false  "Items per page, max 100 (default 20)"
// @Success      200  {object}  map[string]interface{}  "logs: []models.AuditLog, pagination: map"
// @Failure      400  {object}  map[string]interface{}  "Invalid date"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/admin/audit-logs [get]
// ListAuditLogsHandler lists audit log entries with filters and pagination
// GET /api/v1/admin/audit-logs?action=account.delete&page=1&per_page=20
func (h *AuditLogHandlers) ListAuditLogsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))
		if page < 1 {
			page = 1
		}
		if perPage < 1 || perPage > 100 {
			perPage = 20
		}

		filters := repositories.AuditFilters{
			UserID:       optionalQuery(c, "user_id"),
			Action:       optionalQuery(c, "action"),
			ResourceType: optionalQuery(c, "resource_type"),
			ResourceID:   optionalQuery(c, "resource_id"),
		}
		var err error
		if filters.StartDate, err = optionalTime(c, "start_date"); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid start_date format. Use RFC3339"})
			return
		}
		if filters.EndDate, err = optionalTime(c, "end_date"); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid end_date format. Use RFC3339"})
			return
		}

		logs, total, err := h.logs.ListAuditLogs(c.Request.Context(), filters, perPage, (page-1)*perPage)
		if err != nil {
			slog.Error("failed to list audit logs", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list audit logs"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"logs": logs,
			"pagination": gin.H{
				"page":     page,
				"per_page": perPage,
				"total":    total,
			},
		})
	}
}

// @Summary      Get audit log entry
// @Description  Retrieve a single audit log entry. Requires audit:read scope.
// @Tags         Audit
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Audit log ID"
// @Success      200  {object}  models.AuditLog
// @Failure      404  {object}  map[string]interface{}  "Not found"
// @Router       /api/v1/admin/audit-logs/{id} [get]
// GetAuditLogHandler returns one audit log entry
// GET /api/v1/admin/audit-logs/:id
func (h *AuditLogHandlers) GetAuditLogHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		entry, err := h.logs.GetAuditLog(c.Request.Context(), id)
		if err != nil {
			slog.Error("failed to get audit log", "id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get audit log"})
			return
		}
		if entry == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Audit log entry not found"})
			return
		}
		c.JSON(http.StatusOK, entry)
	}
}
