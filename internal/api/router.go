// Package api wires together all HTTP routes of the gallery backend.
//
// Route groups:
//   - /health is unauthenticated for load balancer health checks.
//   - /api/v1/account/... is for any authenticated account acting on itself.
//   - /api/v1/admin/... requires authentication and the scope named on each route
//     (users:*, api_keys:manage, audit:read).
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/package-gallery/gallery/internal/api/account"
	"github.com/package-gallery/gallery/internal/api/admin"
	"github.com/package-gallery/gallery/internal/audit"
	"github.com/package-gallery/gallery/internal/auth"
	"github.com/package-gallery/gallery/internal/config"
	"github.com/package-gallery/gallery/internal/db/models"
	"github.com/package-gallery/gallery/internal/db/repositories"
	"github.com/package-gallery/gallery/internal/jobs"
	"github.com/package-gallery/gallery/internal/middleware"
	"github.com/package-gallery/gallery/internal/services"
	"github.com/package-gallery/gallery/internal/telemetry"
)

// BackgroundServices holds the background jobs and resources that must be stopped during
// graceful shutdown. The caller (cmd/server) calls Shutdown after the HTTP server has
// drained in-flight requests.
type BackgroundServices struct {
	processor *jobs.AccountDeleteProcessor
	sinks     audit.Sinks
}

// Shutdown stops the processor and flushes the audit sinks
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.processor != nil {
		bg.processor.Stop()
	}
	if err := bg.sinks.Close(); err != nil {
		slog.Error("failed to close audit sinks", "error", err)
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router and starts the background processor
func NewRouter(ctx context.Context, cfg *config.Config, conn *sqlx.DB) (*gin.Engine, *BackgroundServices, error) {
	sinks, err := audit.OpenSinks(cfg.Audit.Sinks)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open audit sinks: %w", err)
	}
	slog.Info("audit sinks opened", "count", len(sinks))
	auditLogs := repositories.NewAuditRepository(conn)
	gallery := services.NewGallery(conn, audit.NewService(auditLogs, sinks), telemetry.NewService())

	bg := &BackgroundServices{sinks: sinks}
	if cfg.AccountDeletion.Processor.Enabled {
		processor, err := jobs.NewAccountDeleteProcessor(gallery.SupportRequests, gallery.Users, gallery.DeleteAccount, cfg.AccountDeletion.Processor)
		if err != nil {
			sinks.Close()
			return nil, nil, err
		}
		processor.Start(ctx)
		bg.processor = processor
	}

	var apiKeys middleware.APIKeyAuthenticator = gallery.Authentication
	if !cfg.Auth.APIKeys.Enabled {
		apiKeys = disabledAPIKeys{}
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.LoggerMiddleware(slog.Default()))
	router.Use(middleware.AuditContextMiddleware())

	router.GET("/health", healthCheckHandler(conn))

	accountHandlers := admin.NewAccountHandlers(cfg, gallery.Users, gallery.AccountDeletes, gallery.DeleteAccount)
	apiKeyHandlers := admin.NewAPIKeyHandlers(cfg, gallery.Users, gallery.Authentication)
	auditLogHandlers := admin.NewAuditLogHandlers(auditLogs)

	apiV1 := router.Group("/api/v1")
	apiV1.Use(middleware.AuthMiddleware(cfg.Auth.APIKeys.Prefix, gallery.Users, apiKeys))
	{
		// Self-service: any authenticated account
		apiV1.POST("/account/deletion-request", account.RequestDeletionHandler(gallery.SupportRequests))
		apiV1.GET("/account/deletion-request", account.GetDeletionRequestHandler(gallery.SupportRequests))

		accountsGroup := apiV1.Group("/admin/accounts")
		{
			accountsGroup.DELETE("/:username",
				middleware.RequireScope(auth.ScopeUsersWrite),
				accountHandlers.DeleteAccountHandler())
			accountsGroup.GET("/:username/deletion",
				middleware.RequireAnyScope(auth.ScopeUsersRead, auth.ScopeAuditRead),
				accountHandlers.GetAccountDeletionHandler())
			if cfg.Auth.APIKeys.Enabled {
				accountsGroup.POST("/:username/api-keys",
					middleware.RequireScope(auth.ScopeAPIKeysManage),
					apiKeyHandlers.CreateAPIKeyHandler())
			}
		}

		auditGroup := apiV1.Group("/admin/audit-logs")
		auditGroup.Use(middleware.RequireScope(auth.ScopeAuditRead))
		{
			auditGroup.GET("", auditLogHandlers.ListAuditLogsHandler())
			auditGroup.GET("/:id", auditLogHandlers.GetAuditLogHandler())
		}
	}

	return router, bg, nil
}

// disabledAPIKeys rejects every API key when auth.api_keys.enabled is false
type disabledAPIKeys struct{}

func (disabledAPIKeys) AuthenticateAPIKey(context.Context, string) (*models.User, *models.Credential, error) {
	return nil, nil, auth.ErrInvalidAPIKey
}

// @Summary      Health check
// @Description  Returns the health status of the service, including database connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status: healthy, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "status: unhealthy, error: database connection failed"
// @Router       /health [get]
// healthCheckHandler returns the health status of the service
func healthCheckHandler(conn *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := conn.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}
