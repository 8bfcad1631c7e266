// audit.go provides Gin middleware that carries the caller's address into the request
// context, so audit records saved while handling the request carry the client IP.
package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/package-gallery/gallery/internal/audit"
)

// AuditContextMiddleware stores c.ClientIP() in the request context for audit.Service
func AuditContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := audit.WithClientIP(c.Request.Context(), c.ClientIP())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
