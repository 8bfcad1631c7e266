package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/package-gallery/gallery/internal/audit"
	"github.com/package-gallery/gallery/internal/db/models"
)

type capturingStore struct {
	logs []*models.AuditLog
}

func (s *capturingStore) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	s.logs = append(s.logs, log)
	return nil
}

func TestAuditContextMiddleware_RecordsClientIP(t *testing.T) {
	store := &capturingStore{}
	svc := audit.NewService(store, nil)

	r := gin.New()
	r.Use(AuditContextMiddleware())
	r.POST("/", func(c *gin.Context) {
		err := svc.SaveAuditRecord(c.Request.Context(), &audit.AccountDeletionRequestAuditRecord{Username: "alice", IssueID: "issue-1"})
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusCreated)
	})

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "203.0.113.7:51234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, store.logs, 1)
	require.NotNil(t, store.logs[0].IPAddress)
	assert.Equal(t, "203.0.113.7", *store.logs[0].IPAddress)
}

func TestAuditContextMiddleware_WithoutMiddlewareNoIP(t *testing.T) {
	store := &capturingStore{}
	svc := audit.NewService(store, nil)

	require.NoError(t, svc.SaveAuditRecord(context.Background(), &audit.AccountDeletionRequestAuditRecord{Username: "alice"}))
	require.Len(t, store.logs, 1)
	assert.Nil(t, store.logs[0].IPAddress)
}
