package repositories

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/package-gallery/gallery/internal/db/models"
)

var auditCols = []string{"id", "user_id", "action", "resource_type", "resource_id", "metadata", "ip_address", "created_at"}

func newAuditRepo(t *testing.T) (*AuditRepository, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock := newMockDB(t)
	return NewAuditRepository(conn), mock
}

// ---------------------------------------------------------------------------
// CreateAuditLog
// ---------------------------------------------------------------------------

func TestCreateAuditLog_Success(t *testing.T) {
	repo, mock := newAuditRepo(t)
	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(1, 1))

	resourceType := "user"
	log := &models.AuditLog{
		Action:       "account.delete",
		ResourceType: &resourceType,
		Metadata:     map[string]interface{}{"status": "Success"},
	}
	if err := repo.CreateAuditLog(context.Background(), log); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if log.ID == "" {
		t.Error("expected ID to be set")
	}
}

func TestCreateAuditLog_DBError(t *testing.T) {
	repo, mock := newAuditRepo(t)
	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnError(errDB)

	if err := repo.CreateAuditLog(context.Background(), &models.AuditLog{Action: "account.delete"}); err == nil {
		t.Error("expected error, got nil")
	}
}

// ---------------------------------------------------------------------------
// ListAuditLogs
// ---------------------------------------------------------------------------

func TestListAuditLogs_WithFilters(t *testing.T) {
	repo, mock := newAuditRepo(t)
	action := "account.delete"
	resourceID := "alice"

	mock.ExpectQuery("SELECT COUNT.*FROM audit_logs WHERE 1=1 AND action = \\$1 AND resource_id = \\$2").
		WithArgs(action, resourceID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT id.*FROM audit_logs.*LIMIT \\$3 OFFSET \\$4").
		WithArgs(action, resourceID, 20, 0).
		WillReturnRows(sqlmock.NewRows(auditCols).
			AddRow("log-1", nil, action, "user", resourceID, []byte(`{"status":"Success"}`), nil, time.Now()))

	logs, total, err := repo.ListAuditLogs(context.Background(), AuditFilters{Action: &action, ResourceID: &resourceID}, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(logs) != 1 {
		t.Fatalf("total = %d, len = %d, want 1/1", total, len(logs))
	}
	if logs[0].Metadata["status"] != "Success" {
		t.Errorf("metadata status = %v, want Success", logs[0].Metadata["status"])
	}
}

func TestListAuditLogs_CountError(t *testing.T) {
	repo, mock := newAuditRepo(t)
	mock.ExpectQuery("SELECT COUNT").
		WillReturnError(errDB)

	if _, _, err := repo.ListAuditLogs(context.Background(), AuditFilters{}, 20, 0); err == nil {
		t.Error("expected error, got nil")
	}
}

// ---------------------------------------------------------------------------
// GetAuditLog
// ---------------------------------------------------------------------------

func TestGetAuditLog_NotFound(t *testing.T) {
	repo, mock := newAuditRepo(t)
	mock.ExpectQuery("SELECT.*FROM audit_logs").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(auditCols))

	log, err := repo.GetAuditLog(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if log != nil {
		t.Errorf("expected nil, got %+v", log)
	}
}
