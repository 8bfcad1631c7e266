// support_request_repository.go implements SupportRequestRepository, providing queries for
// support issues and their history.
package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/package-gallery/gallery/internal/db"
	"github.com/package-gallery/gallery/internal/db/models"
)

const issueColumns = `id, created_by, issue_title, details, owner_email, package_id, issue_status_id, created_at`

// IssueFilter narrows support issue queries. Nil fields match everything.
type IssueFilter struct {
	CreatedBy     *string
	IssueTitle    *string
	IssueStatusID *int
}

// SupportRequestRepository handles support issue database operations
type SupportRequestRepository struct {
	db *sqlx.DB
}

// NewSupportRequestRepository creates a new SupportRequestRepository
func NewSupportRequestRepository(conn *sqlx.DB) *SupportRequestRepository {
	return &SupportRequestRepository{db: conn}
}

// CreateIssue inserts an issue
func (r *SupportRequestRepository) CreateIssue(ctx context.Context, issue *models.SupportIssue) error {
	if issue.ID == "" {
		issue.ID = uuid.New().String()
	}
	issue.CreatedAt = time.Now()
	query := `
		INSERT INTO support_issues (` + issueColumns + `)
		VALUES (:id, :created_by, :issue_title, :details, :owner_email, :package_id, :issue_status_id, :created_at)
	`
	_, err := sqlx.NamedExecContext(ctx, db.QuerierFromContext(ctx, r.db), query, issue)
	return err
}

// ListIssues returns the issues matching filter, oldest first
func (r *SupportRequestRepository) ListIssues(ctx context.Context, filter IssueFilter) ([]*models.SupportIssue, error) {
	query := `SELECT ` + issueColumns + ` FROM support_issues WHERE 1=1`
	args := make([]interface{}, 0)
	paramIndex := 1

	if filter.CreatedBy != nil {
		query += fmt.Sprintf(` AND LOWER(created_by) = LOWER($%d)`, paramIndex)
		args = append(args, *filter.CreatedBy)
		paramIndex++
	}
	if filter.IssueTitle != nil {
		query += fmt.Sprintf(` AND issue_title = $%d`, paramIndex)
		args = append(args, *filter.IssueTitle)
		paramIndex++
	}
	if filter.IssueStatusID != nil {
		query += fmt.Sprintf(` AND issue_status_id = $%d`, paramIndex)
		args = append(args, *filter.IssueStatusID)
	}
	query += ` ORDER BY created_at`

	issues := make([]*models.SupportIssue, 0)
	if err := sqlx.SelectContext(ctx, db.QuerierFromContext(ctx, r.db), &issues, query, args...); err != nil {
		return nil, err
	}
	return issues, nil
}

// UpdateIssueStatus changes the status of an issue
func (r *SupportRequestRepository) UpdateIssueStatus(ctx context.Context, issueID string, statusID int) error {
	_, err := db.QuerierFromContext(ctx, r.db).ExecContext(ctx,
		`UPDATE support_issues SET issue_status_id = $1 WHERE id = $2`, statusID, issueID)
	return err
}

// AddHistory appends a history entry to an issue
func (r *SupportRequestRepository) AddHistory(ctx context.Context, h *models.SupportHistory) error {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	h.EntryDate = time.Now()
	query := `
		INSERT INTO support_history (id, issue_id, edited_by, issue_status_id, comments, entry_date)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := db.QuerierFromContext(ctx, r.db).ExecContext(ctx, query, h.ID, h.IssueID, h.EditedBy, h.IssueStatusID, h.Comments, h.EntryDate)
	return err
}

// ListHistory returns the history of an issue, oldest first
func (r *SupportRequestRepository) ListHistory(ctx context.Context, issueID string) ([]*models.SupportHistory, error) {
	history := make([]*models.SupportHistory, 0)
	query := `
		SELECT id, issue_id, edited_by, issue_status_id, comments, entry_date
		FROM support_history
		WHERE issue_id = $1
		ORDER BY entry_date
	`
	if err := sqlx.SelectContext(ctx, db.QuerierFromContext(ctx, r.db), &history, query, issueID); err != nil {
		return nil, err
	}
	return history, nil
}

// DeleteIssuesCreatedBy removes every issue created by username. History rows cascade.
func (r *SupportRequestRepository) DeleteIssuesCreatedBy(ctx context.Context, username string) (int64, error) {
	res, err := db.QuerierFromContext(ctx, r.db).ExecContext(ctx,
		`DELETE FROM support_issues WHERE LOWER(created_by) = LOWER($1)`, username)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
