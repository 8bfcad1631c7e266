// account_delete_repository.go implements AccountDeleteRepository, which records who deleted
// a confirmed account and when.
package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/package-gallery/gallery/internal/db"
	"github.com/package-gallery/gallery/internal/db/models"
)

// AccountDeleteRepository handles account deletion records
type AccountDeleteRepository struct {
	db *sqlx.DB
}

// NewAccountDeleteRepository creates a new AccountDeleteRepository
func NewAccountDeleteRepository(conn *sqlx.DB) *AccountDeleteRepository {
	return &AccountDeleteRepository{db: conn}
}

// Create inserts an account deletion record
func (r *AccountDeleteRepository) Create(ctx context.Context, rec *models.AccountDelete) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	query := `
		INSERT INTO account_deletes (id, deleted_account_id, deleted_by_id, deleted_on, signature)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := db.QuerierFromContext(ctx, r.db).ExecContext(ctx, query,
		rec.ID, rec.DeletedAccountID, rec.DeletedByID, rec.DeletedOn, rec.Signature)
	return err
}

// GetByDeletedAccountID returns the most recent deletion record of an account
func (r *AccountDeleteRepository) GetByDeletedAccountID(ctx context.Context, accountID string) (*models.AccountDelete, error) {
	query := `
		SELECT id, deleted_account_id, deleted_by_id, deleted_on, signature
		FROM account_deletes
		WHERE deleted_account_id = $1
		ORDER BY deleted_on DESC
		LIMIT 1
	`
	var rec models.AccountDelete
	err := sqlx.GetContext(ctx, db.QuerierFromContext(ctx, r.db), &rec, query, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
