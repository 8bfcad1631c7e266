// reserved_namespace_repository.go implements ReservedNamespaceRepository, providing queries for
// reserved package id prefixes and their owners.
package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/package-gallery/gallery/internal/db"
	"github.com/package-gallery/gallery/internal/db/models"
)

// ReservedNamespaceRepository handles reserved namespace database operations
type ReservedNamespaceRepository struct {
	db *sqlx.DB
}

// NewReservedNamespaceRepository creates a new ReservedNamespaceRepository
func NewReservedNamespaceRepository(conn *sqlx.DB) *ReservedNamespaceRepository {
	return &ReservedNamespaceRepository{db: conn}
}

// GetByValue retrieves a namespace by its exact value (case-insensitive)
func (r *ReservedNamespaceRepository) GetByValue(ctx context.Context, value string) (*models.ReservedNamespace, error) {
	var ns models.ReservedNamespace
	query := `SELECT id, value, is_shared_namespace, is_prefix FROM reserved_namespaces WHERE LOWER(value) = LOWER($1)`
	err := sqlx.GetContext(ctx, db.QuerierFromContext(ctx, r.db), &ns, query, value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ns, nil
}

// ListByOwner returns the namespaces owned by userID
func (r *ReservedNamespaceRepository) ListByOwner(ctx context.Context, userID string) ([]*models.ReservedNamespace, error) {
	query := `
		SELECT n.id, n.value, n.is_shared_namespace, n.is_prefix
		FROM reserved_namespaces n
		JOIN reserved_namespace_owners o ON o.reserved_namespace_id = n.id
		WHERE o.user_id = $1
		ORDER BY n.value
	`
	namespaces := make([]*models.ReservedNamespace, 0)
	if err := sqlx.SelectContext(ctx, db.QuerierFromContext(ctx, r.db), &namespaces, query, userID); err != nil {
		return nil, err
	}
	return namespaces, nil
}

// RemoveOwner removes userID from the owners of a namespace
func (r *ReservedNamespaceRepository) RemoveOwner(ctx context.Context, namespaceID, userID string) error {
	query := `DELETE FROM reserved_namespace_owners WHERE reserved_namespace_id = $1 AND user_id = $2`
	_, err := db.QuerierFromContext(ctx, r.db).ExecContext(ctx, query, namespaceID, userID)
	return err
}
