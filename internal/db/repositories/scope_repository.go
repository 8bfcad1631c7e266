// scope_repository.go implements ScopeRepository, providing queries for API key scopes.
package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/package-gallery/gallery/internal/db"
	"github.com/package-gallery/gallery/internal/db/models"
)

// ScopeRepository handles API key scope database operations
type ScopeRepository struct {
	db *sqlx.DB
}

// NewScopeRepository creates a new ScopeRepository
func NewScopeRepository(conn *sqlx.DB) *ScopeRepository {
	return &ScopeRepository{db: conn}
}

// Create inserts a scope
func (r *ScopeRepository) Create(ctx context.Context, s *models.Scope) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	query := `
		INSERT INTO scopes (id, credential_id, owner_id, subject, allowed_action)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := db.QuerierFromContext(ctx, r.db).ExecContext(ctx, query, s.ID, s.CredentialID, s.OwnerID, s.Subject, s.AllowedAction)
	return err
}

// ListByCredential returns the scopes of a credential
func (r *ScopeRepository) ListByCredential(ctx context.Context, credentialID string) ([]*models.Scope, error) {
	scopes := make([]*models.Scope, 0)
	query := `SELECT id, credential_id, owner_id, subject, allowed_action FROM scopes WHERE credential_id = $1`
	if err := sqlx.SelectContext(ctx, db.QuerierFromContext(ctx, r.db), &scopes, query, credentialID); err != nil {
		return nil, err
	}
	return scopes, nil
}

// ListByOwner returns scopes acting on behalf of ownerID, joined with the credential that
// carries them. The credential usually belongs to another account (an organization member).
func (r *ScopeRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.ScopeWithCredential, error) {
	query := `
		SELECT s.id, s.credential_id, s.owner_id, s.subject, s.allowed_action,
			c.user_id AS credential_user_id, c.type AS credential_type
		FROM scopes s
		JOIN credentials c ON c.id = s.credential_id
		WHERE s.owner_id = $1
	`
	scopes := make([]*models.ScopeWithCredential, 0)
	if err := sqlx.SelectContext(ctx, db.QuerierFromContext(ctx, r.db), &scopes, query, ownerID); err != nil {
		return nil, err
	}
	return scopes, nil
}

// DeleteByCredential removes every scope of a credential
func (r *ScopeRepository) DeleteByCredential(ctx context.Context, credentialID string) error {
	_, err := db.QuerierFromContext(ctx, r.db).ExecContext(ctx, `DELETE FROM scopes WHERE credential_id = $1`, credentialID)
	return err
}
