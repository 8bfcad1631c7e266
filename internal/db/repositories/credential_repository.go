// credential_repository.go implements CredentialRepository, providing queries for passwords
// and API keys bound to an account.
package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/package-gallery/gallery/internal/db"
	"github.com/package-gallery/gallery/internal/db/models"
)

const credentialColumns = `id, user_id, type, value, key_prefix, description, expires, last_used, created_at`

// CredentialRepository handles credential database operations
type CredentialRepository struct {
	db *sqlx.DB
}

// NewCredentialRepository creates a new CredentialRepository
func NewCredentialRepository(conn *sqlx.DB) *CredentialRepository {
	return &CredentialRepository{db: conn}
}

// Create inserts a credential
func (r *CredentialRepository) Create(ctx context.Context, c *models.Credential) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.CreatedAt = time.Now()
	query := `
		INSERT INTO credentials (` + credentialColumns + `)
		VALUES (:id, :user_id, :type, :value, :key_prefix, :description, :expires, :last_used, :created_at)
	`
	_, err := sqlx.NamedExecContext(ctx, db.QuerierFromContext(ctx, r.db), query, c)
	return err
}

// ListByUser returns every credential of an account
func (r *CredentialRepository) ListByUser(ctx context.Context, userID string) ([]*models.Credential, error) {
	creds := make([]*models.Credential, 0)
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE user_id = $1 ORDER BY created_at`
	if err := sqlx.SelectContext(ctx, db.QuerierFromContext(ctx, r.db), &creds, query, userID); err != nil {
		return nil, err
	}
	return creds, nil
}

// ListAPIKeysByPrefix returns unexpired API keys sharing a display prefix (for authentication)
func (r *CredentialRepository) ListAPIKeysByPrefix(ctx context.Context, prefix string) ([]*models.Credential, error) {
	creds := make([]*models.Credential, 0)
	query := `
		SELECT ` + credentialColumns + `
		FROM credentials
		WHERE type = $1 AND key_prefix = $2 AND (expires IS NULL OR expires > NOW())
		ORDER BY created_at DESC
	`
	if err := sqlx.SelectContext(ctx, db.QuerierFromContext(ctx, r.db), &creds, query, models.CredentialTypeAPIKey, prefix); err != nil {
		return nil, err
	}
	return creds, nil
}

// UpdateLastUsed stamps the credential's last use
func (r *CredentialRepository) UpdateLastUsed(ctx context.Context, id string) error {
	_, err := db.QuerierFromContext(ctx, r.db).ExecContext(ctx, `UPDATE credentials SET last_used = $1 WHERE id = $2`, time.Now(), id)
	return err
}

// Delete removes a credential
func (r *CredentialRepository) Delete(ctx context.Context, id string) error {
	_, err := db.QuerierFromContext(ctx, r.db).ExecContext(ctx, `DELETE FROM credentials WHERE id = $1`, id)
	return err
}
