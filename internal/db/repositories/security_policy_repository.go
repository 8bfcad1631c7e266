// security_policy_repository.go implements SecurityPolicyRepository, providing queries for the
// security policies an account is subscribed to.
package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/package-gallery/gallery/internal/db"
	"github.com/package-gallery/gallery/internal/db/models"
)

// SecurityPolicyRepository handles user security policy database operations
type SecurityPolicyRepository struct {
	db *sqlx.DB
}

// NewSecurityPolicyRepository creates a new SecurityPolicyRepository
func NewSecurityPolicyRepository(conn *sqlx.DB) *SecurityPolicyRepository {
	return &SecurityPolicyRepository{db: conn}
}

// ListByUser returns the policies of an account
func (r *SecurityPolicyRepository) ListByUser(ctx context.Context, userID string) ([]*models.UserSecurityPolicy, error) {
	policies := make([]*models.UserSecurityPolicy, 0)
	query := `SELECT id, user_id, name, subscription, value FROM user_security_policies WHERE user_id = $1 ORDER BY subscription, name`
	if err := sqlx.SelectContext(ctx, db.QuerierFromContext(ctx, r.db), &policies, query, userID); err != nil {
		return nil, err
	}
	return policies, nil
}

// DeleteSubscription removes every policy of a subscription from an account
func (r *SecurityPolicyRepository) DeleteSubscription(ctx context.Context, userID, subscription string) error {
	query := `DELETE FROM user_security_policies WHERE user_id = $1 AND subscription = $2`
	_, err := db.QuerierFromContext(ctx, r.db).ExecContext(ctx, query, userID, subscription)
	return err
}
