// ownership_request_repository.go implements OwnershipRequestRepository, providing queries for
// pending package ownership invitations.
package repositories

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/package-gallery/gallery/internal/db"
	"github.com/package-gallery/gallery/internal/db/models"
)

// OwnershipRequestFilter narrows ownership request queries. Nil fields match everything.
type OwnershipRequestFilter struct {
	PackageRegistrationID *string
	RequestingOwnerID     *string
	NewOwnerID            *string
}

// OwnershipRequestRepository handles package ownership request database operations
type OwnershipRequestRepository struct {
	db *sqlx.DB
}

// NewOwnershipRequestRepository creates a new OwnershipRequestRepository
func NewOwnershipRequestRepository(conn *sqlx.DB) *OwnershipRequestRepository {
	return &OwnershipRequestRepository{db: conn}
}

// List returns the ownership requests matching filter
func (r *OwnershipRequestRepository) List(ctx context.Context, filter OwnershipRequestFilter) ([]*models.PackageOwnerRequest, error) {
	query := `
		SELECT r.id, r.package_registration_id, r.requesting_owner_id, r.new_owner_id,
			r.confirmation_code, r.requested_at, pr.package_id
		FROM package_owner_requests r
		JOIN package_registrations pr ON pr.id = r.package_registration_id
		WHERE 1=1
	`
	args := make([]interface{}, 0)
	paramIndex := 1

	if filter.PackageRegistrationID != nil {
		query += fmt.Sprintf(` AND r.package_registration_id = $%d`, paramIndex)
		args = append(args, *filter.PackageRegistrationID)
		paramIndex++
	}
	if filter.RequestingOwnerID != nil {
		query += fmt.Sprintf(` AND r.requesting_owner_id = $%d`, paramIndex)
		args = append(args, *filter.RequestingOwnerID)
		paramIndex++
	}
	if filter.NewOwnerID != nil {
		query += fmt.Sprintf(` AND r.new_owner_id = $%d`, paramIndex)
		args = append(args, *filter.NewOwnerID)
	}
	query += ` ORDER BY r.requested_at`

	requests := make([]*models.PackageOwnerRequest, 0)
	if err := sqlx.SelectContext(ctx, db.QuerierFromContext(ctx, r.db), &requests, query, args...); err != nil {
		return nil, err
	}
	return requests, nil
}

// DeleteForNewOwner removes the requests inviting newOwnerID to co-own a registration
func (r *OwnershipRequestRepository) DeleteForNewOwner(ctx context.Context, registrationID, newOwnerID string) error {
	query := `DELETE FROM package_owner_requests WHERE package_registration_id = $1 AND new_owner_id = $2`
	_, err := db.QuerierFromContext(ctx, r.db).ExecContext(ctx, query, registrationID, newOwnerID)
	return err
}

// DeleteFromRequestingOwner removes the requests requestingOwnerID sent for a registration
func (r *OwnershipRequestRepository) DeleteFromRequestingOwner(ctx context.Context, registrationID, requestingOwnerID string) error {
	query := `DELETE FROM package_owner_requests WHERE package_registration_id = $1 AND requesting_owner_id = $2`
	_, err := db.QuerierFromContext(ctx, r.db).ExecContext(ctx, query, registrationID, requestingOwnerID)
	return err
}
