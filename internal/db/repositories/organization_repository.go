// organization_repository.go implements OrganizationRepository, providing queries for
// organization memberships, membership requests and account migration requests.
package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/package-gallery/gallery/internal/db"
	"github.com/package-gallery/gallery/internal/db/models"
)

// OrganizationRepository handles organization membership database operations
type OrganizationRepository struct {
	db *sqlx.DB
}

// NewOrganizationRepository creates a new OrganizationRepository
func NewOrganizationRepository(conn *sqlx.DB) *OrganizationRepository {
	return &OrganizationRepository{db: conn}
}

// ListMembershipsOfUser returns the organizations a user belongs to
func (r *OrganizationRepository) ListMembershipsOfUser(ctx context.Context, memberID string) ([]*models.Membership, error) {
	query := `
		SELECT m.organization_id, m.member_id, m.is_admin, m.created_at,
			o.username AS organization_name, u.username AS member_name
		FROM memberships m
		JOIN users o ON o.id = m.organization_id
		JOIN users u ON u.id = m.member_id
		WHERE m.member_id = $1
		ORDER BY o.username
	`
	memberships := make([]*models.Membership, 0)
	if err := sqlx.SelectContext(ctx, db.QuerierFromContext(ctx, r.db), &memberships, query, memberID); err != nil {
		return nil, err
	}
	return memberships, nil
}

// ListMembers returns the members of an organization
func (r *OrganizationRepository) ListMembers(ctx context.Context, orgID string) ([]*models.Membership, error) {
	query := `
		SELECT m.organization_id, m.member_id, m.is_admin, m.created_at,
			o.username AS organization_name, u.username AS member_name
		FROM memberships m
		JOIN users o ON o.id = m.organization_id
		JOIN users u ON u.id = m.member_id
		WHERE m.organization_id = $1
		ORDER BY u.username
	`
	members := make([]*models.Membership, 0)
	if err := sqlx.SelectContext(ctx, db.QuerierFromContext(ctx, r.db), &members, query, orgID); err != nil {
		return nil, err
	}
	return members, nil
}

// RemoveMember deletes a single membership
func (r *OrganizationRepository) RemoveMember(ctx context.Context, orgID, memberID string) error {
	query := `DELETE FROM memberships WHERE organization_id = $1 AND member_id = $2`
	_, err := db.QuerierFromContext(ctx, r.db).ExecContext(ctx, query, orgID, memberID)
	return err
}

// RemoveAllMembers deletes every membership of an organization
func (r *OrganizationRepository) RemoveAllMembers(ctx context.Context, orgID string) error {
	_, err := db.QuerierFromContext(ctx, r.db).ExecContext(ctx, `DELETE FROM memberships WHERE organization_id = $1`, orgID)
	return err
}

// PromoteAllMembersToAdmin makes every remaining member of an organization an administrator
func (r *OrganizationRepository) PromoteAllMembersToAdmin(ctx context.Context, orgID string) error {
	query := `UPDATE memberships SET is_admin = true WHERE organization_id = $1`
	_, err := db.QuerierFromContext(ctx, r.db).ExecContext(ctx, query, orgID)
	return err
}

// DeleteMembershipRequestsForUser removes all invitations addressed to a user
func (r *OrganizationRepository) DeleteMembershipRequestsForUser(ctx context.Context, userID string) error {
	_, err := db.QuerierFromContext(ctx, r.db).ExecContext(ctx, `DELETE FROM membership_requests WHERE new_member_id = $1`, userID)
	return err
}

// DeleteMembershipRequestsOfOrganization removes all invitations sent by an organization
func (r *OrganizationRepository) DeleteMembershipRequestsOfOrganization(ctx context.Context, orgID string) error {
	_, err := db.QuerierFromContext(ctx, r.db).ExecContext(ctx, `DELETE FROM membership_requests WHERE organization_id = $1`, orgID)
	return err
}

// DeleteMigrationRequests removes migration requests where the account is either the
// account being migrated or the proposed administrator
func (r *OrganizationRepository) DeleteMigrationRequests(ctx context.Context, userID string) error {
	query := `DELETE FROM organization_migration_requests WHERE new_organization_id = $1 OR admin_user_id = $1`
	_, err := db.QuerierFromContext(ctx, r.db).ExecContext(ctx, query, userID)
	return err
}
