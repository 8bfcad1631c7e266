// package_repository.go implements PackageRepository, providing queries for package
// registrations, their owners and their versions.
package repositories

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/package-gallery/gallery/internal/db"
	"github.com/package-gallery/gallery/internal/db/models"
)

// PackageRepository handles package registration database operations
type PackageRepository struct {
	db *sqlx.DB
}

// NewPackageRepository creates a new PackageRepository
func NewPackageRepository(conn *sqlx.DB) *PackageRepository {
	return &PackageRepository{db: conn}
}

type registrationOwnerRow struct {
	RegistrationID string `db:"package_registration_id"`
	models.User
}

// ListRegistrationsByOwner returns the registrations owned by userID with all of their owners loaded
func (r *PackageRepository) ListRegistrationsByOwner(ctx context.Context, userID string) ([]*models.PackageRegistration, error) {
	q := db.QuerierFromContext(ctx, r.db)

	query := `
		SELECT pr.id, pr.package_id, pr.is_verified, pr.download_count
		FROM package_registrations pr
		JOIN package_registration_owners o ON o.package_registration_id = pr.id
		WHERE o.user_id = $1
		ORDER BY pr.package_id
	`
	regs := make([]*models.PackageRegistration, 0)
	if err := sqlx.SelectContext(ctx, q, &regs, query, userID); err != nil {
		return nil, err
	}
	if len(regs) == 0 {
		return regs, nil
	}

	ids := make([]string, len(regs))
	byID := make(map[string]*models.PackageRegistration, len(regs))
	for i, reg := range regs {
		ids[i] = reg.ID
		byID[reg.ID] = reg
		reg.Owners = make([]*models.User, 0)
	}

	ownersQuery := `
		SELECT o.package_registration_id, ` + prefixedUserColumns("u") + `
		FROM package_registration_owners o
		JOIN users u ON u.id = o.user_id
		WHERE o.package_registration_id = ANY($1)
		ORDER BY u.username
	`
	var rows []registrationOwnerRow
	if err := sqlx.SelectContext(ctx, q, &rows, ownersQuery, pq.Array(ids)); err != nil {
		return nil, err
	}
	for i := range rows {
		owner := rows[i].User
		if reg, ok := byID[rows[i].RegistrationID]; ok {
			reg.Owners = append(reg.Owners, &owner)
		}
	}

	return regs, nil
}

// RemoveOwner removes an owner from a registration
func (r *PackageRepository) RemoveOwner(ctx context.Context, registrationID, userID string) error {
	query := `DELETE FROM package_registration_owners WHERE package_registration_id = $1 AND user_id = $2`
	_, err := db.QuerierFromContext(ctx, r.db).ExecContext(ctx, query, registrationID, userID)
	return err
}

// SetVerified sets the verified flag of the given registrations
func (r *PackageRepository) SetVerified(ctx context.Context, registrationIDs []string, verified bool) error {
	if len(registrationIDs) == 0 {
		return nil
	}
	query := `UPDATE package_registrations SET is_verified = $1 WHERE id = ANY($2)`
	_, err := db.QuerierFromContext(ctx, r.db).ExecContext(ctx, query, verified, pq.Array(registrationIDs))
	return err
}

// ListPackages returns the versions of a registration
func (r *PackageRepository) ListPackages(ctx context.Context, registrationID string, includeUnlisted bool) ([]*models.Package, error) {
	query := `
		SELECT p.id, p.package_registration_id, p.version, p.normalized_version, p.listed,
			p.description, p.last_edited, p.created_at, pr.package_id
		FROM packages p
		JOIN package_registrations pr ON pr.id = p.package_registration_id
		WHERE p.package_registration_id = $1 AND (p.listed OR $2)
	`
	pkgs := make([]*models.Package, 0)
	if err := sqlx.SelectContext(ctx, db.QuerierFromContext(ctx, r.db), &pkgs, query, registrationID, includeUnlisted); err != nil {
		return nil, err
	}
	return pkgs, nil
}

// SetListed updates the listed flag of a package version and stamps it as edited
func (r *PackageRepository) SetListed(ctx context.Context, packageID string, listed bool) error {
	query := `UPDATE packages SET listed = $1, last_edited = $2 WHERE id = $3`
	_, err := db.QuerierFromContext(ctx, r.db).ExecContext(ctx, query, listed, time.Now(), packageID)
	return err
}

func prefixedUserColumns(alias string) string {
	return alias + ".id, " + alias + ".username, " + alias + ".email_address, " +
		alias + ".unconfirmed_email_address, " + alias + ".is_organization, " +
		alias + ".is_deleted, " + alias + ".email_allowed, " + alias + ".notify_package_pushed, " +
		alias + ".created_at, " + alias + ".updated_at"
}
