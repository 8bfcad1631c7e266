// Package repositories implements the data access layer (repository pattern) for the package gallery.
// Each repository type encapsulates all database queries for a domain entity.
// Queries run on the transaction carried by the context when there is one, so a service can
// group calls to several repositories into a single unit of work.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/package-gallery/gallery/internal/db"
	"github.com/package-gallery/gallery/internal/db/models"
)

const userColumns = `id, username, email_address, unconfirmed_email_address, is_organization,
	is_deleted, email_allowed, notify_package_pushed, created_at, updated_at`

// UserRepository handles user and organization account rows
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(conn *sqlx.DB) *UserRepository {
	return &UserRepository{db: conn}
}

// GetByID retrieves an account by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByUsername retrieves an account by username (case-insensitive)
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(username) = LOWER($1)`, username)
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	var user models.User
	err := sqlx.GetContext(ctx, db.QuerierFromContext(ctx, r.db), &user, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Update writes the mutable account fields
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now()

	query := `
		UPDATE users
		SET email_address = $2, unconfirmed_email_address = $3, is_deleted = $4,
			email_allowed = $5, notify_package_pushed = $6, updated_at = $7
		WHERE id = $1
	`
	_, err := db.QuerierFromContext(ctx, r.db).ExecContext(ctx, query,
		user.ID,
		user.EmailAddress,
		user.UnconfirmedEmailAddress,
		user.IsDeleted,
		user.EmailAllowed,
		user.NotifyPackagePushed,
		user.UpdatedAt,
	)
	return err
}

// Delete removes an account row
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	_, err := db.QuerierFromContext(ctx, r.db).ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	return err
}
