// Package models - user.go defines the User model for gallery accounts. Organizations share
// the users table and are distinguished by IsOrganization.
package models

import "time"

// User represents a gallery account: an individual user or an organization
type User struct {
	ID                      string    `db:"id" json:"id"`
	Username                string    `db:"username" json:"username"`
	EmailAddress            *string   `db:"email_address" json:"email_address,omitempty"`
	UnconfirmedEmailAddress *string   `db:"unconfirmed_email_address" json:"unconfirmed_email_address,omitempty"`
	IsOrganization          bool      `db:"is_organization" json:"is_organization"`
	IsDeleted               bool      `db:"is_deleted" json:"is_deleted"`
	EmailAllowed            bool      `db:"email_allowed" json:"email_allowed"`
	NotifyPackagePushed     bool      `db:"notify_package_pushed" json:"notify_package_pushed"`
	CreatedAt               time.Time `db:"created_at" json:"created_at"`
	UpdatedAt               time.Time `db:"updated_at" json:"updated_at"`
}

// Confirmed reports whether the account has a confirmed email address.
// Confirmed accounts are anonymized on deletion; unconfirmed ones are removed.
func (u *User) Confirmed() bool {
	return u.EmailAddress != nil && *u.EmailAddress != ""
}

// SetAccountAsDeleted scrubs personal data and flags the account as deleted.
// The username is kept so it cannot be claimed again.
func (u *User) SetAccountAsDeleted() {
	u.EmailAddress = nil
	u.UnconfirmedEmailAddress = nil
	u.EmailAllowed = false
	u.NotifyPackagePushed = false
	u.IsDeleted = true
}

// AccountKind returns "organization" or "user", used for logs and metric labels
func (u *User) AccountKind() string {
	if u.IsOrganization {
		return "organization"
	}
	return "user"
}
