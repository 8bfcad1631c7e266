// Package models - organization.go defines organization memberships. Pending membership
// and migration requests are only ever deleted, by account id, so they have no model.
package models

import "time"

// Membership links a member account to an organization
type Membership struct {
	OrganizationID string    `db:"organization_id" json:"organization_id"`
	MemberID       string    `db:"member_id" json:"member_id"`
	IsAdmin        bool      `db:"is_admin" json:"is_admin"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	// Joined fields (not stored in memberships table)
	OrganizationName string `db:"organization_name" json:"organization_name,omitempty"`
	MemberName       string `db:"member_name" json:"member_name,omitempty"`
}
