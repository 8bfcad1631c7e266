// Package models - package.go defines package registrations (the package id and its owners),
// the individual package versions, and pending ownership requests.
package models

import "time"

// PackageRegistration is a package id and the set of accounts that own it
type PackageRegistration struct {
	ID            string `db:"id" json:"id"`
	PackageID     string `db:"package_id" json:"package_id"`
	IsVerified    bool   `db:"is_verified" json:"is_verified"`
	DownloadCount int64  `db:"download_count" json:"download_count"`
	// Loaded from package_registration_owners
	Owners []*User `db:"-" json:"owners,omitempty"`
}

// HasOwner reports whether userID is among the loaded owners
func (r *PackageRegistration) HasOwner(userID string) bool {
	for _, o := range r.Owners {
		if o.ID == userID {
			return true
		}
	}
	return false
}

// WillBeOrphanedIfOwnerRemoved reports whether removing userID leaves the registration ownerless
func (r *PackageRegistration) WillBeOrphanedIfOwnerRemoved(userID string) bool {
	for _, o := range r.Owners {
		if o.ID != userID {
			return false
		}
	}
	return true
}

// Package is a single published version of a package registration
type Package struct {
	ID                    string     `db:"id" json:"id"`
	PackageRegistrationID string     `db:"package_registration_id" json:"package_registration_id"`
	Version               string     `db:"version" json:"version"`
	NormalizedVersion     string     `db:"normalized_version" json:"normalized_version"`
	Listed                bool       `db:"listed" json:"listed"`
	Description           *string    `db:"description" json:"description,omitempty"`
	LastEdited            *time.Time `db:"last_edited" json:"last_edited,omitempty"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
	// Joined fields (not stored in packages table)
	PackageID           string               `db:"package_id" json:"package_id,omitempty"`
	PackageRegistration *PackageRegistration `db:"-" json:"-"`
}

// PackageOwnerRequest is a pending invitation for NewOwnerID to co-own a registration
type PackageOwnerRequest struct {
	ID                    string    `db:"id" json:"id"`
	PackageRegistrationID string    `db:"package_registration_id" json:"package_registration_id"`
	RequestingOwnerID     string    `db:"requesting_owner_id" json:"requesting_owner_id"`
	NewOwnerID            string    `db:"new_owner_id" json:"new_owner_id"`
	ConfirmationCode      string    `db:"confirmation_code" json:"-"`
	RequestedAt           time.Time `db:"requested_at" json:"requested_at"`
	// Joined fields
	PackageID string `db:"package_id" json:"package_id,omitempty"`
}
