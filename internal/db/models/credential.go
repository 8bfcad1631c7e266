// Package models - credential.go defines authentication credentials (passwords, API keys)
// and the scopes that restrict what an API key may act on.
package models

import "time"

// Credential types
const (
	CredentialTypePassword = "password.v3"
	CredentialTypeAPIKey   = "apikey.v4"
)

// Credential is a secret bound to a user account
type Credential struct {
	ID          string     `db:"id" json:"id"`
	UserID      string     `db:"user_id" json:"user_id"`
	Type        string     `db:"type" json:"type"`
	Value       string     `db:"value" json:"-"` // bcrypt hash for API keys
	KeyPrefix   *string    `db:"key_prefix" json:"key_prefix,omitempty"`
	Description *string    `db:"description" json:"description,omitempty"`
	Expires     *time.Time `db:"expires" json:"expires,omitempty"`
	LastUsed    *time.Time `db:"last_used" json:"last_used,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	Scopes      []*Scope   `db:"-" json:"scopes,omitempty"`
}

// IsAPIKey reports whether the credential is an API key
func (c *Credential) IsAPIKey() bool {
	return c.Type == CredentialTypeAPIKey
}

// Scope restricts an API key to a subject (package id glob) and action, on behalf of an owner.
// OwnerID may point at an organization the key's user belongs to.
type Scope struct {
	ID            string  `db:"id" json:"id"`
	CredentialID  string  `db:"credential_id" json:"credential_id"`
	OwnerID       *string `db:"owner_id" json:"owner_id,omitempty"`
	Subject       string  `db:"subject" json:"subject"`
	AllowedAction string  `db:"allowed_action" json:"allowed_action"`
}

// ScopeWithCredential is a scope joined with the credential it belongs to
type ScopeWithCredential struct {
	Scope
	CredentialUserID string `db:"credential_user_id"`
	CredentialType   string `db:"credential_type"`
}
