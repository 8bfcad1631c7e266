// Package models - security_policy.go defines per-user security policies grouped by subscription.
package models

// UserSecurityPolicy is a policy a user is enrolled in through a named subscription
type UserSecurityPolicy struct {
	ID           string  `db:"id" json:"id"`
	UserID       string  `db:"user_id" json:"user_id"`
	Name         string  `db:"name" json:"name"`
	Subscription string  `db:"subscription" json:"subscription"`
	Value        *string `db:"value" json:"value,omitempty"`
}
