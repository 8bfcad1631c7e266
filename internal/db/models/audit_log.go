// Package models - audit_log.go defines the AuditLog model for recording security-relevant
// events, capturing actor, action, affected resource, client IP, and arbitrary metadata.
package models

import "time"

// AuditLog represents an audit log entry for tracking account actions
type AuditLog struct {
	ID           string                 `json:"id"`
	UserID       *string                `json:"user_id,omitempty"`       // Nullable for system actions
	Action       string                 `json:"action"`                  // "account.delete", "account.delete_request"
	ResourceType *string                `json:"resource_type,omitempty"` // "user", "organization"
	ResourceID   *string                `json:"resource_id,omitempty"`   // Username or ID of affected resource
	Metadata     map[string]interface{} `json:"metadata,omitempty"`      // JSONB: additional context
	IPAddress    *string                `json:"ip_address,omitempty"`    // Client IP
	CreatedAt    time.Time              `json:"created_at"`
}
