// Package auth - scopes.go defines the permission scopes of the gallery API and the HasScope,
// HasAnyScope and HasAllScopes helpers used by the scope middleware.
package auth

import (
	"fmt"
)

// Scope represents a permission/scope type
type Scope string

const (
	// Package scopes
	ScopePackagesRead   Scope = "packages:read"
	ScopePackagesPush   Scope = "packages:push"
	ScopePackagesUnlist Scope = "packages:unlist"

	// Account management scopes
	ScopeUsersRead  Scope = "users:read"
	ScopeUsersWrite Scope = "users:write" // includes deleting accounts

	// Organization management scopes
	ScopeOrganizationsRead  Scope = "organizations:read"
	ScopeOrganizationsWrite Scope = "organizations:write"

	// Support queue (account deletion requests land here)
	ScopeSupportManage Scope = "support:manage"

	ScopeAPIKeysManage Scope = "api_keys:manage"
	ScopeAuditRead     Scope = "audit:read"

	// Admin scope (wildcard - all permissions)
	ScopeAdmin Scope = "admin"
)

// implied maps a scope to the lesser scope it grants
var implied = map[Scope]Scope{
	ScopeUsersWrite:         ScopeUsersRead,
	ScopeOrganizationsWrite: ScopeOrganizationsRead,
	ScopePackagesPush:       ScopePackagesRead,
	ScopePackagesUnlist:     ScopePackagesRead,
}

// AllScopes returns all valid scopes
func AllScopes() []Scope {
	return []Scope{
		ScopePackagesRead,
		ScopePackagesPush,
		ScopePackagesUnlist,
		ScopeUsersRead,
		ScopeUsersWrite,
		ScopeOrganizationsRead,
		ScopeOrganizationsWrite,
		ScopeSupportManage,
		ScopeAPIKeysManage,
		ScopeAuditRead,
		ScopeAdmin,
	}
}

// ValidateScopes checks if all provided scopes are valid
func ValidateScopes(scopes []string) error {
	valid := make(map[string]bool)
	for _, scope := range AllScopes() {
		valid[string(scope)] = true
	}
	for _, scope := range scopes {
		if !valid[scope] {
			return fmt.Errorf("invalid scope: %s", scope)
		}
	}
	return nil
}

// HasScope checks if a user has a required scope.
// admin grants everything; write-type scopes grant their read counterpart.
func HasScope(userScopes []string, required Scope) bool {
	for _, scope := range userScopes {
		s := Scope(scope)
		if s == required || s == ScopeAdmin {
			return true
		}
		if lesser, ok := implied[s]; ok && lesser == required {
			return true
		}
	}
	return false
}

// HasAnyScope checks if a user has at least one of the required scopes
func HasAnyScope(userScopes []string, requiredScopes []Scope) bool {
	for _, required := range requiredScopes {
		if HasScope(userScopes, required) {
			return true
		}
	}
	return false
}

// HasAllScopes checks if a user has all of the required scopes
func HasAllScopes(userScopes []string, requiredScopes []Scope) bool {
	for _, required := range requiredScopes {
		if !HasScope(userScopes, required) {
			return false
		}
	}
	return true
}

// GetDefaultScopes returns the scopes of a regular signed-in user
func GetDefaultScopes() []string {
	return []string{
		string(ScopePackagesRead),
		string(ScopePackagesPush),
	}
}
