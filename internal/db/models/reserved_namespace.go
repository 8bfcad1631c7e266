// Package models - reserved_namespace.go defines reserved package id prefixes and their owners.
package models

import "strings"

// ReservedNamespace is a package id (or prefix) reserved for its owners
type ReservedNamespace struct {
	ID                string `db:"id" json:"id"`
	Value             string `db:"value" json:"value"`
	IsSharedNamespace bool   `db:"is_shared_namespace" json:"is_shared_namespace"`
	IsPrefix          bool   `db:"is_prefix" json:"is_prefix"`
}

// Matches reports whether a package id falls inside the namespace (case-insensitive)
func (n *ReservedNamespace) Matches(packageID string) bool {
	if n.IsPrefix {
		return strings.HasPrefix(strings.ToLower(packageID), strings.ToLower(n.Value))
	}
	return strings.EqualFold(packageID, n.Value)
}
