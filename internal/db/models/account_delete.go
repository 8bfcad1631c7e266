// Package models - account_delete.go defines the record written when a confirmed account is deleted.
package models

import "time"

// AccountDelete records who deleted an account and when.
// Signature holds the deleter's username at the time of deletion; DeletedByID becomes nil
// when the deleter's own row is removed later.
type AccountDelete struct {
	ID               string    `db:"id" json:"id"`
	DeletedAccountID string    `db:"deleted_account_id" json:"deleted_account_id"`
	DeletedByID      *string   `db:"deleted_by_id" json:"deleted_by_id"`
	DeletedOn        time.Time `db:"deleted_on" json:"deleted_on"`
	Signature        string    `db:"signature" json:"signature"`
}
