// Package models - support_issue.go defines support tickets and their status history.
package models

import "time"

// Issue status keys
const (
	IssueStatusNew        = 1
	IssueStatusWorking    = 2
	IssueStatusWaiting    = 3
	IssueStatusResolved   = 4
	IssueStatusBlocked    = 5
	AccountDeleteIssueTag = "Account deletion request"
)

// SupportIssue is a support ticket filed by a user or on their behalf
type SupportIssue struct {
	ID            string    `db:"id" json:"id"`
	CreatedBy     string    `db:"created_by" json:"created_by"`
	IssueTitle    string    `db:"issue_title" json:"issue_title"`
	Details       string    `db:"details" json:"details"`
	OwnerEmail    *string   `db:"owner_email" json:"owner_email,omitempty"`
	PackageID     *string   `db:"package_id" json:"package_id,omitempty"`
	IssueStatusID int       `db:"issue_status_id" json:"issue_status_id"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	// Loaded from support_history
	History []*SupportHistory `db:"-" json:"history,omitempty"`
}

// SupportHistory is one status change or comment on an issue
type SupportHistory struct {
	ID            string    `db:"id" json:"id"`
	IssueID       string    `db:"issue_id" json:"issue_id"`
	EditedBy      string    `db:"edited_by" json:"edited_by"`
	IssueStatusID int       `db:"issue_status_id" json:"issue_status_id"`
	Comments      *string   `db:"comments" json:"comments,omitempty"`
	EntryDate     time.Time `db:"entry_date" json:"entry_date"`
}
