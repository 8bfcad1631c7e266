// record.go defines the audit records emitted by the account services.
package audit

// ActionStatus is the outcome recorded on an audit record
type ActionStatus string

const (
	StatusSuccess ActionStatus = "Success"
	StatusFailure ActionStatus = "Failure"
)

// Audit actions
const (
	ActionDeleteAccount          = "account.delete"
	ActionRequestAccountDeletion = "account.delete_request"
)

// AuditRecord is anything that can be written to the audit log
type AuditRecord interface {
	Action() string
	ResourceType() string
	ResourceID() string
	Actor() string
	Metadata() map[string]interface{}
}

// DeleteAccountAuditRecord records one account deletion attempt
type DeleteAccountAuditRecord struct {
	Username      string
	AdminUsername string
	Status        ActionStatus
	// IsOrganization selects the "organization" resource type
	IsOrganization bool
}

func (r *DeleteAccountAuditRecord) Action() string { return ActionDeleteAccount }

func (r *DeleteAccountAuditRecord) ResourceType() string {
	if r.IsOrganization {
		return "organization"
	}
	return "user"
}

func (r *DeleteAccountAuditRecord) ResourceID() string { return r.Username }

func (r *DeleteAccountAuditRecord) Actor() string { return r.AdminUsername }

func (r *DeleteAccountAuditRecord) Metadata() map[string]interface{} {
	return map[string]interface{}{
		"username":       r.Username,
		"admin_username": r.AdminUsername,
		"status":         string(r.Status),
	}
}

// AccountDeletionRequestAuditRecord records a user asking for their own account to be deleted
type AccountDeletionRequestAuditRecord struct {
	Username string
	IssueID  string
}

func (r *AccountDeletionRequestAuditRecord) Action() string { return ActionRequestAccountDeletion }

func (r *AccountDeletionRequestAuditRecord) ResourceType() string { return "user" }

func (r *AccountDeletionRequestAuditRecord) ResourceID() string { return r.Username }

func (r *AccountDeletionRequestAuditRecord) Actor() string { return r.Username }

func (r *AccountDeletionRequestAuditRecord) Metadata() map[string]interface{} {
	return map[string]interface{}{
		"username": r.Username,
		"issue_id": r.IssueID,
	}
}
