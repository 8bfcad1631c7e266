package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/package-gallery/gallery/internal/audit"
	"github.com/package-gallery/gallery/internal/db/models"
	"github.com/package-gallery/gallery/internal/db/repositories"
	"github.com/package-gallery/gallery/internal/telemetry"
)

var (
	// ErrUserToBeDeletedRequired is returned when no account to delete is given
	ErrUserToBeDeletedRequired = errors.New("user to be deleted is required")
	// ErrUserToExecuteDeleteRequired is returned when no deleting admin is given
	ErrUserToExecuteDeleteRequired = errors.New("user to execute the delete is required")
)

// OrphanPackagePolicy decides what happens to registrations left without owners
type OrphanPackagePolicy int

const (
	// DoNotAllowOrphans refuses the deletion when any registration would lose its last owner
	DoNotAllowOrphans OrphanPackagePolicy = iota
	// UnlistOrphans deletes the account and unlists every version of the orphaned registrations
	UnlistOrphans
	// KeepOrphans deletes the account and leaves orphaned registrations listed
	KeepOrphans
)

// ParseOrphanPackagePolicy parses "deny", "unlist" or "keep"
func ParseOrphanPackagePolicy(s string) (OrphanPackagePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "deny":
		return DoNotAllowOrphans, nil
	case "unlist":
		return UnlistOrphans, nil
	case "keep":
		return KeepOrphans, nil
	default:
		return DoNotAllowOrphans, fmt.Errorf("unknown orphan package policy %q (want deny, unlist or keep)", s)
	}
}

func (p OrphanPackagePolicy) String() string {
	switch p {
	case UnlistOrphans:
		return "unlist"
	case KeepOrphans:
		return "keep"
	default:
		return "deny"
	}
}

// DeleteAccountStatus is the outcome of a deletion attempt
type DeleteAccountStatus struct {
	Success     bool   `json:"success"`
	Description string `json:"description"`
	AccountName string `json:"account_name"`
}

// UserRepository persists accounts
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
}

// OrganizationRepository persists memberships and membership-related requests
type OrganizationRepository interface {
	ListMembershipsOfUser(ctx context.Context, memberID string) ([]*models.Membership, error)
	ListMembers(ctx context.Context, orgID string) ([]*models.Membership, error)
	RemoveMember(ctx context.Context, orgID, memberID string) error
	RemoveAllMembers(ctx context.Context, orgID string) error
	PromoteAllMembersToAdmin(ctx context.Context, orgID string) error
	DeleteMembershipRequestsForUser(ctx context.Context, userID string) error
	DeleteMembershipRequestsOfOrganization(ctx context.Context, orgID string) error
	DeleteMigrationRequests(ctx context.Context, userID string) error
}

// AccountDeleteRepository persists AccountDelete records
type AccountDeleteRepository interface {
	Create(ctx context.Context, rec *models.AccountDelete) error
}

// ScopeRepository reads API key scopes
type ScopeRepository interface {
	ListByOwner(ctx context.Context, ownerID string) ([]*models.ScopeWithCredential, error)
}

// Transactor runs fn inside a database transaction
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// PackageService reads registrations and unlists packages
type PackageService interface {
	FindPackageRegistrationsByOwner(ctx context.Context, user *models.User) ([]*models.PackageRegistration, error)
	FindPackagesByAnyMatchingOwner(ctx context.Context, user *models.User, includeUnlisted bool) ([]*models.Package, error)
	MarkPackageUnlisted(ctx context.Context, pkg *models.Package) error
}

// PackageOwnershipService changes registration owners and ownership requests
type PackageOwnershipService interface {
	RemovePackageOwner(ctx context.Context, reg *models.PackageRegistration, requestingOwner, ownerToBeRemoved *models.User) error
	GetPackageOwnershipRequests(ctx context.Context, filter repositories.OwnershipRequestFilter) ([]*models.PackageOwnerRequest, error)
	DeletePackageOwnershipRequest(ctx context.Context, reg *models.PackageRegistration, newOwner *models.User) error
}

// ReservedNamespaceService manages reserved namespace owners
type ReservedNamespaceService interface {
	ListNamespacesOwnedBy(ctx context.Context, user *models.User) ([]*models.ReservedNamespace, error)
	DeleteOwnerFromReservedNamespace(ctx context.Context, prefix, username string) error
}

// SecurityPolicyService manages security policy subscriptions
type SecurityPolicyService interface {
	GetPolicies(ctx context.Context, user *models.User) ([]*models.UserSecurityPolicy, error)
	Unsubscribe(ctx context.Context, user *models.User, subscription string) error
}

// AuthenticationService manages credentials
type AuthenticationService interface {
	GetCredentials(ctx context.Context, user *models.User) ([]*models.Credential, error)
	RemoveCredential(ctx context.Context, user *models.User, cred *models.Credential) error
}

// SupportRequestService manages support tickets
type SupportRequestService interface {
	DeleteSupportRequests(ctx context.Context, username string) error
}

// AuditingService writes audit records
type AuditingService interface {
	SaveAuditRecord(ctx context.Context, record audit.AuditRecord) error
}

// TelemetryService reports deletion outcomes
type TelemetryService interface {
	TrackAccountDeletionCompleted(deleted, deletedBy *models.User, success bool)
}

// DeleteAccountDeps holds the collaborators of DeleteAccountService
type DeleteAccountDeps struct {
	Users              UserRepository
	Organizations      OrganizationRepository
	AccountDeletes     AccountDeleteRepository
	Scopes             ScopeRepository
	Transactor         Transactor
	Packages           PackageService
	PackageOwnership   PackageOwnershipService
	ReservedNamespaces ReservedNamespaceService
	SecurityPolicies   SecurityPolicyService
	Authentication     AuthenticationService
	SupportRequests    SupportRequestService
	Auditing           AuditingService
	Telemetry          TelemetryService
}

// DeleteAccountService removes a user or organization account from every subsystem that
// references it
type DeleteAccountService struct {
	deps DeleteAccountDeps
	now  func() time.Time
}

// NewDeleteAccountService creates a new account deletion service
func NewDeleteAccountService(deps DeleteAccountDeps) *DeleteAccountService {
	return &DeleteAccountService{deps: deps, now: time.Now}
}

// DeleteAccount deletes userToBeDeleted on behalf of userToExecuteTheDelete. Expected business
// outcomes (already deleted, orphaned packages, collaborator failures) are reported through
// the returned status; only missing arguments produce an error.
func (s *DeleteAccountService) DeleteAccount(ctx context.Context, userToBeDeleted, userToExecuteTheDelete *models.User, commitAsTransaction bool, orphanPackagePolicy OrphanPackagePolicy) (*DeleteAccountStatus, error) {
	if userToBeDeleted == nil {
		return nil, ErrUserToBeDeletedRequired
	}
	if userToExecuteTheDelete == nil {
		return nil, ErrUserToExecuteDeleteRequired
	}

	status := &DeleteAccountStatus{AccountName: userToBeDeleted.Username}

	if userToBeDeleted.IsDeleted {
		status.Description = fmt.Sprintf("The account:%s was already deleted. No action was performed.", userToBeDeleted.Username)
		return status, nil
	}

	start := s.now()
	snapshot := *userToBeDeleted

	var err error
	if orphanPackagePolicy == DoNotAllowOrphans {
		var orphaned bool
		orphaned, err = s.willOrphanPackages(ctx, userToBeDeleted)
		if err == nil && orphaned {
			status.Description = fmt.Sprintf("The account:%s has packages that would be orphaned by the deletion. No action was performed.", userToBeDeleted.Username)
			s.complete(ctx, userToBeDeleted, userToExecuteTheDelete, false, start)
			return status, nil
		}
	}

	if err == nil {
		if commitAsTransaction {
			err = s.deps.Transactor.WithinTransaction(ctx, func(ctx context.Context) error {
				return s.deleteAccount(ctx, userToBeDeleted, userToExecuteTheDelete, orphanPackagePolicy)
			})
		} else {
			err = s.deleteAccount(ctx, userToBeDeleted, userToExecuteTheDelete, orphanPackagePolicy)
		}
	}

	if err != nil {
		*userToBeDeleted = snapshot
		status.Description = fmt.Sprintf("The account:%s was not deleted. The exception: %v", userToBeDeleted.Username, err)
		slog.Error("account deletion failed",
			"account", userToBeDeleted.Username,
			"deleted_by", userToExecuteTheDelete.Username,
			"transactional", commitAsTransaction,
			"error", err,
		)
		s.complete(ctx, userToBeDeleted, userToExecuteTheDelete, false, start)
		return status, nil
	}

	status.Success = true
	status.Description = fmt.Sprintf("The account:%s was deleted successfully.", userToBeDeleted.Username)
	slog.Info("account deleted",
		"account", userToBeDeleted.Username,
		"kind", userToBeDeleted.AccountKind(),
		"deleted_by", userToExecuteTheDelete.Username,
		"orphan_policy", orphanPackagePolicy.String(),
	)
	s.complete(ctx, userToBeDeleted, userToExecuteTheDelete, true, start)
	return status, nil
}

// complete writes the audit record and reports telemetry. It runs after the transaction has
// ended so a failure record is kept when the deletion rolls back.
func (s *DeleteAccountService) complete(ctx context.Context, deleted, deletedBy *models.User, success bool, start time.Time) {
	rec := &audit.DeleteAccountAuditRecord{
		Username:       deleted.Username,
		AdminUsername:  deletedBy.Username,
		Status:         audit.StatusFailure,
		IsOrganization: deleted.IsOrganization,
	}
	if success {
		rec.Status = audit.StatusSuccess
	}
	if err := s.deps.Auditing.SaveAuditRecord(ctx, rec); err != nil {
		slog.Error("failed to save account deletion audit record", "account", deleted.Username, "error", err)
	}

	s.deps.Telemetry.TrackAccountDeletionCompleted(deleted, deletedBy, success)
	telemetry.AccountDeletionDuration.Observe(s.now().Sub(start).Seconds())
}

func (s *DeleteAccountService) willOrphanPackages(ctx context.Context, user *models.User) (bool, error) {
	regs, err := s.deps.Packages.FindPackageRegistrationsByOwner(ctx, user)
	if err != nil {
		return false, err
	}
	for _, reg := range regs {
		if reg.WillBeOrphanedIfOwnerRemoved(user.ID) {
			return true, nil
		}
	}
	return false, nil
}

// deleteAccount runs every cleanup step for user. Organizations left without members are
// deleted through it recursively, sharing ctx (and so the transaction).
// Reserved namespaces go first: releasing one unverifies the registrations the account still
// owns inside it.
func (s *DeleteAccountService) deleteAccount(ctx context.Context, user, admin *models.User, policy OrphanPackagePolicy) error {
	if err := s.removeReservedNamespaces(ctx, user); err != nil {
		return err
	}
	if err := s.removeOwnership(ctx, user, admin, policy); err != nil {
		return err
	}
	if err := s.removeMemberships(ctx, user, admin, policy); err != nil {
		return err
	}
	if user.IsOrganization {
		if err := s.removeMembers(ctx, user); err != nil {
			return err
		}
	}
	if err := s.removeSecurityPolicies(ctx, user); err != nil {
		return err
	}
	if err := s.removeOwnershipRequests(ctx, user); err != nil {
		return err
	}
	if err := s.removeCredentials(ctx, user); err != nil {
		return err
	}
	if err := s.removeAccountRow(ctx, user, admin); err != nil {
		return err
	}
	return s.deps.SupportRequests.DeleteSupportRequests(ctx, user.Username)
}

func (s *DeleteAccountService) removeOwnership(ctx context.Context, user, admin *models.User, policy OrphanPackagePolicy) error {
	regs, err := s.deps.Packages.FindPackageRegistrationsByOwner(ctx, user)
	if err != nil {
		return err
	}

	// versions are loaded before any owner is removed; afterwards they are no longer reachable
	byRegistration := make(map[string][]*models.Package)
	if policy == UnlistOrphans {
		packages, err := s.deps.Packages.FindPackagesByAnyMatchingOwner(ctx, user, true)
		if err != nil {
			return err
		}
		for _, p := range packages {
			byRegistration[p.PackageRegistrationID] = append(byRegistration[p.PackageRegistrationID], p)
		}
	}

	for _, reg := range regs {
		if err := s.deps.PackageOwnership.RemovePackageOwner(ctx, reg, admin, user); err != nil {
			return err
		}
		if len(reg.Owners) > 0 || policy != UnlistOrphans {
			continue
		}
		for _, p := range byRegistration[reg.ID] {
			if !p.Listed {
				continue
			}
			if err := s.deps.Packages.MarkPackageUnlisted(ctx, p); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *DeleteAccountService) removeMemberships(ctx context.Context, user, admin *models.User, policy OrphanPackagePolicy) error {
	memberships, err := s.deps.Organizations.ListMembershipsOfUser(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("failed to list memberships of %s: %w", user.Username, err)
	}

	for _, m := range memberships {
		members, err := s.deps.Organizations.ListMembers(ctx, m.OrganizationID)
		if err != nil {
			return fmt.Errorf("failed to list members of %s: %w", m.OrganizationName, err)
		}
		others := make([]*models.Membership, 0, len(members))
		for _, member := range members {
			if member.MemberID != user.ID {
				others = append(others, member)
			}
		}

		if err := s.deps.Organizations.RemoveMember(ctx, m.OrganizationID, user.ID); err != nil {
			return fmt.Errorf("failed to remove %s from %s: %w", user.Username, m.OrganizationName, err)
		}

		if len(others) == 0 {
			org, err := s.deps.Users.GetByID(ctx, m.OrganizationID)
			if err != nil {
				return fmt.Errorf("failed to get organization %s: %w", m.OrganizationName, err)
			}
			if org == nil || org.IsDeleted {
				continue
			}
			if err := s.deleteAccount(ctx, org, admin, policy); err != nil {
				return err
			}
			continue
		}

		if !hasAdmin(others) {
			if err := s.deps.Organizations.PromoteAllMembersToAdmin(ctx, m.OrganizationID); err != nil {
				return fmt.Errorf("failed to promote members of %s: %w", m.OrganizationName, err)
			}
		}
	}

	if err := s.deps.Organizations.DeleteMembershipRequestsForUser(ctx, user.ID); err != nil {
		return fmt.Errorf("failed to delete membership requests of %s: %w", user.Username, err)
	}
	if err := s.deps.Organizations.DeleteMigrationRequests(ctx, user.ID); err != nil {
		return fmt.Errorf("failed to delete migration requests of %s: %w", user.Username, err)
	}
	return nil
}

func (s *DeleteAccountService) removeMembers(ctx context.Context, org *models.User) error {
	if err := s.deps.Organizations.RemoveAllMembers(ctx, org.ID); err != nil {
		return fmt.Errorf("failed to remove members of %s: %w", org.Username, err)
	}
	if err := s.deps.Organizations.DeleteMembershipRequestsOfOrganization(ctx, org.ID); err != nil {
		return fmt.Errorf("failed to delete membership requests to %s: %w", org.Username, err)
	}
	return nil
}

func (s *DeleteAccountService) removeSecurityPolicies(ctx context.Context, user *models.User) error {
	policies, err := s.deps.SecurityPolicies.GetPolicies(ctx, user)
	if err != nil {
		return err
	}
	seen := make(map[string]bool)
	for _, p := range policies {
		if seen[p.Subscription] {
			continue
		}
		seen[p.Subscription] = true
		if err := s.deps.SecurityPolicies.Unsubscribe(ctx, user, p.Subscription); err != nil {
			return err
		}
	}
	return nil
}

func (s *DeleteAccountService) removeReservedNamespaces(ctx context.Context, user *models.User) error {
	namespaces, err := s.deps.ReservedNamespaces.ListNamespacesOwnedBy(ctx, user)
	if err != nil {
		return err
	}
	for _, ns := range namespaces {
		if err := s.deps.ReservedNamespaces.DeleteOwnerFromReservedNamespace(ctx, ns.Value, user.Username); err != nil {
			return err
		}
	}
	return nil
}

func (s *DeleteAccountService) removeOwnershipRequests(ctx context.Context, user *models.User) error {
	requests, err := s.deps.PackageOwnership.GetPackageOwnershipRequests(ctx, repositories.OwnershipRequestFilter{NewOwnerID: &user.ID})
	if err != nil {
		return err
	}
	for _, req := range requests {
		reg := &models.PackageRegistration{ID: req.PackageRegistrationID, PackageID: req.PackageID}
		if err := s.deps.PackageOwnership.DeletePackageOwnershipRequest(ctx, reg, user); err != nil {
			return err
		}
	}
	return nil
}

// removeCredentials removes the account's own credentials, then every credential of another
// account that holds a scope on behalf of it.
func (s *DeleteAccountService) removeCredentials(ctx context.Context, user *models.User) error {
	creds, err := s.deps.Authentication.GetCredentials(ctx, user)
	if err != nil {
		return err
	}
	removed := make(map[string]bool, len(creds))
	for _, c := range creds {
		if err := s.deps.Authentication.RemoveCredential(ctx, user, c); err != nil {
			return err
		}
		removed[c.ID] = true
	}

	scopes, err := s.deps.Scopes.ListByOwner(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("failed to list scopes owned by %s: %w", user.Username, err)
	}
	for _, sc := range scopes {
		if removed[sc.CredentialID] {
			continue
		}
		removed[sc.CredentialID] = true

		owner, err := s.deps.Users.GetByID(ctx, sc.CredentialUserID)
		if err != nil {
			return fmt.Errorf("failed to get owner of credential %s: %w", sc.CredentialID, err)
		}
		if owner == nil {
			return fmt.Errorf("owner of credential %s not found", sc.CredentialID)
		}
		cred := &models.Credential{ID: sc.CredentialID, UserID: sc.CredentialUserID, Type: sc.CredentialType}
		if err := s.deps.Authentication.RemoveCredential(ctx, owner, cred); err != nil {
			return err
		}
	}
	return nil
}

func (s *DeleteAccountService) removeAccountRow(ctx context.Context, user, admin *models.User) error {
	if !user.Confirmed() {
		if err := s.deps.Users.Delete(ctx, user.ID); err != nil {
			return fmt.Errorf("failed to delete account %s: %w", user.Username, err)
		}
		return nil
	}

	adminID := admin.ID
	user.SetAccountAsDeleted()
	if err := s.deps.Users.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to update account %s: %w", user.Username, err)
	}
	rec := &models.AccountDelete{
		DeletedAccountID: user.ID,
		DeletedByID:      &adminID,
		DeletedOn:        s.now(),
		Signature:        admin.Username,
	}
	if err := s.deps.AccountDeletes.Create(ctx, rec); err != nil {
		return fmt.Errorf("failed to record deletion of %s: %w", user.Username, err)
	}
	return nil
}

func hasAdmin(members []*models.Membership) bool {
	for _, m := range members {
		if m.IsAdmin {
			return true
		}
	}
	return false
}
