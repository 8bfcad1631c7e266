package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/package-gallery/gallery/internal/audit"
	"github.com/package-gallery/gallery/internal/db/models"
	"github.com/package-gallery/gallery/internal/db/repositories"
)

// ---------------------------------------------------------------------------
// fakeGallery implements every collaborator of DeleteAccountService over
// in-memory state and records the calls it receives.
// ---------------------------------------------------------------------------

type fakeGallery struct {
	failOn string

	users       map[string]*models.User
	memberships   []*models.Membership
	registrations []*models.PackageRegistration
	packages      []*models.Package
	policies    map[string][]*models.UserSecurityPolicy
	namespaces  map[string][]*models.ReservedNamespace
	ownerReqs   []*models.PackageOwnerRequest
	credentials map[string][]*models.Credential
	scopes      map[string][]*models.ScopeWithCredential

	txCalls            int
	rolledBack         bool
	removedOwners      []string
	unlisted           []string
	removedMembers     []string
	promoted           []string
	orgMembersRemoved  []string
	orgRequestsDeleted []string
	memberReqsDeleted  []string
	migrationsDeleted  []string
	unsubscribed       []string
	namespaceRemovals  []string
	ownerReqsDeleted   []string
	removedCredentials []string
	updatedUsers       []string
	deletedUsers       []string
	accountDeletes     []*models.AccountDelete
	supportDeleted     []string
	auditRecords       []audit.AuditRecord
	tracked            []bool
}

func newFakeGallery() *fakeGallery {
	return &fakeGallery{
		users:       make(map[string]*models.User),
		policies:    make(map[string][]*models.UserSecurityPolicy),
		namespaces:  make(map[string][]*models.ReservedNamespace),
		credentials: make(map[string][]*models.Credential),
		scopes:      make(map[string][]*models.ScopeWithCredential),
	}
}

func (f *fakeGallery) fail(op string) error {
	if f.failOn == op {
		return errors.New(op + " failed")
	}
	return nil
}

func (f *fakeGallery) service() *DeleteAccountService {
	svc := NewDeleteAccountService(DeleteAccountDeps{
		Users:              f,
		Organizations:      f,
		AccountDeletes:     f,
		Scopes:             f,
		Transactor:         f,
		Packages:           f,
		PackageOwnership:   f,
		ReservedNamespaces: f,
		SecurityPolicies:   f,
		Authentication:     f,
		SupportRequests:    f,
		Auditing:           f,
		Telemetry:          f,
	})
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

// UserRepository

func (f *fakeGallery) GetByID(_ context.Context, id string) (*models.User, error) {
	if err := f.fail("GetByID"); err != nil {
		return nil, err
	}
	return f.users[id], nil
}

func (f *fakeGallery) Update(_ context.Context, user *models.User) error {
	if err := f.fail("Update"); err != nil {
		return err
	}
	f.updatedUsers = append(f.updatedUsers, user.Username)
	return nil
}

func (f *fakeGallery) Delete(_ context.Context, id string) error {
	if err := f.fail("Delete"); err != nil {
		return err
	}
	f.deletedUsers = append(f.deletedUsers, id)
	return nil
}

// OrganizationRepository

func (f *fakeGallery) ListMembershipsOfUser(_ context.Context, memberID string) ([]*models.Membership, error) {
	if err := f.fail("ListMembershipsOfUser"); err != nil {
		return nil, err
	}
	out := make([]*models.Membership, 0)
	for _, m := range f.memberships {
		if m.MemberID == memberID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeGallery) ListMembers(_ context.Context, orgID string) ([]*models.Membership, error) {
	out := make([]*models.Membership, 0)
	for _, m := range f.memberships {
		if m.OrganizationID == orgID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeGallery) RemoveMember(_ context.Context, orgID, memberID string) error {
	if err := f.fail("RemoveMember"); err != nil {
		return err
	}
	kept := make([]*models.Membership, 0, len(f.memberships))
	for _, m := range f.memberships {
		if m.OrganizationID == orgID && m.MemberID == memberID {
			continue
		}
		kept = append(kept, m)
	}
	f.memberships = kept
	f.removedMembers = append(f.removedMembers, orgID+":"+memberID)
	return nil
}

func (f *fakeGallery) RemoveAllMembers(_ context.Context, orgID string) error {
	f.orgMembersRemoved = append(f.orgMembersRemoved, orgID)
	return nil
}

func (f *fakeGallery) PromoteAllMembersToAdmin(_ context.Context, orgID string) error {
	f.promoted = append(f.promoted, orgID)
	return nil
}

func (f *fakeGallery) DeleteMembershipRequestsForUser(_ context.Context, userID string) error {
	f.memberReqsDeleted = append(f.memberReqsDeleted, userID)
	return nil
}

func (f *fakeGallery) DeleteMembershipRequestsOfOrganization(_ context.Context, orgID string) error {
	f.orgRequestsDeleted = append(f.orgRequestsDeleted, orgID)
	return nil
}

func (f *fakeGallery) DeleteMigrationRequests(_ context.Context, userID string) error {
	f.migrationsDeleted = append(f.migrationsDeleted, userID)
	return nil
}

// AccountDeleteRepository

func (f *fakeGallery) Create(_ context.Context, rec *models.AccountDelete) error {
	if err := f.fail("CreateAccountDelete"); err != nil {
		return err
	}
	f.accountDeletes = append(f.accountDeletes, rec)
	return nil
}

// ScopeRepository

func (f *fakeGallery) ListByOwner(_ context.Context, ownerID string) ([]*models.ScopeWithCredential, error) {
	return f.scopes[ownerID], nil
}

// Transactor

func (f *fakeGallery) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	f.txCalls++
	err := fn(ctx)
	if err != nil {
		f.rolledBack = true
	}
	return err
}

// PackageService

func (f *fakeGallery) FindPackageRegistrationsByOwner(_ context.Context, user *models.User) ([]*models.PackageRegistration, error) {
	if err := f.fail("FindPackageRegistrationsByOwner"); err != nil {
		return nil, err
	}
	out := make([]*models.PackageRegistration, 0)
	for _, reg := range f.registrations {
		if reg.HasOwner(user.ID) {
			out = append(out, reg)
		}
	}
	return out, nil
}

func (f *fakeGallery) FindPackagesByAnyMatchingOwner(_ context.Context, user *models.User, includeUnlisted bool) ([]*models.Package, error) {
	if err := f.fail("FindPackagesByAnyMatchingOwner"); err != nil {
		return nil, err
	}
	out := make([]*models.Package, 0)
	for _, p := range f.packages {
		if p.PackageRegistration.HasOwner(user.ID) && (includeUnlisted || p.Listed) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeGallery) MarkPackageUnlisted(_ context.Context, pkg *models.Package) error {
	pkg.Listed = false
	f.unlisted = append(f.unlisted, pkg.ID)
	return nil
}

// PackageOwnershipService

func (f *fakeGallery) RemovePackageOwner(_ context.Context, reg *models.PackageRegistration, _, ownerToBeRemoved *models.User) error {
	if err := f.fail("RemovePackageOwner"); err != nil {
		return err
	}
	remaining := make([]*models.User, 0)
	for _, o := range reg.Owners {
		if o.ID != ownerToBeRemoved.ID {
			remaining = append(remaining, o)
		}
	}
	reg.Owners = remaining
	f.removedOwners = append(f.removedOwners, reg.PackageID+":"+ownerToBeRemoved.Username)
	return nil
}

func (f *fakeGallery) GetPackageOwnershipRequests(_ context.Context, filter repositories.OwnershipRequestFilter) ([]*models.PackageOwnerRequest, error) {
	out := make([]*models.PackageOwnerRequest, 0)
	for _, r := range f.ownerReqs {
		if filter.NewOwnerID == nil || r.NewOwnerID == *filter.NewOwnerID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeGallery) DeletePackageOwnershipRequest(_ context.Context, reg *models.PackageRegistration, newOwner *models.User) error {
	f.ownerReqsDeleted = append(f.ownerReqsDeleted, reg.PackageID+":"+newOwner.Username)
	return nil
}

// ReservedNamespaceService

func (f *fakeGallery) ListNamespacesOwnedBy(_ context.Context, user *models.User) ([]*models.ReservedNamespace, error) {
	return f.namespaces[user.ID], nil
}

func (f *fakeGallery) DeleteOwnerFromReservedNamespace(_ context.Context, prefix, username string) error {
	f.namespaceRemovals = append(f.namespaceRemovals, prefix+":"+username)
	return nil
}

// SecurityPolicyService

func (f *fakeGallery) GetPolicies(_ context.Context, user *models.User) ([]*models.UserSecurityPolicy, error) {
	return f.policies[user.ID], nil
}

func (f *fakeGallery) Unsubscribe(_ context.Context, user *models.User, subscription string) error {
	f.unsubscribed = append(f.unsubscribed, user.Username+":"+subscription)
	return nil
}

// AuthenticationService

func (f *fakeGallery) GetCredentials(_ context.Context, user *models.User) ([]*models.Credential, error) {
	return f.credentials[user.ID], nil
}

func (f *fakeGallery) RemoveCredential(_ context.Context, user *models.User, cred *models.Credential) error {
	if err := f.fail("RemoveCredential"); err != nil {
		return err
	}
	f.removedCredentials = append(f.removedCredentials, user.Username+":"+cred.ID)
	return nil
}

// SupportRequestService

func (f *fakeGallery) DeleteSupportRequests(_ context.Context, username string) error {
	if err := f.fail("DeleteSupportRequests"); err != nil {
		return err
	}
	f.supportDeleted = append(f.supportDeleted, username)
	return nil
}

// AuditingService

func (f *fakeGallery) SaveAuditRecord(_ context.Context, record audit.AuditRecord) error {
	f.auditRecords = append(f.auditRecords, record)
	return nil
}

// TelemetryService

func (f *fakeGallery) TrackAccountDeletionCompleted(_, _ *models.User, success bool) {
	f.tracked = append(f.tracked, success)
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

func strPtr(s string) *string { return &s }

func (f *fakeGallery) addUser(id, username string, confirmed bool) *models.User {
	u := &models.User{ID: id, Username: username, EmailAllowed: true, NotifyPackagePushed: true}
	if confirmed {
		u.EmailAddress = strPtr(username + "@example.com")
	} else {
		u.UnconfirmedEmailAddress = strPtr(username + "@example.com")
	}
	f.users[id] = u
	return u
}

func (f *fakeGallery) addOrganization(id, name string, confirmed bool) *models.User {
	org := f.addUser(id, name, confirmed)
	org.IsOrganization = true
	return org
}

// addEmptyRegistration adds a registration that has no versions
func (f *fakeGallery) addEmptyRegistration(id, packageID string, owners ...*models.User) *models.PackageRegistration {
	reg := &models.PackageRegistration{ID: id, PackageID: packageID, Owners: owners}
	f.registrations = append(f.registrations, reg)
	return reg
}

func (f *fakeGallery) addRegistration(id, packageID string, owners ...*models.User) *models.PackageRegistration {
	reg := f.addEmptyRegistration(id, packageID, owners...)
	for i, listed := range []bool{true, false} {
		f.packages = append(f.packages, &models.Package{
			ID:                    fmt.Sprintf("%s-%d", id, i),
			PackageRegistrationID: id,
			PackageID:             packageID,
			Version:               fmt.Sprintf("1.%d.0", i),
			Listed:                listed,
			PackageRegistration:   reg,
		})
	}
	return reg
}

func (f *fakeGallery) addMembership(org, member *models.User, isAdmin bool) {
	f.memberships = append(f.memberships, &models.Membership{
		OrganizationID:   org.ID,
		MemberID:         member.ID,
		IsAdmin:          isAdmin,
		OrganizationName: org.Username,
		MemberName:       member.Username,
	})
}

func newAdmin() *models.User {
	return &models.User{ID: "admin-id", Username: "galleryAdmin", EmailAddress: strPtr("admin@example.com")}
}

func deleteRecord(t *testing.T, f *fakeGallery) *audit.DeleteAccountAuditRecord {
	t.Helper()
	require.Len(t, f.auditRecords, 1)
	rec, ok := f.auditRecords[0].(*audit.DeleteAccountAuditRecord)
	require.True(t, ok, "audit record is %T", f.auditRecords[0])
	return rec
}

// ---------------------------------------------------------------------------
// Argument validation
// ---------------------------------------------------------------------------

func TestDeleteAccount_NilUserToBeDeleted(t *testing.T) {
	f := newFakeGallery()
	status, err := f.service().DeleteAccount(context.Background(), nil, newAdmin(), true, UnlistOrphans)
	assert.ErrorIs(t, err, ErrUserToBeDeletedRequired)
	assert.Nil(t, status)
}

func TestDeleteAccount_NilAdmin(t *testing.T) {
	f := newFakeGallery()
	user := f.addUser("u1", "alice", true)
	status, err := f.service().DeleteAccount(context.Background(), user, nil, true, UnlistOrphans)
	assert.ErrorIs(t, err, ErrUserToExecuteDeleteRequired)
	assert.Nil(t, status)
	assert.Empty(t, f.auditRecords)
}

func TestDeleteAccount_AlreadyDeleted(t *testing.T) {
	f := newFakeGallery()
	user := f.addUser("u1", "alice", false)
	user.IsDeleted = true

	status, err := f.service().DeleteAccount(context.Background(), user, newAdmin(), true, UnlistOrphans)
	require.NoError(t, err)
	assert.False(t, status.Success)
	assert.Equal(t, "alice", status.AccountName)
	assert.Equal(t, "The account:alice was already deleted. No action was performed.", status.Description)
	assert.Empty(t, f.auditRecords)
	assert.Empty(t, f.tracked)
	assert.Zero(t, f.txCalls)
	assert.Empty(t, f.deletedUsers)
	assert.Empty(t, f.updatedUsers)
}

// ---------------------------------------------------------------------------
// Happy path
// ---------------------------------------------------------------------------

func TestDeleteAccount_ConfirmedUser(t *testing.T) {
	f := newFakeGallery()
	user := f.addUser("u1", "alice", true)
	coOwner := f.addUser("u2", "bob", true)
	keyHolder := f.addUser("u3", "carol", true)
	admin := newAdmin()

	f.addRegistration("r1", "Alice.Solo", user)
	f.addRegistration("r2", "Shared.Lib", user, coOwner)

	f.policies[user.ID] = []*models.UserSecurityPolicy{
		{ID: "p1", UserID: user.ID, Name: "RequireApiKeyWithPackageVerifyScope", Subscription: "SecurePush"},
		{ID: "p2", UserID: user.ID, Name: "RequirePackageVerificationByOwner", Subscription: "SecurePush"},
	}
	f.namespaces[user.ID] = []*models.ReservedNamespace{{ID: "ns1", Value: "Alice.", IsPrefix: true}}
	f.ownerReqs = []*models.PackageOwnerRequest{
		{ID: "or1", PackageRegistrationID: "r9", PackageID: "Other.Pkg", RequestingOwnerID: coOwner.ID, NewOwnerID: user.ID},
		{ID: "or2", PackageRegistrationID: "r8", PackageID: "Unrelated", RequestingOwnerID: user.ID, NewOwnerID: coOwner.ID},
	}
	f.credentials[user.ID] = []*models.Credential{
		{ID: "c1", UserID: user.ID, Type: models.CredentialTypePassword},
		{ID: "c2", UserID: user.ID, Type: models.CredentialTypeAPIKey},
	}
	f.scopes[user.ID] = []*models.ScopeWithCredential{
		{Scope: models.Scope{ID: "s1", CredentialID: "c2", OwnerID: &user.ID}, CredentialUserID: user.ID, CredentialType: models.CredentialTypeAPIKey},
		{Scope: models.Scope{ID: "s2", CredentialID: "c9", OwnerID: &user.ID}, CredentialUserID: keyHolder.ID, CredentialType: models.CredentialTypeAPIKey},
		{Scope: models.Scope{ID: "s3", CredentialID: "c9", OwnerID: &user.ID}, CredentialUserID: keyHolder.ID, CredentialType: models.CredentialTypeAPIKey},
	}

	status, err := f.service().DeleteAccount(context.Background(), user, admin, true, UnlistOrphans)
	require.NoError(t, err)
	assert.True(t, status.Success)
	assert.Equal(t, "The account:alice was deleted successfully.", status.Description)
	assert.Equal(t, 1, f.txCalls)
	assert.False(t, f.rolledBack)

	// ownership
	assert.ElementsMatch(t, []string{"Alice.Solo:alice", "Shared.Lib:alice"}, f.removedOwners)
	assert.Equal(t, []string{"r1-0"}, f.unlisted, "only listed versions of orphaned registrations are unlisted")

	// policies, namespaces, ownership requests
	assert.Equal(t, []string{"alice:SecurePush"}, f.unsubscribed)
	assert.Equal(t, []string{"Alice.:alice"}, f.namespaceRemovals)
	assert.Equal(t, []string{"Other.Pkg:alice"}, f.ownerReqsDeleted)

	// credentials: own ones, then the scoped key of another user once
	assert.Equal(t, []string{"alice:c1", "alice:c2", "carol:c9"}, f.removedCredentials)

	// account row
	assert.True(t, user.IsDeleted)
	assert.Nil(t, user.EmailAddress)
	assert.Nil(t, user.UnconfirmedEmailAddress)
	assert.False(t, user.EmailAllowed)
	assert.False(t, user.NotifyPackagePushed)
	assert.Equal(t, []string{"alice"}, f.updatedUsers)
	assert.Empty(t, f.deletedUsers)
	require.Len(t, f.accountDeletes, 1)
	assert.Equal(t, user.ID, f.accountDeletes[0].DeletedAccountID)
	require.NotNil(t, f.accountDeletes[0].DeletedByID)
	assert.Equal(t, admin.ID, *f.accountDeletes[0].DeletedByID)
	assert.Equal(t, "galleryAdmin", f.accountDeletes[0].Signature)
	assert.False(t, f.accountDeletes[0].DeletedOn.IsZero())

	assert.Equal(t, []string{"u1"}, f.memberReqsDeleted)
	assert.Equal(t, []string{"u1"}, f.migrationsDeleted)
	assert.Empty(t, f.orgMembersRemoved, "a user has no members to remove")
	assert.Equal(t, []string{"alice"}, f.supportDeleted)

	rec := deleteRecord(t, f)
	assert.Equal(t, "alice", rec.Username)
	assert.Equal(t, "galleryAdmin", rec.AdminUsername)
	assert.Equal(t, audit.StatusSuccess, rec.Status)
	assert.Equal(t, []bool{true}, f.tracked)
}

func TestDeleteAccount_UnconfirmedUserRowIsDeleted(t *testing.T) {
	f := newFakeGallery()
	user := f.addUser("u1", "alice", false)

	status, err := f.service().DeleteAccount(context.Background(), user, newAdmin(), true, UnlistOrphans)
	require.NoError(t, err)
	assert.True(t, status.Success)
	assert.Equal(t, []string{"u1"}, f.deletedUsers)
	assert.Empty(t, f.updatedUsers)
	assert.Empty(t, f.accountDeletes)
	assert.Equal(t, []string{"alice"}, f.supportDeleted)
	assert.Equal(t, audit.StatusSuccess, deleteRecord(t, f).Status)
}

func TestDeleteAccount_ConfirmedOrganization(t *testing.T) {
	f := newFakeGallery()
	org := f.addOrganization("o1", "contoso", true)
	member := f.addUser("u1", "alice", true)
	f.addMembership(org, member, true)

	status, err := f.service().DeleteAccount(context.Background(), org, newAdmin(), true, UnlistOrphans)
	require.NoError(t, err)
	assert.True(t, status.Success)
	assert.Equal(t, []string{"o1"}, f.orgMembersRemoved)
	assert.Equal(t, []string{"o1"}, f.orgRequestsDeleted)
	assert.True(t, org.IsDeleted)
	assert.Equal(t, []string{"contoso"}, f.updatedUsers)
	require.Len(t, f.accountDeletes, 1)
	assert.Equal(t, "o1", f.accountDeletes[0].DeletedAccountID)

	rec := deleteRecord(t, f)
	assert.Equal(t, "organization", rec.ResourceType())
}

func TestDeleteAccount_UnconfirmedOrganization(t *testing.T) {
	f := newFakeGallery()
	org := f.addOrganization("o1", "contoso", false)

	status, err := f.service().DeleteAccount(context.Background(), org, newAdmin(), true, UnlistOrphans)
	require.NoError(t, err)
	assert.True(t, status.Success)
	assert.Equal(t, []string{"o1"}, f.orgMembersRemoved)
	assert.Equal(t, []string{"o1"}, f.deletedUsers)
	assert.Empty(t, f.accountDeletes)
}

// ---------------------------------------------------------------------------
// Memberships
// ---------------------------------------------------------------------------

func TestDeleteAccount_Memberships(t *testing.T) {
	tests := []struct {
		name          string
		userIsAdmin   bool
		otherMember   bool
		otherIsAdmin  bool
		wantPromoted  bool
		wantOrgDelete bool
	}{
		{name: "sole admin member", userIsAdmin: true, wantOrgDelete: true},
		{name: "sole non-admin member", userIsAdmin: false, wantOrgDelete: true},
		{name: "admin leaves admin behind", userIsAdmin: true, otherMember: true, otherIsAdmin: true},
		{name: "admin leaves collaborator behind", userIsAdmin: true, otherMember: true, wantPromoted: true},
		{name: "collaborator leaves admin behind", otherMember: true, otherIsAdmin: true},
		{name: "collaborator leaves collaborator behind", otherMember: true, wantPromoted: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeGallery()
			user := f.addUser("u1", "alice", true)
			org := f.addOrganization("o1", "contoso", true)
			f.addMembership(org, user, tt.userIsAdmin)
			if tt.otherMember {
				other := f.addUser("u2", "bob", true)
				f.addMembership(org, other, tt.otherIsAdmin)
			}

			status, err := f.service().DeleteAccount(context.Background(), user, newAdmin(), true, UnlistOrphans)
			require.NoError(t, err)
			require.True(t, status.Success, status.Description)

			assert.Contains(t, f.removedMembers, "o1:u1")
			if tt.wantPromoted {
				assert.Equal(t, []string{"o1"}, f.promoted)
			} else {
				assert.Empty(t, f.promoted)
			}
			assert.Equal(t, tt.wantOrgDelete, org.IsDeleted)
			if tt.wantOrgDelete {
				assert.Contains(t, f.orgMembersRemoved, "o1")
				assert.Len(t, f.accountDeletes, 2)
			} else {
				assert.Len(t, f.accountDeletes, 1)
			}

			// the recursive organization deletion writes no audit record of its own
			assert.Len(t, f.auditRecords, 1)
			assert.Equal(t, 1, f.txCalls)
		})
	}
}

// ---------------------------------------------------------------------------
// Orphan package policy
// ---------------------------------------------------------------------------

func TestDeleteAccount_DoNotAllowOrphans_Blocks(t *testing.T) {
	f := newFakeGallery()
	user := f.addUser("u1", "alice", true)
	f.addRegistration("r1", "Alice.Solo", user)

	status, err := f.service().DeleteAccount(context.Background(), user, newAdmin(), true, DoNotAllowOrphans)
	require.NoError(t, err)
	assert.False(t, status.Success)
	assert.Equal(t, "The account:alice has packages that would be orphaned by the deletion. No action was performed.", status.Description)
	assert.Zero(t, f.txCalls)
	assert.Empty(t, f.removedOwners)
	assert.Empty(t, f.updatedUsers)
	assert.False(t, user.IsDeleted)
	assert.Equal(t, audit.StatusFailure, deleteRecord(t, f).Status)
	assert.Equal(t, []bool{false}, f.tracked)
}

func TestDeleteAccount_DoNotAllowOrphans_CoOwnedProceeds(t *testing.T) {
	f := newFakeGallery()
	user := f.addUser("u1", "alice", true)
	coOwner := f.addUser("u2", "bob", true)
	f.addRegistration("r1", "Shared.Lib", user, coOwner)

	status, err := f.service().DeleteAccount(context.Background(), user, newAdmin(), true, DoNotAllowOrphans)
	require.NoError(t, err)
	assert.True(t, status.Success)
	assert.Equal(t, []string{"Shared.Lib:alice"}, f.removedOwners)
	assert.Empty(t, f.unlisted)
}

func TestDeleteAccount_KeepOrphans(t *testing.T) {
	f := newFakeGallery()
	user := f.addUser("u1", "alice", true)
	f.addRegistration("r1", "Alice.Solo", user)

	status, err := f.service().DeleteAccount(context.Background(), user, newAdmin(), true, KeepOrphans)
	require.NoError(t, err)
	assert.True(t, status.Success)
	assert.Equal(t, []string{"Alice.Solo:alice"}, f.removedOwners)
	assert.Empty(t, f.unlisted)
}

func TestDeleteAccount_RegistrationWithoutVersions(t *testing.T) {
	tests := []struct {
		name        string
		policy      OrphanPackagePolicy
		wantSuccess bool
		wantRemoved []string
	}{
		{name: "deny", policy: DoNotAllowOrphans},
		{name: "unlist", policy: UnlistOrphans, wantSuccess: true, wantRemoved: []string{"Alice.Empty:alice"}},
		{name: "keep", policy: KeepOrphans, wantSuccess: true, wantRemoved: []string{"Alice.Empty:alice"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeGallery()
			user := f.addUser("u1", "alice", true)
			reg := f.addEmptyRegistration("r1", "Alice.Empty", user)

			status, err := f.service().DeleteAccount(context.Background(), user, newAdmin(), true, tt.policy)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSuccess, status.Success, status.Description)
			if tt.wantSuccess {
				assert.Equal(t, tt.wantRemoved, f.removedOwners)
				assert.Empty(t, reg.Owners)
				assert.Empty(t, f.unlisted)
			} else {
				assert.Empty(t, f.removedOwners)
				assert.Len(t, reg.Owners, 1)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Failures
// ---------------------------------------------------------------------------

func TestDeleteAccount_CollaboratorFailureRollsBack(t *testing.T) {
	f := newFakeGallery()
	user := f.addUser("u1", "alice", true)
	f.failOn = "CreateAccountDelete"

	status, err := f.service().DeleteAccount(context.Background(), user, newAdmin(), true, UnlistOrphans)
	require.NoError(t, err)
	assert.False(t, status.Success)
	assert.Equal(t, "The account:alice was not deleted. The exception: failed to record deletion of alice: CreateAccountDelete failed", status.Description)
	assert.True(t, f.rolledBack)
	assert.Empty(t, f.supportDeleted)

	// the in-memory account is left as it was
	assert.False(t, user.IsDeleted)
	assert.NotNil(t, user.EmailAddress)

	assert.Equal(t, audit.StatusFailure, deleteRecord(t, f).Status)
	assert.Equal(t, []bool{false}, f.tracked)
}

func TestDeleteAccount_FailureStopsLaterSteps(t *testing.T) {
	f := newFakeGallery()
	user := f.addUser("u1", "alice", true)
	f.credentials[user.ID] = []*models.Credential{{ID: "c1", UserID: user.ID}}
	f.failOn = "RemoveCredential"

	status, err := f.service().DeleteAccount(context.Background(), user, newAdmin(), false, UnlistOrphans)
	require.NoError(t, err)
	assert.False(t, status.Success)
	assert.Contains(t, status.Description, "The exception: RemoveCredential failed")
	assert.Zero(t, f.txCalls)
	assert.Empty(t, f.updatedUsers)
	assert.Empty(t, f.supportDeleted)
	assert.Equal(t, audit.StatusFailure, deleteRecord(t, f).Status)
}

func TestDeleteAccount_OrphanCheckFailure(t *testing.T) {
	f := newFakeGallery()
	user := f.addUser("u1", "alice", true)
	f.failOn = "FindPackageRegistrationsByOwner"

	status, err := f.service().DeleteAccount(context.Background(), user, newAdmin(), true, DoNotAllowOrphans)
	require.NoError(t, err)
	assert.False(t, status.Success)
	assert.Contains(t, status.Description, "was not deleted")
	assert.Zero(t, f.txCalls)
	assert.Len(t, f.auditRecords, 1)
}

func TestDeleteAccount_WithoutTransaction(t *testing.T) {
	f := newFakeGallery()
	user := f.addUser("u1", "alice", true)

	status, err := f.service().DeleteAccount(context.Background(), user, newAdmin(), false, KeepOrphans)
	require.NoError(t, err)
	assert.True(t, status.Success)
	assert.Zero(t, f.txCalls)
	assert.True(t, user.IsDeleted)
}

// ---------------------------------------------------------------------------
// OrphanPackagePolicy
// ---------------------------------------------------------------------------

func TestParseOrphanPackagePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    OrphanPackagePolicy
		wantErr bool
	}{
		{in: "deny", want: DoNotAllowOrphans},
		{in: "unlist", want: UnlistOrphans},
		{in: " Keep ", want: KeepOrphans},
		{in: "remove", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseOrphanPackagePolicy(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, got, mustParse(t, got.String()))
	}
}

func mustParse(t *testing.T, s string) OrphanPackagePolicy {
	t.Helper()
	p, err := ParseOrphanPackagePolicy(s)
	require.NoError(t, err)
	return p
}
