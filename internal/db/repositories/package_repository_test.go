package repositories

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func newPackageRepo(t *testing.T) (*PackageRepository, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock := newMockDB(t)
	return NewPackageRepository(conn), mock
}

var registrationCols = []string{"id", "package_id", "is_verified", "download_count"}

var packageCols = []string{
	"id", "package_registration_id", "version", "normalized_version", "listed",
	"description", "last_edited", "created_at", "package_id",
}

// ---------------------------------------------------------------------------
// ListRegistrationsByOwner
// ---------------------------------------------------------------------------

func TestListRegistrationsByOwner_LoadsOwners(t *testing.T) {
	repo, mock := newPackageRepo(t)
	mock.ExpectQuery("SELECT.*FROM package_registrations pr.*WHERE o.user_id").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(registrationCols).
			AddRow("reg-1", "Contoso.Core", true, 10).
			AddRow("reg-2", "Contoso.Extras", false, 0))

	ownerCols := append([]string{"package_registration_id"}, userCols...)
	mock.ExpectQuery("SELECT.*FROM package_registration_owners o.*ANY").
		WillReturnRows(sqlmock.NewRows(ownerCols).
			AddRow("reg-1", "user-1", "alice", nil, nil, false, false, true, true, time.Now(), time.Now()).
			AddRow("reg-1", "user-2", "bob", nil, nil, false, false, true, true, time.Now(), time.Now()).
			AddRow("reg-2", "user-1", "alice", nil, nil, false, false, true, true, time.Now(), time.Now()))

	regs, err := repo.ListRegistrationsByOwner(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(regs) != 2 {
		t.Fatalf("len = %d, want 2", len(regs))
	}
	if len(regs[0].Owners) != 2 {
		t.Errorf("reg-1 owners = %d, want 2", len(regs[0].Owners))
	}
	if regs[0].WillBeOrphanedIfOwnerRemoved("user-1") {
		t.Error("reg-1 has another owner and must not be orphaned")
	}
	if !regs[1].WillBeOrphanedIfOwnerRemoved("user-1") {
		t.Error("reg-2 has a single owner and must be orphaned")
	}
}

func TestListRegistrationsByOwner_NoneSkipsOwnerQuery(t *testing.T) {
	repo, mock := newPackageRepo(t)
	mock.ExpectQuery("SELECT.*FROM package_registrations pr").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(registrationCols))

	regs, err := repo.ListRegistrationsByOwner(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(regs) != 0 {
		t.Errorf("len = %d, want 0", len(regs))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestListRegistrationsByOwner_DBError(t *testing.T) {
	repo, mock := newPackageRepo(t)
	mock.ExpectQuery("SELECT.*FROM package_registrations pr").
		WillReturnError(errDB)

	if _, err := repo.ListRegistrationsByOwner(context.Background(), "user-1"); err == nil {
		t.Error("expected error, got nil")
	}
}

// ---------------------------------------------------------------------------
// Owners and flags
// ---------------------------------------------------------------------------

func TestRemoveOwner_Success(t *testing.T) {
	repo, mock := newPackageRepo(t)
	mock.ExpectExec("DELETE FROM package_registration_owners").
		WithArgs("reg-1", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.RemoveOwner(context.Background(), "reg-1", "user-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSetVerified_EmptyIsNoop(t *testing.T) {
	repo, mock := newPackageRepo(t)

	if err := repo.SetVerified(context.Background(), nil, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected queries: %v", err)
	}
}

func TestSetVerified_Success(t *testing.T) {
	repo, mock := newPackageRepo(t)
	mock.ExpectExec("UPDATE package_registrations SET is_verified").
		WillReturnResult(sqlmock.NewResult(0, 2))

	if err := repo.SetVerified(context.Background(), []string{"reg-1", "reg-2"}, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Packages
// ---------------------------------------------------------------------------

func TestListPackages_Success(t *testing.T) {
	repo, mock := newPackageRepo(t)
	mock.ExpectQuery("SELECT.*FROM packages p").
		WithArgs("reg-1", true).
		WillReturnRows(sqlmock.NewRows(packageCols).
			AddRow("pkg-1", "reg-1", "1.0.0", "1.0.0", true, nil, nil, time.Now(), "Contoso.Core").
			AddRow("pkg-2", "reg-1", "2.0.0-beta", "2.0.0-beta", false, nil, nil, time.Now(), "Contoso.Core"))

	pkgs, err := repo.ListPackages(context.Background(), "reg-1", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pkgs) != 2 {
		t.Fatalf("len = %d, want 2", len(pkgs))
	}
	if pkgs[1].Listed {
		t.Error("expected second package to be unlisted")
	}
}

func TestSetListed_Success(t *testing.T) {
	repo, mock := newPackageRepo(t)
	mock.ExpectExec("UPDATE packages SET listed").
		WithArgs(false, sqlmock.AnyArg(), "pkg-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.SetListed(context.Background(), "pkg-1", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
