package services

import (
	"github.com/jmoiron/sqlx"

	"github.com/package-gallery/gallery/internal/db"
	"github.com/package-gallery/gallery/internal/db/repositories"
)

// Gallery bundles the repositories and services that share one database connection.
// The HTTP router, the background processor and the CLI all build on it.
type Gallery struct {
	Users           *repositories.UserRepository
	AccountDeletes  *repositories.AccountDeleteRepository
	Authentication  *GalleryAuthenticationService
	SupportRequests *GallerySupportRequestService
	DeleteAccount   *DeleteAccountService
}

// NewGallery wires the collaborator services and the account deletion orchestrator
func NewGallery(conn *sqlx.DB, auditor AuditingService, telemetry TelemetryService) *Gallery {
	userRepo := repositories.NewUserRepository(conn)
	orgRepo := repositories.NewOrganizationRepository(conn)
	accountDeleteRepo := repositories.NewAccountDeleteRepository(conn)
	scopeRepo := repositories.NewScopeRepository(conn)
	packageRepo := repositories.NewPackageRepository(conn)
	transactor := db.NewTransactor(conn)

	authentication := NewAuthenticationService(repositories.NewCredentialRepository(conn), scopeRepo, userRepo, transactor)
	support := NewSupportRequestService(repositories.NewSupportRequestRepository(conn), auditor)

	deleter := NewDeleteAccountService(DeleteAccountDeps{
		Users:              userRepo,
		Organizations:      orgRepo,
		AccountDeletes:     accountDeleteRepo,
		Scopes:             scopeRepo,
		Transactor:         transactor,
		Packages:           NewPackageService(packageRepo),
		PackageOwnership:   NewPackageOwnershipService(packageRepo, repositories.NewOwnershipRequestRepository(conn)),
		ReservedNamespaces: NewReservedNamespaceService(repositories.NewReservedNamespaceRepository(conn), userRepo, packageRepo),
		SecurityPolicies:   NewSecurityPolicyService(repositories.NewSecurityPolicyRepository(conn)),
		Authentication:     authentication,
		SupportRequests:    support,
		Auditing:           auditor,
		Telemetry:          telemetry,
	})

	return &Gallery{
		Users:           userRepo,
		AccountDeletes:  accountDeleteRepo,
		Authentication:  authentication,
		SupportRequests: support,
		DeleteAccount:   deleter,
	}
}
