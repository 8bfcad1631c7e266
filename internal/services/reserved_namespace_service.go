package services

import (
	"context"
	"fmt"

	"github.com/package-gallery/gallery/internal/db/models"
	"github.com/package-gallery/gallery/internal/db/repositories"
)

// GalleryReservedNamespaceService manages reserved package id prefixes and their owners
type GalleryReservedNamespaceService struct {
	namespaceRepo *repositories.ReservedNamespaceRepository
	userRepo      *repositories.UserRepository
	packageRepo   *repositories.PackageRepository
}

// NewReservedNamespaceService creates a new reserved namespace service
func NewReservedNamespaceService(namespaceRepo *repositories.ReservedNamespaceRepository, userRepo *repositories.UserRepository, packageRepo *repositories.PackageRepository) *GalleryReservedNamespaceService {
	return &GalleryReservedNamespaceService{
		namespaceRepo: namespaceRepo,
		userRepo:      userRepo,
		packageRepo:   packageRepo,
	}
}

// ListNamespacesOwnedBy returns the namespaces user owns
func (s *GalleryReservedNamespaceService) ListNamespacesOwnedBy(ctx context.Context, user *models.User) ([]*models.ReservedNamespace, error) {
	namespaces, err := s.namespaceRepo.ListByOwner(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reserved namespaces of %s: %w", user.Username, err)
	}
	return namespaces, nil
}

// DeleteOwnerFromReservedNamespace removes username as an owner of the namespace. Registrations
// of that owner inside the namespace lose their verified mark.
func (s *GalleryReservedNamespaceService) DeleteOwnerFromReservedNamespace(ctx context.Context, prefix, username string) error {
	ns, err := s.namespaceRepo.GetByValue(ctx, prefix)
	if err != nil {
		return fmt.Errorf("failed to get reserved namespace %s: %w", prefix, err)
	}
	if ns == nil {
		return fmt.Errorf("reserved namespace %s does not exist", prefix)
	}

	owner, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("failed to get user %s: %w", username, err)
	}
	if owner == nil {
		return fmt.Errorf("user %s does not exist", username)
	}

	if err := s.namespaceRepo.RemoveOwner(ctx, ns.ID, owner.ID); err != nil {
		return fmt.Errorf("failed to remove %s from reserved namespace %s: %w", username, prefix, err)
	}

	regs, err := s.packageRepo.ListRegistrationsByOwner(ctx, owner.ID)
	if err != nil {
		return fmt.Errorf("failed to list package registrations of %s: %w", username, err)
	}
	unverify := make([]string, 0)
	for _, reg := range regs {
		if reg.IsVerified && ns.Matches(reg.PackageID) {
			unverify = append(unverify, reg.ID)
		}
	}
	if err := s.packageRepo.SetVerified(ctx, unverify, false); err != nil {
		return fmt.Errorf("failed to clear verified flag in %s: %w", prefix, err)
	}
	return nil
}
