package services

import (
	"context"
	"fmt"

	"github.com/package-gallery/gallery/internal/db/models"
	"github.com/package-gallery/gallery/internal/db/repositories"
)

// GalleryPackageOwnershipService manages the owners of package registrations and the pending
// requests to become one
type GalleryPackageOwnershipService struct {
	packageRepo *repositories.PackageRepository
	requestRepo *repositories.OwnershipRequestRepository
}

// NewPackageOwnershipService creates a new ownership service
func NewPackageOwnershipService(packageRepo *repositories.PackageRepository, requestRepo *repositories.OwnershipRequestRepository) *GalleryPackageOwnershipService {
	return &GalleryPackageOwnershipService{packageRepo: packageRepo, requestRepo: requestRepo}
}

// RemovePackageOwner removes ownerToBeRemoved from the registration on behalf of requestingOwner.
// Requests the removed owner sent for the registration are dropped with it, and reg.Owners
// is updated to reflect the change.
func (s *GalleryPackageOwnershipService) RemovePackageOwner(ctx context.Context, reg *models.PackageRegistration, requestingOwner, ownerToBeRemoved *models.User) error {
	if err := s.requestRepo.DeleteFromRequestingOwner(ctx, reg.ID, ownerToBeRemoved.ID); err != nil {
		return fmt.Errorf("failed to delete ownership requests from %s: %w", ownerToBeRemoved.Username, err)
	}
	if err := s.packageRepo.RemoveOwner(ctx, reg.ID, ownerToBeRemoved.ID); err != nil {
		return fmt.Errorf("failed to remove %s as owner of %s: %w", ownerToBeRemoved.Username, reg.PackageID, err)
	}

	remaining := make([]*models.User, 0, len(reg.Owners))
	for _, o := range reg.Owners {
		if o.ID != ownerToBeRemoved.ID {
			remaining = append(remaining, o)
		}
	}
	reg.Owners = remaining
	return nil
}

// GetPackageOwnershipRequests returns the pending requests matching filter
func (s *GalleryPackageOwnershipService) GetPackageOwnershipRequests(ctx context.Context, filter repositories.OwnershipRequestFilter) ([]*models.PackageOwnerRequest, error) {
	reqs, err := s.requestRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list ownership requests: %w", err)
	}
	return reqs, nil
}

// DeletePackageOwnershipRequest cancels the pending request for newOwner to co-own reg
func (s *GalleryPackageOwnershipService) DeletePackageOwnershipRequest(ctx context.Context, reg *models.PackageRegistration, newOwner *models.User) error {
	if err := s.requestRepo.DeleteForNewOwner(ctx, reg.ID, newOwner.ID); err != nil {
		return fmt.Errorf("failed to delete ownership request of %s for %s: %w", newOwner.Username, reg.PackageID, err)
	}
	return nil
}
