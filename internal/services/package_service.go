package services

import (
	"context"
	"fmt"

	"github.com/package-gallery/gallery/internal/db/models"
	"github.com/package-gallery/gallery/internal/db/repositories"
	"github.com/package-gallery/gallery/internal/validation"
)

// GalleryPackageService reads and updates package registrations and their versions
type GalleryPackageService struct {
	packageRepo *repositories.PackageRepository
}

// NewPackageService creates a new package service
func NewPackageService(packageRepo *repositories.PackageRepository) *GalleryPackageService {
	return &GalleryPackageService{packageRepo: packageRepo}
}

// FindPackageRegistrationsByOwner returns the registrations owned by user with their owners loaded
func (s *GalleryPackageService) FindPackageRegistrationsByOwner(ctx context.Context, user *models.User) ([]*models.PackageRegistration, error) {
	regs, err := s.packageRepo.ListRegistrationsByOwner(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list package registrations of %s: %w", user.Username, err)
	}
	return regs, nil
}

// FindPackagesByAnyMatchingOwner returns every version of every registration owned by user.
// Each package points at its registration; versions of a registration share the same pointer
// and are ordered newest first.
func (s *GalleryPackageService) FindPackagesByAnyMatchingOwner(ctx context.Context, user *models.User, includeUnlisted bool) ([]*models.Package, error) {
	regs, err := s.FindPackageRegistrationsByOwner(ctx, user)
	if err != nil {
		return nil, err
	}

	packages := make([]*models.Package, 0)
	for _, reg := range regs {
		versions, err := s.packageRepo.ListPackages(ctx, reg.ID, includeUnlisted)
		if err != nil {
			return nil, fmt.Errorf("failed to list packages of %s: %w", reg.PackageID, err)
		}
		for _, p := range versions {
			if p.NormalizedVersion == "" {
				p.NormalizedVersion = validation.NormalizeVersion(p.Version)
			}
		}
		validation.SortVersionsDescending(versions, func(p *models.Package) string { return p.NormalizedVersion })
		for _, p := range versions {
			p.PackageRegistration = reg
			packages = append(packages, p)
		}
	}
	return packages, nil
}

// MarkPackageUnlisted hides a package version from search. Already unlisted versions are left alone.
func (s *GalleryPackageService) MarkPackageUnlisted(ctx context.Context, pkg *models.Package) error {
	if !pkg.Listed {
		return nil
	}
	if err := s.packageRepo.SetListed(ctx, pkg.ID, false); err != nil {
		return fmt.Errorf("failed to unlist %s %s: %w", pkg.PackageID, pkg.Version, err)
	}
	pkg.Listed = false
	return nil
}
