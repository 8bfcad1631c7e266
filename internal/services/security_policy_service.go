package services

import (
	"context"
	"fmt"

	"github.com/package-gallery/gallery/internal/db/models"
	"github.com/package-gallery/gallery/internal/db/repositories"
)

// GallerySecurityPolicyService manages the security policies users are subscribed to
type GallerySecurityPolicyService struct {
	policyRepo *repositories.SecurityPolicyRepository
}

// NewSecurityPolicyService creates a new security policy service
func NewSecurityPolicyService(policyRepo *repositories.SecurityPolicyRepository) *GallerySecurityPolicyService {
	return &GallerySecurityPolicyService{policyRepo: policyRepo}
}

// GetPolicies returns the policies user is enrolled in
func (s *GallerySecurityPolicyService) GetPolicies(ctx context.Context, user *models.User) ([]*models.UserSecurityPolicy, error) {
	policies, err := s.policyRepo.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list security policies of %s: %w", user.Username, err)
	}
	return policies, nil
}

// Unsubscribe removes every policy of the subscription from user
func (s *GallerySecurityPolicyService) Unsubscribe(ctx context.Context, user *models.User, subscription string) error {
	if subscription == "" {
		return fmt.Errorf("subscription name is required")
	}
	if err := s.policyRepo.DeleteSubscription(ctx, user.ID, subscription); err != nil {
		return fmt.Errorf("failed to unsubscribe %s from %s: %w", user.Username, subscription, err)
	}
	return nil
}
