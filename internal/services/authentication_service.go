package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/package-gallery/gallery/internal/auth"
	"github.com/package-gallery/gallery/internal/db/models"
	"github.com/package-gallery/gallery/internal/db/repositories"
)

// GalleryAuthenticationService manages user credentials and verifies API keys
type GalleryAuthenticationService struct {
	credentialRepo *repositories.CredentialRepository
	scopeRepo      *repositories.ScopeRepository
	userRepo       *repositories.UserRepository
	transactor     Transactor
}

// NewAuthenticationService creates a new authentication service
func NewAuthenticationService(credentialRepo *repositories.CredentialRepository, scopeRepo *repositories.ScopeRepository, userRepo *repositories.UserRepository, transactor Transactor) *GalleryAuthenticationService {
	return &GalleryAuthenticationService{
		credentialRepo: credentialRepo,
		scopeRepo:      scopeRepo,
		userRepo:       userRepo,
		transactor:     transactor,
	}
}

// CreateAPIKey issues a new API key for user. The key acts as user itself: every scope is
// owned by user and covers all of its packages. The full key is returned once; only its
// bcrypt hash and display prefix are stored.
func (s *GalleryAuthenticationService) CreateAPIKey(ctx context.Context, user *models.User, prefix string, description *string, scopes []string, expires *time.Time) (string, *models.Credential, error) {
	if len(scopes) == 0 {
		return "", nil, errors.New("at least one scope is required")
	}
	if err := auth.ValidateScopes(scopes); err != nil {
		return "", nil, err
	}

	fullKey, hash, displayPrefix, err := auth.GenerateAPIKey(prefix)
	if err != nil {
		return "", nil, err
	}

	cred := &models.Credential{
		UserID:      user.ID,
		Type:        models.CredentialTypeAPIKey,
		Value:       hash,
		KeyPrefix:   &displayPrefix,
		Description: description,
		Expires:     expires,
	}
	ownerID := user.ID
	err = s.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.credentialRepo.Create(ctx, cred); err != nil {
			return fmt.Errorf("failed to create credential: %w", err)
		}
		for _, action := range scopes {
			sc := &models.Scope{CredentialID: cred.ID, OwnerID: &ownerID, Subject: "*", AllowedAction: action}
			if err := s.scopeRepo.Create(ctx, sc); err != nil {
				return fmt.Errorf("failed to create scope %s: %w", action, err)
			}
			cred.Scopes = append(cred.Scopes, sc)
		}
		return nil
	})
	if err != nil {
		return "", nil, err
	}

	slog.Info("api key created", "credential_id", cred.ID, "user", user.Username, "scopes", scopes)
	return fullKey, cred, nil
}

// GetCredentials returns the credentials of user with their scopes loaded
func (s *GalleryAuthenticationService) GetCredentials(ctx context.Context, user *models.User) ([]*models.Credential, error) {
	creds, err := s.credentialRepo.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials of %s: %w", user.Username, err)
	}
	for _, c := range creds {
		scopes, err := s.scopeRepo.ListByCredential(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list scopes of credential %s: %w", c.ID, err)
		}
		c.Scopes = scopes
	}
	return creds, nil
}

// RemoveCredential deletes a credential of user together with its scopes
func (s *GalleryAuthenticationService) RemoveCredential(ctx context.Context, user *models.User, cred *models.Credential) error {
	if cred.UserID != "" && cred.UserID != user.ID {
		return fmt.Errorf("credential %s does not belong to %s", cred.ID, user.Username)
	}
	if err := s.scopeRepo.DeleteByCredential(ctx, cred.ID); err != nil {
		return fmt.Errorf("failed to delete scopes of credential %s: %w", cred.ID, err)
	}
	if err := s.credentialRepo.Delete(ctx, cred.ID); err != nil {
		return fmt.Errorf("failed to delete credential %s: %w", cred.ID, err)
	}
	slog.Info("credential removed", "credential_id", cred.ID, "type", cred.Type, "user", user.Username)
	return nil
}

// AuthenticateAPIKey resolves a full API key to its credential and owning user. Candidates are
// narrowed by display prefix and confirmed with bcrypt.
func (s *GalleryAuthenticationService) AuthenticateAPIKey(ctx context.Context, key string) (*models.User, *models.Credential, error) {
	if len(key) < auth.DisplayPrefixLength {
		return nil, nil, auth.ErrInvalidAPIKey
	}
	candidates, err := s.credentialRepo.ListAPIKeysByPrefix(ctx, key[:auth.DisplayPrefixLength])
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up API key: %w", err)
	}

	for _, cred := range candidates {
		if !cred.IsAPIKey() || !auth.ValidateAPIKey(key, cred.Value) {
			continue
		}
		if cred.Expires != nil && cred.Expires.Before(time.Now()) {
			return nil, nil, auth.ErrInvalidAPIKey
		}

		user, err := s.userRepo.GetByID(ctx, cred.UserID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get credential owner: %w", err)
		}
		if user == nil || user.IsDeleted {
			return nil, nil, auth.ErrInvalidAPIKey
		}

		scopes, err := s.scopeRepo.ListByCredential(ctx, cred.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list scopes of credential %s: %w", cred.ID, err)
		}
		cred.Scopes = scopes

		if err := s.credentialRepo.UpdateLastUsed(ctx, cred.ID); err != nil {
			slog.Warn("failed to update API key last used", "credential_id", cred.ID, "error", err)
		}
		return user, cred, nil
	}
	return nil, nil, auth.ErrInvalidAPIKey
}
