package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/package-gallery/gallery/internal/audit"
	"github.com/package-gallery/gallery/internal/db/models"
	"github.com/package-gallery/gallery/internal/db/repositories"
)

// ErrDeletionAlreadyRequested is returned when a user already has an open deletion request
var ErrDeletionAlreadyRequested = errors.New("an account deletion request is already open")

// GallerySupportRequestService files and tracks support issues
type GallerySupportRequestService struct {
	supportRepo *repositories.SupportRequestRepository
	auditor     AuditingService
}

// NewSupportRequestService creates a new support request service. auditor may be nil.
func NewSupportRequestService(supportRepo *repositories.SupportRequestRepository, auditor AuditingService) *GallerySupportRequestService {
	return &GallerySupportRequestService{supportRepo: supportRepo, auditor: auditor}
}

// AddNewSupportRequest files a new issue and records its creation in the history
func (s *GallerySupportRequestService) AddNewSupportRequest(ctx context.Context, issue *models.SupportIssue) error {
	if issue.IssueStatusID == 0 {
		issue.IssueStatusID = models.IssueStatusNew
	}
	if err := s.supportRepo.CreateIssue(ctx, issue); err != nil {
		return fmt.Errorf("failed to create support issue: %w", err)
	}
	if err := s.supportRepo.AddHistory(ctx, &models.SupportHistory{
		IssueID:       issue.ID,
		EditedBy:      issue.CreatedBy,
		IssueStatusID: issue.IssueStatusID,
	}); err != nil {
		return fmt.Errorf("failed to record support issue history: %w", err)
	}
	return nil
}

// GetIssues returns the issues matching filter
func (s *GallerySupportRequestService) GetIssues(ctx context.Context, filter repositories.IssueFilter) ([]*models.SupportIssue, error) {
	issues, err := s.supportRepo.ListIssues(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list support issues: %w", err)
	}
	return issues, nil
}

// UpdateIssueStatus moves an issue to statusID and appends a history entry with comment
func (s *GallerySupportRequestService) UpdateIssueStatus(ctx context.Context, issueID string, statusID int, editedBy, comment string) error {
	if err := s.supportRepo.UpdateIssueStatus(ctx, issueID, statusID); err != nil {
		return fmt.Errorf("failed to update support issue %s: %w", issueID, err)
	}
	h := &models.SupportHistory{IssueID: issueID, EditedBy: editedBy, IssueStatusID: statusID}
	if comment != "" {
		h.Comments = &comment
	}
	if err := s.supportRepo.AddHistory(ctx, h); err != nil {
		return fmt.Errorf("failed to record support issue history: %w", err)
	}
	return nil
}

// DeleteSupportRequests removes every issue created by username
func (s *GallerySupportRequestService) DeleteSupportRequests(ctx context.Context, username string) error {
	n, err := s.supportRepo.DeleteIssuesCreatedBy(ctx, username)
	if err != nil {
		return fmt.Errorf("failed to delete support requests of %s: %w", username, err)
	}
	if n > 0 {
		slog.Debug("support requests deleted", "username", username, "count", n)
	}
	return nil
}

// OpenAccountDeletionRequests returns the unresolved "Account deletion request" issues
func (s *GallerySupportRequestService) OpenAccountDeletionRequests(ctx context.Context) ([]*models.SupportIssue, error) {
	title := models.AccountDeleteIssueTag
	status := models.IssueStatusNew
	return s.GetIssues(ctx, repositories.IssueFilter{IssueTitle: &title, IssueStatusID: &status})
}

// LatestAccountDeletionRequest returns the most recent deletion request filed by user with
// its history loaded, or nil when there is none
func (s *GallerySupportRequestService) LatestAccountDeletionRequest(ctx context.Context, user *models.User) (*models.SupportIssue, error) {
	title := models.AccountDeleteIssueTag
	issues, err := s.GetIssues(ctx, repositories.IssueFilter{CreatedBy: &user.Username, IssueTitle: &title})
	if err != nil {
		return nil, err
	}
	if len(issues) == 0 {
		return nil, nil
	}

	issue := issues[len(issues)-1]
	history, err := s.supportRepo.ListHistory(ctx, issue.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history of support issue %s: %w", issue.ID, err)
	}
	issue.History = history
	return issue, nil
}

// RequestAccountDeletion files a deletion request on behalf of user. Fails with
// ErrDeletionAlreadyRequested when one is still open.
func (s *GallerySupportRequestService) RequestAccountDeletion(ctx context.Context, user *models.User) (*models.SupportIssue, error) {
	title := models.AccountDeleteIssueTag
	existing, err := s.GetIssues(ctx, repositories.IssueFilter{CreatedBy: &user.Username, IssueTitle: &title})
	if err != nil {
		return nil, err
	}
	for _, issue := range existing {
		if issue.IssueStatusID != models.IssueStatusResolved {
			return nil, ErrDeletionAlreadyRequested
		}
	}

	issue := &models.SupportIssue{
		CreatedBy:  user.Username,
		IssueTitle: models.AccountDeleteIssueTag,
		Details:    "This is an automated request to delete the account " + user.Username + ".",
		OwnerEmail: user.EmailAddress,
	}
	if err := s.AddNewSupportRequest(ctx, issue); err != nil {
		return nil, err
	}

	if s.auditor != nil {
		rec := &audit.AccountDeletionRequestAuditRecord{Username: user.Username, IssueID: issue.ID}
		if err := s.auditor.SaveAuditRecord(ctx, rec); err != nil {
			slog.Error("failed to audit account deletion request", "username", user.Username, "error", err)
		}
	}
	return issue, nil
}
