// account_delete_processor.go implements the AccountDeleteProcessor background job, which
// works through the self-service "Account deletion request" support issues. Each open
// request is run through the account deletion service on behalf of the configured
// processor admin. A deletion that fails or is refused moves the issue to Blocked with the
// outcome as a history comment, so it waits for a human instead of being retried on every
// tick. A successful deletion removes the issue together with the account's other support
// requests.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/package-gallery/gallery/internal/config"
	"github.com/package-gallery/gallery/internal/db/models"
	"github.com/package-gallery/gallery/internal/safego"
	"github.com/package-gallery/gallery/internal/services"
	"github.com/package-gallery/gallery/internal/telemetry"
)

// DeletionRequestQueue is the support-issue side of the processor
type DeletionRequestQueue interface {
	OpenAccountDeletionRequests(ctx context.Context) ([]*models.SupportIssue, error)
	UpdateIssueStatus(ctx context.Context, issueID string, statusID int, editedBy, comment string) error
}

// AccountLookup resolves usernames to accounts
type AccountLookup interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// AccountDeleter runs an account deletion
type AccountDeleter interface {
	DeleteAccount(ctx context.Context, userToBeDeleted, userToExecuteTheDelete *models.User, commitAsTransaction bool, policy services.OrphanPackagePolicy) (*services.DeleteAccountStatus, error)
}

// AccountDeleteProcessor periodically deletes the accounts of users who asked for it.
type AccountDeleteProcessor struct {
	queue    DeletionRequestQueue
	accounts AccountLookup
	deleter  AccountDeleter
	cfg      config.ProcessorConfig
	policy   services.OrphanPackagePolicy
	interval time.Duration
	stopChan chan struct{}
}

// NewAccountDeleteProcessor creates a new AccountDeleteProcessor.
// The orphan policy is parsed here so a bad value fails at startup.
func NewAccountDeleteProcessor(
	queue DeletionRequestQueue,
	accounts AccountLookup,
	deleter AccountDeleter,
	cfg config.ProcessorConfig,
) (*AccountDeleteProcessor, error) {
	policy, err := services.ParseOrphanPackagePolicy(cfg.OrphanPolicy)
	if err != nil {
		return nil, fmt.Errorf("account deletion processor: %w", err)
	}
	minutes := cfg.IntervalMinutes
	if minutes <= 0 {
		minutes = 60
	}
	return &AccountDeleteProcessor{
		queue:    queue,
		accounts: accounts,
		deleter:  deleter,
		cfg:      cfg,
		policy:   policy,
		interval: time.Duration(minutes) * time.Minute,
		stopChan: make(chan struct{}),
	}, nil
}

// Start launches the processing loop in the background. It runs once immediately, then on
// the configured interval, until ctx is cancelled or Stop is called.
func (p *AccountDeleteProcessor) Start(ctx context.Context) {
	if !p.cfg.Enabled {
		slog.Info("account deletion processor disabled")
		return
	}

	safego.Go("account-delete-processor", func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		slog.Info("account deletion processor started",
			"interval", p.interval, "orphan_policy", p.policy.String(), "admin", p.cfg.AdminUsername)

		p.RunOnce(ctx)

		for {
			select {
			case <-ticker.C:
				p.RunOnce(ctx)
			case <-p.stopChan:
				slog.Info("account deletion processor stopped")
				return
			case <-ctx.Done():
				slog.Info("account deletion processor context cancelled")
				return
			}
		}
	})
}

// Stop signals the background loop to exit.
func (p *AccountDeleteProcessor) Stop() {
	close(p.stopChan)
}

// RunOnce processes every open deletion request a single time
func (p *AccountDeleteProcessor) RunOnce(ctx context.Context) {
	admin, err := p.accounts.GetByUsername(ctx, p.cfg.AdminUsername)
	if err != nil {
		slog.Error("account deletion processor: failed to load admin", "admin", p.cfg.AdminUsername, "error", err)
		return
	}
	if admin == nil || admin.IsDeleted {
		slog.Error("account deletion processor: admin account not found", "admin", p.cfg.AdminUsername)
		return
	}

	issues, err := p.queue.OpenAccountDeletionRequests(ctx)
	if err != nil {
		slog.Error("account deletion processor: failed to list requests", "error", err)
		return
	}
	if len(issues) == 0 {
		return
	}

	slog.Info("account deletion processor: processing requests", "count", len(issues))
	for _, issue := range issues {
		outcome := p.process(ctx, issue, admin)
		telemetry.AccountDeletionRequestsProcessedTotal.WithLabelValues(outcome).Inc()
	}
}

// process handles one request and returns its outcome label
func (p *AccountDeleteProcessor) process(ctx context.Context, issue *models.SupportIssue, admin *models.User) string {
	log := slog.With("issue_id", issue.ID, "username", issue.CreatedBy)

	user, err := p.accounts.GetByUsername(ctx, issue.CreatedBy)
	if err != nil {
		log.Error("account deletion processor: failed to load account", "error", err)
		return "skipped"
	}
	if user == nil || user.IsDeleted {
		p.setStatus(ctx, log, issue, models.IssueStatusResolved, admin, "The account no longer exists.")
		return "skipped"
	}

	status, err := p.deleter.DeleteAccount(ctx, user, admin, true, p.policy)
	if err != nil {
		log.Error("account deletion processor: deletion rejected", "error", err)
		p.setStatus(ctx, log, issue, models.IssueStatusBlocked, admin, err.Error())
		return "blocked"
	}
	if status.Success {
		log.Info("account deletion processor: account deleted")
		return "deleted"
	}

	p.setStatus(ctx, log, issue, models.IssueStatusBlocked, admin, status.Description)
	return "blocked"
}

func (p *AccountDeleteProcessor) setStatus(ctx context.Context, log *slog.Logger, issue *models.SupportIssue, statusID int, admin *models.User, comment string) {
	if err := p.queue.UpdateIssueStatus(ctx, issue.ID, statusID, admin.Username, comment); err != nil {
		log.Error("account deletion processor: failed to update request", "status_id", statusID, "error", err)
	}
}
