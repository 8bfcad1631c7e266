package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/package-gallery/gallery/internal/config"
	"github.com/package-gallery/gallery/internal/db/models"
	"github.com/package-gallery/gallery/internal/services"
	"github.com/package-gallery/gallery/internal/telemetry"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type statusUpdate struct {
	issueID  string
	statusID int
	editedBy string
	comment  string
}

type fakeQueue struct {
	issues  []*models.SupportIssue
	listErr error
	updates []statusUpdate
}

func (q *fakeQueue) OpenAccountDeletionRequests(context.Context) ([]*models.SupportIssue, error) {
	return q.issues, q.listErr
}

func (q *fakeQueue) UpdateIssueStatus(_ context.Context, issueID string, statusID int, editedBy, comment string) error {
	q.updates = append(q.updates, statusUpdate{issueID, statusID, editedBy, comment})
	return nil
}

type fakeAccounts map[string]*models.User

func (f fakeAccounts) GetByUsername(_ context.Context, username string) (*models.User, error) {
	if username == "broken" {
		return nil, errors.New("connection refused")
	}
	return f[username], nil
}

type fakeDeleter struct {
	deleted  []string
	refuse   map[string]string
	policies []services.OrphanPackagePolicy
	commits  []bool
}

func (d *fakeDeleter) DeleteAccount(_ context.Context, user, _ *models.User, commit bool, policy services.OrphanPackagePolicy) (*services.DeleteAccountStatus, error) {
	d.policies = append(d.policies, policy)
	d.commits = append(d.commits, commit)
	if reason, ok := d.refuse[user.Username]; ok {
		return &services.DeleteAccountStatus{AccountName: user.Username, Description: reason}, nil
	}
	d.deleted = append(d.deleted, user.Username)
	return &services.DeleteAccountStatus{Success: true, AccountName: user.Username}, nil
}

func processorConfig() config.ProcessorConfig {
	return config.ProcessorConfig{Enabled: true, IntervalMinutes: 5, OrphanPolicy: "unlist", AdminUsername: "gallery-admin"}
}

func processedCount(outcome string) float64 {
	var m dto.Metric
	if err := telemetry.AccountDeletionRequestsProcessedTotal.With(prometheus.Labels{"outcome": outcome}).Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

func issue(id, username string) *models.SupportIssue {
	return &models.SupportIssue{ID: id, CreatedBy: username, IssueTitle: models.AccountDeleteIssueTag, IssueStatusID: models.IssueStatusNew}
}

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

func TestNewAccountDeleteProcessor(t *testing.T) {
	p, err := NewAccountDeleteProcessor(&fakeQueue{}, fakeAccounts{}, &fakeDeleter{}, processorConfig())
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, p.interval)
	assert.Equal(t, services.UnlistOrphans, p.policy)

	cfg := processorConfig()
	cfg.IntervalMinutes = 0
	p, err = NewAccountDeleteProcessor(&fakeQueue{}, fakeAccounts{}, &fakeDeleter{}, cfg)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, p.interval)

	cfg.OrphanPolicy = "purge"
	_, err = NewAccountDeleteProcessor(&fakeQueue{}, fakeAccounts{}, &fakeDeleter{}, cfg)
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// RunOnce
// ---------------------------------------------------------------------------

func TestRunOnce_ProcessesRequests(t *testing.T) {
	admin := &models.User{ID: "admin-1", Username: "gallery-admin"}
	accounts := fakeAccounts{
		"gallery-admin": admin,
		"alice":         {ID: "u-1", Username: "alice"},
		"bob":           {ID: "u-2", Username: "bob"},
		"carol":         {ID: "u-3", Username: "carol", IsDeleted: true},
	}
	queue := &fakeQueue{issues: []*models.SupportIssue{
		issue("i-1", "alice"),
		issue("i-2", "bob"),
		issue("i-3", "carol"),
		issue("i-4", "dave"),
		issue("i-5", "broken"),
	}}
	deleter := &fakeDeleter{refuse: map[string]string{"bob": "The account:bob has packages that would be orphaned by the deletion. No action was performed."}}

	deletedBefore, blockedBefore, skippedBefore := processedCount("deleted"), processedCount("blocked"), processedCount("skipped")

	p, err := NewAccountDeleteProcessor(queue, accounts, deleter, processorConfig())
	require.NoError(t, err)
	p.RunOnce(context.Background())

	assert.Equal(t, []string{"alice"}, deleter.deleted)
	for i := range deleter.policies {
		assert.Equal(t, services.UnlistOrphans, deleter.policies[i])
		assert.True(t, deleter.commits[i])
	}

	require.Len(t, queue.updates, 3)
	assert.Equal(t, statusUpdate{"i-2", models.IssueStatusBlocked, "gallery-admin", deleter.refuse["bob"]}, queue.updates[0])
	assert.Equal(t, "i-3", queue.updates[1].issueID)
	assert.Equal(t, models.IssueStatusResolved, queue.updates[1].statusID)
	assert.Equal(t, "i-4", queue.updates[2].issueID)
	assert.Equal(t, models.IssueStatusResolved, queue.updates[2].statusID)

	assert.Equal(t, 1.0, processedCount("deleted")-deletedBefore)
	assert.Equal(t, 1.0, processedCount("blocked")-blockedBefore)
	assert.Equal(t, 3.0, processedCount("skipped")-skippedBefore)
}

func TestRunOnce_MissingAdminDoesNothing(t *testing.T) {
	queue := &fakeQueue{issues: []*models.SupportIssue{issue("i-1", "alice")}}
	deleter := &fakeDeleter{}

	p, err := NewAccountDeleteProcessor(queue, fakeAccounts{"alice": {ID: "u-1", Username: "alice"}}, deleter, processorConfig())
	require.NoError(t, err)
	p.RunOnce(context.Background())

	assert.Empty(t, deleter.deleted)
	assert.Empty(t, queue.updates)
}

func TestRunOnce_ListFailure(t *testing.T) {
	queue := &fakeQueue{listErr: errors.New("connection refused")}
	deleter := &fakeDeleter{}
	accounts := fakeAccounts{"gallery-admin": {ID: "admin-1", Username: "gallery-admin"}}

	p, err := NewAccountDeleteProcessor(queue, accounts, deleter, processorConfig())
	require.NoError(t, err)
	p.RunOnce(context.Background())

	assert.Empty(t, deleter.deleted)
}

// ---------------------------------------------------------------------------
// Start / Stop
// ---------------------------------------------------------------------------

func TestStart_DisabledReturnsImmediately(t *testing.T) {
	cfg := processorConfig()
	cfg.Enabled = false
	deleter := &fakeDeleter{}
	queue := &fakeQueue{issues: []*models.SupportIssue{issue("i-1", "alice")}}

	p, err := NewAccountDeleteProcessor(queue, fakeAccounts{}, deleter, cfg)
	require.NoError(t, err)
	p.Start(context.Background())

	assert.Empty(t, deleter.deleted)
}

func TestStart_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p, err := NewAccountDeleteProcessor(&fakeQueue{}, fakeAccounts{}, &fakeDeleter{}, processorConfig())
	require.NoError(t, err)

	p.Start(ctx)
	cancel()
	p.Stop()
}
