package telemetry

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/package-gallery/gallery/internal/db/models"
)

// Service records domain events as metrics and structured log lines
type Service struct {
	deletions *prometheus.CounterVec
	logger    *slog.Logger
}

// NewService creates a telemetry service backed by the default registry metrics
func NewService() *Service {
	return &Service{deletions: AccountDeletionsTotal, logger: slog.Default()}
}

// TrackAccountDeletionCompleted records the outcome of an account deletion attempt
func (s *Service) TrackAccountDeletionCompleted(deleted, deletedBy *models.User, success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	s.deletions.WithLabelValues(deleted.AccountKind(), outcome).Inc()

	s.logger.Info("account deletion completed",
		"account", deleted.Username,
		"kind", deleted.AccountKind(),
		"deleted_by", deletedBy.Username,
		"success", success,
	)
}
