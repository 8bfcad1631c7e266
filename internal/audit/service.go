// service.go implements Service, which persists audit records and forwards them to the
// configured sinks.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/package-gallery/gallery/internal/db/models"
)

// LogStore persists audit log rows
type LogStore interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// Service saves audit records
type Service struct {
	store LogStore
	sink  Sink
}

// NewService creates an auditing service. sink may be nil.
func NewService(store LogStore, sink Sink) *Service {
	return &Service{store: store, sink: sink}
}

type ipKey struct{}

// WithClientIP attaches the caller's address to ctx so records saved with it carry the IP
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ipKey{}, ip)
}

// SaveAuditRecord persists record to the audit log and writes it to the sink. A sink
// failure is logged and does not fail the call.
func (s *Service) SaveAuditRecord(ctx context.Context, record AuditRecord) error {
	resourceType := record.ResourceType()
	resourceID := record.ResourceID()
	metadata := record.Metadata()
	metadata["actor"] = record.Actor()

	entry := &models.AuditLog{
		Action:       record.Action(),
		ResourceType: &resourceType,
		ResourceID:   &resourceID,
		Metadata:     metadata,
	}
	ip, _ := ctx.Value(ipKey{}).(string)
	if ip != "" {
		entry.IPAddress = &ip
	}

	if err := s.store.CreateAuditLog(ctx, entry); err != nil {
		return fmt.Errorf("failed to save audit record: %w", err)
	}

	if s.sink == nil {
		return nil
	}

	status, _ := metadata["status"].(string)
	out := &LogEntry{
		Timestamp:     entry.CreatedAt,
		Action:        entry.Action,
		ActorUsername: record.Actor(),
		ResourceType:  resourceType,
		ResourceID:    resourceID,
		Status:        status,
		IPAddress:     ip,
		Metadata:      metadata,
	}
	if out.Timestamp.IsZero() {
		out.Timestamp = time.Now()
	}
	if err := s.sink.Write(ctx, out); err != nil {
		slog.Warn("failed to write audit record to sink", "action", entry.Action, "resource_id", resourceID, "error", err)
	}
	return nil
}
