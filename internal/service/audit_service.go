package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/escalation-service/internal/config"
	"github.com/spec-kit/escalation-service/internal/domain"
	"github.com/spec-kit/escalation-service/internal/repository"
)

// AuditService exposes read-only access to the audit ledger.
type AuditService struct {
	logs   repository.AuditLogRepository
	logger *zap.Logger
	limits config.WorkflowConfig
}

// AuditQuery filters the ledger. Nil fields do not filter.
type AuditQuery struct {
	TicketID *string
	Actor    *string
	Action   *string
	Limit    int
	Offset   int
}

// NewAuditService constructs the service.
func NewAuditService(logs repository.AuditLogRepository, logger *zap.Logger, limits config.WorkflowConfig) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limits.AuditMaxLimit <= 0 {
		limits.AuditMaxLimit = 1000
	}
	if limits.AuditDefaultLimit <= 0 {
		limits.AuditDefaultLimit = 100
	}
	return &AuditService{logs: logs, logger: logger, limits: limits}
}

// List returns matching entries, most recent first.
func (s *AuditService) List(ctx context.Context, query AuditQuery) ([]domain.AuditLogEntry, error) {
	if query.TicketID != nil {
		if _, err := uuid.Parse(*query.TicketID); err != nil {
			return []domain.AuditLogEntry{}, nil
		}
	}

	limit, offset := repository.NormalizePage(query.Limit, query.Offset, s.limits.AuditDefaultLimit, s.limits.AuditMaxLimit)
	entries, err := s.logs.List(ctx, repository.AuditLogFilter{
		TicketID: query.TicketID,
		Actor:    query.Actor,
		Action:   query.Action,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		ticketID := ""
		if query.TicketID != nil {
			ticketID = *query.TicketID
		}
		return nil, translateError(ctx, s.logger, "list_audit_logs", ticketID, err)
	}
	if entries == nil {
		entries = []domain.AuditLogEntry{}
	}
	return entries, nil
}
