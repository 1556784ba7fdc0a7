package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/escalation-service/internal/observability"
	"github.com/spec-kit/escalation-service/internal/repository"
	apperrors "github.com/spec-kit/escalation-service/pkg/errorutil"
)

// translateError maps repository errors onto the core error kinds. Anything that is not
// already a DomainError and not a missing row is treated as a store failure: it is logged
// with the request id and surfaced with a generic message.
func translateError(ctx context.Context, logger *zap.Logger, op string, ticketID string, err error) error {
	if err == nil {
		return nil
	}
	if apperrors.IsDomainError(err) {
		return err
	}
	if errors.Is(err, repository.ErrNotFound) {
		return notFound(ticketID)
	}

	observability.LoggerFromContext(ctx, logger).Error("persistence failure",
		zap.String("operation", op),
		zap.String("ticket_id", ticketID),
		zap.Error(err),
	)
	return apperrors.NewPersistenceFailure(err, observability.RequestIDFromContext(ctx))
}

func notFound(ticketID string) error {
	return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
}
