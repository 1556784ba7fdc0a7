package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/escalation-service/internal/api/dto"
	"github.com/spec-kit/escalation-service/internal/service"
)

// AuditHandler serves the read-only audit ledger.
type AuditHandler struct {
	service *service.AuditService
}

// NewAuditHandler constructs handler.
func NewAuditHandler(auditService *service.AuditService) *AuditHandler {
	return &AuditHandler{service: auditService}
}

// ListAuditLogs GET /audit.
func (h *AuditHandler) ListAuditLogs(c *fiber.Ctx) error {
	query := service.AuditQuery{
		TicketID: optionalQuery(c, "ticket_id"),
		Actor:    optionalQuery(c, "actor"),
		Action:   optionalQuery(c, "action"),
	}
	var err error
	if query.Limit, query.Offset, err = parsePage(c); err != nil {
		return err
	}

	entries, err := h.service.List(c.UserContext(), query)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAuditLogResponses(entries)})
}
