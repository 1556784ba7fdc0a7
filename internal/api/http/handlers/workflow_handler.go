package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/escalation-service/internal/api/dto"
	"github.com/spec-kit/escalation-service/internal/service"
	apperrors "github.com/spec-kit/escalation-service/pkg/errorutil"
)

// WorkflowHandler exposes lifecycle transitions and resolutions.
type WorkflowHandler struct {
	service *service.TicketService
}

// NewWorkflowHandler constructs handler.
func NewWorkflowHandler(ticketService *service.TicketService) *WorkflowHandler {
	return &WorkflowHandler{service: ticketService}
}

// Escalate POST /escalate.
func (h *WorkflowHandler) Escalate(c *fiber.Ctx) error {
	var req dto.EscalationRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidRequest("invalid payload", nil)
	}

	ticket, err := h.service.Transition(c.UserContext(), service.TransitionInput{
		TicketID: req.TicketID,
		NewState: req.NewState,
		Actor:    req.Actor,
		Action:   req.Action,
		Reason:   req.Reason,
		Metadata: req.Metadata,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// Resolve POST /resolve.
func (h *WorkflowHandler) Resolve(c *fiber.Ctx) error {
	var req dto.ResolutionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidRequest("invalid payload", nil)
	}

	ticket, err := h.service.Resolve(c.UserContext(), service.ResolutionInput{
		TicketID:         req.TicketID,
		Actor:            req.Actor,
		FinalDecision:    req.FinalDecision,
		ResolutionStatus: req.ResolutionStatus,
		Reason:           req.Reason,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}
