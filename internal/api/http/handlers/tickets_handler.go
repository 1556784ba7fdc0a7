package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/escalation-service/internal/api/dto"
	"github.com/spec-kit/escalation-service/internal/auth"
	"github.com/spec-kit/escalation-service/internal/domain"
	"github.com/spec-kit/escalation-service/internal/service"
	apperrors "github.com/spec-kit/escalation-service/pkg/errorutil"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets. Resubmitting an unprocessed query answers with the existing
// ticket and the same status code.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidRequest("invalid payload", nil)
	}

	ticket, _, err := h.service.CreateTicket(c.UserContext(), service.CreateTicketInput{
		SourceQuery:      req.SourceQuery,
		EscalationReason: req.EscalationReason,
		AgentDecision:    req.AgentDecision,
		ConfidenceScore:  req.ConfidenceScore,
		AssignedTo:       req.AssignedTo,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	filter := service.TicketListFilter{AssignedTo: optionalQuery(c, "assigned_to")}
	if raw := c.Query("status"); raw != "" {
		status := domain.TicketStatus(raw)
		filter.Status = &status
	}

	var err error
	if filter.CreatedFrom, err = parseTime(c, "date_start"); err != nil {
		return err
	}
	if filter.CreatedTo, err = parseTime(c, "date_end"); err != nil {
		return err
	}
	if filter.Limit, filter.Offset, err = parsePage(c); err != nil {
		return err
	}

	tickets, err := h.service.ListTickets(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponses(tickets)})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.service.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// UpdateTicket PATCH /tickets/:id. Only the assignee is writable here.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidRequest("invalid payload", nil)
	}

	input := service.AssignmentInput{
		TicketID: c.Params("id"),
		Status:   req.Status,
	}
	if req.AssignedTo != nil {
		input.AssignedTo = *req.AssignedTo
	}
	if principal, ok := auth.PrincipalFromContext(c); ok {
		input.Actor = principal.Subject
	}

	ticket, err := h.service.UpdateAssignment(c.UserContext(), input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}
