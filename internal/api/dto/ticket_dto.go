package dto

import (
	"time"

	"github.com/spec-kit/escalation-service/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	SourceQuery      string   `json:"source_query"`
	AgentDecision    *string  `json:"agent_decision"`
	ConfidenceScore  *float64 `json:"confidence_score"`
	EscalationReason string   `json:"escalation_reason"`
	AssignedTo       *string  `json:"assigned_to"`
}

// UpdateTicketRequest payload. Status is accepted only to be rejected.
type UpdateTicketRequest struct {
	AssignedTo *string              `json:"assigned_to"`
	Status     *domain.TicketStatus `json:"status"`
}

// TicketResponse is the full ticket including its history.
type TicketResponse struct {
	ID               string                `json:"id"`
	SourceQuery      string                `json:"source_query"`
	AgentDecision    *string               `json:"agent_decision"`
	ConfidenceScore  *float64              `json:"confidence_score"`
	EscalationReason string                `json:"escalation_reason"`
	AssignedTo       *string               `json:"assigned_to"`
	Status           domain.TicketStatus   `json:"status"`
	Resolution       *string               `json:"resolution"`
	ResolvedBy       *string               `json:"resolved_by"`
	ResolvedAt       *time.Time            `json:"resolved_at"`
	HistoryLog       []domain.HistoryEntry `json:"history_log"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(ticket *domain.Ticket) TicketResponse {
	history := ticket.HistoryLog
	if history == nil {
		history = []domain.HistoryEntry{}
	}
	return TicketResponse{
		ID:               ticket.ID,
		SourceQuery:      ticket.SourceQuery,
		AgentDecision:    ticket.AgentDecision,
		ConfidenceScore:  ticket.ConfidenceScore,
		EscalationReason: ticket.EscalationReason,
		AssignedTo:       ticket.AssignedTo,
		Status:           ticket.Status,
		Resolution:       ticket.Resolution,
		ResolvedBy:       ticket.ResolvedBy,
		ResolvedAt:       ticket.ResolvedAt,
		HistoryLog:       history,
		CreatedAt:        ticket.CreatedAt,
		UpdatedAt:        ticket.UpdatedAt,
	}
}

// NewTicketResponses maps a page of tickets.
func NewTicketResponses(tickets []domain.Ticket) []TicketResponse {
	items := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, NewTicketResponse(&tickets[i]))
	}
	return items
}
