package dto

import "github.com/spec-kit/escalation-service/internal/domain"

// EscalationRequest asks for a lifecycle transition.
type EscalationRequest struct {
	TicketID string              `json:"ticket_id"`
	NewState domain.TicketStatus `json:"new_state"`
	Actor    string              `json:"actor"`
	Action   string              `json:"action"`
	Reason   *string             `json:"reason"`
	Metadata map[string]any      `json:"metadata"`
}

// ResolutionRequest captures a reviewer's final decision.
type ResolutionRequest struct {
	TicketID         string              `json:"ticket_id"`
	Actor            string              `json:"actor"`
	FinalDecision    string              `json:"final_decision"`
	ResolutionStatus domain.TicketStatus `json:"resolution_status"`
	Reason           string              `json:"reason"`
}
