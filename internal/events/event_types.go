package events

import (
	"time"

	"github.com/spec-kit/escalation-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated           EventType = "ticket_created"
	EventTicketTransitioned      EventType = "ticket_transitioned"
	EventTicketAssignmentUpdated EventType = "ticket_assignment_updated"
	EventTicketResolved          EventType = "ticket_resolved"
)

// AllEventTypes lists every event the services publish.
var AllEventTypes = []EventType{
	EventTicketCreated,
	EventTicketTransitioned,
	EventTicketAssignmentUpdated,
	EventTicketResolved,
}

// Event represents a committed mutation announced by the services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  string    `json:"ticket_id"`
	Actor     string    `json:"actor"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	SourceQuery     string   `json:"source_query"`
	AgentDecision   *string  `json:"agent_decision,omitempty"`
	ConfidenceScore *float64 `json:"confidence_score,omitempty"`
	AssignedTo      *string  `json:"assigned_to,omitempty"`
}

// TicketTransitionedPayload payload.
type TicketTransitionedPayload struct {
	Action    string              `json:"action"`
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Reason    *string             `json:"reason,omitempty"`
}

// TicketAssignmentUpdatedPayload payload.
type TicketAssignmentUpdatedPayload struct {
	PreviousAssignee *string `json:"previous_assignee,omitempty"`
	AssignedTo       string  `json:"assigned_to"`
}

// TicketResolvedPayload payload.
type TicketResolvedPayload struct {
	Status        domain.TicketStatus `json:"status"`
	FinalDecision string              `json:"final_decision"`
	ResolvedBy    string              `json:"resolved_by"`
	ResolvedAt    time.Time           `json:"resolved_at"`
}
