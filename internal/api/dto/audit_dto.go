package dto

import (
	"time"

	"github.com/spec-kit/escalation-service/internal/domain"
)

// AuditLogResponse is one ledger entry. The id is rendered as a string so that 64-bit ids
// survive JSON clients that parse numbers as doubles.
type AuditLogResponse struct {
	ID            int64                `json:"id,string"`
	TicketID      string               `json:"ticket_id"`
	Actor         string               `json:"actor"`
	Action        string               `json:"action"`
	PreviousState *domain.TicketStatus `json:"previous_state"`
	NewState      domain.TicketStatus  `json:"new_state"`
	Reason        *string              `json:"reason"`
	Metadata      map[string]any       `json:"metadata,omitempty"`
	Timestamp     time.Time            `json:"timestamp"`
}

// NewAuditLogResponses maps ledger entries.
func NewAuditLogResponses(entries []domain.AuditLogEntry) []AuditLogResponse {
	items := make([]AuditLogResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, AuditLogResponse{
			ID:            entry.ID,
			TicketID:      entry.TicketID,
			Actor:         entry.Actor,
			Action:        entry.Action,
			PreviousState: entry.PreviousState,
			NewState:      entry.NewState,
			Reason:        entry.Reason,
			Metadata:      entry.Metadata,
			Timestamp:     entry.Timestamp,
		})
	}
	return items
}
