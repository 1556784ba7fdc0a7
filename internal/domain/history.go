package domain

import (
	"maps"
	"time"
)

// Action labels recorded by the core itself. Transitions requested by callers carry
// caller-supplied labels.
const (
	ActionCreate           = "CREATE"
	ActionUpdateAssignment = "UPDATE_ASSIGNMENT"
	ActionResolve          = "resolve"
)

// HistoryEntry is one record of the ticket's embedded, append-only history.
type HistoryEntry struct {
	Action        string         `json:"action"`
	Actor         string         `json:"actor"`
	PreviousState *TicketStatus  `json:"previous_state"`
	NewState      TicketStatus   `json:"new_state"`
	Reason        *string        `json:"reason"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

func (h HistoryEntry) clone() HistoryEntry {
	cp := h
	if h.PreviousState != nil {
		prev := *h.PreviousState
		cp.PreviousState = &prev
	}
	cp.Reason = cloneString(h.Reason)
	if h.Metadata != nil {
		cp.Metadata = maps.Clone(h.Metadata)
	}
	return cp
}
