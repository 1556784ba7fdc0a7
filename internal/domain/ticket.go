package domain

import (
	"fmt"
	"time"
)

// TicketStatus enumerates lifecycle states for escalation tickets.
type TicketStatus string

const (
	TicketStatusCreated          TicketStatus = "CREATED"
	TicketStatusTriaged          TicketStatus = "TRIAGED"
	TicketStatusAssigned         TicketStatus = "ASSIGNED"
	TicketStatusInReview         TicketStatus = "IN_REVIEW"
	TicketStatusResolved         TicketStatus = "RESOLVED"
	TicketStatusEscalatedFurther TicketStatus = "ESCALATED_FURTHER"
	TicketStatusRejected         TicketStatus = "REJECTED"
)

// AllTicketStatuses lists every state in declaration order.
var AllTicketStatuses = []TicketStatus{
	TicketStatusCreated,
	TicketStatusTriaged,
	TicketStatusAssigned,
	TicketStatusInReview,
	TicketStatusResolved,
	TicketStatusEscalatedFurther,
	TicketStatusRejected,
}

// Valid reports whether s is a member of the state enumeration.
func (s TicketStatus) Valid() bool {
	for _, candidate := range AllTicketStatuses {
		if s == candidate {
			return true
		}
	}
	return false
}

func (s TicketStatus) String() string {
	return string(s)
}

// ParseTicketStatus converts raw input into a TicketStatus.
func ParseTicketStatus(raw string) (TicketStatus, error) {
	status := TicketStatus(raw)
	if !status.Valid() {
		return "", fmt.Errorf("unknown ticket status %q", raw)
	}
	return status, nil
}

// SystemActor is recorded for mutations not attributed to a human or agent.
const SystemActor = "system"

// Ticket is the aggregate tracking one escalation from creation to a terminal state.
type Ticket struct {
	ID               string
	SourceQuery      string
	AgentDecision    *string
	ConfidenceScore  *float64
	EscalationReason string
	AssignedTo       *string
	Status           TicketStatus
	Resolution       *string
	ResolvedBy       *string
	ResolvedAt       *time.Time
	HistoryLog       []HistoryEntry
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Clone returns a deep copy so that staged mutations never leak into shared state.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	cp := *t
	cp.AgentDecision = cloneString(t.AgentDecision)
	cp.ConfidenceScore = cloneFloat(t.ConfidenceScore)
	cp.AssignedTo = cloneString(t.AssignedTo)
	cp.Resolution = cloneString(t.Resolution)
	cp.ResolvedBy = cloneString(t.ResolvedBy)
	if t.ResolvedAt != nil {
		at := *t.ResolvedAt
		cp.ResolvedAt = &at
	}
	cp.HistoryLog = make([]HistoryEntry, len(t.HistoryLog))
	for i, entry := range t.HistoryLog {
		cp.HistoryLog[i] = entry.clone()
	}
	return &cp
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	s := *v
	return &s
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	f := *v
	return &f
}
