package domain

import (
	"maps"
	"time"
)

// AuditLogEntry is an immutable, system-wide record of an accepted mutation.
type AuditLogEntry struct {
	ID            int64
	TicketID      string
	Actor         string
	Action        string
	PreviousState *TicketStatus
	NewState      TicketStatus
	Reason        *string
	Metadata      map[string]any
	Timestamp     time.Time
}

// MatchesHistory reports whether the audit entry records the same event as h.
func (a AuditLogEntry) MatchesHistory(h HistoryEntry) bool {
	if a.Action != h.Action || a.Actor != h.Actor || a.NewState != h.NewState {
		return false
	}
	if !a.Timestamp.Equal(h.Timestamp) {
		return false
	}
	if (a.PreviousState == nil) != (h.PreviousState == nil) {
		return false
	}
	if a.PreviousState != nil && *a.PreviousState != *h.PreviousState {
		return false
	}
	return true
}

// Clone returns a deep copy of the entry.
func (a AuditLogEntry) Clone() AuditLogEntry {
	cp := a
	if a.PreviousState != nil {
		prev := *a.PreviousState
		cp.PreviousState = &prev
	}
	cp.Reason = cloneString(a.Reason)
	if a.Metadata != nil {
		cp.Metadata = maps.Clone(a.Metadata)
	}
	return cp
}
