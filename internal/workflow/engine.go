// Package workflow holds the ticket state machine. It works purely on in-memory tickets and
// returns the side effects a caller must persist; it never performs I/O.
package workflow

import (
	"fmt"
	"maps"
	"time"

	"github.com/spec-kit/escalation-service/internal/domain"
	"github.com/spec-kit/escalation-service/internal/idgen"
	apperrors "github.com/spec-kit/escalation-service/pkg/errorutil"
)

var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusCreated:          {domain.TicketStatusTriaged, domain.TicketStatusAssigned, domain.TicketStatusRejected},
	domain.TicketStatusTriaged:          {domain.TicketStatusAssigned, domain.TicketStatusRejected},
	domain.TicketStatusAssigned:         {domain.TicketStatusInReview, domain.TicketStatusRejected, domain.TicketStatusCreated},
	domain.TicketStatusInReview:         {domain.TicketStatusResolved, domain.TicketStatusRejected, domain.TicketStatusAssigned, domain.TicketStatusEscalatedFurther},
	domain.TicketStatusResolved:         {},
	domain.TicketStatusEscalatedFurther: {},
	domain.TicketStatusRejected:         {},
}

// CanTransition reports whether the table lists next as a destination of current.
func CanTransition(current, next domain.TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the legal destinations of current.
func AllowedTransitions(current domain.TicketStatus) []domain.TicketStatus {
	return append([]domain.TicketStatus(nil), allowedTransitions[current]...)
}

// IsTerminal reports whether no transition leaves s.
func IsTerminal(s domain.TicketStatus) bool {
	dests, ok := allowedTransitions[s]
	return ok && len(dests) == 0
}

// Command describes a requested state change.
type Command struct {
	NewState domain.TicketStatus
	Actor    string
	Action   string
	Reason   *string
	Metadata map[string]any
}

// Outcome is the pending result of an engine call: the mutated ticket and the audit entry
// that must be committed together with it.
type Outcome struct {
	Ticket *domain.Ticket
	Audit  *domain.AuditLogEntry
	At     time.Time
}

// Engine applies transitions to tickets.
type Engine struct {
	ids idgen.Generator
	now func() time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine constructs the engine. ids supplies audit entry identifiers.
func NewEngine(ids idgen.Generator, opts ...Option) *Engine {
	e := &Engine{ids: ids, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// timestamp is computed once per call and shared by the history record and the audit entry.
// Truncated to microseconds to survive a Postgres round trip unchanged.
func (e *Engine) timestamp() time.Time {
	return e.now().UTC().Truncate(time.Microsecond)
}

// Transition validates cmd against the table and, when legal, mutates ticket in place.
// An illegal request returns a StateConflict error and leaves ticket untouched.
func (e *Engine) Transition(ticket *domain.Ticket, cmd Command) (*Outcome, error) {
	current := ticket.Status
	if !CanTransition(current, cmd.NewState) {
		return nil, apperrors.NewStateConflict(
			string(current),
			string(cmd.NewState),
			fmt.Sprintf("Transition from %s to %s is not permitted.", current, cmd.NewState),
		)
	}
	return e.record(ticket, current, cmd.NewState, cmd.Actor, cmd.Action, cmd.Reason, cmd.Metadata), nil
}

// Open records the creation of a fresh ticket: status CREATED, a single CREATE history record
// and the matching audit entry. The ticket must have an ID and no history yet.
func (e *Engine) Open(ticket *domain.Ticket, reason string) (*Outcome, error) {
	if len(ticket.HistoryLog) > 0 {
		return nil, fmt.Errorf("ticket %s already has history", ticket.ID)
	}
	ticket.Status = domain.TicketStatusCreated
	out := e.recordEntry(ticket, nil, domain.TicketStatusCreated, domain.SystemActor, domain.ActionCreate, &reason, nil)
	ticket.CreatedAt = out.At
	return out, nil
}

// Annotate records an audited mutation that leaves the status unchanged.
func (e *Engine) Annotate(ticket *domain.Ticket, actor, action, reason string, metadata map[string]any) *Outcome {
	return e.record(ticket, ticket.Status, ticket.Status, actor, action, &reason, metadata)
}

func (e *Engine) record(ticket *domain.Ticket, previous, next domain.TicketStatus, actor, action string, reason *string, metadata map[string]any) *Outcome {
	prev := previous
	return e.recordEntry(ticket, &prev, next, actor, action, reason, metadata)
}

func (e *Engine) recordEntry(ticket *domain.Ticket, previous *domain.TicketStatus, next domain.TicketStatus, actor, action string, reason *string, metadata map[string]any) *Outcome {
	at := e.timestamp()

	ticket.Status = next
	ticket.UpdatedAt = at
	ticket.HistoryLog = append(ticket.HistoryLog, domain.HistoryEntry{
		Action:        action,
		Actor:         actor,
		PreviousState: copyStatus(previous),
		NewState:      next,
		Reason:        copyString(reason),
		Metadata:      copyMetadata(metadata),
		Timestamp:     at,
	})

	audit := &domain.AuditLogEntry{
		ID:            e.ids.Next(),
		TicketID:      ticket.ID,
		Actor:         actor,
		Action:        action,
		PreviousState: copyStatus(previous),
		NewState:      next,
		Reason:        copyString(reason),
		Metadata:      copyMetadata(metadata),
		Timestamp:     at,
	}
	return &Outcome{Ticket: ticket, Audit: audit, At: at}
}

func copyStatus(s *domain.TicketStatus) *domain.TicketStatus {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return maps.Clone(m)
}
