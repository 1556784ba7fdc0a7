package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/escalation-service/internal/domain"
	"github.com/spec-kit/escalation-service/internal/idgen"
	apperrors "github.com/spec-kit/escalation-service/pkg/errorutil"
)

var legalPairs = map[domain.TicketStatus]map[domain.TicketStatus]bool{
	domain.TicketStatusCreated: {
		domain.TicketStatusTriaged:  true,
		domain.TicketStatusAssigned: true,
		domain.TicketStatusRejected: true,
	},
	domain.TicketStatusTriaged: {
		domain.TicketStatusAssigned: true,
		domain.TicketStatusRejected: true,
	},
	domain.TicketStatusAssigned: {
		domain.TicketStatusInReview: true,
		domain.TicketStatusRejected: true,
		domain.TicketStatusCreated:  true,
	},
	domain.TicketStatusInReview: {
		domain.TicketStatusResolved:         true,
		domain.TicketStatusRejected:         true,
		domain.TicketStatusAssigned:         true,
		domain.TicketStatusEscalatedFurther: true,
	},
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func newTestEngine() *Engine {
	return NewEngine(&idgen.Sequence{}, WithClock(fixedClock(time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC))))
}

// ticketIn builds a ticket whose history is consistent with status.
func ticketIn(t *testing.T, e *Engine, status domain.TicketStatus) *domain.Ticket {
	t.Helper()
	ticket := &domain.Ticket{ID: "t-1", SourceQuery: "q", EscalationReason: "low confidence"}
	_, err := e.Open(ticket, "Initial escalation creation")
	require.NoError(t, err)
	ticket.Status = status
	ticket.HistoryLog[0].NewState = status
	return ticket
}

func TestTransitionTableExhaustive(t *testing.T) {
	e := newTestEngine()
	for _, from := range domain.AllTicketStatuses {
		for _, to := range domain.AllTicketStatuses {
			from, to := from, to
			t.Run(string(from)+"->"+string(to), func(t *testing.T) {
				ticket := ticketIn(t, e, from)
				historyLen := len(ticket.HistoryLog)
				reason := "because"

				out, err := e.Transition(ticket, Command{NewState: to, Actor: "r1", Action: "move", Reason: &reason})

				if legalPairs[from][to] {
					require.NoError(t, err)
					assert.Equal(t, to, ticket.Status)
					assert.Len(t, ticket.HistoryLog, historyLen+1)
					require.NotNil(t, out.Audit)
					last := ticket.HistoryLog[len(ticket.HistoryLog)-1]
					assert.True(t, out.Audit.MatchesHistory(last))
					assert.Equal(t, from, *out.Audit.PreviousState)
					assert.Equal(t, to, out.Audit.NewState)
					return
				}

				require.Error(t, err)
				assert.Nil(t, out)
				assert.True(t, errors.Is(err, apperrors.ErrStateConflict))
				assert.Equal(t, from, ticket.Status)
				assert.Len(t, ticket.HistoryLog, historyLen)
			})
		}
	}
}

func TestCanTransitionMatchesTable(t *testing.T) {
	for _, from := range domain.AllTicketStatuses {
		for _, to := range domain.AllTicketStatuses {
			assert.Equal(t, legalPairs[from][to], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestSameStateIsIllegal(t *testing.T) {
	for _, s := range domain.AllTicketStatuses {
		assert.False(t, CanTransition(s, s), s)
	}
}

func TestTerminalStates(t *testing.T) {
	terminal := []domain.TicketStatus{
		domain.TicketStatusResolved,
		domain.TicketStatusEscalatedFurther,
		domain.TicketStatusRejected,
	}
	for _, s := range terminal {
		assert.True(t, IsTerminal(s), s)
		assert.Empty(t, AllowedTransitions(s))
	}
	assert.False(t, IsTerminal(domain.TicketStatusCreated))
	assert.False(t, IsTerminal(domain.TicketStatus("BOGUS")))
}

func TestUnknownTargetIsStateConflict(t *testing.T) {
	e := newTestEngine()
	ticket := ticketIn(t, e, domain.TicketStatusCreated)

	_, err := e.Transition(ticket, Command{NewState: "ARCHIVED", Actor: "r1", Action: "archive"})
	require.Error(t, err)

	de := apperrors.ToDomainError(err)
	assert.Equal(t, apperrors.CodeStateConflict, de.Code)
	assert.Equal(t, "CREATED", de.Details["current_state"])
	assert.Equal(t, "ARCHIVED", de.Details["attempted_state"])
	assert.Contains(t, de.Details["reason"], "not permitted")
}

func TestTransitionSharesOneTimestamp(t *testing.T) {
	calls := 0
	base := time.Date(2026, 1, 1, 0, 0, 0, 999, time.FixedZone("X", 3600))
	e := NewEngine(&idgen.Sequence{}, WithClock(func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Second)
	}))
	ticket := &domain.Ticket{ID: "t-2"}
	_, err := e.Open(ticket, "init")
	require.NoError(t, err)
	calls = 0

	out, err := e.Transition(ticket, Command{NewState: domain.TicketStatusTriaged, Actor: "a", Action: "triage"})
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	last := ticket.HistoryLog[len(ticket.HistoryLog)-1]
	assert.True(t, last.Timestamp.Equal(out.Audit.Timestamp))
	assert.Equal(t, time.UTC, out.Audit.Timestamp.Location())
	assert.Zero(t, out.Audit.Timestamp.Nanosecond()%1000)
	assert.True(t, ticket.UpdatedAt.Equal(out.At))
}

func TestOpenBuildsCreationRecord(t *testing.T) {
	e := newTestEngine()
	ticket := &domain.Ticket{ID: "t-3", SourceQuery: "Q1", EscalationReason: "r"}

	out, err := e.Open(ticket, "Initial escalation creation")
	require.NoError(t, err)

	assert.Equal(t, domain.TicketStatusCreated, ticket.Status)
	require.Len(t, ticket.HistoryLog, 1)
	first := ticket.HistoryLog[0]
	assert.Equal(t, domain.ActionCreate, first.Action)
	assert.Equal(t, domain.SystemActor, first.Actor)
	assert.Nil(t, first.PreviousState)
	assert.Equal(t, domain.TicketStatusCreated, first.NewState)
	assert.Nil(t, out.Audit.PreviousState)
	assert.Equal(t, "t-3", out.Audit.TicketID)
	assert.True(t, out.Audit.MatchesHistory(first))
	assert.True(t, ticket.CreatedAt.Equal(out.At))

	_, err = e.Open(ticket, "again")
	assert.Error(t, err)
}

func TestAnnotateKeepsStatus(t *testing.T) {
	e := newTestEngine()
	ticket := ticketIn(t, e, domain.TicketStatusAssigned)

	out := e.Annotate(ticket, domain.SystemActor, domain.ActionUpdateAssignment, "Assigned to human-2", nil)

	assert.Equal(t, domain.TicketStatusAssigned, ticket.Status)
	require.Len(t, ticket.HistoryLog, 2)
	assert.Equal(t, domain.TicketStatusAssigned, *out.Audit.PreviousState)
	assert.Equal(t, domain.TicketStatusAssigned, out.Audit.NewState)
	assert.Equal(t, "Assigned to human-2", *out.Audit.Reason)
}

func TestMetadataIsCopied(t *testing.T) {
	e := newTestEngine()
	ticket := ticketIn(t, e, domain.TicketStatusCreated)
	meta := map[string]any{"queue": "priority"}

	out, err := e.Transition(ticket, Command{NewState: domain.TicketStatusTriaged, Actor: "a", Action: "triage", Metadata: meta})
	require.NoError(t, err)

	meta["queue"] = "changed"
	assert.Equal(t, "priority", out.Audit.Metadata["queue"])
	assert.Equal(t, "priority", ticket.HistoryLog[1].Metadata["queue"])
}

func TestTransitionIsNotIdempotent(t *testing.T) {
	e := newTestEngine()
	ticket := ticketIn(t, e, domain.TicketStatusCreated)
	cmd := Command{NewState: domain.TicketStatusTriaged, Actor: "a", Action: "triage"}

	_, err := e.Transition(ticket, cmd)
	require.NoError(t, err)
	_, err = e.Transition(ticket, cmd)
	assert.True(t, errors.Is(err, apperrors.ErrStateConflict))
}
