package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/escalation-service/internal/config"
	"github.com/spec-kit/escalation-service/internal/domain"
	"github.com/spec-kit/escalation-service/internal/events"
	"github.com/spec-kit/escalation-service/internal/idgen"
	"github.com/spec-kit/escalation-service/internal/observability"
	"github.com/spec-kit/escalation-service/internal/repository"
	"github.com/spec-kit/escalation-service/internal/repository/memory"
	"github.com/spec-kit/escalation-service/internal/workflow"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) handle(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *eventRecorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	store   *memory.Store
	tickets *TicketService
	audit   *AuditService
	metrics *observability.Metrics
	events  *eventRecorder
}

func newFixture(t *testing.T, opts ...func(*TicketDependencies)) *fixture {
	t.Helper()

	store := memory.New()
	dispatcher := events.NewInMemoryDispatcher(nil)
	recorder := &eventRecorder{}
	for _, eventType := range events.AllEventTypes {
		dispatcher.Subscribe(eventType, recorder.handle)
	}
	metrics := observability.NewMetrics()
	limits := config.WorkflowConfig{
		AuditDefaultLimit:  100,
		AuditMaxLimit:      1000,
		TicketDefaultLimit: 100,
		TicketMaxLimit:     1000,
	}

	deps := TicketDependencies{
		TicketRepo: store.Tickets(),
		UnitOfWork: store,
		Engine:     workflow.NewEngine(&idgen.Sequence{}),
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Limits:     limits,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	return &fixture{
		store:   store,
		tickets: NewTicketService(deps),
		audit:   NewAuditService(store.AuditLogs(), nil, limits),
		metrics: metrics,
		events:  recorder,
	}
}

func (f *fixture) create(t *testing.T, query string) *domain.Ticket {
	t.Helper()
	ticket, created, err := f.tickets.CreateTicket(context.Background(), CreateTicketInput{
		SourceQuery:      query,
		EscalationReason: "Low confidence score",
	})
	require.NoError(t, err)
	require.True(t, created)
	return ticket
}

func (f *fixture) move(t *testing.T, ticketID string, states ...domain.TicketStatus) *domain.Ticket {
	t.Helper()
	var ticket *domain.Ticket
	for _, state := range states {
		var err error
		ticket, err = f.tickets.Transition(context.Background(), TransitionInput{
			TicketID: ticketID,
			NewState: state,
			Actor:    "r1",
			Action:   "move",
		})
		require.NoError(t, err)
	}
	return ticket
}

func (f *fixture) auditCount(t *testing.T, ticketID string) int {
	t.Helper()
	count, err := f.store.AuditLogs().CountByTicket(context.Background(), ticketID)
	require.NoError(t, err)
	return count
}

func (f *fixture) load(t *testing.T, ticketID string) *domain.Ticket {
	t.Helper()
	ticket, err := f.tickets.GetTicket(context.Background(), ticketID)
	require.NoError(t, err)
	return ticket
}

// requireConsistentLedger checks that the embedded history and the audit ledger tell the
// same story for ticketID.
func (f *fixture) requireConsistentLedger(t *testing.T, ticketID string) {
	t.Helper()
	ticket := f.load(t, ticketID)
	entries, err := f.store.AuditLogs().List(context.Background(), repository.AuditLogFilter{TicketID: &ticketID, Limit: 1000})
	require.NoError(t, err)
	require.Len(t, entries, len(ticket.HistoryLog))

	// entries are newest first, history is oldest first.
	for i, history := range ticket.HistoryLog {
		entry := entries[len(entries)-1-i]
		require.Truef(t, entry.MatchesHistory(history), "history entry %d diverges from audit entry %d", i, entry.ID)
	}
	require.Equal(t, ticket.Status, ticket.HistoryLog[len(ticket.HistoryLog)-1].NewState)
	require.Equal(t, domain.ActionCreate, ticket.HistoryLog[0].Action)
	require.Nil(t, ticket.HistoryLog[0].PreviousState)
}

type mockUnitOfWork struct {
	mock.Mock
}

func (m *mockUnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	args := m.Called(ctx, fn)
	return args.Error(0)
}

type mockTicketRepository struct {
	mock.Mock
}

func (m *mockTicketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	args := m.Called(ctx, id)
	ticket, _ := args.Get(0).(*domain.Ticket)
	return ticket, args.Error(1)
}

func (m *mockTicketRepository) List(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	args := m.Called(ctx, filter)
	tickets, _ := args.Get(0).([]domain.Ticket)
	return tickets, args.Error(1)
}

type mockAuditLogRepository struct {
	mock.Mock
}

func (m *mockAuditLogRepository) List(ctx context.Context, filter repository.AuditLogFilter) ([]domain.AuditLogEntry, error) {
	args := m.Called(ctx, filter)
	entries, _ := args.Get(0).([]domain.AuditLogEntry)
	return entries, args.Error(1)
}

func (m *mockAuditLogRepository) CountByTicket(ctx context.Context, ticketID string) (int, error) {
	args := m.Called(ctx, ticketID)
	return args.Int(0), args.Error(1)
}
