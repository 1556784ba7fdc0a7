package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/escalation-service/internal/config"
	"github.com/spec-kit/escalation-service/internal/domain"
	"github.com/spec-kit/escalation-service/internal/events"
	"github.com/spec-kit/escalation-service/internal/observability"
	"github.com/spec-kit/escalation-service/internal/repository"
	"github.com/spec-kit/escalation-service/internal/workflow"
	apperrors "github.com/spec-kit/escalation-service/pkg/errorutil"
)

// CreationReason is recorded on the first history entry of every ticket.
const CreationReason = "Initial escalation creation"

// TicketService coordinates ticket workflows. Every mutation runs in one unit of work that
// writes the ticket row and its audit entry together.
type TicketService struct {
	tickets    repository.TicketRepository
	uow        repository.UnitOfWork
	engine     *workflow.Engine
	guard      CreationGuard
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	limits     config.WorkflowConfig
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	UnitOfWork repository.UnitOfWork
	Engine     *workflow.Engine
	Guard      CreationGuard
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Limits     config.WorkflowConfig
}

// CreateTicketInput describes ticket creation payload.
type CreateTicketInput struct {
	SourceQuery      string
	EscalationReason string
	AgentDecision    *string
	ConfidenceScore  *float64
	AssignedTo       *string
}

// TransitionInput requests a lifecycle change.
type TransitionInput struct {
	TicketID string
	NewState domain.TicketStatus
	Actor    string
	Action   string
	Reason   *string
	Metadata map[string]any
}

// AssignmentInput changes the assignee. Status must stay nil; it exists so callers that
// received a status field can hand it over and get it rejected here.
type AssignmentInput struct {
	TicketID   string
	AssignedTo string
	Status     *domain.TicketStatus
	Actor      string
}

// ResolutionInput records a reviewer's final decision.
type ResolutionInput struct {
	TicketID         string
	Actor            string
	FinalDecision    string
	ResolutionStatus domain.TicketStatus
	Reason           string
}

// TicketListFilter describes ticket listing filters.
type TicketListFilter struct {
	Status      *domain.TicketStatus
	AssignedTo  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	guard := deps.Guard
	if guard == nil {
		guard = NewNoopCreationGuard()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limits := deps.Limits
	if limits.TicketMaxLimit <= 0 {
		limits.TicketMaxLimit = 1000
	}
	if limits.TicketDefaultLimit <= 0 {
		limits.TicketDefaultLimit = 100
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		uow:        deps.UnitOfWork,
		engine:     deps.Engine,
		guard:      guard,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		limits:     limits,
	}
}

// CreateTicket opens a ticket, or returns the CREATED ticket already holding the same source
// query. created reports whether a new row was written.
func (s *TicketService) CreateTicket(ctx context.Context, input CreateTicketInput) (*domain.Ticket, bool, error) {
	if strings.TrimSpace(input.SourceQuery) == "" {
		return nil, false, apperrors.NewInvalidRequest("source_query is required", nil)
	}
	if strings.TrimSpace(input.EscalationReason) == "" {
		return nil, false, apperrors.NewInvalidRequest("escalation_reason is required", nil)
	}
	if input.ConfidenceScore != nil && (math.IsNaN(*input.ConfidenceScore) || math.IsInf(*input.ConfidenceScore, 0)) {
		return nil, false, apperrors.NewInvalidRequest("confidence_score must be a finite number", nil)
	}

	release, err := s.guard.Acquire(ctx, input.SourceQuery)
	if err != nil {
		observability.LoggerFromContext(ctx, s.logger).Warn("creation lock unavailable", zap.Error(err))
	} else {
		defer release()
	}

	var (
		result  *domain.Ticket
		created bool
	)
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		existing, err := tx.FindOpenBySourceQuery(ctx, input.SourceQuery)
		if err == nil {
			result = existing
			return nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		ticket := &domain.Ticket{
			ID:               uuid.NewString(),
			SourceQuery:      input.SourceQuery,
			AgentDecision:    input.AgentDecision,
			ConfidenceScore:  input.ConfidenceScore,
			EscalationReason: input.EscalationReason,
			AssignedTo:       input.AssignedTo,
		}
		outcome, err := s.engine.Open(ticket, CreationReason)
		if err != nil {
			return err
		}

		if err := tx.InsertTicket(ctx, ticket); err != nil {
			if !errors.Is(err, repository.ErrDuplicateOpenTicket) {
				return err
			}
			// A concurrent creator won; its row is committed and visible now.
			existing, err := tx.FindOpenBySourceQuery(ctx, input.SourceQuery)
			if err != nil {
				return fmt.Errorf("load open ticket after duplicate insert: %w", err)
			}
			result = existing
			return nil
		}
		if err := tx.InsertAuditLog(ctx, outcome.Audit); err != nil {
			return err
		}
		result = ticket
		created = true
		return nil
	})
	if err != nil {
		return nil, false, translateError(ctx, s.logger, "create_ticket", "", err)
	}

	s.metrics.RecordTicketCreated(created)
	if created {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketCreated,
			TicketID: result.ID,
			Actor:    domain.SystemActor,
			Payload: events.TicketCreatedPayload{
				SourceQuery:     result.SourceQuery,
				AgentDecision:   result.AgentDecision,
				ConfidenceScore: result.ConfidenceScore,
				AssignedTo:      result.AssignedTo,
			},
		})
	}
	return result, created, nil
}

// GetTicket loads a ticket with its full history.
func (s *TicketService) GetTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	if !validTicketID(id) {
		return nil, notFound(id)
	}
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, translateError(ctx, s.logger, "get_ticket", id, err)
	}
	return ticket, nil
}

// ListTickets returns tickets newest first.
func (s *TicketService) ListTickets(ctx context.Context, filter TicketListFilter) ([]domain.Ticket, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, apperrors.NewInvalidRequest("unknown status", map[string]any{"status": string(*filter.Status)})
	}
	if filter.CreatedFrom != nil && filter.CreatedTo != nil && filter.CreatedFrom.After(*filter.CreatedTo) {
		return nil, apperrors.NewInvalidRequest("date_start must not be after date_end", nil)
	}

	limit, offset := repository.NormalizePage(filter.Limit, filter.Offset, s.limits.TicketDefaultLimit, s.limits.TicketMaxLimit)
	tickets, err := s.tickets.List(ctx, repository.TicketFilter{
		Status:      filter.Status,
		AssignedTo:  filter.AssignedTo,
		CreatedFrom: filter.CreatedFrom,
		CreatedTo:   filter.CreatedTo,
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		return nil, translateError(ctx, s.logger, "list_tickets", "", err)
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	return tickets, nil
}

// Transition moves a ticket along the lifecycle table. The ticket row stays locked from load
// to commit.
func (s *TicketService) Transition(ctx context.Context, input TransitionInput) (*domain.Ticket, error) {
	if err := validateTransitionInput(input); err != nil {
		return nil, err
	}
	if !validTicketID(input.TicketID) {
		return nil, notFound(input.TicketID)
	}

	var (
		outcome  *workflow.Outcome
		previous domain.TicketStatus
	)
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		ticket, err := tx.GetTicketForUpdate(ctx, input.TicketID)
		if err != nil {
			return err
		}
		previous = ticket.Status

		out, err := s.engine.Transition(ticket, workflow.Command{
			NewState: input.NewState,
			Actor:    input.Actor,
			Action:   input.Action,
			Reason:   input.Reason,
			Metadata: input.Metadata,
		})
		if err != nil {
			return err
		}
		if err := persistOutcome(ctx, tx, previous, out); err != nil {
			return err
		}
		outcome = out
		return nil
	})
	if err != nil {
		return nil, translateError(ctx, s.logger, "transition", input.TicketID, err)
	}

	s.metrics.RecordTransition(string(previous), string(input.NewState))
	s.publishEvent(ctx, events.Event{
		Type:      events.EventTicketTransitioned,
		TicketID:  input.TicketID,
		Actor:     input.Actor,
		Timestamp: outcome.At,
		Payload: events.TicketTransitionedPayload{
			Action:    input.Action,
			OldStatus: previous,
			NewStatus: input.NewState,
			Reason:    input.Reason,
		},
	})
	return outcome.Ticket, nil
}

// UpdateAssignment changes the assignee without touching the status.
func (s *TicketService) UpdateAssignment(ctx context.Context, input AssignmentInput) (*domain.Ticket, error) {
	if input.Status != nil {
		return nil, apperrors.NewInvalidRequest("Status cannot be updated directly. Use /escalate or /resolve.",
			map[string]any{"status": string(*input.Status)})
	}
	assignee := strings.TrimSpace(input.AssignedTo)
	if assignee == "" {
		return nil, apperrors.NewInvalidRequest("assigned_to is required", nil)
	}
	actor := strings.TrimSpace(input.Actor)
	if actor == "" {
		actor = domain.SystemActor
	}
	if !validTicketID(input.TicketID) {
		return nil, notFound(input.TicketID)
	}

	var (
		outcome          *workflow.Outcome
		previousAssignee *string
	)
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		ticket, err := tx.GetTicketForUpdate(ctx, input.TicketID)
		if err != nil {
			return err
		}
		previousAssignee = ticket.AssignedTo
		ticket.AssignedTo = &assignee

		out := s.engine.Annotate(ticket, actor, domain.ActionUpdateAssignment, "Assigned to "+assignee, nil)
		if err := persistOutcome(ctx, tx, ticket.Status, out); err != nil {
			return err
		}
		outcome = out
		return nil
	})
	if err != nil {
		return nil, translateError(ctx, s.logger, "update_assignment", input.TicketID, err)
	}

	s.publishEvent(ctx, events.Event{
		Type:      events.EventTicketAssignmentUpdated,
		TicketID:  input.TicketID,
		Actor:     actor,
		Timestamp: outcome.At,
		Payload: events.TicketAssignmentUpdatedPayload{
			PreviousAssignee: previousAssignee,
			AssignedTo:       assignee,
		},
	})
	return outcome.Ticket, nil
}

// Resolve applies a reviewer's final decision: the terminal transition and the resolution
// fields commit as one unit.
func (s *TicketService) Resolve(ctx context.Context, input ResolutionInput) (*domain.Ticket, error) {
	if input.ResolutionStatus != domain.TicketStatusResolved && input.ResolutionStatus != domain.TicketStatusRejected {
		return nil, apperrors.NewInvalidRequest("Invalid resolution status. Must be RESOLVED or REJECTED.",
			map[string]any{"resolution_status": string(input.ResolutionStatus)})
	}
	if strings.TrimSpace(input.Actor) == "" {
		return nil, apperrors.NewInvalidRequest("actor is required", nil)
	}
	if strings.TrimSpace(input.FinalDecision) == "" {
		return nil, apperrors.NewInvalidRequest("final_decision is required", nil)
	}
	if strings.TrimSpace(input.Reason) == "" {
		return nil, apperrors.NewInvalidRequest("reason is required", nil)
	}
	if !validTicketID(input.TicketID) {
		return nil, notFound(input.TicketID)
	}

	reason := fmt.Sprintf("Final Decision: %s. Rationale: %s", input.FinalDecision, input.Reason)

	var (
		outcome  *workflow.Outcome
		previous domain.TicketStatus
	)
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		ticket, err := tx.GetTicketForUpdate(ctx, input.TicketID)
		if err != nil {
			return err
		}
		previous = ticket.Status

		out, err := s.engine.Transition(ticket, workflow.Command{
			NewState: input.ResolutionStatus,
			Actor:    input.Actor,
			Action:   domain.ActionResolve,
			Reason:   &reason,
		})
		if err != nil {
			return err
		}

		decision := input.FinalDecision
		resolver := input.Actor
		resolvedAt := out.At
		ticket.Resolution = &decision
		ticket.ResolvedBy = &resolver
		ticket.ResolvedAt = &resolvedAt

		if err := persistOutcome(ctx, tx, previous, out); err != nil {
			return err
		}
		outcome = out
		return nil
	})
	if err != nil {
		return nil, translateError(ctx, s.logger, "resolve", input.TicketID, err)
	}

	s.metrics.RecordTransition(string(previous), string(input.ResolutionStatus))
	s.publishEvent(ctx, events.Event{
		Type:      events.EventTicketResolved,
		TicketID:  input.TicketID,
		Actor:     input.Actor,
		Timestamp: outcome.At,
		Payload: events.TicketResolvedPayload{
			Status:        input.ResolutionStatus,
			FinalDecision: input.FinalDecision,
			ResolvedBy:    input.Actor,
			ResolvedAt:    outcome.At,
		},
	})
	return outcome.Ticket, nil
}

// persistOutcome writes the mutated ticket and its audit entry inside tx.
func persistOutcome(ctx context.Context, tx repository.Tx, previous domain.TicketStatus, out *workflow.Outcome) error {
	if err := tx.UpdateTicket(ctx, out.Ticket); err != nil {
		if errors.Is(err, repository.ErrDuplicateOpenTicket) {
			return apperrors.NewStateConflict(
				string(previous),
				string(out.Ticket.Status),
				"Another ticket with the same source query is already open.",
			)
		}
		return err
	}
	return tx.InsertAuditLog(ctx, out.Audit)
}

func validateTransitionInput(input TransitionInput) error {
	if !input.NewState.Valid() {
		return apperrors.NewInvalidRequest("unknown new_state", map[string]any{"new_state": string(input.NewState)})
	}
	if strings.TrimSpace(input.Actor) == "" {
		return apperrors.NewInvalidRequest("actor is required", nil)
	}
	if strings.TrimSpace(input.Action) == "" {
		return apperrors.NewInvalidRequest("action is required", nil)
	}
	return nil
}

// validTicketID reports whether id can name a ticket at all. Malformed ids cannot exist.
func validTicketID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.RequestID == "" {
		event.RequestID = observability.RequestIDFromContext(ctx)
	}
	_ = s.dispatcher.Publish(ctx, event)
}
