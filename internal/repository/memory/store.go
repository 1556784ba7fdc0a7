// Package memory is an in-process implementation of the repository contract. Units of work
// are serialized and their writes are staged until commit, so a failed unit leaves no trace.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/spec-kit/escalation-service/internal/domain"
	"github.com/spec-kit/escalation-service/internal/repository"
)

// Store keeps tickets and the audit ledger in memory.
type Store struct {
	mu      sync.RWMutex
	tickets map[string]*domain.Ticket
	audit   []domain.AuditLogEntry
}

// New creates an empty store.
func New() *Store {
	return &Store{
		tickets: make(map[string]*domain.Ticket),
	}
}

// Tickets returns the read side for tickets.
func (s *Store) Tickets() repository.TicketRepository {
	return ticketView{s}
}

// AuditLogs returns the read side of the audit ledger.
func (s *Store) AuditLogs() repository.AuditLogRepository {
	return auditView{s}
}

// WithinTx holds the store's write lock for the whole unit of work, which gives every
// ticket a single writer. Staged writes become visible only when fn returns nil.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{store: s, staged: make(map[string]*domain.Ticket)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	for id, ticket := range tx.staged {
		s.tickets[id] = ticket
	}
	s.audit = append(s.audit, tx.audit...)
	return nil
}

type memTx struct {
	store  *Store
	staged map[string]*domain.Ticket
	audit  []domain.AuditLogEntry
}

func (t *memTx) lookup(id string) (*domain.Ticket, bool) {
	if ticket, ok := t.staged[id]; ok {
		return ticket, true
	}
	ticket, ok := t.store.tickets[id]
	return ticket, ok
}

// openHolder returns the CREATED ticket other than excludeID holding sourceQuery.
func (t *memTx) openHolder(sourceQuery, excludeID string) *domain.Ticket {
	seen := make(map[string]struct{}, len(t.staged))
	for id, ticket := range t.staged {
		seen[id] = struct{}{}
		if id != excludeID && isOpenFor(ticket, sourceQuery) {
			return ticket
		}
	}
	for id, ticket := range t.store.tickets {
		if _, shadowed := seen[id]; shadowed {
			continue
		}
		if id != excludeID && isOpenFor(ticket, sourceQuery) {
			return ticket
		}
	}
	return nil
}

func isOpenFor(ticket *domain.Ticket, sourceQuery string) bool {
	return ticket.Status == domain.TicketStatusCreated && ticket.SourceQuery == sourceQuery
}

func (t *memTx) GetTicketForUpdate(_ context.Context, id string) (*domain.Ticket, error) {
	ticket, ok := t.lookup(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return ticket.Clone(), nil
}

func (t *memTx) FindOpenBySourceQuery(_ context.Context, sourceQuery string) (*domain.Ticket, error) {
	if holder := t.openHolder(sourceQuery, ""); holder != nil {
		return holder.Clone(), nil
	}
	return nil, repository.ErrNotFound
}

func (t *memTx) InsertTicket(_ context.Context, ticket *domain.Ticket) error {
	if _, exists := t.lookup(ticket.ID); exists {
		return fmt.Errorf("insert ticket: id %s already exists", ticket.ID)
	}
	if ticket.Status == domain.TicketStatusCreated && t.openHolder(ticket.SourceQuery, ticket.ID) != nil {
		return repository.ErrDuplicateOpenTicket
	}
	t.staged[ticket.ID] = ticket.Clone()
	return nil
}

func (t *memTx) UpdateTicket(_ context.Context, ticket *domain.Ticket) error {
	current, exists := t.lookup(ticket.ID)
	if !exists {
		return repository.ErrNotFound
	}
	if ticket.Status == domain.TicketStatusCreated && t.openHolder(current.SourceQuery, ticket.ID) != nil {
		return repository.ErrDuplicateOpenTicket
	}

	// Creation-time fields are not writable through an update.
	next := ticket.Clone()
	next.SourceQuery = current.SourceQuery
	next.AgentDecision = current.AgentDecision
	next.ConfidenceScore = current.ConfidenceScore
	next.EscalationReason = current.EscalationReason
	next.CreatedAt = current.CreatedAt
	t.staged[ticket.ID] = next
	return nil
}

func (t *memTx) InsertAuditLog(_ context.Context, entry *domain.AuditLogEntry) error {
	if _, exists := t.lookup(entry.TicketID); !exists {
		return fmt.Errorf("insert audit log: ticket %s does not exist", entry.TicketID)
	}
	for _, list := range [][]domain.AuditLogEntry{t.store.audit, t.audit} {
		for _, existing := range list {
			if existing.ID == entry.ID {
				return fmt.Errorf("insert audit log: id %d already exists", entry.ID)
			}
		}
	}
	t.audit = append(t.audit, entry.Clone())
	return nil
}

type ticketView struct {
	s *Store
}

func (v ticketView) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	ticket, ok := v.s.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return ticket.Clone(), nil
}

func (v ticketView) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	var result []domain.Ticket
	for _, ticket := range v.s.tickets {
		if filter.Status != nil && ticket.Status != *filter.Status {
			continue
		}
		if filter.AssignedTo != nil && (ticket.AssignedTo == nil || *ticket.AssignedTo != *filter.AssignedTo) {
			continue
		}
		if filter.CreatedFrom != nil && ticket.CreatedAt.Before(*filter.CreatedFrom) {
			continue
		}
		if filter.CreatedTo != nil && ticket.CreatedAt.After(*filter.CreatedTo) {
			continue
		}
		result = append(result, *ticket.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return paginate(result, filter.Limit, filter.Offset), nil
}

type auditView struct {
	s *Store
}

func (v auditView) List(_ context.Context, filter repository.AuditLogFilter) ([]domain.AuditLogEntry, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	var result []domain.AuditLogEntry
	for _, entry := range v.s.audit {
		if filter.TicketID != nil && entry.TicketID != *filter.TicketID {
			continue
		}
		if filter.Actor != nil && entry.Actor != *filter.Actor {
			continue
		}
		if filter.Action != nil && entry.Action != *filter.Action {
			continue
		}
		result = append(result, entry.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].Timestamp.After(result[j].Timestamp)
		}
		return result[i].ID > result[j].ID
	})
	return paginate(result, filter.Limit, filter.Offset), nil
}

func (v auditView) CountByTicket(_ context.Context, ticketID string) (int, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	count := 0
	for _, entry := range v.s.audit {
		if entry.TicketID == ticketID {
			count++
		}
	}
	return count, nil
}

func paginate[T any](items []T, limit, offset int) []T {
	limit, offset = repository.NormalizePage(limit, offset, 100, 0)
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
