package repository

import (
	"context"
	"errors"
	"time"

	"github.com/spec-kit/escalation-service/internal/domain"
)

var (
	// ErrNotFound is returned when the referenced row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateOpenTicket is returned when a write would leave two CREATED tickets with
	// the same source query.
	ErrDuplicateOpenTicket = errors.New("open ticket with the same source query already exists")
)

// TicketFilter captures ticket listing parameters.
type TicketFilter struct {
	Status      *domain.TicketStatus
	AssignedTo  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// AuditLogFilter captures audit ledger query parameters.
type AuditLogFilter struct {
	TicketID *string
	Actor    *string
	Action   *string
	Limit    int
	Offset   int
}

// TicketRepository provides read access to tickets outside a unit of work.
type TicketRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

// AuditLogRepository is the read side of the audit ledger. Entries are only ever written
// through Tx.InsertAuditLog.
type AuditLogRepository interface {
	List(ctx context.Context, filter AuditLogFilter) ([]domain.AuditLogEntry, error)
	CountByTicket(ctx context.Context, ticketID string) (int, error)
}

// Tx is the set of operations available inside one unit of work. Everything written
// through a Tx commits together or not at all.
type Tx interface {
	// GetTicketForUpdate loads a ticket and holds its row lock until the unit of work ends.
	GetTicketForUpdate(ctx context.Context, id string) (*domain.Ticket, error)
	// FindOpenBySourceQuery returns the CREATED ticket holding sourceQuery, or ErrNotFound.
	FindOpenBySourceQuery(ctx context.Context, sourceQuery string) (*domain.Ticket, error)
	// InsertTicket returns ErrDuplicateOpenTicket when another CREATED ticket holds the
	// same source query; the unit of work stays usable in that case.
	InsertTicket(ctx context.Context, ticket *domain.Ticket) error
	UpdateTicket(ctx context.Context, ticket *domain.Ticket) error
	InsertAuditLog(ctx context.Context, entry *domain.AuditLogEntry) error
}

// UnitOfWork runs fn inside a transaction, committing when fn returns nil and rolling
// back otherwise.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// NormalizePage clamps limit to [1, max] (defaulting to def) and offset to >= 0.
func NormalizePage(limit, offset, def, max int) (int, int) {
	if limit <= 0 {
		limit = def
	}
	if max > 0 && limit > max {
		limit = max
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
