package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spec-kit/escalation-service/internal/domain"
)

type unitOfWork struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewUnitOfWork returns a Postgres-backed UnitOfWork running at read committed with
// row-level locks taken by GetTicketForUpdate.
func NewUnitOfWork(pool *pgxpool.Pool, logger *zap.Logger) UnitOfWork {
	return &unitOfWork{pool: pool, logger: logger}
}

func (u *unitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if u.pool == nil {
		return errors.New("postgres pool not configured")
	}
	pgTx, err := u.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = pgTx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(ctx, &pgTicketTx{tx: pgTx}); err != nil {
		if rbErr := pgTx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			u.logger.Error("failed to rollback transaction",
				zap.Error(rbErr),
				zap.NamedError("original_error", err),
			)
		}
		return err
	}

	if err := pgTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type pgTicketTx struct {
	tx pgx.Tx
}

func (t *pgTicketTx) GetTicketForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1 FOR UPDATE`
	return fetchTicket(ctx, t.tx, query, id)
}

func (t *pgTicketTx) FindOpenBySourceQuery(ctx context.Context, sourceQuery string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets
        WHERE md5(source_query)=md5($1) AND source_query=$1 AND status='CREATED'
        LIMIT 1`
	return fetchTicket(ctx, t.tx, query, sourceQuery)
}

// InsertTicket relies on the partial unique index over open source queries. ON CONFLICT
// waits for a concurrent inserter to finish, so a duplicate is reported only once the
// competing row is committed and visible to the next statement.
func (t *pgTicketTx) InsertTicket(ctx context.Context, ticket *domain.Ticket) error {
	history, err := encodeHistory(ticket.HistoryLog)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO tickets (id, source_query, agent_decision, confidence_score, escalation_reason, assigned_to,
            status, resolution, resolved_by, resolved_at, history_log, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
        ON CONFLICT DO NOTHING`
	cmd, err := t.tx.Exec(ctx, query,
		ticket.ID,
		ticket.SourceQuery,
		ticket.AgentDecision,
		ticket.ConfidenceScore,
		ticket.EscalationReason,
		ticket.AssignedTo,
		string(ticket.Status),
		ticket.Resolution,
		ticket.ResolvedBy,
		ticket.ResolvedAt,
		history,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ticket: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrDuplicateOpenTicket
	}
	return nil
}

func (t *pgTicketTx) UpdateTicket(ctx context.Context, ticket *domain.Ticket) error {
	history, err := encodeHistory(ticket.HistoryLog)
	if err != nil {
		return err
	}
	const query = `
        UPDATE tickets SET assigned_to=$1, status=$2, resolution=$3, resolved_by=$4, resolved_at=$5,
            history_log=$6, updated_at=$7
        WHERE id=$8`
	cmd, err := t.tx.Exec(ctx, query,
		ticket.AssignedTo,
		string(ticket.Status),
		ticket.Resolution,
		ticket.ResolvedBy,
		ticket.ResolvedAt,
		history,
		ticket.UpdatedAt,
		ticket.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateOpenTicket
		}
		return fmt.Errorf("update ticket: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTicketTx) InsertAuditLog(ctx context.Context, entry *domain.AuditLogEntry) error {
	return insertAuditLog(ctx, t.tx, entry)
}
