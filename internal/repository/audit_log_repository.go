package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/escalation-service/internal/domain"
)

const auditColumns = `id, ticket_id, actor, action, previous_state, new_state, reason, metadata, ts`

type auditLogRepository struct {
	pool *pgxpool.Pool
}

// NewAuditLogRepository builds the read side of the audit ledger.
func NewAuditLogRepository(pool *pgxpool.Pool) AuditLogRepository {
	return &auditLogRepository{pool: pool}
}

func (r *auditLogRepository) List(ctx context.Context, filter AuditLogFilter) ([]domain.AuditLogEntry, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.TicketID != nil {
		args = append(args, *filter.TicketID)
		clauses = append(clauses, fmt.Sprintf("ticket_id=$%d", len(args)))
	}
	if filter.Actor != nil {
		args = append(args, *filter.Actor)
		clauses = append(clauses, fmt.Sprintf("actor=$%d", len(args)))
	}
	if filter.Action != nil {
		args = append(args, *filter.Action)
		clauses = append(clauses, fmt.Sprintf("action=$%d", len(args)))
	}

	limit, offset := NormalizePage(filter.Limit, filter.Offset, 100, 0)
	query := fmt.Sprintf(`SELECT %s FROM audit_logs WHERE %s ORDER BY ts DESC, id DESC LIMIT %d OFFSET %d`,
		auditColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	var result []domain.AuditLogEntry
	for rows.Next() {
		entry, err := scanAuditLog(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *entry)
	}
	return result, rows.Err()
}

func (r *auditLogRepository) CountByTicket(ctx context.Context, ticketID string) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM audit_logs WHERE ticket_id=$1`, ticketID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count audit logs: %w", err)
	}
	return count, nil
}

func scanAuditLog(row pgx.Row) (*domain.AuditLogEntry, error) {
	var (
		entry    domain.AuditLogEntry
		prev     *string
		next     string
		metadata []byte
	)
	if err := row.Scan(
		&entry.ID,
		&entry.TicketID,
		&entry.Actor,
		&entry.Action,
		&prev,
		&next,
		&entry.Reason,
		&metadata,
		&entry.Timestamp,
	); err != nil {
		return nil, err
	}
	if prev != nil {
		status := domain.TicketStatus(*prev)
		entry.PreviousState = &status
	}
	entry.NewState = domain.TicketStatus(next)
	entry.Timestamp = entry.Timestamp.UTC()
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &entry.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata of audit log %d: %w", entry.ID, err)
		}
	}
	return &entry, nil
}

func insertAuditLog(ctx context.Context, q querier, entry *domain.AuditLogEntry) error {
	var prev *string
	if entry.PreviousState != nil {
		s := string(*entry.PreviousState)
		prev = &s
	}
	var metadata any
	if entry.Metadata != nil {
		raw, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("encode audit metadata: %w", err)
		}
		metadata = raw
	}

	const query = `
        INSERT INTO audit_logs (id, ticket_id, actor, action, previous_state, new_state, reason, metadata, ts)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	if _, err := q.Exec(ctx, query,
		entry.ID,
		entry.TicketID,
		entry.Actor,
		entry.Action,
		prev,
		string(entry.NewState),
		entry.Reason,
		metadata,
		entry.Timestamp,
	); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}
