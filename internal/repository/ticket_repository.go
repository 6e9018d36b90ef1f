package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/persistence"
)

// TicketFilter captures listing parameters.
type TicketFilter struct {
	Statuses      []domain.TicketStatus
	Priorities    []domain.TicketPriority
	AssignedToID  *string
	SLABreached   *bool
	ExcludeClosed bool
	Limit         int
	Offset        int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	Count(ctx context.Context, filter TicketFilter) (int, error)
	UpdateStatus(ctx context.Context, id string, status domain.TicketStatus) error
	// Close sets status Closed and clears both SLA flags in one write.
	Close(ctx context.Context, id string, closedAt time.Time) error
	Assign(ctx context.Context, id, userID string) error

	// ListBreachCandidates returns open high-priority tickets not yet flagged as breached.
	ListBreachCandidates(ctx context.Context) ([]domain.Ticket, error)
	// ListPendingNotification returns open tickets flagged breached but not notified.
	ListPendingNotification(ctx context.Context) ([]domain.Ticket, error)
	// CompareAndSetSLAFlags writes next only if the ticket is open and still carries expected.
	// It returns ErrNotFound for a missing ticket and ErrConflict when the flags or status moved.
	CompareAndSetSLAFlags(ctx context.Context, id string, expected, next domain.SLAFlags) error
	ClearSLAFlags(ctx context.Context, id string) error
}

const ticketColumns = `t.id, t.title, t.description, t.priority, t.status, t.created_by_id, t.assigned_to_id,
               u.email, t.due_at, t.sla_breached, t.sla_notified, t.created_at, t.updated_at, t.closed_at`

const ticketFrom = `FROM tickets t LEFT JOIN users u ON u.id = t.assigned_to_id`

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (title, description, priority, status, created_by_id, assigned_to_id, due_at, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8)
        RETURNING id, updated_at`
	return persistence.Conn(ctx, r.pool).QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Priority,
		ticket.Status,
		ticket.CreatedByID,
		ticket.AssignedToID,
		ticket.DueAt,
		ticket.CreatedAt,
	).Scan(&ticket.ID, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` ` + ticketFrom + ` WHERE t.id=$1`
	ticket, err := scanTicket(persistence.Conn(ctx, r.pool).QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return ticket, err
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	where, args := buildTicketWhere(filter)

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s %s WHERE %s ORDER BY t.created_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, ticketFrom, where, limit, offset)
	return r.query(ctx, query, args...)
}

func (r *ticketRepository) Count(ctx context.Context, filter TicketFilter) (int, error) {
	where, args := buildTicketWhere(filter)
	var count int
	err := persistence.Conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM tickets t WHERE `+where, args...).Scan(&count)
	return count, err
}

func (r *ticketRepository) UpdateStatus(ctx context.Context, id string, status domain.TicketStatus) error {
	const query = `UPDATE tickets SET status=$1, closed_at=NULL, updated_at=NOW() WHERE id=$2`
	return r.execOne(ctx, query, status, id)
}

func (r *ticketRepository) Close(ctx context.Context, id string, closedAt time.Time) error {
	const query = `
        UPDATE tickets SET status=$1, closed_at=$2, sla_breached=FALSE, sla_notified=FALSE, updated_at=NOW()
        WHERE id=$3`
	return r.execOne(ctx, query, domain.TicketStatusClosed, closedAt, id)
}

func (r *ticketRepository) Assign(ctx context.Context, id, userID string) error {
	return r.execOne(ctx, `UPDATE tickets SET assigned_to_id=$1, updated_at=NOW() WHERE id=$2`, userID, id)
}

func (r *ticketRepository) ListBreachCandidates(ctx context.Context) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` ` + ticketFrom + `
        WHERE t.priority=$1 AND t.status <> $2 AND t.sla_breached = FALSE
        ORDER BY t.created_at ASC`
	return r.query(ctx, query, domain.TicketPriorityHigh, domain.TicketStatusClosed)
}

func (r *ticketRepository) ListPendingNotification(ctx context.Context) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` ` + ticketFrom + `
        WHERE t.sla_breached = TRUE AND t.sla_notified = FALSE AND t.status <> $1
        ORDER BY t.created_at ASC`
	return r.query(ctx, query, domain.TicketStatusClosed)
}

func (r *ticketRepository) CompareAndSetSLAFlags(ctx context.Context, id string, expected, next domain.SLAFlags) error {
	const query = `
        UPDATE tickets SET sla_breached=$1, sla_notified=$2, updated_at=NOW()
        WHERE id=$3 AND sla_breached=$4 AND sla_notified=$5 AND status <> $6`
	conn := persistence.Conn(ctx, r.pool)
	cmd, err := conn.Exec(ctx, query, next.Breached, next.Notified, id, expected.Breached, expected.Notified, domain.TicketStatusClosed)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tickets WHERE id=$1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConflict
}

func (r *ticketRepository) ClearSLAFlags(ctx context.Context, id string) error {
	return r.execOne(ctx, `UPDATE tickets SET sla_breached=FALSE, sla_notified=FALSE, updated_at=NOW() WHERE id=$1`, id)
}

func (r *ticketRepository) execOne(ctx context.Context, query string, args ...any) error {
	cmd, err := persistence.Conn(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ticketRepository) query(ctx context.Context, query string, args ...any) ([]domain.Ticket, error) {
	rows, err := persistence.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func buildTicketWhere(filter TicketFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("t.status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("t.priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.AssignedToID != nil {
		args = append(args, *filter.AssignedToID)
		clauses = append(clauses, fmt.Sprintf("t.assigned_to_id=$%d", len(args)))
	}
	if filter.SLABreached != nil {
		args = append(args, *filter.SLABreached)
		clauses = append(clauses, fmt.Sprintf("t.sla_breached=$%d", len(args)))
	}
	if filter.ExcludeClosed {
		args = append(args, domain.TicketStatusClosed)
		clauses = append(clauses, fmt.Sprintf("t.status <> $%d", len(args)))
	}
	return strings.Join(clauses, " AND "), args
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Priority,
		&ticket.Status,
		&ticket.CreatedByID,
		&ticket.AssignedToID,
		&ticket.AssigneeEmail,
		&ticket.DueAt,
		&ticket.SLABreached,
		&ticket.SLANotified,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ClosedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}
