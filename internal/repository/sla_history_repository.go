package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/persistence"
)

// SLAHistoryRepository stores breach cycles.
type SLAHistoryRepository interface {
	Create(ctx context.Context, history *domain.SLAHistory) error
	// Latest returns the most recent row for a ticket or ErrNotFound.
	Latest(ctx context.Context, ticketID string) (*domain.SLAHistory, error)
	MarkNotified(ctx context.Context, id string, at time.Time) error
	MarkResolved(ctx context.Context, id string, at time.Time) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.SLAHistory, error)
}

type slaHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewSLAHistoryRepository builds repository.
func NewSLAHistoryRepository(pool *pgxpool.Pool) SLAHistoryRepository {
	return &slaHistoryRepository{pool: pool}
}

func (r *slaHistoryRepository) Create(ctx context.Context, history *domain.SLAHistory) error {
	const query = `
        INSERT INTO sla_history (ticket_id, breached_at, created_at)
        VALUES ($1,$2,$2)
        RETURNING id, created_at`
	return persistence.Conn(ctx, r.pool).QueryRow(ctx, query,
		history.TicketID,
		history.BreachedAt,
	).Scan(&history.ID, &history.CreatedAt)
}

func (r *slaHistoryRepository) Latest(ctx context.Context, ticketID string) (*domain.SLAHistory, error) {
	const query = `
        SELECT id, ticket_id, breached_at, notified_at, resolved_at, created_at
        FROM sla_history WHERE ticket_id=$1 ORDER BY created_at DESC, breached_at DESC LIMIT 1`
	var h domain.SLAHistory
	err := persistence.Conn(ctx, r.pool).QueryRow(ctx, query, ticketID).Scan(
		&h.ID, &h.TicketID, &h.BreachedAt, &h.NotifiedAt, &h.ResolvedAt, &h.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (r *slaHistoryRepository) MarkNotified(ctx context.Context, id string, at time.Time) error {
	cmd, err := persistence.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE sla_history SET notified_at=$1 WHERE id=$2 AND notified_at IS NULL`, at, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

func (r *slaHistoryRepository) MarkResolved(ctx context.Context, id string, at time.Time) error {
	cmd, err := persistence.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE sla_history SET resolved_at=$1 WHERE id=$2 AND resolved_at IS NULL`, at, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

func (r *slaHistoryRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.SLAHistory, error) {
	const query = `
        SELECT id, ticket_id, breached_at, notified_at, resolved_at, created_at
        FROM sla_history WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := persistence.Conn(ctx, r.pool).Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SLAHistory
	for rows.Next() {
		var h domain.SLAHistory
		if err := rows.Scan(&h.ID, &h.TicketID, &h.BreachedAt, &h.NotifiedAt, &h.ResolvedAt, &h.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, h)
	}
	return result, rows.Err()
}
