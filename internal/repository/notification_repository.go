package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/persistence"
)

// NotificationFilter narrows a user's notification listing.
type NotificationFilter struct {
	UnreadOnly bool
	Since      *time.Time
	Limit      int
}

// NotificationRepository persists user notices.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	MarkDelivered(ctx context.Context, id string, at time.Time) error
	MarkDeliveryFailed(ctx context.Context, id string, reason string) error
	ListByUser(ctx context.Context, userID string, filter NotificationFilter) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

type notificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository builds repository.
func NewNotificationRepository(pool *pgxpool.Pool) NotificationRepository {
	return &notificationRepository{pool: pool}
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	const query = `
        INSERT INTO notifications (id, user_id, ticket_id, type, recipient, title, message, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := persistence.Conn(ctx, r.pool).Exec(ctx, query,
		n.ID, n.UserID, n.TicketID, n.Type, n.Recipient, n.Title, n.Message, n.CreatedAt,
	)
	return err
}

func (r *notificationRepository) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	return r.execOne(ctx, `UPDATE notifications SET delivered_at=$1, delivery_error=NULL WHERE id=$2`, at, id)
}

func (r *notificationRepository) MarkDeliveryFailed(ctx context.Context, id string, reason string) error {
	return r.execOne(ctx, `UPDATE notifications SET delivery_error=$1 WHERE id=$2`, reason, id)
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID string, filter NotificationFilter) ([]domain.Notification, error) {
	clauses := []string{"user_id=$1"}
	args := []any{userID}
	if filter.UnreadOnly {
		clauses = append(clauses, "read = FALSE")
	}
	if filter.Since != nil {
		args = append(args, *filter.Since)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(`
        SELECT id, user_id, ticket_id, type, recipient, title, message, read, created_at, delivered_at, delivery_error
        FROM notifications WHERE %s ORDER BY created_at DESC LIMIT %d`, strings.Join(clauses, " AND "), limit)

	rows, err := persistence.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(
			&n.ID, &n.UserID, &n.TicketID, &n.Type, &n.Recipient, &n.Title, &n.Message,
			&n.Read, &n.CreatedAt, &n.DeliveredAt, &n.DeliveryError,
		); err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

func (r *notificationRepository) MarkRead(ctx context.Context, id string) error {
	return r.execOne(ctx, `UPDATE notifications SET read=TRUE WHERE id=$1`, id)
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	cmd, err := persistence.Conn(ctx, r.pool).Exec(ctx, `UPDATE notifications SET read=TRUE WHERE user_id=$1 AND read=FALSE`, userID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *notificationRepository) execOne(ctx context.Context, query string, args ...any) error {
	cmd, err := persistence.Conn(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
