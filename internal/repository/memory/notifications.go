package memory

import (
	"context"
	"sort"
	"time"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/repository"
)

// NotificationRepository is an in-memory repository.NotificationRepository.
type NotificationRepository struct {
	store *Store
}

func NewNotificationRepository(store *Store) *NotificationRepository {
	return &NotificationRepository{store: store}
}

func (r *NotificationRepository) Create(_ context.Context, n *domain.Notification) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.notifications = append(r.store.notifications, *n)
	return nil
}

func (r *NotificationRepository) MarkDelivered(_ context.Context, id string, at time.Time) error {
	return r.mutate(id, func(n *domain.Notification) {
		n.DeliveredAt = &at
		n.DeliveryError = nil
	})
}

func (r *NotificationRepository) MarkDeliveryFailed(_ context.Context, id string, reason string) error {
	return r.mutate(id, func(n *domain.Notification) {
		n.DeliveryError = &reason
	})
}

func (r *NotificationRepository) ListByUser(_ context.Context, userID string, filter repository.NotificationFilter) ([]domain.Notification, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var out []domain.Notification
	for _, n := range r.store.notifications {
		if n.UserID == nil || *n.UserID != userID {
			continue
		}
		if filter.UnreadOnly && n.Read {
			continue
		}
		if filter.Since != nil && n.CreatedAt.Before(*filter.Since) {
			continue
		}
		n.UserID = clonePtr(n.UserID)
		n.DeliveredAt = clonePtr(n.DeliveredAt)
		n.DeliveryError = clonePtr(n.DeliveryError)
		out = append(out, n)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *NotificationRepository) MarkRead(_ context.Context, id string) error {
	return r.mutate(id, func(n *domain.Notification) { n.Read = true })
}

func (r *NotificationRepository) MarkAllRead(_ context.Context, userID string) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var count int64
	for i := range r.store.notifications {
		n := &r.store.notifications[i]
		if n.UserID != nil && *n.UserID == userID && !n.Read {
			n.Read = true
			count++
		}
	}
	return count, nil
}

func (r *NotificationRepository) mutate(id string, fn func(n *domain.Notification)) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for i := range r.store.notifications {
		if r.store.notifications[i].ID == id {
			fn(&r.store.notifications[i])
			return nil
		}
	}
	return repository.ErrNotFound
}
