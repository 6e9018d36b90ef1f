package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/repository"
)

// TicketRepository is an in-memory repository.TicketRepository.
type TicketRepository struct {
	store *Store
}

// NewTicketRepository binds a ticket repository to store.
func NewTicketRepository(store *Store) *TicketRepository {
	return &TicketRepository{store: store}
}

func (r *TicketRepository) Create(_ context.Context, ticket *domain.Ticket) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now().UTC()
	}
	ticket.UpdatedAt = ticket.CreatedAt
	stored := *ticket
	stored.AssigneeEmail = nil
	r.store.tickets[ticket.ID] = stored
	return nil
}

func (r *TicketRepository) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	t, ok := r.store.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := r.view(t)
	return &out, nil
}

func (r *TicketRepository) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	matched := r.filter(filter)
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (r *TicketRepository) Count(_ context.Context, filter repository.TicketFilter) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return len(r.filter(filter)), nil
}

func (r *TicketRepository) UpdateStatus(_ context.Context, id string, status domain.TicketStatus) error {
	return r.mutate(id, func(t *domain.Ticket) error {
		t.Status = status
		t.ClosedAt = nil
		return nil
	})
}

func (r *TicketRepository) Close(_ context.Context, id string, closedAt time.Time) error {
	return r.mutate(id, func(t *domain.Ticket) error {
		t.Status = domain.TicketStatusClosed
		t.ClosedAt = &closedAt
		t.SLABreached = false
		t.SLANotified = false
		return nil
	})
}

func (r *TicketRepository) Assign(_ context.Context, id, userID string) error {
	return r.mutate(id, func(t *domain.Ticket) error {
		t.AssignedToID = &userID
		return nil
	})
}

func (r *TicketRepository) ListBreachCandidates(_ context.Context) ([]domain.Ticket, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.oldestFirst(func(t domain.Ticket) bool {
		return t.Priority == domain.TicketPriorityHigh && !t.IsClosed() && !t.SLABreached
	}), nil
}

func (r *TicketRepository) ListPendingNotification(_ context.Context) ([]domain.Ticket, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.oldestFirst(func(t domain.Ticket) bool {
		return t.SLABreached && !t.SLANotified && !t.IsClosed()
	}), nil
}

func (r *TicketRepository) CompareAndSetSLAFlags(_ context.Context, id string, expected, next domain.SLAFlags) error {
	return r.mutate(id, func(t *domain.Ticket) error {
		if t.IsClosed() || t.Flags() != expected {
			return repository.ErrConflict
		}
		t.SLABreached = next.Breached
		t.SLANotified = next.Notified
		return nil
	})
}

func (r *TicketRepository) ClearSLAFlags(_ context.Context, id string) error {
	return r.mutate(id, func(t *domain.Ticket) error {
		t.SLABreached = false
		t.SLANotified = false
		return nil
	})
}

func (r *TicketRepository) mutate(id string, fn func(t *domain.Ticket) error) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	t, ok := r.store.tickets[id]
	if !ok {
		return repository.ErrNotFound
	}
	if err := fn(&t); err != nil {
		return err
	}
	t.UpdatedAt = time.Now().UTC()
	r.store.tickets[id] = t
	return nil
}

func (r *TicketRepository) filter(filter repository.TicketFilter) []domain.Ticket {
	var out []domain.Ticket
	for _, t := range r.store.tickets {
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, t.Status) {
			continue
		}
		if len(filter.Priorities) > 0 && !containsPriority(filter.Priorities, t.Priority) {
			continue
		}
		if filter.AssignedToID != nil && (t.AssignedToID == nil || *t.AssignedToID != *filter.AssignedToID) {
			continue
		}
		if filter.SLABreached != nil && t.SLABreached != *filter.SLABreached {
			continue
		}
		if filter.ExcludeClosed && t.IsClosed() {
			continue
		}
		out = append(out, r.view(t))
	}
	return out
}

func (r *TicketRepository) oldestFirst(match func(domain.Ticket) bool) []domain.Ticket {
	var out []domain.Ticket
	for _, t := range r.store.tickets {
		if match(t) {
			out = append(out, r.view(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// view copies t and joins the assignee email. Caller holds the lock.
func (r *TicketRepository) view(t domain.Ticket) domain.Ticket {
	t.AssignedToID = clonePtr(t.AssignedToID)
	t.DueAt = clonePtr(t.DueAt)
	t.ClosedAt = clonePtr(t.ClosedAt)
	t.AssigneeEmail = nil
	if t.AssignedToID != nil {
		if u, ok := r.store.users[*t.AssignedToID]; ok {
			email := u.Email
			t.AssigneeEmail = &email
		}
	}
	return t
}

func containsStatus(list []domain.TicketStatus, s domain.TicketStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsPriority(list []domain.TicketPriority, p domain.TicketPriority) bool {
	for _, v := range list {
		if v == p {
			return true
		}
	}
	return false
}
