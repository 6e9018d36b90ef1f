package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/repository"
)

// SLAHistoryRepository is an in-memory repository.SLAHistoryRepository.
type SLAHistoryRepository struct {
	store *Store
}

func NewSLAHistoryRepository(store *Store) *SLAHistoryRepository {
	return &SLAHistoryRepository{store: store}
}

func (r *SLAHistoryRepository) Create(_ context.Context, history *domain.SLAHistory) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if history.ID == "" {
		history.ID = uuid.NewString()
	}
	history.CreatedAt = history.BreachedAt
	r.store.history = append(r.store.history, *history)
	return nil
}

// Latest returns the most recently appended row for ticketID.
func (r *SLAHistoryRepository) Latest(_ context.Context, ticketID string) (*domain.SLAHistory, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for i := len(r.store.history) - 1; i >= 0; i-- {
		if r.store.history[i].TicketID == ticketID {
			h := copyHistory(r.store.history[i])
			return &h, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *SLAHistoryRepository) MarkNotified(_ context.Context, id string, at time.Time) error {
	return r.mutate(id, func(h *domain.SLAHistory) error {
		if h.NotifiedAt != nil {
			return repository.ErrConflict
		}
		h.NotifiedAt = &at
		return nil
	})
}

func (r *SLAHistoryRepository) MarkResolved(_ context.Context, id string, at time.Time) error {
	return r.mutate(id, func(h *domain.SLAHistory) error {
		if h.ResolvedAt != nil {
			return repository.ErrConflict
		}
		h.ResolvedAt = &at
		return nil
	})
}

func (r *SLAHistoryRepository) ListByTicket(_ context.Context, ticketID string) ([]domain.SLAHistory, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var out []domain.SLAHistory
	for _, h := range r.store.history {
		if h.TicketID == ticketID {
			out = append(out, copyHistory(h))
		}
	}
	return out, nil
}

func (r *SLAHistoryRepository) mutate(id string, fn func(h *domain.SLAHistory) error) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for i := range r.store.history {
		if r.store.history[i].ID == id {
			return fn(&r.store.history[i])
		}
	}
	return repository.ErrNotFound
}

func copyHistory(h domain.SLAHistory) domain.SLAHistory {
	h.NotifiedAt = clonePtr(h.NotifiedAt)
	h.ResolvedAt = clonePtr(h.ResolvedAt)
	return h
}
