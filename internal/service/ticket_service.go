package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/events"
	"github.com/spec-kit/helpdesk-sla/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-sla/pkg/util"
)

// TicketService coordinates ticket workflows that touch SLA state.
type TicketService struct {
	tickets    repository.TicketRepository
	users      repository.UserRepository
	tx         repository.Transactor
	sla        *SLAService
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	UserRepo   repository.UserRepository
	Tx         repository.Transactor
	SLA        *SLAService
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Now        func() time.Time
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title        string
	Description  string
	Priority     domain.TicketPriority
	CreatedByID  string
	AssignedToID *string
	DueAt        *time.Time
}

// TicketListFilter describes listing filters.
type TicketListFilter struct {
	Statuses     []domain.TicketStatus
	Priorities   []domain.TicketPriority
	AssignedToID *string
	Limit        int
	Offset       int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	s := &TicketService{
		tickets:    deps.TicketRepo,
		users:      deps.UserRepo,
		tx:         deps.Tx,
		sla:        deps.SLA,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		now:        deps.Now,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// CreateTicket opens a ticket. Priority defaults to medium.
func (s *TicketService) CreateTicket(ctx context.Context, input TicketCreateInput) (*domain.Ticket, error) {
	if _, err := s.users.GetByID(ctx, input.CreatedByID); err != nil {
		return nil, mapRepoError(err, "user", input.CreatedByID)
	}
	if input.AssignedToID != nil {
		if _, err := s.users.GetByID(ctx, *input.AssignedToID); err != nil {
			return nil, mapRepoError(err, "user", *input.AssignedToID)
		}
	}

	ticket := &domain.Ticket{
		Title:        strings.TrimSpace(input.Title),
		Description:  strings.TrimSpace(input.Description),
		Priority:     input.Priority,
		Status:       domain.TicketStatusOpen,
		CreatedByID:  input.CreatedByID,
		AssignedToID: input.AssignedToID,
		DueAt:        input.DueAt,
		CreatedAt:    s.now().UTC(),
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityMedium
	}
	if !ticket.Priority.Valid() {
		return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": ticket.Priority})
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    userActor(ticket.CreatedByID),
		Payload: events.TicketCreatedPayload{
			Priority:    ticket.Priority,
			Title:       ticket.Title,
			SLADeadline: s.sla.Policy().DeadlineOf(ticket),
		},
	})
	return s.GetTicket(ctx, ticket.ID)
}

// GetTicket fetches a ticket with its assignee email.
func (s *TicketService) GetTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "ticket", id)
	}
	return ticket, nil
}

// ListTickets returns a page of tickets, newest first.
func (s *TicketService) ListTickets(ctx context.Context, filter TicketListFilter) ([]domain.Ticket, error) {
	tickets, err := s.tickets.List(ctx, repository.TicketFilter{
		Statuses:     filter.Statuses,
		Priorities:   filter.Priorities,
		AssignedToID: filter.AssignedToID,
		Limit:        filter.Limit,
		Offset:       filter.Offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// UpdateStatus moves a ticket to newStatus. Moving to Closed goes through CloseTicket.
// Reopening keeps the original creation time, so an overdue high priority ticket breaches again.
func (s *TicketService) UpdateStatus(ctx context.Context, id string, newStatus domain.TicketStatus) (*domain.Ticket, error) {
	if !newStatus.Valid() {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": newStatus})
	}
	if newStatus == domain.TicketStatusClosed {
		return s.CloseTicket(ctx, id)
	}
	ticket, err := s.GetTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	if ticket.Status == newStatus {
		return ticket, nil
	}
	if err := s.tickets.UpdateStatus(ctx, id, newStatus); err != nil {
		return nil, mapRepoError(err, "ticket", id)
	}
	s.publishStatusChange(ctx, id, ticket.Status, newStatus)
	return s.GetTicket(ctx, id)
}

// CloseTicket resolves the SLA cycle and closes the ticket in one transaction.
func (s *TicketService) CloseTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	now := s.now().UTC()
	var (
		oldStatus   domain.TicketStatus
		wasBreached bool
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		ticket, err := s.tickets.GetByID(ctx, id)
		if err != nil {
			return err
		}
		oldStatus = ticket.Status
		if wasBreached, err = s.sla.resolve(ctx, id, now); err != nil {
			return err
		}
		return s.tickets.Close(ctx, id, now)
	})
	if err != nil {
		return nil, mapRepoError(err, "ticket", id)
	}
	s.sla.resolved(ctx, id, wasBreached, now)
	if oldStatus != domain.TicketStatusClosed {
		s.publishStatusChange(ctx, id, oldStatus, domain.TicketStatusClosed)
	}
	return s.GetTicket(ctx, id)
}

// AssignTicket sets the assignee who receives SLA notices.
func (s *TicketService) AssignTicket(ctx context.Context, id, userID string) (*domain.Ticket, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, mapRepoError(err, "user", userID)
	}
	ticket, err := s.GetTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.tickets.Assign(ctx, id, userID); err != nil {
		return nil, mapRepoError(err, "ticket", id)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: id,
		Actor:    events.Actor{Type: events.ActorSystem},
		Payload: events.TicketAssignedPayload{
			AssigneeID:    userID,
			PreviousID:    ticket.AssignedToID,
			AssigneeEmail: user.Email,
		},
	})
	return s.GetTicket(ctx, id)
}

func (s *TicketService) publishStatusChange(ctx context.Context, id string, from, to domain.TicketStatus) {
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: id,
		Actor:    events.Actor{Type: events.ActorSystem},
		Payload: events.TicketStatusChangedPayload{
			OldStatus: from,
			NewStatus: to,
		},
	})
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish event failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

func userActor(userID string) events.Actor {
	return events.Actor{
		Type:   events.ActorUser,
		UserID: &userID,
	}
}
