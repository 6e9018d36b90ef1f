package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/config"
	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/events"
	"github.com/spec-kit/helpdesk-sla/internal/observability"
	"github.com/spec-kit/helpdesk-sla/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-sla/pkg/util"
)

// ErrScanInProgress is returned when another scan holds the guard.
var ErrScanInProgress = errors.New("sla scan already in progress")

// SLANotice is what the monitor hands to the notifier.
type SLANotice struct {
	Type          domain.NotificationType
	TicketID      string
	Title         string
	AssigneeID    *string
	AssigneeEmail string
	Priority      domain.TicketPriority
	CreatedAt     time.Time
	Deadline      time.Time
}

// Notifier accepts notices for asynchronous, best-effort delivery.
// An error means the notice was not accepted; it is never retried by the caller.
type Notifier interface {
	Notify(ctx context.Context, notice SLANotice) error
}

// ScanLock is a cross-process guard; release must be called when acquired is true.
type ScanLock interface {
	TryAcquire(ctx context.Context) (release func(context.Context), acquired bool, err error)
}

// ScanReport summarizes one scan pass.
type ScanReport struct {
	Breached int `json:"breached"`
	Notified int `json:"notified"`
	Warned   int `json:"warned"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// SLAStatus is the read-only standing of one ticket.
type SLAStatus struct {
	TicketID  string
	State     SLAState
	Breached  bool
	Notified  bool
	Remaining time.Duration
	Deadline  *time.Time
}

// SLADependencies bundles collaborators of the monitor.
type SLADependencies struct {
	TicketRepo  repository.TicketRepository
	HistoryRepo repository.SLAHistoryRepository
	Tx          repository.Transactor
	Notifier    Notifier
	Dispatcher  events.Dispatcher
	// Warnings dedups pre-deadline notices; defaults to a process-local set.
	Warnings OnceMarker
	// Lock is optional and guards scans across replicas.
	Lock    ScanLock
	Metrics *observability.Metrics
	Logger  *zap.Logger
	Config  config.SLAConfig
	Now     func() time.Time
}

// SLAService detects breaches, marks notification and resolves SLA cycles.
type SLAService struct {
	tickets    repository.TicketRepository
	history    repository.SLAHistoryRepository
	tx         repository.Transactor
	notifier   Notifier
	dispatcher events.Dispatcher
	warnings   OnceMarker
	lock       ScanLock
	metrics    *observability.Metrics
	logger     *zap.Logger
	policy     SLAPolicy
	warnBefore time.Duration
	now        func() time.Time

	running sync.Mutex
}

// NewSLAService constructs the monitor.
func NewSLAService(deps SLADependencies) *SLAService {
	s := &SLAService{
		tickets:    deps.TicketRepo,
		history:    deps.HistoryRepo,
		tx:         deps.Tx,
		notifier:   deps.Notifier,
		dispatcher: deps.Dispatcher,
		warnings:   deps.Warnings,
		lock:       deps.Lock,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		policy:     NewSLAPolicy(deps.Config.HighPriorityDuration),
		warnBefore: deps.Config.WarningBefore,
		now:        deps.Now,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.warnings == nil {
		s.warnings = NewMemoryOnce()
	}
	return s
}

// Policy exposes the deadline policy used by the monitor.
func (s *SLAService) Policy() SLAPolicy {
	return s.policy
}

// RunScanOnce performs one scan pass. Both candidate sets are read before any transition is
// applied, so a ticket breached in this pass is notified on the next one.
// Per-ticket failures are counted in the report; only candidate query failures return an error.
func (s *SLAService) RunScanOnce(ctx context.Context) (ScanReport, error) {
	var report ScanReport
	if !s.running.TryLock() {
		s.metrics.RecordScanSkipped("in_progress")
		return report, ErrScanInProgress
	}
	defer s.running.Unlock()

	if s.lock != nil {
		release, acquired, err := s.lock.TryAcquire(ctx)
		if err != nil {
			s.metrics.RecordScanFailure()
			return report, fmt.Errorf("acquire scan lock: %w", err)
		}
		if !acquired {
			s.metrics.RecordScanSkipped("lock_held")
			return report, ErrScanInProgress
		}
		defer release(context.WithoutCancel(ctx))
	}

	started := time.Now()
	now := s.now()

	breachCandidates, err := s.tickets.ListBreachCandidates(ctx)
	if err != nil {
		s.metrics.RecordScanFailure()
		return report, fmt.Errorf("list breach candidates: %w", err)
	}
	pending, err := s.tickets.ListPendingNotification(ctx)
	if err != nil {
		s.metrics.RecordScanFailure()
		return report, fmt.Errorf("list pending notifications: %w", err)
	}

	for i := range breachCandidates {
		if ctx.Err() != nil {
			break
		}
		ticket := &breachCandidates[i]
		deadline, enforced := s.policy.Deadline(ticket.CreatedAt, ticket.Priority)
		switch {
		case breachDue(ticket, deadline, enforced, now):
			s.tally(&report, ticket.ID, "breach", s.breach(ctx, ticket, deadline, now), &report.Breached)
		case warningDue(ticket, deadline, enforced, s.warnBefore, now):
			if s.warn(ctx, ticket, deadline) {
				report.Warned++
			}
		}
	}

	for i := range pending {
		if ctx.Err() != nil {
			break
		}
		ticket := &pending[i]
		if !notifyDue(ticket) {
			continue
		}
		s.tally(&report, ticket.ID, "notify", s.markNotified(ctx, ticket, now), &report.Notified)
	}

	s.metrics.ObserveScan(time.Since(started))
	fields := []zap.Field{
		zap.Int("breached", report.Breached),
		zap.Int("notified", report.Notified),
		zap.Int("warned", report.Warned),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", time.Since(started)),
	}
	if report.Breached+report.Notified+report.Failed > 0 {
		s.logger.Info("sla scan completed", fields...)
	} else {
		s.logger.Debug("sla scan completed", fields...)
	}
	return report, ctx.Err()
}

func (s *SLAService) tally(report *ScanReport, ticketID, step string, err error, ok *int) {
	switch {
	case err == nil:
		*ok++
	case errors.Is(err, repository.ErrNotFound):
		report.Skipped++
		s.metrics.RecordTicketError("not_found")
		s.logger.Info("sla ticket vanished, skipping", zap.String("ticket_id", ticketID), zap.String("step", step))
	case errors.Is(err, repository.ErrConflict):
		report.Skipped++
		s.metrics.RecordTicketError("conflict")
		s.logger.Info("sla ticket changed concurrently, skipping", zap.String("ticket_id", ticketID), zap.String("step", step))
	default:
		report.Failed++
		s.metrics.RecordTicketError("store")
		s.logger.Error("sla transition failed", zap.String("ticket_id", ticketID), zap.String("step", step), zap.Error(err))
	}
}

func (s *SLAService) breach(ctx context.Context, ticket *domain.Ticket, deadline, now time.Time) error {
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.tickets.CompareAndSetSLAFlags(ctx, ticket.ID,
			domain.SLAFlags{},
			domain.SLAFlags{Breached: true},
		); err != nil {
			return err
		}
		return s.history.Create(ctx, &domain.SLAHistory{TicketID: ticket.ID, BreachedAt: now})
	})
	if err != nil {
		return err
	}
	s.metrics.RecordTransition("breached")
	s.logger.Warn("sla breached",
		zap.String("ticket_id", ticket.ID),
		zap.Time("deadline", deadline),
		zap.Time("breached_at", now))
	s.publish(ctx, events.EventSLABreached, ticket.ID, events.SLABreachedPayload{BreachedAt: now, Deadline: deadline})
	return nil
}

func (s *SLAService) markNotified(ctx context.Context, ticket *domain.Ticket, now time.Time) error {
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.tickets.CompareAndSetSLAFlags(ctx, ticket.ID,
			domain.SLAFlags{Breached: true},
			domain.SLAFlags{Breached: true, Notified: true},
		); err != nil {
			return err
		}
		latest, err := s.history.Latest(ctx, ticket.ID)
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("breached ticket has no sla history", zap.String("ticket_id", ticket.ID))
			return nil
		}
		if err != nil {
			return err
		}
		if latest.NotifiedAt != nil {
			return nil
		}
		at := now
		if at.Before(latest.BreachedAt) {
			at = latest.BreachedAt
		}
		if err := s.history.MarkNotified(ctx, latest.ID, at); err != nil && !errors.Is(err, repository.ErrConflict) {
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.RecordTransition("notified")
	recipient := ""
	if ticket.AssigneeEmail != nil {
		recipient = *ticket.AssigneeEmail
	}
	s.publish(ctx, events.EventSLANotified, ticket.ID, events.SLANotifiedPayload{NotifiedAt: now, Recipient: recipient})

	// Breach only ever fires on the high-priority deadline, even if priority changed since.
	deadline, _ := s.policy.Deadline(ticket.CreatedAt, domain.TicketPriorityHigh)
	s.dispatchNotice(ctx, SLANotice{
		Type:          domain.NotificationSLABreach,
		TicketID:      ticket.ID,
		Title:         ticket.Title,
		AssigneeID:    ticket.AssignedToID,
		AssigneeEmail: recipient,
		Priority:      ticket.Priority,
		CreatedAt:     ticket.CreatedAt,
		Deadline:      deadline,
	})
	return nil
}

func (s *SLAService) warn(ctx context.Context, ticket *domain.Ticket, deadline time.Time) bool {
	key := fmt.Sprintf("%s:%d", ticket.ID, deadline.Unix())
	first, err := s.warnings.Mark(ctx, key, s.warnBefore+s.policy.Window())
	if err != nil {
		s.logger.Warn("sla warning dedup failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
		return false
	}
	if !first {
		return false
	}
	s.metrics.RecordTransition("warned")
	email := ""
	if ticket.AssigneeEmail != nil {
		email = *ticket.AssigneeEmail
	}
	s.dispatchNotice(ctx, SLANotice{
		Type:          domain.NotificationSLAWarning,
		TicketID:      ticket.ID,
		Title:         ticket.Title,
		AssigneeID:    ticket.AssignedToID,
		AssigneeEmail: email,
		Priority:      ticket.Priority,
		CreatedAt:     ticket.CreatedAt,
		Deadline:      deadline,
	})
	return true
}

func (s *SLAService) dispatchNotice(ctx context.Context, notice SLANotice) {
	if s.notifier == nil {
		return
	}
	if notice.AssigneeID == nil {
		s.logger.Info("sla notice has no assignee, skipping delivery",
			zap.String("ticket_id", notice.TicketID),
			zap.String("type", string(notice.Type)))
		return
	}
	if err := s.notifier.Notify(ctx, notice); err != nil {
		s.logger.Warn("sla notice not accepted",
			zap.String("ticket_id", notice.TicketID),
			zap.String("type", string(notice.Type)),
			zap.Error(err))
	}
}

// ResolveSLA clears both flags and stamps resolvedAt on the latest history row.
// It is safe to call on tickets that never breached. An open ticket still past its deadline
// reports resolved until the next scan opens a new cycle.
func (s *SLAService) ResolveSLA(ctx context.Context, ticketID string) error {
	now := s.now()
	var wasBreached bool
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		wasBreached, err = s.resolve(ctx, ticketID, now)
		return err
	})
	if err != nil {
		return mapRepoError(err, "ticket", ticketID)
	}
	s.resolved(ctx, ticketID, wasBreached, now)
	return nil
}

// resolve must run inside a transaction.
func (s *SLAService) resolve(ctx context.Context, ticketID string, now time.Time) (bool, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return false, err
	}
	if err := s.tickets.ClearSLAFlags(ctx, ticketID); err != nil {
		return false, err
	}
	latest, err := s.history.Latest(ctx, ticketID)
	if errors.Is(err, repository.ErrNotFound) {
		return ticket.SLABreached, nil
	}
	if err != nil {
		return false, err
	}
	if latest.ResolvedAt == nil {
		if err := s.history.MarkResolved(ctx, latest.ID, now); err != nil && !errors.Is(err, repository.ErrConflict) {
			return false, err
		}
	}
	return ticket.SLABreached, nil
}

func (s *SLAService) resolved(ctx context.Context, ticketID string, wasBreached bool, now time.Time) {
	s.logger.Info("sla resolved", zap.String("ticket_id", ticketID), zap.Bool("was_breached", wasBreached))
	s.publish(ctx, events.EventSLAResolved, ticketID, events.SLAResolvedPayload{ResolvedAt: now, WasBreached: wasBreached})
}

// GetSLAStatus computes the current standing without writing anything.
func (s *SLAService) GetSLAStatus(ctx context.Context, ticketID string) (*SLAStatus, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapRepoError(err, "ticket", ticketID)
	}
	latest, err := s.history.Latest(ctx, ticketID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		latest = nil
	case err != nil:
		return nil, apperrors.MapError(err)
	}
	return s.StatusOf(ticket, latest, s.now()), nil
}

// StatusOf computes the standing of an already loaded ticket at now. latest is the ticket's
// most recent history row, or nil.
func (s *SLAService) StatusOf(ticket *domain.Ticket, latest *domain.SLAHistory, now time.Time) *SLAStatus {
	status := &SLAStatus{TicketID: ticket.ID, State: SLAStateActive}
	if ticket.IsClosed() {
		status.State = SLAStateResolved
		return status
	}
	deadline, enforced := s.policy.Deadline(ticket.CreatedAt, ticket.Priority)
	if !enforced {
		return status
	}
	status.Deadline = &deadline
	status.Notified = ticket.SLANotified
	if now.Before(deadline) {
		status.Remaining = deadline.Sub(now)
		return status
	}
	if !ticket.SLABreached && latest != nil && !latest.Open() {
		status.State = SLAStateResolved
		return status
	}
	status.Breached = true
	status.State = SLAStateBreached
	return status
}

// ListBreached returns open tickets currently flagged as breached.
func (s *SLAService) ListBreached(ctx context.Context, limit, offset int) ([]domain.Ticket, error) {
	breached := true
	tickets, err := s.tickets.List(ctx, repository.TicketFilter{
		SLABreached:   &breached,
		ExcludeClosed: true,
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// CountBreached counts open tickets currently flagged as breached.
func (s *SLAService) CountBreached(ctx context.Context) (int, error) {
	breached := true
	count, err := s.tickets.Count(ctx, repository.TicketFilter{SLABreached: &breached, ExcludeClosed: true})
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	return count, nil
}

// History lists every breach cycle recorded for a ticket, oldest first.
func (s *SLAService) History(ctx context.Context, ticketID string) ([]domain.SLAHistory, error) {
	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		return nil, mapRepoError(err, "ticket", ticketID)
	}
	rows, err := s.history.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return rows, nil
}

func (s *SLAService) publish(ctx context.Context, eventType events.EventType, ticketID string, payload any) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Actor:     events.Actor{Type: events.ActorSystem},
		Timestamp: s.now(),
		Payload:   payload,
	})
}

func mapRepoError(err error, resource, id string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound(resource, map[string]any{resource + "_id": id})
	case errors.Is(err, repository.ErrConflict):
		return apperrors.NewConflict(resource+" state changed concurrently", map[string]any{resource + "_id": id})
	default:
		return apperrors.MapError(err)
	}
}
