package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/config"
	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/notify"
	"github.com/spec-kit/helpdesk-sla/internal/observability"
	"github.com/spec-kit/helpdesk-sla/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-sla/pkg/util"
)

var (
	// ErrNotifierQueueFull is returned when the delivery queue has no room.
	ErrNotifierQueueFull = errors.New("notification queue full")
	// ErrNotifierClosed is returned after Close.
	ErrNotifierClosed = errors.New("notifier closed")
)

// NotificationDependencies bundles collaborators of the notifier.
type NotificationDependencies struct {
	Repo     repository.NotificationRepository
	Channels []notify.Channel
	Metrics  *observability.Metrics
	Logger   *zap.Logger
	Config   config.NotificationConfig
	Now      func() time.Time
}

// NotificationService persists SLA notices and delivers them on a bounded worker pool.
// It also serves the per-user notification inbox.
type NotificationService struct {
	repo     repository.NotificationRepository
	channels []notify.Channel
	metrics  *observability.Metrics
	logger   *zap.Logger
	timeout  time.Duration
	workers  int
	now      func() time.Time

	queue   chan SLANotice
	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

// NewNotificationService creates the service. Workers are started by Start.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	size := deps.Config.QueueSize
	if size <= 0 {
		size = 256
	}
	workers := deps.Config.Workers
	if workers <= 0 {
		workers = 1
	}
	timeout := deps.Config.DeliveryTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	n := &NotificationService{
		repo:     deps.Repo,
		channels: deps.Channels,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		timeout:  timeout,
		workers:  workers,
		now:      deps.Now,
		queue:    make(chan SLANotice, size),
	}
	if n.logger == nil {
		n.logger = zap.NewNop()
	}
	if n.now == nil {
		n.now = time.Now
	}
	return n
}

// Notify enqueues a notice without blocking. A full queue drops the notice.
func (n *NotificationService) Notify(_ context.Context, notice SLANotice) error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return ErrNotifierClosed
	}
	select {
	case n.queue <- notice:
		return nil
	default:
		n.metrics.RecordDropped()
		return ErrNotifierQueueFull
	}
}

// Start launches the delivery workers. They exit once Close has drained the queue.
func (n *NotificationService) Start(ctx context.Context) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.started || n.closed {
		return
	}
	n.started = true
	for i := 0; i < n.workers; i++ {
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			for notice := range n.queue {
				n.process(context.WithoutCancel(ctx), notice)
			}
		}()
	}
	n.logger.Info("notification workers started", zap.Int("workers", n.workers), zap.Int("queue_size", cap(n.queue)))
}

// Close stops accepting notices and waits for queued ones to finish.
func (n *NotificationService) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	close(n.queue)
	started := n.started
	n.mu.Unlock()

	if !started {
		for notice := range n.queue {
			n.metrics.RecordDropped()
			n.logger.Warn("notice dropped on shutdown", zap.String("ticket_id", notice.TicketID))
		}
		return
	}
	n.wg.Wait()
}

func (n *NotificationService) process(ctx context.Context, notice SLANotice) {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	record := n.buildNotification(notice)
	if err := n.repo.Create(ctx, record); err != nil {
		n.metrics.RecordDelivery("store", false)
		n.logger.Error("persist notification failed", zap.String("ticket_id", notice.TicketID), zap.Error(err))
		return
	}

	msg := notify.Message{
		NotificationID: record.ID,
		Type:           record.Type,
		TicketID:       notice.TicketID,
		TicketTitle:    notice.Title,
		Priority:       notice.Priority,
		Recipient:      notice.AssigneeEmail,
		Subject:        record.Title,
		Body:           record.Message,
		CreatedAt:      notice.CreatedAt,
		Deadline:       notice.Deadline,
	}

	var failures []string
	for _, ch := range n.channels {
		if !ch.Enabled() {
			continue
		}
		err := ch.Send(ctx, msg)
		if errors.Is(err, notify.ErrNoRecipient) {
			n.logger.Info("notice has no recipient address, skipping channel",
				zap.String("ticket_id", notice.TicketID),
				zap.String("channel", ch.Name()))
			continue
		}
		n.metrics.RecordDelivery(ch.Name(), err == nil)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", ch.Name(), err))
			n.logger.Warn("notification delivery failed",
				zap.String("notification_id", record.ID),
				zap.String("channel", ch.Name()),
				zap.Error(err))
		}
	}

	var err error
	if len(failures) > 0 {
		err = n.repo.MarkDeliveryFailed(ctx, record.ID, strings.Join(failures, "; "))
	} else {
		err = n.repo.MarkDelivered(ctx, record.ID, n.now())
	}
	if err != nil {
		n.logger.Warn("record delivery outcome failed", zap.String("notification_id", record.ID), zap.Error(err))
	}
}

func (n *NotificationService) buildNotification(notice SLANotice) *domain.Notification {
	record := &domain.Notification{
		ID:        uuid.NewString(),
		UserID:    notice.AssigneeID,
		TicketID:  notice.TicketID,
		Type:      notice.Type,
		Recipient: notice.AssigneeEmail,
		CreatedAt: n.now(),
	}
	switch notice.Type {
	case domain.NotificationSLAWarning:
		remaining := notice.Deadline.Sub(record.CreatedAt).Round(time.Second)
		if remaining < 0 {
			remaining = 0
		}
		record.Title = fmt.Sprintf("SLA warning: %s", notice.Title)
		record.Message = fmt.Sprintf("Ticket %s (%s priority) will breach its SLA in %s, at %s. Please prioritize it.",
			notice.TicketID, notice.Priority, remaining, notice.Deadline.Format(time.RFC3339))
	default:
		overdue := record.CreatedAt.Sub(notice.Deadline).Round(time.Second)
		if overdue < 0 {
			overdue = 0
		}
		record.Title = fmt.Sprintf("SLA breached: %s", notice.Title)
		record.Message = fmt.Sprintf("Ticket %s (%s priority) created %s missed its SLA deadline %s and is %s overdue. Please review it immediately.",
			notice.TicketID, notice.Priority, notice.CreatedAt.Format(time.RFC3339), notice.Deadline.Format(time.RFC3339), overdue)
	}
	return record
}

// ListForUser returns the newest notifications of a user.
func (n *NotificationService) ListForUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	return n.list(ctx, userID, repository.NotificationFilter{Limit: limit})
}

// ListUnread returns unread notifications of a user.
func (n *NotificationService) ListUnread(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	return n.list(ctx, userID, repository.NotificationFilter{UnreadOnly: true, Limit: limit})
}

// ListSince returns notifications created at or after since.
func (n *NotificationService) ListSince(ctx context.Context, userID string, since time.Time, limit int) ([]domain.Notification, error) {
	return n.list(ctx, userID, repository.NotificationFilter{Since: &since, Limit: limit})
}

func (n *NotificationService) list(ctx context.Context, userID string, filter repository.NotificationFilter) ([]domain.Notification, error) {
	items, err := n.repo.ListByUser(ctx, userID, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return items, nil
}

// MarkRead flags one notification as read.
func (n *NotificationService) MarkRead(ctx context.Context, id string) error {
	if err := n.repo.MarkRead(ctx, id); err != nil {
		return mapRepoError(err, "notification", id)
	}
	return nil
}

// MarkAllRead flags every unread notification of a user and returns how many changed.
func (n *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	count, err := n.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	return count, nil
}
