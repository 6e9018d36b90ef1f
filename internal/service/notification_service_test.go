package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/config"
	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/notify"
	"github.com/spec-kit/helpdesk-sla/internal/repository"
	"github.com/spec-kit/helpdesk-sla/internal/repository/memory"
)

type fakeChannel struct {
	name    string
	enabled bool
	err     error

	mu   sync.Mutex
	sent []notify.Message
}

func (c *fakeChannel) Name() string  { return c.name }
func (c *fakeChannel) Enabled() bool { return c.enabled }

func (c *fakeChannel) Send(_ context.Context, msg notify.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return c.err
}

func breachNotice(userID string) SLANotice {
	return SLANotice{
		Type:          domain.NotificationSLABreach,
		TicketID:      "t1",
		Title:         "Checkout is down",
		AssigneeID:    &userID,
		AssigneeEmail: "agent@example.com",
		Priority:      domain.TicketPriorityHigh,
		CreatedAt:     t0,
		Deadline:      t0.Add(time.Minute),
	}
}

func newNotifier(repo repository.NotificationRepository, queueSize int, channels ...notify.Channel) *NotificationService {
	return NewNotificationService(NotificationDependencies{
		Repo:     repo,
		Channels: channels,
		Logger:   zap.NewNop(),
		Config:   config.NotificationConfig{QueueSize: queueSize, Workers: 2, DeliveryTimeout: time.Second},
		Now:      func() time.Time { return t0.Add(2 * time.Minute) },
	})
}

func TestNotificationService_PersistsThenDelivers(t *testing.T) {
	repo := memory.NewNotificationRepository(memory.NewStore())
	ok := &fakeChannel{name: "webhook", enabled: true}
	off := &fakeChannel{name: "email", enabled: false}
	svc := newNotifier(repo, 8, ok, off)

	svc.Start(context.Background())
	require.NoError(t, svc.Notify(context.Background(), breachNotice("u1")))
	svc.Close()

	items, err := svc.ListForUser(context.Background(), "u1", 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	n := items[0]
	assert.Equal(t, domain.NotificationSLABreach, n.Type)
	assert.Equal(t, "t1", n.TicketID)
	assert.Equal(t, "SLA breached: Checkout is down", n.Title)
	assert.Contains(t, n.Message, "1m0s overdue")
	require.NotNil(t, n.DeliveredAt)
	assert.Nil(t, n.DeliveryError)

	require.Len(t, ok.sent, 1)
	assert.Equal(t, n.ID, ok.sent[0].NotificationID)
	assert.Equal(t, "agent@example.com", ok.sent[0].Recipient)
	assert.Empty(t, off.sent)
}

func TestNotificationService_RecordsDeliveryFailure(t *testing.T) {
	repo := memory.NewNotificationRepository(memory.NewStore())
	bad := &fakeChannel{name: "webhook", enabled: true, err: errors.New("503")}
	svc := newNotifier(repo, 8, bad)

	svc.Start(context.Background())
	require.NoError(t, svc.Notify(context.Background(), breachNotice("u1")))
	svc.Close()

	items, err := svc.ListForUser(context.Background(), "u1", 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Nil(t, items[0].DeliveredAt)
	require.NotNil(t, items[0].DeliveryError)
	assert.Contains(t, *items[0].DeliveryError, "webhook: 503")
}

func TestNotificationService_MissingRecipientIsNotAFailure(t *testing.T) {
	repo := memory.NewNotificationRepository(memory.NewStore())
	email := &fakeChannel{name: "email", enabled: true, err: notify.ErrNoRecipient}
	svc := newNotifier(repo, 8, email)

	notice := breachNotice("u1")
	notice.AssigneeEmail = ""
	svc.Start(context.Background())
	require.NoError(t, svc.Notify(context.Background(), notice))
	svc.Close()

	items, err := svc.ListForUser(context.Background(), "u1", 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.NotNil(t, items[0].DeliveredAt)
	assert.Nil(t, items[0].DeliveryError)
}

func TestNotificationService_QueueFullAndClosed(t *testing.T) {
	repo := memory.NewNotificationRepository(memory.NewStore())
	svc := newNotifier(repo, 1)

	require.NoError(t, svc.Notify(context.Background(), breachNotice("u1")))
	assert.ErrorIs(t, svc.Notify(context.Background(), breachNotice("u1")), ErrNotifierQueueFull)

	svc.Close()
	assert.ErrorIs(t, svc.Notify(context.Background(), breachNotice("u1")), ErrNotifierClosed)
}

func TestNotificationService_WarningMessage(t *testing.T) {
	svc := newNotifier(memory.NewNotificationRepository(memory.NewStore()), 1)
	notice := breachNotice("u1")
	notice.Type = domain.NotificationSLAWarning
	notice.Deadline = t0.Add(2*time.Minute + 20*time.Second)

	record := svc.buildNotification(notice)
	assert.Equal(t, "SLA warning: Checkout is down", record.Title)
	assert.Contains(t, record.Message, "in 20s")
}

func TestNotificationService_Inbox(t *testing.T) {
	repo := memory.NewNotificationRepository(memory.NewStore())
	svc := newNotifier(repo, 8)
	ctx := context.Background()
	user := "u1"

	require.NoError(t, repo.Create(ctx, &domain.Notification{ID: "n1", UserID: &user, TicketID: "t1", CreatedAt: t0}))
	require.NoError(t, repo.Create(ctx, &domain.Notification{ID: "n2", UserID: &user, TicketID: "t2", CreatedAt: t0.Add(time.Hour)}))

	require.NoError(t, svc.MarkRead(ctx, "n1"))
	unread, err := svc.ListUnread(ctx, user, 0)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, "n2", unread[0].ID)

	since, err := svc.ListSince(ctx, user, t0.Add(time.Minute), 0)
	require.NoError(t, err)
	require.Len(t, since, 1)

	count, err := svc.MarkAllRead(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	err = svc.MarkRead(ctx, "missing")
	require.Error(t, err)
	assert.True(t, isNotFoundErr(err))
}
