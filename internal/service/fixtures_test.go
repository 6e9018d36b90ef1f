package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/config"
	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/events"
	"github.com/spec-kit/helpdesk-sla/internal/observability"
	"github.com/spec-kit/helpdesk-sla/internal/repository"
	"github.com/spec-kit/helpdesk-sla/internal/repository/memory"
	apperrors "github.com/spec-kit/helpdesk-sla/pkg/util"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = at
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []SLANotice
	err     error
}

func (n *recordingNotifier) Notify(_ context.Context, notice SLANotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.notices = append(n.notices, notice)
	return nil
}

func (n *recordingNotifier) Notices() []SLANotice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]SLANotice(nil), n.notices...)
}

// hookedTickets wraps the memory repository to inject races and faults.
type hookedTickets struct {
	*memory.TicketRepository
	afterListBreach func(list []domain.Ticket) []domain.Ticket
	listErr         error
	casErr          map[string]error
}

func (h *hookedTickets) ListBreachCandidates(ctx context.Context) ([]domain.Ticket, error) {
	if h.listErr != nil {
		return nil, h.listErr
	}
	list, err := h.TicketRepository.ListBreachCandidates(ctx)
	if err != nil || h.afterListBreach == nil {
		return list, err
	}
	return h.afterListBreach(list), nil
}

func (h *hookedTickets) CompareAndSetSLAFlags(ctx context.Context, id string, expected, next domain.SLAFlags) error {
	if err, ok := h.casErr[id]; ok {
		return err
	}
	return h.TicketRepository.CompareAndSetSLAFlags(ctx, id, expected, next)
}

// hookedHistory runs beforeCreate ahead of every history insert.
type hookedHistory struct {
	*memory.SLAHistoryRepository
	beforeCreate func(ctx context.Context)
}

func (h *hookedHistory) Create(ctx context.Context, history *domain.SLAHistory) error {
	if h.beforeCreate != nil {
		h.beforeCreate(ctx)
	}
	return h.SLAHistoryRepository.Create(ctx, history)
}

type fakeScanLock struct {
	acquired bool
	err      error
	released int
}

func (l *fakeScanLock) TryAcquire(context.Context) (func(context.Context), bool, error) {
	if l.err != nil || !l.acquired {
		return nil, false, l.err
	}
	return func(context.Context) { l.released++ }, true, nil
}

type fixture struct {
	store      *memory.Store
	tickets    *hookedTickets
	users      *memory.UserRepository
	history    *hookedHistory
	clock      *fakeClock
	notifier   *recordingNotifier
	dispatcher events.Dispatcher
	eventsMu   sync.Mutex
	events     []events.Event
	sla        *SLAService
	ticketSvc  *TicketService
	agent      *domain.User
}

func newFixture(t *testing.T, cfg config.SLAConfig) *fixture {
	t.Helper()
	if cfg.HighPriorityDuration == 0 {
		cfg.HighPriorityDuration = time.Minute
	}
	store := memory.NewStore()
	f := &fixture{
		store:    store,
		tickets:  &hookedTickets{TicketRepository: memory.NewTicketRepository(store), casErr: map[string]error{}},
		users:    memory.NewUserRepository(store),
		history:  &hookedHistory{SLAHistoryRepository: memory.NewSLAHistoryRepository(store)},
		clock:    &fakeClock{now: t0},
		notifier: &recordingNotifier{},
	}
	f.dispatcher = events.NewInMemoryDispatcher(zap.NewNop())
	for _, et := range []events.EventType{events.EventSLABreached, events.EventSLANotified, events.EventSLAResolved, events.EventTicketStatusChanged} {
		f.dispatcher.Subscribe(et, func(_ context.Context, e events.Event) error {
			f.eventsMu.Lock()
			f.events = append(f.events, e)
			f.eventsMu.Unlock()
			return nil
		})
	}
	tx := memory.NewTransactor(store)
	f.sla = NewSLAService(SLADependencies{
		TicketRepo:  f.tickets,
		HistoryRepo: f.history,
		Tx:          tx,
		Notifier:    f.notifier,
		Dispatcher:  f.dispatcher,
		Metrics:     observability.NewMetrics(prometheus.NewRegistry()),
		Logger:      zap.NewNop(),
		Config:      cfg,
		Now:         f.clock.Now,
	})
	f.ticketSvc = NewTicketService(TicketDependencies{
		TicketRepo: f.tickets,
		UserRepo:   f.users,
		Tx:         tx,
		SLA:        f.sla,
		Dispatcher: f.dispatcher,
		Now:        f.clock.Now,
	})
	f.agent = &domain.User{Email: "agent@example.com", Role: domain.UserRoleAgent}
	require.NoError(t, f.users.Create(context.Background(), f.agent))
	return f
}

func (f *fixture) createTicket(t *testing.T, priority domain.TicketPriority) *domain.Ticket {
	t.Helper()
	ticket, err := f.ticketSvc.CreateTicket(context.Background(), TicketCreateInput{
		Title:        "Checkout is down",
		Priority:     priority,
		CreatedByID:  f.agent.ID,
		AssignedToID: &f.agent.ID,
	})
	require.NoError(t, err)
	return ticket
}

func (f *fixture) ticket(t *testing.T, id string) *domain.Ticket {
	t.Helper()
	ticket, err := f.tickets.GetByID(context.Background(), id)
	require.NoError(t, err)
	return ticket
}

func (f *fixture) historyOf(t *testing.T, id string) []domain.SLAHistory {
	t.Helper()
	rows, err := f.history.ListByTicket(context.Background(), id)
	require.NoError(t, err)
	return rows
}

func (f *fixture) scan(t *testing.T, at time.Time) ScanReport {
	t.Helper()
	f.clock.Set(at)
	report, err := f.sla.RunScanOnce(context.Background())
	require.NoError(t, err)
	return report
}

var errStoreDown = errors.New("connection refused")

var (
	_ repository.TicketRepository     = (*hookedTickets)(nil)
	_ repository.SLAHistoryRepository = (*hookedHistory)(nil)
)

func isNotFoundErr(err error) bool {
	var domainErr *apperrors.DomainError
	return errors.As(err, &domainErr) && domainErr.Code == "NOT_FOUND"
}
