package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-sla/internal/config"
	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/events"
	apperrors "github.com/spec-kit/helpdesk-sla/pkg/util"
)

func TestRunScanOnce_HighPriorityOneMinuteScenario(t *testing.T) {
	f := newFixture(t, config.SLAConfig{HighPriorityDuration: time.Minute})
	ctx := context.Background()
	ticket := f.createTicket(t, domain.TicketPriorityHigh)

	f.clock.Set(t0.Add(30 * time.Second))
	status, err := f.sla.GetSLAStatus(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, SLAStateActive, status.State)
	assert.False(t, status.Breached)
	assert.Equal(t, 30*time.Second, status.Remaining)
	require.NotNil(t, status.Deadline)
	assert.Equal(t, t0.Add(time.Minute), *status.Deadline)

	report := f.scan(t, t0.Add(30*time.Second))
	assert.Equal(t, ScanReport{}, report)

	report = f.scan(t, t0.Add(61*time.Second))
	assert.Equal(t, ScanReport{Breached: 1}, report)
	stored := f.ticket(t, ticket.ID)
	assert.True(t, stored.SLABreached)
	assert.False(t, stored.SLANotified)
	rows := f.historyOf(t, ticket.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, t0.Add(61*time.Second), rows[0].BreachedAt)
	assert.Nil(t, rows[0].NotifiedAt)
	assert.Empty(t, f.notifier.Notices())

	status, err = f.sla.GetSLAStatus(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, SLAStateBreached, status.State)
	assert.True(t, status.Breached)
	assert.Zero(t, status.Remaining)

	report = f.scan(t, t0.Add(91*time.Second))
	assert.Equal(t, ScanReport{Notified: 1}, report)
	stored = f.ticket(t, ticket.ID)
	assert.True(t, stored.SLANotified)
	rows = f.historyOf(t, ticket.ID)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].NotifiedAt)
	assert.Equal(t, t0.Add(91*time.Second), *rows[0].NotifiedAt)

	notices := f.notifier.Notices()
	require.Len(t, notices, 1)
	assert.Equal(t, domain.NotificationSLABreach, notices[0].Type)
	assert.Equal(t, ticket.ID, notices[0].TicketID)
	assert.Equal(t, "Checkout is down", notices[0].Title)
	assert.Equal(t, "agent@example.com", notices[0].AssigneeEmail)
	assert.Equal(t, domain.TicketPriorityHigh, notices[0].Priority)
	assert.Equal(t, t0, notices[0].CreatedAt)
	assert.Equal(t, t0.Add(time.Minute), notices[0].Deadline)

	report = f.scan(t, t0.Add(121*time.Second))
	assert.Equal(t, ScanReport{}, report)
	assert.Len(t, f.notifier.Notices(), 1)

	var types []events.EventType
	for _, e := range f.events {
		types = append(types, e.Type)
	}
	assert.Equal(t, []events.EventType{events.EventSLABreached, events.EventSLANotified}, types)
}

func TestRunScanOnce_IsIdempotent(t *testing.T) {
	f := newFixture(t, config.SLAConfig{})
	ticket := f.createTicket(t, domain.TicketPriorityHigh)

	at := t0.Add(2 * time.Minute)
	assert.Equal(t, ScanReport{Breached: 1}, f.scan(t, at))
	assert.Equal(t, ScanReport{Notified: 1}, f.scan(t, at))
	assert.Equal(t, ScanReport{}, f.scan(t, at))
	assert.Equal(t, ScanReport{}, f.scan(t, at))

	assert.Len(t, f.historyOf(t, ticket.ID), 1)
	assert.Len(t, f.notifier.Notices(), 1)
}

func TestRunScanOnce_ClosedBeforeScanNeverBreaches(t *testing.T) {
	f := newFixture(t, config.SLAConfig{})
	ctx := context.Background()
	ticket := f.createTicket(t, domain.TicketPriorityHigh)

	f.clock.Set(t0.Add(90 * time.Second))
	closed, err := f.ticketSvc.CloseTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, closed.Status)

	for _, offset := range []time.Duration{91 * time.Second, 2 * time.Minute, time.Hour} {
		assert.Equal(t, ScanReport{}, f.scan(t, t0.Add(offset)))
	}
	stored := f.ticket(t, ticket.ID)
	assert.False(t, stored.SLABreached)
	assert.False(t, stored.SLANotified)
	assert.Empty(t, f.historyOf(t, ticket.ID))

	status, err := f.sla.GetSLAStatus(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, &SLAStatus{TicketID: ticket.ID, State: SLAStateResolved}, status)
}

func TestRunScanOnce_NonHighPriorityNeverBreaches(t *testing.T) {
	f := newFixture(t, config.SLAConfig{})
	ctx := context.Background()
	medium := f.createTicket(t, domain.TicketPriorityMedium)
	low := f.createTicket(t, domain.TicketPriorityLow)

	for _, offset := range []time.Duration{time.Minute, 24 * time.Hour, 30 * 24 * time.Hour} {
		assert.Equal(t, ScanReport{}, f.scan(t, t0.Add(offset)))
	}
	for _, id := range []string{medium.ID, low.ID} {
		assert.False(t, f.ticket(t, id).SLABreached)
		status, err := f.sla.GetSLAStatus(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, SLAStateActive, status.State)
		assert.False(t, status.Breached)
		assert.Zero(t, status.Remaining)
		assert.Nil(t, status.Deadline)
	}
}

func TestResolveSLA_ClearsFlagsAndStampsHistory(t *testing.T) {
	f := newFixture(t, config.SLAConfig{})
	ctx := context.Background()
	ticket := f.createTicket(t, domain.TicketPriorityHigh)

	f.scan(t, t0.Add(61*time.Second))
	f.scan(t, t0.Add(91*time.Second))

	f.clock.Set(t0.Add(2 * time.Minute))
	require.NoError(t, f.sla.ResolveSLA(ctx, ticket.ID))

	stored := f.ticket(t, ticket.ID)
	assert.False(t, stored.SLABreached)
	assert.False(t, stored.SLANotified)
	rows := f.historyOf(t, ticket.ID)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].ResolvedAt)
	assert.Equal(t, t0.Add(2*time.Minute), *rows[0].ResolvedAt)

	_, err := f.ticketSvc.CloseTicket(ctx, ticket.ID)
	require.NoError(t, err)
	status, err := f.sla.GetSLAStatus(ctx, ticket.ID)
	require.NoError(t, err)
	assert.False(t, status.Breached)
	assert.Equal(t, SLAStateResolved, status.State)

	last := f.events[len(f.events)-1]
	assert.Equal(t, events.EventTicketStatusChanged, last.Type)
}

func TestResolveSLA_WithoutHistoryAndMissingTicket(t *testing.T) {
	f := newFixture(t, config.SLAConfig{})
	ctx := context.Background()
	ticket := f.createTicket(t, domain.TicketPriorityLow)

	require.NoError(t, f.sla.ResolveSLA(ctx, ticket.ID))

	err := f.sla.ResolveSLA(ctx, "missing")
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "NOT_FOUND", domainErr.Code)

	_, err = f.sla.GetSLAStatus(ctx, "missing")
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "NOT_FOUND", domainErr.Code)
}

func TestRunScanOnce_SkipsTicketClosedConcurrently(t *testing.T) {
	f := newFixture(t, config.SLAConfig{})
	ticket := f.createTicket(t, domain.TicketPriorityHigh)

	f.tickets.afterListBreach = func(list []domain.Ticket) []domain.Ticket {
		require.NoError(t, f.tickets.TicketRepository.Close(context.Background(), ticket.ID, t0.Add(time.Minute)))
		return list
	}

	report := f.scan(t, t0.Add(2*time.Minute))
	assert.Equal(t, ScanReport{Skipped: 1}, report)
	assert.False(t, f.ticket(t, ticket.ID).SLABreached)
	assert.Empty(t, f.historyOf(t, ticket.ID))
}

func TestRunScanOnce_SkipsVanishedTicketAndContinues(t *testing.T) {
	f := newFixture(t, config.SLAConfig{})
	ticket := f.createTicket(t, domain.TicketPriorityHigh)

	f.tickets.afterListBreach = func(list []domain.Ticket) []domain.Ticket {
		ghost := domain.Ticket{ID: "ghost", Priority: domain.TicketPriorityHigh, Status: domain.TicketStatusOpen, CreatedAt: t0}
		return append([]domain.Ticket{ghost}, list...)
	}

	report := f.scan(t, t0.Add(2*time.Minute))
	assert.Equal(t, ScanReport{Breached: 1, Skipped: 1}, report)
	assert.True(t, f.ticket(t, ticket.ID).SLABreached)
}

func TestRunScanOnce_PerTicketFailureIsIsolated(t *testing.T) {
	f := newFixture(t, config.SLAConfig{})
	broken := f.createTicket(t, domain.TicketPriorityHigh)
	healthy := f.createTicket(t, domain.TicketPriorityHigh)
	f.tickets.casErr[broken.ID] = errStoreDown

	report := f.scan(t, t0.Add(2*time.Minute))
	assert.Equal(t, ScanReport{Breached: 1, Failed: 1}, report)
	assert.False(t, f.ticket(t, broken.ID).SLABreached)
	assert.True(t, f.ticket(t, healthy.ID).SLABreached)

	delete(f.tickets.casErr, broken.ID)
	report = f.scan(t, t0.Add(3*time.Minute))
	assert.Equal(t, ScanReport{Breached: 1, Notified: 1}, report)
}

func TestRunScanOnce_StoreFaultAbortsTickAndRecovers(t *testing.T) {
	f := newFixture(t, config.SLAConfig{})
	ticket := f.createTicket(t, domain.TicketPriorityHigh)
	f.tickets.listErr = errStoreDown

	f.clock.Set(t0.Add(2 * time.Minute))
	_, err := f.sla.RunScanOnce(context.Background())
	require.ErrorIs(t, err, errStoreDown)
	assert.False(t, f.ticket(t, ticket.ID).SLABreached)

	f.tickets.listErr = nil
	assert.Equal(t, ScanReport{Breached: 1}, f.scan(t, t0.Add(2*time.Minute)))
}

func TestRunScanOnce_NotifierFailureKeepsTransition(t *testing.T) {
	f := newFixture(t, config.SLAConfig{})
	ticket := f.createTicket(t, domain.TicketPriorityHigh)
	f.notifier.err = errors.New("queue full")

	f.scan(t, t0.Add(61*time.Second))
	report := f.scan(t, t0.Add(91*time.Second))
	assert.Equal(t, ScanReport{Notified: 1}, report)
	assert.True(t, f.ticket(t, ticket.ID).SLANotified)

	f.notifier.err = nil
	assert.Equal(t, ScanReport{}, f.scan(t, t0.Add(121*time.Second)))
	assert.Empty(t, f.notifier.Notices())
}

func TestRunScanOnce_UnassignedTicketIsMarkedWithoutDelivery(t *testing.T) {
	f := newFixture(t, config.SLAConfig{})
	ticket, err := f.ticketSvc.CreateTicket(context.Background(), TicketCreateInput{
		Title:       "Unowned outage",
		Priority:    domain.TicketPriorityHigh,
		CreatedByID: f.agent.ID,
	})
	require.NoError(t, err)

	f.scan(t, t0.Add(61*time.Second))
	assert.Equal(t, ScanReport{Notified: 1}, f.scan(t, t0.Add(91*time.Second)))
	assert.True(t, f.ticket(t, ticket.ID).SLANotified)
	assert.Empty(t, f.notifier.Notices())
}

func TestRunScanOnce_NotifiedAtNeverPrecedesBreachedAt(t *testing.T) {
	f := newFixture(t, config.SLAConfig{})
	ticket := f.createTicket(t, domain.TicketPriorityHigh)

	f.scan(t, t0.Add(61*time.Second))
	f.scan(t, t0.Add(50*time.Second))

	rows := f.historyOf(t, ticket.ID)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].NotifiedAt)
	assert.False(t, rows[0].NotifiedAt.Before(rows[0].BreachedAt))
}

func TestRunScanOnce_ReopenedTicketStartsNewCycle(t *testing.T) {
	f := newFixture(t, config.SLAConfig{})
	ctx := context.Background()
	ticket := f.createTicket(t, domain.TicketPriorityHigh)

	f.scan(t, t0.Add(61*time.Second))
	f.scan(t, t0.Add(91*time.Second))

	f.clock.Set(t0.Add(100 * time.Second))
	_, err := f.ticketSvc.CloseTicket(ctx, ticket.ID)
	require.NoError(t, err)
	f.clock.Set(t0.Add(110 * time.Second))
	reopened, err := f.ticketSvc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusOpen)
	require.NoError(t, err)
	assert.Nil(t, reopened.ClosedAt)

	assert.Equal(t, ScanReport{Breached: 1}, f.scan(t, t0.Add(120*time.Second)))
	assert.Equal(t, ScanReport{Notified: 1}, f.scan(t, t0.Add(150*time.Second)))

	rows := f.historyOf(t, ticket.ID)
	require.Len(t, rows, 2)
	require.NotNil(t, rows[0].ResolvedAt)
	assert.Nil(t, rows[1].ResolvedAt)
	assert.Equal(t, t0.Add(120*time.Second), rows[1].BreachedAt)
	assert.Len(t, f.notifier.Notices(), 2)
}

func TestRunScanOnce_WarnsOnceBeforeDeadline(t *testing.T) {
	f := newFixture(t, config.SLAConfig{WarningBefore: 30 * time.Second})
	ticket := f.createTicket(t, domain.TicketPriorityHigh)

	assert.Equal(t, ScanReport{}, f.scan(t, t0.Add(20*time.Second)))
	assert.Equal(t, ScanReport{Warned: 1}, f.scan(t, t0.Add(40*time.Second)))
	assert.Equal(t, ScanReport{}, f.scan(t, t0.Add(45*time.Second)))

	notices := f.notifier.Notices()
	require.Len(t, notices, 1)
	assert.Equal(t, domain.NotificationSLAWarning, notices[0].Type)
	assert.Equal(t, ticket.ID, notices[0].TicketID)
	assert.False(t, f.ticket(t, ticket.ID).SLABreached)

	assert.Equal(t, ScanReport{Breached: 1}, f.scan(t, t0.Add(61*time.Second)))
}

func TestRunScanOnce_RejectsOverlap(t *testing.T) {
	f := newFixture(t, config.SLAConfig{})
	f.sla.running.Lock()
	_, err := f.sla.RunScanOnce(context.Background())
	f.sla.running.Unlock()
	assert.ErrorIs(t, err, ErrScanInProgress)
}

func TestRunScanOnce_ConcurrentCallsBreachOnce(t *testing.T) {
	f := newFixture(t, config.SLAConfig{})
	ticket := f.createTicket(t, domain.TicketPriorityHigh)
	f.clock.Set(t0.Add(2 * time.Minute))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		breached int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			report, err := f.sla.RunScanOnce(context.Background())
			if err != nil {
				assert.ErrorIs(t, err, ErrScanInProgress)
				return
			}
			mu.Lock()
			breached += report.Breached
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, breached)
	assert.Len(t, f.historyOf(t, ticket.ID), 1)
}

func TestRunScanOnce_DistributedLock(t *testing.T) {
	f := newFixture(t, config.SLAConfig{})
	f.createTicket(t, domain.TicketPriorityHigh)
	f.clock.Set(t0.Add(2 * time.Minute))

	held := &fakeScanLock{acquired: false}
	f.sla.lock = held
	_, err := f.sla.RunScanOnce(context.Background())
	assert.ErrorIs(t, err, ErrScanInProgress)

	f.sla.lock = &fakeScanLock{err: errStoreDown}
	_, err = f.sla.RunScanOnce(context.Background())
	assert.ErrorIs(t, err, errStoreDown)

	free := &fakeScanLock{acquired: true}
	f.sla.lock = free
	report, err := f.sla.RunScanOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Breached)
	assert.Equal(t, 1, free.released)
}

func TestListAndCountBreached(t *testing.T) {
	f := newFixture(t, config.SLAConfig{})
	ctx := context.Background()
	first := f.createTicket(t, domain.TicketPriorityHigh)
	f.createTicket(t, domain.TicketPriorityHigh)
	f.createTicket(t, domain.TicketPriorityLow)

	f.scan(t, t0.Add(2*time.Minute))
	_, err := f.ticketSvc.CloseTicket(ctx, first.ID)
	require.NoError(t, err)

	count, err := f.sla.CountBreached(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	list, err := f.sla.ListBreached(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.NotEqual(t, first.ID, list[0].ID)

	rows, err := f.sla.History(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.NotNil(t, rows[0].ResolvedAt)
}

func TestCloseTicket_WaitsForInFlightBreach(t *testing.T) {
	f := newFixture(t, config.SLAConfig{})
	ticket := f.createTicket(t, domain.TicketPriorityHigh)

	closed := make(chan error, 1)
	f.history.beforeCreate = func(context.Context) {
		f.history.beforeCreate = nil
		go func() {
			_, err := f.ticketSvc.CloseTicket(context.Background(), ticket.ID)
			closed <- err
		}()
		// give the close a chance to slip between the flag update and the insert
		select {
		case err := <-closed:
			closed <- err
		case <-time.After(50 * time.Millisecond):
		}
	}

	report := f.scan(t, t0.Add(2*time.Minute))
	assert.Equal(t, ScanReport{Breached: 1}, report)
	require.NoError(t, <-closed)

	stored := f.ticket(t, ticket.ID)
	assert.Equal(t, domain.TicketStatusClosed, stored.Status)
	assert.False(t, stored.SLABreached)
	rows := f.historyOf(t, ticket.ID)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].ResolvedAt)
	assert.Equal(t, t0.Add(2*time.Minute), *rows[0].ResolvedAt)
}

func TestResolveSLA_OpenTicketReportsResolvedUntilNextScan(t *testing.T) {
	f := newFixture(t, config.SLAConfig{})
	ctx := context.Background()
	ticket := f.createTicket(t, domain.TicketPriorityHigh)

	f.scan(t, t0.Add(61*time.Second))
	f.clock.Set(t0.Add(90 * time.Second))
	require.NoError(t, f.sla.ResolveSLA(ctx, ticket.ID))

	status, err := f.sla.GetSLAStatus(ctx, ticket.ID)
	require.NoError(t, err)
	assert.False(t, status.Breached)
	assert.Equal(t, SLAStateResolved, status.State)
	assert.Zero(t, status.Remaining)
	require.NotNil(t, status.Deadline)

	// still open and overdue, so the next pass opens a new cycle
	report := f.scan(t, t0.Add(2*time.Minute))
	assert.Equal(t, ScanReport{Breached: 1}, report)
	assert.Len(t, f.historyOf(t, ticket.ID), 2)

	status, err = f.sla.GetSLAStatus(ctx, ticket.ID)
	require.NoError(t, err)
	assert.True(t, status.Breached)
	assert.Equal(t, SLAStateBreached, status.State)
}
