package service

import (
	"time"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

// SLAState is the monitor's view of a ticket.
type SLAState string

const (
	SLAStateActive   SLAState = "active"
	SLAStateBreached SLAState = "breached"
	SLAStateNotified SLAState = "notified"
	SLAStateResolved SLAState = "resolved"
)

// StoredState derives the state from persisted flags and status.
func StoredState(t *domain.Ticket) SLAState {
	switch {
	case t.IsClosed():
		return SLAStateResolved
	case t.SLANotified:
		return SLAStateNotified
	case t.SLABreached:
		return SLAStateBreached
	default:
		return SLAStateActive
	}
}

// breachDue reports whether t must move Active→Breached at now.
func breachDue(t *domain.Ticket, deadline time.Time, enforced bool, now time.Time) bool {
	return enforced && !t.IsClosed() && !t.SLABreached && !now.Before(deadline)
}

// notifyDue reports whether t must move Breached→Notified.
func notifyDue(t *domain.Ticket) bool {
	return t.SLABreached && !t.SLANotified && !t.IsClosed()
}

// warningDue reports whether a pre-deadline warning applies at now.
func warningDue(t *domain.Ticket, deadline time.Time, enforced bool, before time.Duration, now time.Time) bool {
	if before <= 0 || !enforced || t.IsClosed() || t.SLABreached || !now.Before(deadline) {
		return false
	}
	return deadline.Sub(now) <= before
}
