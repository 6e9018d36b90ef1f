package service

import (
	"time"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

// SLAPolicy computes ticket deadlines. Only high priority carries an enforced deadline.
type SLAPolicy struct {
	highPriority time.Duration
}

// NewSLAPolicy returns a policy with the given high-priority window.
func NewSLAPolicy(highPriority time.Duration) SLAPolicy {
	return SLAPolicy{highPriority: highPriority}
}

// Deadline returns createdAt plus the window for high priority tickets. For every other
// priority it returns createdAt unchanged and enforced=false.
func (p SLAPolicy) Deadline(createdAt time.Time, priority domain.TicketPriority) (time.Time, bool) {
	if priority != domain.TicketPriorityHigh {
		return createdAt, false
	}
	return createdAt.Add(p.highPriority), true
}

// Window returns the configured high-priority duration.
func (p SLAPolicy) Window() time.Duration {
	return p.highPriority
}

// DeadlineOf is a convenience for ticket values; nil when not enforced.
func (p SLAPolicy) DeadlineOf(t *domain.Ticket) *time.Time {
	deadline, enforced := p.Deadline(t.CreatedAt, t.Priority)
	if !enforced {
		return nil
	}
	return &deadline
}
