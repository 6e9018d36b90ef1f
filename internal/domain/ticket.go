package domain

import "time"

// TicketStatus is the workflow status name of a ticket.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "Open"
	TicketStatusInProgress TicketStatus = "In Progress"
	TicketStatusWaiting    TicketStatus = "Waiting"
	TicketStatusClosed     TicketStatus = "Closed"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusWaiting, TicketStatusClosed:
		return true
	}
	return false
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh:
		return true
	}
	return false
}

// Ticket is the aggregate for support requests.
//
// SLABreached and SLANotified are owned by the SLA monitor. SLANotified implies SLABreached,
// and a closed ticket carries neither flag.
type Ticket struct {
	ID           string
	Title        string
	Description  string
	Priority     TicketPriority
	Status       TicketStatus
	CreatedByID  string
	AssignedToID *string
	// AssigneeEmail is joined from the assignee's user row; nil when unassigned.
	AssigneeEmail *string
	DueAt         *time.Time
	SLABreached   bool
	SLANotified   bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ClosedAt      *time.Time
}

// IsClosed reports whether the ticket is in the terminal status.
func (t *Ticket) IsClosed() bool {
	return t.Status == TicketStatusClosed
}

// SLAFlags is the pair of monitor-owned flags used for compare-and-swap updates.
type SLAFlags struct {
	Breached bool
	Notified bool
}

// Flags returns the ticket's current SLA flags.
func (t *Ticket) Flags() SLAFlags {
	return SLAFlags{Breached: t.SLABreached, Notified: t.SLANotified}
}
