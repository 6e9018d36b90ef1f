package events

import (
	"time"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventSLABreached         EventType = "sla_breached"
	EventSLANotified         EventType = "sla_notified"
	EventSLAResolved         EventType = "sla_resolved"
)

// SLAEventTypes lists the events emitted by the breach monitor.
var SLAEventTypes = []EventType{EventSLABreached, EventSLANotified, EventSLAResolved}

// ActorType tells who caused an event.
type ActorType string

const (
	ActorSystem ActorType = "system"
	ActorUser   ActorType = "user"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type   ActorType `json:"type"`
	UserID *string   `json:"user_id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  string    `json:"ticket_id"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Priority    domain.TicketPriority `json:"priority"`
	Title       string                `json:"title"`
	SLADeadline *time.Time            `json:"sla_deadline,omitempty"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	AssigneeID    string  `json:"assignee_id"`
	PreviousID    *string `json:"previous_assignee_id,omitempty"`
	AssigneeEmail string  `json:"assignee_email,omitempty"`
}

// SLABreachedPayload payload.
type SLABreachedPayload struct {
	BreachedAt time.Time `json:"breached_at"`
	Deadline   time.Time `json:"deadline"`
}

// SLANotifiedPayload payload.
type SLANotifiedPayload struct {
	NotifiedAt time.Time `json:"notified_at"`
	Recipient  string    `json:"recipient,omitempty"`
}

// SLAResolvedPayload payload.
type SLAResolvedPayload struct {
	ResolvedAt  time.Time `json:"resolved_at"`
	WasBreached bool      `json:"was_breached"`
}
