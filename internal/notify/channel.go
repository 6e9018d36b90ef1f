// Package notify delivers persisted notices over outbound channels.
package notify

import (
	"context"
	"time"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

// Message is one notice ready for delivery.
type Message struct {
	NotificationID string                  `json:"notification_id"`
	Type           domain.NotificationType `json:"type"`
	TicketID       string                  `json:"ticket_id"`
	TicketTitle    string                  `json:"ticket_title"`
	Priority       domain.TicketPriority   `json:"priority"`
	Recipient      string                  `json:"recipient"`
	Subject        string                  `json:"subject"`
	Body           string                  `json:"body"`
	CreatedAt      time.Time               `json:"ticket_created_at"`
	Deadline       time.Time               `json:"deadline"`
}

// Channel is one delivery route.
type Channel interface {
	Name() string
	Enabled() bool
	Send(ctx context.Context, msg Message) error
}
