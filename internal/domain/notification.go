package domain

import "time"

// NotificationType identifies what a persisted notification announces.
type NotificationType string

const (
	NotificationSLABreach  NotificationType = "SLA_BREACH"
	NotificationSLAWarning NotificationType = "SLA_WARNING"
)

// Notification is a persisted notice for a user. Delivery is attempted after it is stored.
type Notification struct {
	ID            string
	UserID        *string
	TicketID      string
	Type          NotificationType
	Recipient     string
	Title         string
	Message       string
	Read          bool
	CreatedAt     time.Time
	DeliveredAt   *time.Time
	DeliveryError *string
}
