package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

// CreateUserRequest payload.
type CreateUserRequest struct {
	Email string          `json:"email" validate:"required,email"`
	Role  domain.UserRole `json:"role" validate:"omitempty,oneof=agent user"`
}

// UserResponse payload.
type UserResponse struct {
	ID        string          `json:"id"`
	Email     string          `json:"email"`
	Role      domain.UserRole `json:"role"`
	CreatedAt time.Time       `json:"created_at"`
}

// NotificationResponse is one inbox entry.
type NotificationResponse struct {
	ID            string                  `json:"id"`
	TicketID      string                  `json:"ticket_id"`
	Type          domain.NotificationType `json:"type"`
	Title         string                  `json:"title"`
	Message       string                  `json:"message"`
	Read          bool                    `json:"read"`
	CreatedAt     time.Time               `json:"created_at"`
	DeliveredAt   *time.Time              `json:"delivered_at"`
	DeliveryError *string                 `json:"delivery_error,omitempty"`
}
