package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title        string                `json:"title" validate:"required,max=200"`
	Description  string                `json:"description" validate:"max=10000"`
	Priority     domain.TicketPriority `json:"priority" validate:"omitempty,oneof=low medium high"`
	CreatedByID  string                `json:"created_by_id" validate:"required,uuid"`
	AssignedToID *string               `json:"assigned_to_id" validate:"omitempty,uuid"`
	DueAt        *time.Time            `json:"due_at"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status domain.TicketStatus `json:"status" validate:"required"`
}

// TicketResponse is the ticket representation shared by every ticket endpoint.
type TicketResponse struct {
	ID            string                `json:"id"`
	Title         string                `json:"title"`
	Description   string                `json:"description"`
	Priority      domain.TicketPriority `json:"priority"`
	Status        domain.TicketStatus   `json:"status"`
	CreatedByID   string                `json:"created_by_id"`
	AssignedToID  *string               `json:"assigned_to_id"`
	AssigneeEmail *string               `json:"assignee_email"`
	DueAt         *time.Time            `json:"due_at"`
	SLABreached   bool                  `json:"sla_breached"`
	SLANotified   bool                  `json:"sla_notified"`
	SLADeadline   *time.Time            `json:"sla_deadline"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
	ClosedAt      *time.Time            `json:"closed_at"`
}

// CountResponse carries a single count.
type CountResponse struct {
	Count int `json:"count"`
}
