package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-sla/internal/api/dto"
	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/service"
	"github.com/spec-kit/helpdesk-sla/pkg/validator"
	apperrors "github.com/spec-kit/helpdesk-sla/pkg/util"
)

func bindJSON(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := validator.Struct(out); err != nil {
		return apperrors.NewValidationError("invalid payload", validator.FieldErrors(err))
	}
	return nil
}

// pathID returns a uuid route parameter or a validation error.
func pathID(c *fiber.Ctx, name string) (string, error) {
	id := c.Params(name)
	if err := validator.Var(id, "required,uuid"); err != nil {
		return "", apperrors.NewValidationError("invalid "+name, map[string]any{name: id})
	}
	return id, nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func pagination(c *fiber.Ctx) (limit, offset int) {
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	if pageSize > 100 {
		pageSize = 100
	}
	return pageSize, (page - 1) * pageSize
}

// parseTime accepts RFC3339 timestamps and plain dates.
func parseTime(val string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, val); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func ticketResponse(ticket *domain.Ticket, policy service.SLAPolicy) dto.TicketResponse {
	return dto.TicketResponse{
		ID:            ticket.ID,
		Title:         ticket.Title,
		Description:   ticket.Description,
		Priority:      ticket.Priority,
		Status:        ticket.Status,
		CreatedByID:   ticket.CreatedByID,
		AssignedToID:  ticket.AssignedToID,
		AssigneeEmail: ticket.AssigneeEmail,
		DueAt:         ticket.DueAt,
		SLABreached:   ticket.SLABreached,
		SLANotified:   ticket.SLANotified,
		SLADeadline:   policy.DeadlineOf(ticket),
		CreatedAt:     ticket.CreatedAt,
		UpdatedAt:     ticket.UpdatedAt,
		ClosedAt:      ticket.ClosedAt,
	}
}

func ticketResponses(tickets []domain.Ticket, policy service.SLAPolicy) []dto.TicketResponse {
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketResponse(&tickets[i], policy))
	}
	return items
}
