package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-sla/internal/api/dto"
	"github.com/spec-kit/helpdesk-sla/internal/service"
	apperrors "github.com/spec-kit/helpdesk-sla/pkg/util"
)

// SLAHandler exposes the breach monitor.
type SLAHandler struct {
	sla *service.SLAService
}

// NewSLAHandler constructs handler.
func NewSLAHandler(sla *service.SLAService) *SLAHandler {
	return &SLAHandler{sla: sla}
}

// Status GET /tickets/:id/sla-status.
func (h *SLAHandler) Status(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	status, err := h.sla.GetSLAStatus(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.SLAStatusResponse{
		TicketID:    status.TicketID,
		State:       string(status.State),
		Breached:    status.Breached,
		Notified:    status.Notified,
		RemainingMS: status.Remaining.Milliseconds(),
		Deadline:    status.Deadline,
	}})
}

// History GET /tickets/:id/sla-history.
func (h *SLAHandler) History(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	rows, err := h.sla.History(c.UserContext(), id)
	if err != nil {
		return err
	}
	items := make([]dto.SLAHistoryResponse, 0, len(rows))
	for _, row := range rows {
		items = append(items, dto.SLAHistoryResponse{
			ID:         row.ID,
			TicketID:   row.TicketID,
			BreachedAt: row.BreachedAt,
			NotifiedAt: row.NotifiedAt,
			ResolvedAt: row.ResolvedAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// ListBreached GET /tickets/sla/breached.
func (h *SLAHandler) ListBreached(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	tickets, err := h.sla.ListBreached(c.UserContext(), limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponses(tickets, h.sla.Policy())})
}

// CountBreached GET /tickets/sla/breached/count.
func (h *SLAHandler) CountBreached(c *fiber.Ctx) error {
	count, err := h.sla.CountBreached(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.CountResponse{Count: count}})
}

// Monitor POST /tickets/sla/monitor runs one scan pass immediately.
func (h *SLAHandler) Monitor(c *fiber.Ctx) error {
	report, err := h.sla.RunScanOnce(c.UserContext())
	if errors.Is(err, service.ErrScanInProgress) {
		return apperrors.NewConflict("sla scan already in progress", nil)
	}
	if err != nil {
		return apperrors.NewUnavailable("sla scan failed", err)
	}
	return c.JSON(fiber.Map{"data": dto.ScanReportResponse{
		Breached: report.Breached,
		Notified: report.Notified,
		Warned:   report.Warned,
		Skipped:  report.Skipped,
		Failed:   report.Failed,
	}})
}
