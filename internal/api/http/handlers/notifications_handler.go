package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-sla/internal/api/dto"
	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/service"
	apperrors "github.com/spec-kit/helpdesk-sla/pkg/util"
)

// NotificationsHandler serves a user's notification inbox.
type NotificationsHandler struct {
	notifications *service.NotificationService
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(notifications *service.NotificationService) *NotificationsHandler {
	return &NotificationsHandler{notifications: notifications}
}

// List GET /users/:userId/notifications.
func (h *NotificationsHandler) List(c *fiber.Ctx) error {
	userID, err := pathID(c, "userId")
	if err != nil {
		return err
	}
	items, err := h.notifications.ListForUser(c.UserContext(), userID, parseInt(c.Query("limit"), 50))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": notificationResponses(items)})
}

// Unread GET /users/:userId/notifications/new.
func (h *NotificationsHandler) Unread(c *fiber.Ctx) error {
	userID, err := pathID(c, "userId")
	if err != nil {
		return err
	}
	items, err := h.notifications.ListUnread(c.UserContext(), userID, parseInt(c.Query("limit"), 50))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": notificationResponses(items)})
}

// Since GET /users/:userId/notifications/since/:date.
func (h *NotificationsHandler) Since(c *fiber.Ctx) error {
	userID, err := pathID(c, "userId")
	if err != nil {
		return err
	}
	since, ok := parseTime(c.Params("date"))
	if !ok {
		return apperrors.NewValidationError("invalid date", map[string]any{"date": c.Params("date")})
	}
	items, err := h.notifications.ListSince(c.UserContext(), userID, since, parseInt(c.Query("limit"), 50))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": notificationResponses(items)})
}

// MarkRead PUT /notifications/:id/read.
func (h *NotificationsHandler) MarkRead(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.notifications.MarkRead(c.UserContext(), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"id": id, "read": true}})
}

// MarkAllRead PUT /users/:userId/notifications/read-all.
func (h *NotificationsHandler) MarkAllRead(c *fiber.Ctx) error {
	userID, err := pathID(c, "userId")
	if err != nil {
		return err
	}
	count, err := h.notifications.MarkAllRead(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"updated": count}})
}

func notificationResponses(items []domain.Notification) []dto.NotificationResponse {
	resp := make([]dto.NotificationResponse, 0, len(items))
	for _, n := range items {
		resp = append(resp, dto.NotificationResponse{
			ID:            n.ID,
			TicketID:      n.TicketID,
			Type:          n.Type,
			Title:         n.Title,
			Message:       n.Message,
			Read:          n.Read,
			CreatedAt:     n.CreatedAt,
			DeliveredAt:   n.DeliveredAt,
			DeliveryError: n.DeliveryError,
		})
	}
	return resp
}
