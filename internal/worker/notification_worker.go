package worker

import (
	"context"

	"github.com/spec-kit/helpdesk-sla/internal/service"
)

// StartNotificationWorker launches the delivery workers and returns a stop function that
// drains queued notices.
func StartNotificationWorker(ctx context.Context, notificationService *service.NotificationService) func() {
	if notificationService == nil {
		return func() {}
	}
	notificationService.Start(ctx)
	return notificationService.Close
}
