package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogChannel writes notices to the service log. It is always enabled.
type LogChannel struct {
	logger *zap.Logger
}

func NewLogChannel(logger *zap.Logger) *LogChannel {
	return &LogChannel{logger: logger}
}

func (c *LogChannel) Name() string  { return "log" }
func (c *LogChannel) Enabled() bool { return true }

func (c *LogChannel) Send(_ context.Context, msg Message) error {
	c.logger.Info("sla notice",
		zap.String("notification_id", msg.NotificationID),
		zap.String("type", string(msg.Type)),
		zap.String("ticket_id", msg.TicketID),
		zap.String("recipient", msg.Recipient),
		zap.String("subject", msg.Subject),
		zap.Time("deadline", msg.Deadline))
	return nil
}
