package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/smtp"
	"strings"
	"time"

	"github.com/spec-kit/helpdesk-sla/internal/config"
)

// ErrNoRecipient is returned when a notice has no address to send to.
var ErrNoRecipient = errors.New("no recipient")

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailChannel sends HTML mail through an SMTP relay.
type EmailChannel struct {
	cfg      config.NotificationConfig
	auth     smtp.Auth
	sendMail sendMailFunc
}

// NewEmailChannel builds the channel. It is disabled when no SMTP host is configured.
func NewEmailChannel(cfg config.NotificationConfig) *EmailChannel {
	ch := &EmailChannel{cfg: cfg, sendMail: smtp.SendMail}
	if cfg.SMTPUsername != "" && cfg.SMTPPassword != "" {
		ch.auth = smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPHost)
	}
	return ch
}

func (c *EmailChannel) Name() string  { return "email" }
func (c *EmailChannel) Enabled() bool { return strings.TrimSpace(c.cfg.SMTPHost) != "" }

func (c *EmailChannel) Send(ctx context.Context, msg Message) error {
	if msg.Recipient == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var b strings.Builder
	headers := [][2]string{
		{"From", c.cfg.EmailFrom},
		{"To", msg.Recipient},
		{"Subject", msg.Subject},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/html; charset=UTF-8"},
	}
	for _, h := range headers {
		b.WriteString(fmt.Sprintf("%s: %s\r\n", h[0], h[1]))
	}
	b.WriteString("\r\n")
	b.WriteString(renderHTML(msg))

	addr := fmt.Sprintf("%s:%d", c.cfg.SMTPHost, c.cfg.SMTPPort)
	return c.sendMail(addr, c.auth, c.cfg.EmailFrom, []string{msg.Recipient}, []byte(b.String()))
}

func renderHTML(msg Message) string {
	return fmt.Sprintf(`<html>
<body style="font-family: Arial, sans-serif;">
    <h2>%s</h2>
    <p>%s</p>
    <p><strong>Ticket:</strong> %s (%s)</p>
    <p><strong>Priority:</strong> %s</p>
    <p><strong>Created:</strong> %s</p>
    <p><strong>Deadline:</strong> %s</p>
</body>
</html>
`,
		html.EscapeString(msg.Subject),
		html.EscapeString(msg.Body),
		html.EscapeString(msg.TicketTitle),
		html.EscapeString(msg.TicketID),
		html.EscapeString(string(msg.Priority)),
		msg.CreatedAt.Format(time.RFC3339),
		msg.Deadline.Format(time.RFC3339),
	)
}
