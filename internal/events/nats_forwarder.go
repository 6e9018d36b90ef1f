package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSForwarder republishes SLA events to a NATS subject per event type.
type NATSForwarder struct {
	conn   *nats.Conn
	pub    publisher
	prefix string
	logger *zap.Logger
}

// NewNATSForwarder connects to url. Reconnects are handled by the client.
func NewNATSForwarder(url, prefix string, logger *zap.Logger) (*NATSForwarder, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}
	logger.Info("connected to nats", zap.String("url", url))
	return &NATSForwarder{conn: conn, pub: conn, prefix: prefix, logger: logger}, nil
}

// Register subscribes the forwarder to every SLA event on d.
func (f *NATSForwarder) Register(d Dispatcher) {
	for _, eventType := range SLAEventTypes {
		d.Subscribe(eventType, f.forward)
	}
}

// Subject returns the NATS subject for an event type, e.g. helpdesk.sla.breached.
func (f *NATSForwarder) Subject(eventType EventType) string {
	return f.prefix + "." + strings.TrimPrefix(string(eventType), "sla_")
}

func (f *NATSForwarder) forward(_ context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := f.pub.Publish(f.Subject(event.Type), data); err != nil {
		return err
	}
	f.logger.Debug("event forwarded", zap.String("subject", f.Subject(event.Type)), zap.String("ticket_id", event.TicketID))
	return nil
}

// IsConnected reports the live connection state.
func (f *NATSForwarder) IsConnected() bool {
	return f.conn != nil && f.conn.IsConnected()
}

// Close drains pending publishes.
func (f *NATSForwarder) Close() {
	if f.conn == nil {
		return
	}
	if err := f.conn.Drain(); err != nil {
		f.conn.Close()
	}
	f.logger.Info("disconnected from nats")
}
