package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingPublisher struct {
	subjects []string
	payloads [][]byte
}

func (p *recordingPublisher) Publish(subject string, data []byte) error {
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	return nil
}

func TestDispatcherContinuesAfterHandlerError(t *testing.T) {
	d := NewInMemoryDispatcher(zap.NewNop())
	calls := 0
	d.Subscribe(EventSLABreached, func(context.Context, Event) error {
		calls++
		return errors.New("boom")
	})
	d.Subscribe(EventSLABreached, func(context.Context, Event) error {
		calls++
		return nil
	})
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		t.Fatal("unexpected handler")
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventSLABreached}))
	assert.Equal(t, 2, calls)
}

func TestNATSForwarderPublishesSLAEvents(t *testing.T) {
	pub := &recordingPublisher{}
	f := &NATSForwarder{pub: pub, prefix: "helpdesk.sla", logger: zap.NewNop()}
	d := NewInMemoryDispatcher(zap.NewNop())
	f.Register(d)

	ctx := context.Background()
	require.NoError(t, d.Publish(ctx, Event{ID: "e1", Type: EventSLABreached, TicketID: "t1"}))
	require.NoError(t, d.Publish(ctx, Event{ID: "e2", Type: EventTicketCreated, TicketID: "t1"}))
	require.NoError(t, d.Publish(ctx, Event{ID: "e3", Type: EventSLAResolved, TicketID: "t1"}))

	assert.Equal(t, []string{"helpdesk.sla.breached", "helpdesk.sla.resolved"}, pub.subjects)

	var decoded Event
	require.NoError(t, json.Unmarshal(pub.payloads[0], &decoded))
	assert.Equal(t, "e1", decoded.ID)
	assert.Equal(t, "t1", decoded.TicketID)
}
