package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_SLACounters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordTransition("breached")
	m.RecordTransition("breached")
	m.RecordTransition("notified")
	m.RecordTicketError("conflict")
	m.RecordScanSkipped("in_progress")
	m.RecordScanFailure()
	m.ObserveScan(150 * time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.slaTransitions.WithLabelValues("breached")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.slaTransitions.WithLabelValues("notified")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.slaTicketErrors.WithLabelValues("conflict")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.scanSkipped.WithLabelValues("in_progress")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.scanFailures))
	assert.Equal(t, 1, testutil.CollectAndCount(m.scanDuration))
}

func TestMetrics_DeliveryAndRequests(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordDelivery("email", true)
	m.RecordDelivery("webhook", false)
	m.RecordDropped()
	m.RecordRequest("/tickets/:id/sla-status", "GET", 200, 5*time.Millisecond)
	m.RecordError("/tickets/:id/sla-status", "GET", "NOT_FOUND")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.notifyDeliveries.WithLabelValues("email", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.notifyDeliveries.WithLabelValues("webhook", "failed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.notifyDropped))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.requestCount.WithLabelValues("/tickets/:id/sla-status", "GET", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.errorCount.WithLabelValues("/tickets/:id/sla-status", "GET", "NOT_FOUND")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordTransition("breached")
		m.RecordDelivery("log", true)
		m.ObserveScan(time.Second)
		m.RecordRequest("/", "GET", 200, time.Millisecond)
	})
}
