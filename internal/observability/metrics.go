package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the HTTP surface, the SLA scan loop and
// notification delivery. A nil *Metrics is a valid no-op recorder.
type Metrics struct {
	requestCount    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errorCount      *prometheus.CounterVec

	scanDuration     prometheus.Histogram
	scanSkipped      *prometheus.CounterVec
	scanFailures     prometheus.Counter
	slaTransitions   *prometheus.CounterVec
	slaTicketErrors  *prometheus.CounterVec
	notifyDeliveries *prometheus.CounterVec
	notifyDropped    prometheus.Counter
}

// NewMetrics registers collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "helpdesk",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "helpdesk",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		errorCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "helpdesk",
			Subsystem: "http",
			Name:      "errors_total",
			Help:      "HTTP errors by route, method and error code",
		}, []string{"route", "method", "code"}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "helpdesk",
			Subsystem: "sla",
			Name:      "scan_duration_seconds",
			Help:      "Duration of one SLA scan pass",
			Buckets:   prometheus.DefBuckets,
		}),
		scanSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "helpdesk",
			Subsystem: "sla",
			Name:      "scans_skipped_total",
			Help:      "Scan passes skipped because another pass held the lock",
		}, []string{"reason"}),
		scanFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "helpdesk",
			Subsystem: "sla",
			Name:      "scan_failures_total",
			Help:      "Scan passes aborted by a store fault",
		}),
		slaTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "helpdesk",
			Subsystem: "sla",
			Name:      "transitions_total",
			Help:      "SLA transitions applied by kind",
		}, []string{"kind"}),
		slaTicketErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "helpdesk",
			Subsystem: "sla",
			Name:      "ticket_errors_total",
			Help:      "Per-ticket transition failures by reason",
		}, []string{"reason"}),
		notifyDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "helpdesk",
			Subsystem: "notify",
			Name:      "deliveries_total",
			Help:      "Notification delivery attempts by channel and result",
		}, []string{"channel", "result"}),
		notifyDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "helpdesk",
			Subsystem: "notify",
			Name:      "dropped_total",
			Help:      "Notifications dropped because the delivery queue was full",
		}),
	}

	reg.MustRegister(
		m.requestCount, m.requestDuration, m.errorCount,
		m.scanDuration, m.scanSkipped, m.scanFailures, m.slaTransitions, m.slaTicketErrors,
		m.notifyDeliveries, m.notifyDropped,
	)
	return m
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestCount.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.errorCount.WithLabelValues(route, method, code).Inc()
}

// ObserveScan records the duration of a completed scan pass.
func (m *Metrics) ObserveScan(duration time.Duration) {
	if m == nil {
		return
	}
	m.scanDuration.Observe(duration.Seconds())
}

// RecordScanSkipped counts a pass that did not run.
func (m *Metrics) RecordScanSkipped(reason string) {
	if m == nil {
		return
	}
	m.scanSkipped.WithLabelValues(reason).Inc()
}

// RecordScanFailure counts a pass aborted by a store fault.
func (m *Metrics) RecordScanFailure() {
	if m == nil {
		return
	}
	m.scanFailures.Inc()
}

// RecordTransition counts an applied SLA transition.
func (m *Metrics) RecordTransition(kind string) {
	if m == nil {
		return
	}
	m.slaTransitions.WithLabelValues(kind).Inc()
}

// RecordTicketError counts a per-ticket failure.
func (m *Metrics) RecordTicketError(reason string) {
	if m == nil {
		return
	}
	m.slaTicketErrors.WithLabelValues(reason).Inc()
}

// RecordDelivery counts a notification delivery attempt.
func (m *Metrics) RecordDelivery(channel string, ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failed"
	}
	m.notifyDeliveries.WithLabelValues(channel, result).Inc()
}

// RecordDropped counts a notification dropped before persistence.
func (m *Metrics) RecordDropped() {
	if m == nil {
		return
	}
	m.notifyDropped.Inc()
}
