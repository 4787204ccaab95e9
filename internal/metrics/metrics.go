// Package metrics holds the Prometheus collectors of the inspector.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Diff kinds recorded by RecordChange.
const (
	AppAdded     = "app_added"
	AppRemoved   = "app_removed"
	StageAdded   = "stage_added"
	StageRemoved = "stage_removed"
)

// Metrics holds all Prometheus metrics. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Poll metrics
	PollTicks    prometheus.Counter
	PollFailures prometheus.Counter
	PollChanges  *prometheus.CounterVec
	PollDuration prometheus.Histogram

	// Model metrics
	AppsActive   prometheus.Gauge
	StagesActive prometheus.Gauge

	// Event metrics
	EventsDispatched *prometheus.CounterVec
	EventsDropped    prometheus.Counter
	DetailEdits      *prometheus.CounterVec

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		PollTicks: factory.NewCounter(prometheus.CounterOpts{
			Name: "scenicview_poll_ticks_total",
			Help: "Total number of reconciliation polls",
		}),
		PollFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "scenicview_poll_failures_total",
			Help: "Polls that could not reach the agents",
		}),
		PollChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scenicview_poll_changes_total",
			Help: "App and stage diffs emitted by polls",
		}, []string{"kind"}),
		PollDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "scenicview_poll_duration_seconds",
			Help:    "Duration of one reconciliation poll",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),

		AppsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "scenicview_apps_active",
			Help: "Number of inspected applications",
		}),
		StagesActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "scenicview_stages_active",
			Help: "Number of inspected stages",
		}),

		EventsDispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scenicview_events_dispatched_total",
			Help: "Agent events delivered to a stage",
		}, []string{"type"}),
		EventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "scenicview_events_dropped_total",
			Help: "Agent events for stages with no dispatcher",
		}),
		DetailEdits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scenicview_detail_edits_total",
			Help: "Detail edits submitted to agents",
		}, []string{"result"}),

		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scenicview_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scenicview_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"method", "path"}),

		WSConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "scenicview_ws_connections",
			Help: "Open event stream connections",
		}),
		WSMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scenicview_ws_messages_total",
			Help: "Messages sent on event streams",
		}, []string{"type"}),
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collectors in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordPoll records one poll.
func (m *Metrics) RecordPoll(duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.PollTicks.Inc()
	m.PollDuration.Observe(duration.Seconds())
	if err != nil {
		m.PollFailures.Inc()
	}
}

// RecordChange records one diff entry.
func (m *Metrics) RecordChange(kind string) {
	if m == nil {
		return
	}
	m.PollChanges.WithLabelValues(kind).Inc()
}

// SetModelSize records the number of tracked apps and stages.
func (m *Metrics) SetModelSize(apps, stages int) {
	if m == nil {
		return
	}
	m.AppsActive.Set(float64(apps))
	m.StagesActive.Set(float64(stages))
}

// RecordEvent records an event delivered to a stage, or dropped.
func (m *Metrics) RecordEvent(eventType string, delivered bool) {
	if m == nil {
		return
	}
	if !delivered {
		m.EventsDropped.Inc()
		return
	}
	m.EventsDispatched.WithLabelValues(eventType).Inc()
}

// RecordEdit records a detail edit.
func (m *Metrics) RecordEdit(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.DetailEdits.WithLabelValues(result).Inc()
}

// RecordHTTPRequest records one API request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// IncWSConnections records an opened event stream.
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
}

// DecWSConnections records a closed event stream.
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
}

// RecordWSMessage records a message pushed to a stream.
func (m *Metrics) RecordWSMessage(msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(msgType).Inc()
}
