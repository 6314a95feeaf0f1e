// Package metrics exposes Prometheus collectors for uploads, workflow
// transitions, notification deliveries and processing requests. All recording
// methods are safe on a nil *Metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "assetflow"

// Metrics owns a private registry so tests can create independent instances.
type Metrics struct {
	registry         *prometheus.Registry
	uploadsInitiated prometheus.Counter
	uploadsCompleted prometheus.Counter
	uploadsAborted   *prometheus.CounterVec
	partsReported    prometheus.Counter
	transitions      *prometheus.CounterVec
	notifications    *prometheus.CounterVec
	processing       *prometheus.CounterVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		uploadsInitiated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "uploads", Name: "initiated_total",
			Help: "Upload sessions created.",
		}),
		uploadsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "uploads", Name: "completed_total",
			Help: "Upload sessions finalized into a new asset version.",
		}),
		uploadsAborted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "uploads", Name: "aborted_total",
			Help: "Upload sessions aborted, by reason.",
		}, []string{"reason"}),
		partsReported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "uploads", Name: "parts_reported_total",
			Help: "Part integrity tokens recorded.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "workflow", Name: "transitions_total",
			Help: "Applied workflow actions by action and resulting status.",
		}, []string{"action", "to"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "notifications", Name: "dispatched_total",
			Help: "Notification dispatches by event type and delivery status.",
		}, []string{"event", "status"}),
		processing: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "processing", Name: "requests_total",
			Help: "Processing requests by result.",
		}, []string{"result"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.uploadsInitiated,
		m.uploadsCompleted,
		m.uploadsAborted,
		m.partsReported,
		m.transitions,
		m.notifications,
		m.processing,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) UploadInitiated() {
	if m != nil {
		m.uploadsInitiated.Inc()
	}
}

func (m *Metrics) UploadCompleted() {
	if m != nil {
		m.uploadsCompleted.Inc()
	}
}

func (m *Metrics) UploadAborted(reason string) {
	if m != nil {
		m.uploadsAborted.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) PartReported() {
	if m != nil {
		m.partsReported.Inc()
	}
}

func (m *Metrics) Transition(action, to string) {
	if m != nil {
		m.transitions.WithLabelValues(action, to).Inc()
	}
}

func (m *Metrics) Notification(event, status string) {
	if m != nil {
		m.notifications.WithLabelValues(event, status).Inc()
	}
}

func (m *Metrics) Processing(result string) {
	if m != nil {
		m.processing.WithLabelValues(result).Inc()
	}
}
