// Package observability provides prometheus metrics for the monitor and the
// backend server. All metrics hang off one registry so a single /metrics
// endpoint exposes everything.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all registered collectors.
type Metrics struct {
	registry *prometheus.Registry

	// Classifications counts classification outcomes by input kind and level.
	Classifications *prometheus.CounterVec
	// ClassifierFailures counts provider failures that triggered the
	// configured fallback, by input kind.
	ClassifierFailures *prometheus.CounterVec
	// PollDuration observes the duration of one snapshot→classify→apply
	// cycle, by input kind.
	PollDuration *prometheus.HistogramVec
	// RecordForwardFailures counts swallowed record store forward errors.
	RecordForwardFailures prometheus.Counter
	// AlertCues counts alert cues fired, by cue type.
	AlertCues *prometheus.CounterVec
	// HTTPRequests counts backend API requests by method, path and status.
	HTTPRequests *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors on a fresh registry.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		Classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "safecity_classifications_total",
			Help: "Classification outcomes by input kind and threat level.",
		}, []string{"kind", "level"}),
		ClassifierFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "safecity_classifier_failures_total",
			Help: "Classifier provider failures that triggered the fallback policy.",
		}, []string{"kind"}),
		PollDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "safecity_poll_duration_seconds",
			Help:    "Duration of one monitoring poll cycle.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		RecordForwardFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "safecity_record_forward_failures_total",
			Help: "Record store forward errors logged and dropped.",
		}),
		AlertCues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "safecity_alert_cues_total",
			Help: "Alert cues fired on threat level transitions.",
		}, []string{"cue"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "safecity_http_requests_total",
			Help: "Backend API requests by method, path and status code.",
		}, []string{"method", "path", "status"}),
	}

	collectorsToRegister := []prometheus.Collector{
		m.Classifications,
		m.ClassifierFailures,
		m.PollDuration,
		m.RecordForwardFailures,
		m.AlertCues,
		m.HTTPRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, c := range collectorsToRegister {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Handler returns an http.Handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
