package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the agent
type Metrics struct {
	// CapturesTotal counts capture attempts by final outcome
	CapturesTotal *prometheus.CounterVec
	// CaptureStageDuration tracks per-stage capture latency
	CaptureStageDuration *prometheus.HistogramVec
	// ContextResolutions counts window-context resolutions by outcome
	ContextResolutions *prometheus.CounterVec
	// URLResolutions counts browser URL resolutions by strategy and outcome
	URLResolutions *prometheus.CounterVec
	// TokenRefreshes counts token refreshes by trigger and outcome
	TokenRefreshes *prometheus.CounterVec
	// DeepLinkCallbacks counts deep-link callbacks by outcome
	DeepLinkCallbacks *prometheus.CounterVec
	// TempFilesSwept counts orphaned temp files removed at startup
	TempFilesSwept prometheus.Counter
	// registry is the custom registry for this metrics instance
	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		CapturesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "captures_total",
				Help:      "Total number of capture attempts by outcome",
			},
			[]string{"outcome"},
		),
		CaptureStageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "capture_stage_duration_seconds",
				Help:      "Capture pipeline stage latency in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 3.0, 5.0, 10.0},
			},
			[]string{"stage"},
		),
		ContextResolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "context_resolutions_total",
				Help:      "Window context resolutions by outcome",
			},
			[]string{"outcome"},
		),
		URLResolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "url_resolutions_total",
				Help:      "Browser URL resolutions by strategy and outcome",
			},
			[]string{"strategy", "outcome"},
		),
		TokenRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_refreshes_total",
				Help:      "Access token refreshes by trigger and outcome",
			},
			[]string{"trigger", "outcome"},
		),
		DeepLinkCallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deeplink_callbacks_total",
				Help:      "Deep-link callbacks by outcome",
			},
			[]string{"outcome"},
		),
		TempFilesSwept: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "temp_files_swept_total",
				Help:      "Orphaned capture temp files removed at startup",
			},
		),
	}

	registry.MustRegister(
		m.CapturesTotal,
		m.CaptureStageDuration,
		m.ContextResolutions,
		m.URLResolutions,
		m.TokenRefreshes,
		m.DeepLinkCallbacks,
		m.TempFilesSwept,
	)

	return m
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry (used in tests)
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
