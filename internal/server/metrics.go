package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// labelHandler partitions HTTP metrics by logical endpoint rather than raw
// URL path.
const labelHandler = "handler"

// Metrics holds every Prometheus collector owned by the service. It is built
// before the pipeline so stage timings can be observed through
// [Metrics.ObserveStage], then handed to the server.
type Metrics struct {
	// chatRequestsTotal counts completed /chat requests by outcome: "ok" or
	// the fault kind.
	chatRequestsTotal *prometheus.CounterVec

	// chatDurationSeconds records end-to-end /chat latency by outcome.
	chatDurationSeconds *prometheus.HistogramVec

	// chatInflight is the number of /chat requests being processed.
	chatInflight prometheus.Gauge

	// stageSeconds records the latency of each pipeline stage.
	stageSeconds *prometheus.HistogramVec

	// contactsTotal counts /user_info submissions by outcome.
	contactsTotal *prometheus.CounterVec

	// authRejectedTotal counts requests refused by API key checks.
	authRejectedTotal *prometheus.CounterVec

	// httpRequestsTotal counts all HTTP requests by method, handler and code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec
}

// NewMetrics registers all collectors against reg. Passing a fresh
// prometheus.Registry keeps tests hermetic.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		chatRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docchat",
			Subsystem: "chat",
			Name:      "requests_total",
			Help:      "Completed /chat requests, partitioned by outcome.",
		}, []string{"outcome"}),

		chatDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docchat",
			Subsystem: "chat",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of /chat requests.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"outcome"}),

		chatInflight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "docchat",
			Subsystem: "chat",
			Name:      "inflight",
			Help:      "Number of /chat requests currently being processed.",
		}),

		stageSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docchat",
			Subsystem: "pipeline",
			Name:      "stage_seconds",
			Help:      "Latency of each conversational pipeline stage.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"stage"}),

		contactsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docchat",
			Subsystem: "contacts",
			Name:      "submissions_total",
			Help:      "Contact form submissions, partitioned by outcome.",
		}, []string{"outcome"}),

		authRejectedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docchat",
			Subsystem: "http",
			Name:      "auth_rejected_total",
			Help:      "Requests refused for a missing or invalid API key, by handler and reason.",
		}, []string{labelHandler, "reason"}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docchat",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docchat",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),
	}
}

// ObserveStage records one pipeline stage duration. Its signature matches
// the assistant pipeline's stage hook.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageSeconds.WithLabelValues(stage).Observe(d.Seconds())
}
