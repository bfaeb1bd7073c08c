package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Debug-engine metrics for production monitoring
var (
	// Session metrics
	SessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gumshoe_sessions_total",
			Help: "Total number of debug sessions started",
		},
		[]string{"status"}, // status: completed/cancelled
	)

	SessionSteps = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gumshoe_session_steps",
			Help:    "Number of steps consumed per session",
			Buckets: prometheus.LinearBuckets(1, 1, 15),
		},
	)

	SessionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gumshoe_session_duration_seconds",
			Help:    "Session duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~17min
		},
	)

	// Probe metrics
	ProbeExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gumshoe_probe_executions_total",
			Help: "Total number of probe executions",
		},
		[]string{"probe", "status"}, // status: success/error
	)

	ProbeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gumshoe_probe_duration_seconds",
			Help:    "Probe execution duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~10s
		},
		[]string{"probe"},
	)

	DedupSkips = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gumshoe_dedup_skips_total",
			Help: "Total number of planned probes skipped as duplicates",
		},
	)

	DependencyResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gumshoe_dependency_resolutions_total",
			Help: "Total number of auto-invoked prerequisite probes",
		},
		[]string{"probe"},
	)

	// Reasoner metrics
	ReasonerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gumshoe_reasoner_requests_total",
			Help: "Total number of Reasoner round-trips",
		},
		[]string{"function", "status"}, // function: hypotheses/plan/digest/stop/diagnose
	)

	ReasonerRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gumshoe_reasoner_request_duration_seconds",
			Help:    "Reasoner request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~1min
		},
		[]string{"function"},
	)
)

// NewProbeTimer starts a duration observation for one probe execution.
func NewProbeTimer(probeName string) *prometheus.Timer {
	return prometheus.NewTimer(ProbeDuration.WithLabelValues(probeName))
}
