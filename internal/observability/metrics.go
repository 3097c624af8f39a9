package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inspectctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "inspectctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "inspectctl",
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Unmasked inspect requests waiting in the resolution queue.",
		},
	)
	queueDispatches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "inspectctl",
			Subsystem: "queue",
			Name:      "dispatches_total",
			Help:      "Requests sent to the game session.",
		},
	)
	queueOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inspectctl",
			Subsystem: "queue",
			Name:      "outcomes_total",
			Help:      "Resolved queue items by outcome.",
		},
		[]string{"outcome"},
	)
	queueDispatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "inspectctl",
			Subsystem: "queue",
			Name:      "dispatch_duration_seconds",
			Help:      "Time from dispatch to answer or timeout.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)
	sessionState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "inspectctl",
			Subsystem: "session",
			Name:      "state",
			Help:      "Game session state (0=disconnected, 1=connecting, 2=ready).",
		},
	)
	resolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inspectctl",
			Subsystem: "resolver",
			Name:      "resolutions_total",
			Help:      "Decoded links by kind and source.",
		},
		[]string{"kind", "source", "success"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			queueDepth, queueDispatches, queueOutcomes, queueDispatchDuration,
			sessionState, resolutions,
		)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

func SetQueueDepth(n int) {
	RegisterMetrics()
	queueDepth.Set(float64(n))
}

func RecordDispatch() {
	RegisterMetrics()
	queueDispatches.Inc()
}

func RecordQueueOutcome(outcome string, dispatched time.Duration) {
	RegisterMetrics()
	queueOutcomes.WithLabelValues(outcome).Inc()
	if dispatched > 0 {
		queueDispatchDuration.Observe(dispatched.Seconds())
	}
}

func SetSessionState(state int) {
	RegisterMetrics()
	sessionState.Set(float64(state))
}

func RecordResolution(kind, source string, success bool) {
	RegisterMetrics()
	resolutions.WithLabelValues(kind, source, strconv.FormatBool(success)).Inc()
}
