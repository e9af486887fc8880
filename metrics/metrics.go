package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "podstreak",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "podstreak",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	checkIns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "podstreak",
			Subsystem: "streak",
			Name:      "check_ins_total",
			Help:      "Check-ins processed by outcome.",
		},
		[]string{"outcome"},
	)

	restores = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "podstreak",
			Subsystem: "streak",
			Name:      "restores_total",
			Help:      "Restore attempts by result.",
		},
		[]string{"result"},
	)

	sweepRuns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "podstreak",
			Subsystem: "sweep",
			Name:      "runs_total",
			Help:      "Completed expiry sweeps.",
		},
	)

	sweepBroken = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "podstreak",
			Subsystem: "sweep",
			Name:      "broken_streaks_total",
			Help:      "Streaks zeroed by the expiry sweep.",
		},
	)

	sweepFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "podstreak",
			Subsystem: "sweep",
			Name:      "user_failures_total",
			Help:      "Per-user update failures skipped by the expiry sweep.",
		},
	)

	storageRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "podstreak",
			Subsystem: "storage",
			Name:      "retries_total",
			Help:      "Storage calls retried after a transient error.",
		},
		[]string{"op"},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		checkIns,
		restores,
		sweepRuns,
		sweepBroken,
		sweepFailures,
		storageRetries,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency keyed by the matched route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		if path == "/metrics" {
			return
		}
		httpRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// RecordCheckIn counts one check-in outcome: incremented, restarted, started, lost, failed, duplicate.
func RecordCheckIn(outcome string) {
	checkIns.WithLabelValues(outcome).Inc()
}

// RecordRestore counts one restore attempt by result.
func RecordRestore(result string) {
	restores.WithLabelValues(result).Inc()
}

// RecordSweep counts a finished sweep along with its broken and failed users.
func RecordSweep(broken, failed int) {
	sweepRuns.Inc()
	sweepBroken.Add(float64(broken))
	sweepFailures.Add(float64(failed))
}

// RecordRetry counts one retried storage call.
func RecordRetry(op string) {
	storageRetries.WithLabelValues(op).Inc()
}
