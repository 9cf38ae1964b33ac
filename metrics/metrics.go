package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trekd",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "trekd",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	reduceRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trekd",
		Subsystem: "reduce",
		Name:      "runs_total",
		Help:      "Total point reductions run",
	}, []string{"strategy"})

	reducePointsIn = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trekd",
		Subsystem: "reduce",
		Name:      "points_in_total",
		Help:      "Total points handed to reducers",
	}, []string{"strategy"})

	reducePointsOut = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trekd",
		Subsystem: "reduce",
		Name:      "points_out_total",
		Help:      "Total points returned by reducers",
	}, []string{"strategy"})

	reduceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "trekd",
		Subsystem: "reduce",
		Name:      "duration_seconds",
		Help:      "Duration of point reductions",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
	}, []string{"strategy"})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "trekd",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of feed websocket connections",
	})

	MailEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trekd",
		Subsystem: "mail",
		Name:      "enqueued_total",
		Help:      "Total mails handed to the dispatcher",
	}, []string{"kind", "result"})
)

// ObserveHTTP records one HTTP request. Path should be the route template, not the raw URL.
func ObserveHTTP(method, path, status string, elapsed time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// ObserveReduce records one reducer run.
func ObserveReduce(strategy string, in, out int, elapsed time.Duration) {
	reduceRuns.WithLabelValues(strategy).Inc()
	reducePointsIn.WithLabelValues(strategy).Add(float64(in))
	reducePointsOut.WithLabelValues(strategy).Add(float64(out))
	reduceDuration.WithLabelValues(strategy).Observe(elapsed.Seconds())
}
