package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mvtypes",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mvtypes",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"method", "path"})

	// Pipeline metrics
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mvtypes",
		Subsystem: "pipeline",
		Name:      "runs_total",
		Help:      "Classification runs by outcome",
	}, []string{"outcome"})

	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "mvtypes",
		Subsystem: "pipeline",
		Name:      "run_duration_seconds",
		Help:      "Duration of a full classification run",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	FixesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mvtypes",
		Subsystem: "pipeline",
		Name:      "fixes_processed_total",
		Help:      "Total fixes annotated",
	})

	FixesRemoved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mvtypes",
		Subsystem: "pipeline",
		Name:      "fixes_removed_total",
		Help:      "Fixes dropped by the sanitizer, by reason",
	}, []string{"reason"})

	DegenerateVelocities = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mvtypes",
		Subsystem: "pipeline",
		Name:      "degenerate_velocities_total",
		Help:      "Fixes whose neighbours share a timestamp",
	})

	ClassBoundaries = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "mvtypes",
		Subsystem: "pipeline",
		Name:      "class_boundaries",
		Help:      "Number of speed-class boundaries found per run",
		Buckets:   prometheus.LinearBuckets(0, 1, 8),
	})
)

// Middleware records request count and latency per route
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the default registry
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
