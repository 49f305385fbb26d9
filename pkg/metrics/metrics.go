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
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	TextGenLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "textgen_call_latency_ms",
			Help:    "Text generation API call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10), // 100ms to ~100s
		},
		[]string{"operation", "status"},
	)

	SubmissionCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "project_submission_count",
			Help: "Total number of wizard submissions",
		},
		[]string{"outcome"}, // created, duplicate, failed
	)

	StatusChangeCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "project_status_change_count",
			Help: "Total number of project status changes",
		},
		[]string{"to"},
	)
)

func RecordTextGenLatency(operation, status string, duration time.Duration) {
	TextGenLatency.WithLabelValues(operation, status).Observe(float64(duration.Milliseconds()))
}

func IncrementSubmission(outcome string) {
	SubmissionCount.WithLabelValues(outcome).Inc()
}

func IncrementStatusChange(to string) {
	StatusChangeCount.WithLabelValues(to).Inc()
}

// Middleware records request duration by route template
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequestDuration.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the default registry
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
