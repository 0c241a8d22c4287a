// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trueface_store_operations_total",
		Help: "Domain store operations by name and outcome.",
	}, []string{"operation", "outcome"})

	presentCount = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "trueface_attendance_present_count",
		Help:    "Present count reported per attendance session.",
		Buckets: []float64{0, 5, 10, 20, 25, 30, 40, 60, 100},
	})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "trueface_http_request_duration_seconds",
		Help:    "HTTP request latency by route and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	rateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trueface_http_rate_limited_total",
		Help: "Requests rejected by the rate limiter.",
	})

	eventsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trueface_worker_events_total",
		Help: "Domain events consumed by the worker, by type.",
	}, []string{"type"})
)

// Operation counts one domain store call. Outcome is "ok" or "error".
func Operation(name string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	operations.WithLabelValues(name, outcome).Inc()
}

// PresentCount records the present count of a new session.
func PresentCount(n int) {
	presentCount.Observe(float64(n))
}

// RateLimited counts a rejected request.
func RateLimited() {
	rateLimited.Inc()
}

// EventConsumed counts an event handled by the worker.
func EventConsumed(eventType string) {
	eventsConsumed.WithLabelValues(eventType).Inc()
}

// GinMiddleware observes request latency per matched route.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpDuration.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
