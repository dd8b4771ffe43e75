package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	apiRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "API requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	// buckets sit around the scan budget, where the interesting latencies are
	apiLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request latency",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2, 3, 5},
		},
		[]string{"method", "route"},
	)

	apiInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "api_requests_in_flight",
		Help: "Requests currently being served",
	})
)

// Metrics records request counts, latency and in-flight requests per route.
// Unmatched paths share a single "unmatched" route label.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		apiInFlight.Inc()
		start := time.Now()
		defer apiInFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		apiRequests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		apiLatency.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
