package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpReqs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quetras",
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	httpLat = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "quetras",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	httpInflight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "quetras",
		Name:      "http_requests_inflight",
		Help:      "Requests currently being served.",
	})

	httpRespSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "quetras",
		Name:      "http_response_size_bytes",
		Help:      "Response body size.",
		Buckets:   prometheus.ExponentialBuckets(256, 4, 8), // 256B .. 4MiB
	}, []string{"method", "route"})
)

// unmatchedRoute labels requests that hit no route, keeping label
// cardinality bounded no matter what paths clients probe.
const unmatchedRoute = "unmatched"

// Metrics records request count, latency, body size and in-flight gauge.
// Long-lived streams (SSE) are counted but kept out of the latency histogram.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		httpInflight.Inc()
		defer httpInflight.Dec()
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		method := c.Request.Method
		httpReqs.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		if c.Writer.Header().Get("Content-Type") != "text/event-stream" {
			httpLat.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		}
		if n := c.Writer.Size(); n >= 0 {
			httpRespSize.WithLabelValues(method, route).Observe(float64(n))
		}
	}
}
