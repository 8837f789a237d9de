package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Config carries the labels stamped onto every metric.
type Config struct {
	ServiceName string
	Environment string
}

// HTTPMetrics captures request-level signals for the trigger surface.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewHTTPMetrics(cfg Config) *HTTPMetrics {
	labels := prometheus.Labels{
		"service":     nonEmpty(cfg.ServiceName, "boostlane"),
		"environment": nonEmpty(cfg.Environment, "unknown"),
	}

	return &HTTPMetrics{
		requests: newCounterVec(prometheus.DefaultRegisterer, prometheus.CounterOpts{
			Name:        "http_requests_total",
			Help:        "HTTP requests by method, route and status.",
			ConstLabels: labels,
		}, []string{"method", "route", "status"}),
		duration: newHistogramVec(prometheus.DefaultRegisterer, prometheus.HistogramOpts{
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request latency by method and route.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: labels,
		}, []string{"method", "route"}),
	}
}

// GinMiddleware records request count and latency.
func GinMiddleware(m *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func nonEmpty(value, def string) string {
	if value == "" {
		return def
	}
	return value
}
