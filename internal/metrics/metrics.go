package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatcore_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatcore_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "route"},
	)

	// Event metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatcore_events_published_total",
			Help: "Domain events handed to subscribers after commit",
		},
		[]string{"type"},
	)

	SubscriberFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatcore_subscriber_failures_total",
			Help: "Subscriber errors and panics, by event type",
		},
		[]string{"type", "reason"}, // reason: "error" or "panic"
	)

	// Unit of work outcomes: commit, rollback, save_failed
	UnitOfWork = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatcore_unit_of_work_total",
			Help: "Unit of work outcomes",
		},
		[]string{"outcome"},
	)

	SaveDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chatcore_uow_save_duration_seconds",
			Help:    "Time spent flushing tracked aggregates",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25},
		},
	)
)

const (
	OutcomeCommit     = "commit"
	OutcomeRollback   = "rollback"
	OutcomeSaveFailed = "save_failed"
)

// Middleware records request counts and latency per route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, statusClass(c.Writer.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
