// Package metrics declares the Prometheus collectors exported at /metrics.
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
	// StatusTransitions counts committed status changes.
	StatusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "civiceye_status_transitions_total",
		Help: "Committed grievance status transitions by from and to status",
	}, []string{"from", "to"})

	// StatusConflicts counts compare-and-set retries caused by concurrent writers.
	StatusConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "civiceye_status_cas_retries_total",
		Help: "Status updates retried after losing a concurrent compare-and-set",
	})

	NotificationsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "civiceye_notifications_dispatched_total",
		Help: "Notification dispatch attempts by type and result",
	}, []string{"type", "result"})

	FeedbackSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "civiceye_feedback_submissions_total",
		Help: "Feedback submissions by result",
	}, []string{"result"})

	GrievancesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "civiceye_grievances_created_total",
		Help: "Grievances created by category",
	}, []string{"category"})

	FeedFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "civiceye_city_feed_fetches_total",
		Help: "City update feed fetches by result",
	}, []string{"result"})

	// HTTPRequestDuration tracks request latency per route template.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "civiceye_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
	}, []string{"method", "route", "status"})
)

// Handler serves the default registry.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// Middleware records HTTPRequestDuration for every routed request.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
