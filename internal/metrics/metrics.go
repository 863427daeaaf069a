// Package metrics exposes Prometheus collectors for the timetrack service.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the service's collectors so they can be dependency-
// injected instead of living in package-level globals.
type Metrics struct {
	Logins            *prometheus.CounterVec
	TokenRefreshes    prometheus.Counter
	SessionLookups    *prometheus.CounterVec
	PermissionDenials prometheus.Counter
	RequestDuration   *prometheus.HistogramVec
}

// New registers the service collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Logins: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "timetrack_logins_total",
			Help: "Login attempts by result.",
		}, []string{"result"}),
		TokenRefreshes: factory.NewCounter(prometheus.CounterOpts{
			Name: "timetrack_token_refreshes_total",
			Help: "Successful token refreshes.",
		}),
		SessionLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "timetrack_session_lookups_total",
			Help: "Session cache lookups by result.",
		}, []string{"result"}),
		PermissionDenials: factory.NewCounter(prometheus.CounterOpts{
			Name: "timetrack_permission_denials_total",
			Help: "Requests rejected by a permission guard.",
		}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "timetrack_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

// Middleware records request latency per route and status code.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
