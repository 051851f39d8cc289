package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "threadspire_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"method", "route", "status"})

	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "threadspire_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	ThreadsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "threadspire_threads_created_total",
		Help: "Threads created, by origin (direct, fork, draft).",
	}, []string{"origin"})

	ReactionsToggled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "threadspire_reactions_toggled_total",
		Help: "Reaction writes by action (add, switch, remove).",
	}, []string{"action"})

	ViewsRecorded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "threadspire_views_recorded_total",
		Help: "Thread views by caller kind.",
	}, []string{"kind"})

	RealtimeSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "threadspire_realtime_subscribers",
		Help: "Active realtime subscriptions in this process.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequests,
		HTTPDuration,
		ThreadsCreated,
		ReactionsToggled,
		ViewsRecorded,
		RealtimeSubscribers,
	)
}

// Middleware records request counts and latency per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func Handler() http.Handler {
	return promhttp.Handler()
}
