package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	loginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logins_total",
			Help: "Total number of login attempts",
		},
		[]string{"outcome"},
	)

	tokenRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_refresh_total",
			Help: "Total number of refresh-token exchanges",
		},
		[]string{"outcome"},
	)

	movieLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movie_lookups_total",
			Help: "Total number of movie lookups",
		},
		[]string{"cache_hit", "endpoint"},
	)

	tmdbCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tmdb_calls_total",
			Help: "Total number of TMDB API calls",
		},
		[]string{"status"},
	)

	tmdbCallDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tmdb_call_duration_seconds",
			Help:    "TMDB API call duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)
)

// MetricsMiddleware collects Prometheus metrics for every HTTP request.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		httpRequestsInFlight.Inc()

		// FullPath is the registered route pattern, so dynamic parameters
		// do not explode label cardinality
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}

		c.Next()

		httpRequestsInFlight.Dec()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		httpRequestsTotal.WithLabelValues(c.Request.Method, endpoint, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(duration)
	}
}

// RecordLogin records the outcome of a login attempt.
func RecordLogin(success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	loginsTotal.WithLabelValues(outcome).Inc()
}

// RecordTokenRefresh records the outcome of a refresh-token exchange.
func RecordTokenRefresh(success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	tokenRefreshTotal.WithLabelValues(outcome).Inc()
}

// RecordMovieLookup records a movie lookup and whether the cache served it.
func RecordMovieLookup(cacheHit bool, endpoint string) {
	hit := "false"
	if cacheHit {
		hit = "true"
	}
	movieLookupsTotal.WithLabelValues(hit, endpoint).Inc()
}

// RecordTMDBCall records an upstream TMDB call.
func RecordTMDBCall(success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	tmdbCallsTotal.WithLabelValues(status).Inc()
	tmdbCallDuration.Observe(duration.Seconds())
}
