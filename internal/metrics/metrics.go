package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_http_requests_total",
			Help: "Total HTTP requests by method, route, and status",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sentinel_http_request_duration_seconds",
			Help:    "HTTP request latency distribution",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	notificationsAdded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_notifications_added_total",
			Help: "Notifications added to the store by kind",
		},
		[]string{"kind"},
	)

	toastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_toasts_total",
			Help: "Toast lifecycle events (shown, expired, dismissed)",
		},
		[]string{"event"},
	)

	apiCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_api_calls_total",
			Help: "Calls to the platform API by method and status class",
		},
		[]string{"method", "status"},
	)

	apiLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sentinel_api_call_duration_seconds",
			Help:    "Platform API call latency",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10, 30},
		},
		[]string{"method"},
	)

	unauthorizedLogouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_unauthorized_logouts_total",
			Help: "Sessions ended by a 401 from the platform API",
		},
	)

	oauthCallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_oauth_callbacks_total",
			Help: "OAuth callbacks by provider and result",
		},
		[]string{"provider", "result"},
	)

	relayDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_relay_deliveries_total",
			Help: "Relayed notifications by sink and result",
		},
		[]string{"sink", "result"},
	)

	digestsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_digests_sent_total",
			Help: "Unread digest mails by result",
		},
		[]string{"result"},
	)

	idempotencyHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_idempotency_hits_total",
			Help: "Requests served from idempotency cache",
		},
	)

	rateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_rate_limit_rejections_total",
			Help: "Requests rejected by rate limiter, by route group",
		},
		[]string{"group"},
	)

	unreadNotifications = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_unread_notifications",
			Help: "Current number of unread notifications",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordNotificationAdded counts a notification entering the store
func RecordNotificationAdded(kind string) {
	notificationsAdded.WithLabelValues(kind).Inc()
}

// RecordToast counts a toast lifecycle event
func RecordToast(event string) {
	toastsTotal.WithLabelValues(event).Inc()
}

// RecordAPICall records one platform API round trip. status 0 means the
// request never produced a response.
func RecordAPICall(method string, status int, duration time.Duration) {
	apiCalls.WithLabelValues(method, statusClass(status)).Inc()
	apiLatency.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordUnauthorizedLogout counts a 401-triggered logout
func RecordUnauthorizedLogout() {
	unauthorizedLogouts.Inc()
}

// RecordOAuthCallback records the outcome of an OAuth callback
func RecordOAuthCallback(provider, result string) {
	oauthCallbacks.WithLabelValues(provider, result).Inc()
}

// RecordRelayDelivery records one relay attempt
func RecordRelayDelivery(sink, result string) {
	relayDeliveries.WithLabelValues(sink, result).Inc()
}

// RecordDigest records one digest attempt
func RecordDigest(result string) {
	digestsSent.WithLabelValues(result).Inc()
}

// RecordIdempotencyHit records a cache hit for idempotency
func RecordIdempotencyHit() {
	idempotencyHits.Inc()
}

// RecordRateLimitRejection records a rate limit rejection
func RecordRateLimitRejection(group string) {
	rateLimitRejections.WithLabelValues(group).Inc()
}

// SetUnreadNotifications sets the unread gauge
func SetUnreadNotifications(count int) {
	unreadNotifications.Set(float64(count))
}

func statusClass(status int) string {
	if status <= 0 {
		return "error"
	}
	return strconv.Itoa(status/100) + "xx"
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware returns HTTP middleware that records request metrics. The
// route pattern is used as the path label so ids do not explode cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		RecordRequest(r.Method, path, wrapped.status, time.Since(start))
	})
}
