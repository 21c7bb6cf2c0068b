package api

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/lalithlochan/sentinel/internal/metrics"
	"github.com/lalithlochan/sentinel/internal/redis"
	"github.com/lalithlochan/sentinel/internal/session"
)

// SubjectFunc names who a request is counted against.
type SubjectFunc func(*http.Request) string

// RateLimitMiddleware counts every request against its route group's budget.
// A nil limiter or a Redis failure lets the request through.
func RateLimitMiddleware(limiter *redis.RateLimiter, logger *zap.Logger, subject SubjectFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			who := subject(r)
			if who == "" {
				next.ServeHTTP(w, r)
				return
			}

			group := RouteGroup(r)
			result, err := limiter.Allow(r.Context(), group, who)
			if err != nil {
				logger.Warn("rate limit check failed", zap.String("group", group), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if !result.Allowed {
				metrics.RecordRateLimitRejection(group)
				retryAfter := int(time.Until(result.ResetAt).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				writeProblem(w, ErrorResponse{
					Type:   "rate_limit_exceeded",
					Title:  "Too Many Requests",
					Status: http.StatusTooManyRequests,
					Detail: "Too many " + group + " requests, retry after the indicated time.",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RouteGroup buckets a request: sign-in and OAuth under auth, other
// mutations under write, everything else under read.
func RouteGroup(r *http.Request) string {
	path := r.URL.Path
	if strings.HasSuffix(path, "/session/login") || strings.Contains(path, "/oauth/") {
		return redis.GroupAuth
	}
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return redis.GroupRead
	}
	return redis.GroupWrite
}

// OperatorSubject counts requests against the signed-in operator, and
// against the client address before sign-in.
func OperatorSubject(sess *session.Session) SubjectFunc {
	return func(r *http.Request) string {
		if sess != nil && sess.Authenticated() {
			if email := sess.Email(); email != "" {
				return "op:" + strings.ToLower(email)
			}
		}
		return IPKeyFunc(r)
	}
}

// IPKeyFunc keys on the peer address. Run it behind middleware.RealIP,
// which has already resolved trusted forwarding headers into RemoteAddr.
func IPKeyFunc(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return "ip:" + host
	}
	return "ip:" + r.RemoteAddr
}

// RequestLogger logs one line per completed request.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration_ms", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
