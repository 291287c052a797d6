package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/edgetensor/fleetdash/internal/db"
)

// RateLimitMiddleware limits each client IP to limit requests per window in
// the named bucket. Limiter failures let the request through.
func RateLimitMiddleware(limiter db.RateLimiter, name string, limit int64, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil || limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := RemoteFromContext(r.Context()).IP
			if ip == "" {
				ip = peerIP(r)
			}

			result, err := limiter.CheckRateLimit(r.Context(), name, ip, limit, window)
			if err != nil {
				slog.Error("middleware.ratelimit.check_failed",
					"component", "middleware",
					"event", "ratelimit.error",
					"name", name,
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
			if !result.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())))
				writeJSONError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
