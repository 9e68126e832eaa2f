package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/pslattery/gatehouse/internal/services"
	pkghttp "github.com/pslattery/gatehouse/pkg/http"
)

// GlobalRateLimit returns a coarse in-process limiter applied to every
// route, ahead of the per-scope Redis limits.
func GlobalRateLimit(requestsPerMinute int) func(next http.Handler) http.Handler {
	return httprate.Limit(
		requestsPerMinute,
		1*time.Minute,
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate_limit_exceeded","message":"Too many requests"}`))
		}),
	)
}

// ScopedRateLimit enforces the route-scope budget against the shared
// counter store, keyed by client IP. Responses carry the X-RateLimit
// headers; a denied request gets 429 with a retry hint.
func ScopedRateLimit(limiter *services.RateLimitService, rule services.RateLimitRule, ipConfig *pkghttp.IPConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := pkghttp.ExtractClientIP(r, ipConfig)
			result := limiter.Check(r.Context(), rule, clientIP)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))

			if !result.Allowed {
				reset := time.Now().Add(time.Duration(result.RetryAfterSeconds) * time.Second).Unix()
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset, 10))
				w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfterSeconds))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]interface{}{
					"error":      "rate_limit_exceeded",
					"message":    "Too many requests. Please try again later.",
					"retryAfter": result.RetryAfterSeconds,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
