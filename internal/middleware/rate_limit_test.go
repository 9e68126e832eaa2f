package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pslattery/gatehouse/internal/models"
	"github.com/pslattery/gatehouse/internal/services"
)

type stubBackend struct {
	result *models.RateLimitResult
	err    error
}

func (s *stubBackend) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error) {
	return s.result, s.err
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestScopedRateLimit_AllowsAndSetsHeaders(t *testing.T) {
	backend := &stubBackend{result: &models.RateLimitResult{Allowed: true, Limit: 10, Remaining: 6}}
	limiter := services.NewRateLimitService(backend, slog.Default())
	rule := services.RateLimitRule{Scope: "login", Limit: 10, Window: time.Minute}

	mw := ScopedRateLimit(limiter, rule, nil)(okHandler())

	r := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	w := httptest.NewRecorder()
	mw.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "10", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "6", w.Header().Get("X-RateLimit-Remaining"))
}

func TestScopedRateLimit_DeniesWithRetryAfter(t *testing.T) {
	backend := &stubBackend{result: &models.RateLimitResult{Allowed: false, Limit: 5, Remaining: 0, RetryAfterSeconds: 31}}
	limiter := services.NewRateLimitService(backend, slog.Default())
	rule := services.RateLimitRule{Scope: "otp", Limit: 5, Window: time.Minute}

	mw := ScopedRateLimit(limiter, rule, nil)(okHandler())

	r := httptest.NewRequest(http.MethodPost, "/auth/otp", nil)
	w := httptest.NewRecorder()
	mw.ServeHTTP(w, r)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "31", w.Header().Get("Retry-After"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	assert.Contains(t, w.Body.String(), "retryAfter")
}

func TestScopedRateLimit_FailsOpenWhenBackendDown(t *testing.T) {
	backend := &stubBackend{err: assert.AnError}
	limiter := services.NewRateLimitService(backend, slog.Default())
	rule := services.RateLimitRule{Scope: "login", Limit: 10, Window: time.Minute}

	mw := ScopedRateLimit(limiter, rule, nil)(okHandler())

	r := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	w := httptest.NewRecorder()
	mw.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
}
