package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/pslattery/gatehouse/internal/models"
)

// RateLimitBackend defines the counter store the rate limit service uses
type RateLimitBackend interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error)
}

// RateLimitRule binds a route scope to its fixed-window budget.
type RateLimitRule struct {
	Scope  string
	Limit  int
	Window time.Duration
}

// DefaultRateLimitRules covers the abuse-sensitive authentication routes.
var DefaultRateLimitRules = []RateLimitRule{
	{Scope: "login", Limit: 10, Window: time.Minute},
	{Scope: "register", Limit: 5, Window: time.Minute},
	{Scope: "otp", Limit: 5, Window: time.Minute},
	{Scope: "magic_link", Limit: 5, Window: time.Minute},
	{Scope: "forgot_password", Limit: 5, Window: time.Minute},
}

// RateLimitService enforces per-client fixed-window limits. When the
// backend is unreachable the service fails open: availability of login
// outranks strict enforcement of the limit.
type RateLimitService struct {
	backend RateLimitBackend
	logger  *slog.Logger
}

func NewRateLimitService(backend RateLimitBackend, logger *slog.Logger) *RateLimitService {
	return &RateLimitService{
		backend: backend,
		logger:  logger,
	}
}

// Check consumes one hit for the client in the rule's scope. The returned
// result always carries the limit headers' values.
func (s *RateLimitService) Check(ctx context.Context, rule RateLimitRule, clientKey string) *models.RateLimitResult {
	result, err := s.backend.Allow(ctx, rule.Scope+":"+clientKey, rule.Limit, rule.Window)
	if err != nil {
		s.logger.Warn("rate limit backend unavailable, allowing request",
			slog.String("scope", rule.Scope),
			slog.Any("error", err))
		return &models.RateLimitResult{
			Allowed:   true,
			Limit:     rule.Limit,
			Remaining: rule.Limit - 1,
		}
	}
	return result
}
