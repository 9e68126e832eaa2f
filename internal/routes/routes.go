package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/pslattery/gatehouse/internal/auth"
	"github.com/pslattery/gatehouse/internal/handlers"
	"github.com/pslattery/gatehouse/internal/middleware"
	"github.com/pslattery/gatehouse/internal/services"
	pkghttp "github.com/pslattery/gatehouse/pkg/http"
)

// Handlers bundles the HTTP handlers wired by RegisterRoutes. SSO is nil
// when no provider is configured.
type Handlers struct {
	Auth      *handlers.AuthHandler
	Users     *handlers.UserHandler
	Sessions  *handlers.SessionHandler
	TwoFactor *handlers.TwoFactorHandler
	SSO       *handlers.SSOHandler
}

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	h Handlers,
	tokenManager *auth.TokenManager,
	rateLimiter *services.RateLimitService,
	ipConfig *pkghttp.IPConfig,
) {
	rules := make(map[string]services.RateLimitRule, len(services.DefaultRateLimitRules))
	for _, rule := range services.DefaultRateLimitRules {
		rules[rule.Scope] = rule
	}
	// Public routes
	router.With(middleware.ScopedRateLimit(rateLimiter, rules["register"], ipConfig)).
		Post("/auth/register", h.Auth.Register)
	router.With(middleware.ScopedRateLimit(rateLimiter, rules["otp"], ipConfig)).
		Post("/auth/otp", h.Auth.RequestOTP)
	router.Post("/auth/verify", h.Auth.Verify)
	router.With(middleware.ScopedRateLimit(rateLimiter, rules["login"], ipConfig)).
		Post("/auth/login", h.Auth.Login)
	router.With(middleware.ScopedRateLimit(rateLimiter, rules["login"], ipConfig)).
		Post("/auth/login/otp", h.Auth.LoginOTP)
	router.With(middleware.ScopedRateLimit(rateLimiter, rules["forgot_password"], ipConfig)).
		Post("/auth/forgot-password", h.Auth.ForgotPassword)
	router.Post("/auth/reset-password", h.Auth.ResetPassword)
	router.Post("/auth/refresh", h.Auth.Refresh)
	router.Post("/auth/logout", h.Auth.Logout)
	router.With(middleware.ScopedRateLimit(rateLimiter, rules["magic_link"], ipConfig)).
		Post("/auth/magic-link", h.Auth.RequestMagicLink)
	router.Get("/auth/magic-link", h.Auth.RedeemMagicLink)

	if h.SSO != nil {
		router.Get("/auth/sso/{provider}", h.SSO.Start)
		router.Get("/auth/sso/{provider}/callback", h.SSO.Callback)
	}

	// Protected routes
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(tokenManager))

		r.Get("/users", h.Users.List)
		r.Get("/users/me", h.Users.Me)
		r.Patch("/users/me", h.Users.UpdateMe)
		r.Delete("/users/me", h.Users.DeleteMe)
		r.Patch("/users/me/password", h.Users.ChangePassword)

		r.Get("/users/me/sessions", h.Sessions.List)
		r.Delete("/users/me/sessions", h.Sessions.RevokeAll)
		r.Delete("/users/me/sessions/{id}", h.Sessions.Revoke)

		r.Post("/users/me/2fa", h.TwoFactor.Enable)
		r.Post("/users/me/2fa/confirm", h.TwoFactor.Confirm)
		r.Delete("/users/me/2fa", h.TwoFactor.Disable)
	})
}
