package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pslattery/gatehouse/internal/auth"
	"github.com/pslattery/gatehouse/internal/background"
	"github.com/pslattery/gatehouse/internal/cache"
	"github.com/pslattery/gatehouse/internal/config"
	"github.com/pslattery/gatehouse/internal/database"
	"github.com/pslattery/gatehouse/internal/handlers"
	middlewareCustom "github.com/pslattery/gatehouse/internal/middleware"
	"github.com/pslattery/gatehouse/internal/repositories"
	"github.com/pslattery/gatehouse/internal/routes"
	"github.com/pslattery/gatehouse/internal/services"
	pkghttp "github.com/pslattery/gatehouse/pkg/http"
	pkglogger "github.com/pslattery/gatehouse/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize Redis
	redisClient, err := cache.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Error("failed to connect to redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer redisClient.Close()

	// Initialize repositories and stores
	userRepo := repositories.NewUserRepository(db)
	sessionRepo := repositories.NewSessionRepository(db)
	deletionRepo := repositories.NewAccountDeletionRepository(db)
	refreshStore := cache.NewRefreshTokenStore(redisClient, cfg.Auth.RefreshTokenExpiry)
	rateLimitBackend := cache.NewRateLimiter(redisClient, "ratelimit")

	// Initialize token and TOTP managers
	tokenManager := auth.NewTokenManager(
		cfg.Auth.AccessSecret,
		cfg.Auth.RefreshSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTokenExpiry,
	)

	totpManager, err := auth.NewTOTPManager([]byte(cfg.Auth.TOTPEncryptionKey), cfg.Auth.TOTPIssuer)
	if err != nil {
		logger.Error("failed to initialize TOTP manager", slog.Any("error", err))
		os.Exit(1)
	}

	auditLogger := pkglogger.NewAuditLogger(logger)

	// Delivery and lookup services
	emailService, err := services.NewAWSSESEmailService(cfg.Email.AWSRegion, cfg.Email.FromAddress, logger)
	if err != nil {
		logger.Error("failed to initialize email service", slog.Any("error", err))
		os.Exit(1)
	}
	smsService := services.NewGatewaySMSService(&cfg.SMS, logger)
	locationService := services.NewIPStackLocationService(&cfg.Geo, logger)

	// Core services
	sessionService := services.NewSessionService(sessionRepo, locationService, logger)
	userService := services.NewUserService(userRepo, logger)
	twoFactorService := services.NewTwoFactorService(userRepo, totpManager, logger)
	rateLimitService := services.NewRateLimitService(rateLimitBackend, logger)
	authService := services.NewAuthService(
		userRepo,
		deletionRepo,
		sessionService,
		tokenManager,
		totpManager,
		emailService,
		smsService,
		refreshStore,
		services.AuthServiceConfig{
			MagicLinkBase:   cfg.Email.MagicLinkBase,
			OTPExpiry:       cfg.Auth.OTPExpiry,
			MagicLinkExpiry: cfg.Auth.MagicLinkExpiry,
			MobileOTPWindow: cfg.Auth.MobileOTPWindow,
			MobileOTPMax:    cfg.Auth.MobileOTPMax,
		},
		logger,
		auditLogger,
	)

	cookieConfig := auth.CookieConfig{
		Secure: cfg.Server.Env == "production",
	}
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}

	// Handlers
	h := routes.Handlers{
		Auth:      handlers.NewAuthHandler(authService, tokenManager, cookieConfig, ipConfig),
		Users:     handlers.NewUserHandler(userService, authService, cookieConfig),
		Sessions:  handlers.NewSessionHandler(sessionService),
		TwoFactor: handlers.NewTwoFactorHandler(twoFactorService),
	}

	// SSO is optional: skipped entirely when no provider is configured
	if len(cfg.SSO.Providers) > 0 {
		ssoCtx, ssoCancel := context.WithTimeout(context.Background(), 15*time.Second)
		ssoService, err := services.NewSSOService(ssoCtx, &cfg.SSO, userRepo, authService, refreshStore, logger, auditLogger)
		ssoCancel()
		if err != nil {
			logger.Error("failed to initialize SSO", slog.Any("error", err))
			os.Exit(1)
		}
		h.SSO = handlers.NewSSOHandler(ssoService, cookieConfig, ipConfig)
	}

	// Background cleanup of expired one-time credentials and stale sessions
	cleanupManager := background.NewCleanupManager(userRepo, sessionRepo, logger, cfg.Auth.CleanupInterval)

	// Setup CORS middleware
	corsConfig := middlewareCustom.DefaultCORSConfig(cfg.Server.Env)
	corsConfig.AllowedOrigins = cfg.Server.AllowedOrigins

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(corsConfig))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))
	router.Use(middlewareCustom.GlobalRateLimit(300))

	// Register routes
	routes.RegisterRoutes(router, h, tokenManager, rateLimitService, ipConfig)

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}
