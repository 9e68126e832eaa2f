package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/pslattery/gatehouse/internal/config"
	"github.com/pslattery/gatehouse/internal/models"
	pkglogger "github.com/pslattery/gatehouse/pkg/logger"
)

// ssoProvider bundles one identity provider's OAuth2 config and ID token
// verifier, both built from OIDC discovery at startup.
type ssoProvider struct {
	name     string
	oauth    *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// SSOService drives the OAuth login flow: consent redirect, callback
// exchange, local user resolution and session issuance.
type SSOService struct {
	providers    map[string]*ssoProvider
	repo         UserRepository
	auth         *AuthService
	refreshStore RefreshTokenStore
	dashboardURL string
	errorURL     string
	logger       *slog.Logger
	auditLogger  *pkglogger.AuditLogger
}

func NewSSOService(
	ctx context.Context,
	cfg *config.SSOConfig,
	repo UserRepository,
	authService *AuthService,
	refreshStore RefreshTokenStore,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) (*SSOService, error) {
	providers := make(map[string]*ssoProvider, len(cfg.Providers))

	for _, pc := range cfg.Providers {
		provider, err := oidc.NewProvider(ctx, pc.IssuerURL)
		if err != nil {
			return nil, fmt.Errorf("failed to discover OIDC provider %q: %w", pc.Name, err)
		}

		providers[pc.Name] = &ssoProvider{
			name: pc.Name,
			oauth: &oauth2.Config{
				ClientID:     pc.ClientID,
				ClientSecret: pc.ClientSecret,
				RedirectURL:  pc.RedirectURL,
				Endpoint:     provider.Endpoint(),
				Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
			},
			verifier: provider.Verifier(&oidc.Config{ClientID: pc.ClientID}),
		}
	}

	return &SSOService{
		providers:    providers,
		repo:         repo,
		auth:         authService,
		refreshStore: refreshStore,
		dashboardURL: cfg.DashboardURL,
		errorURL:     cfg.ErrorURL,
		logger:       logger,
		auditLogger:  auditLogger,
	}, nil
}

// GenerateState returns a random anti-forgery nonce for the consent
// redirect.
func (s *SSOService) GenerateState() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// AuthCodeURL returns the provider's consent URL carrying the state nonce.
func (s *SSOService) AuthCodeURL(providerName, state string) (string, error) {
	provider, ok := s.providers[providerName]
	if !ok {
		return "", models.ErrNotFound
	}
	return provider.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account")), nil
}

// HandleCallback exchanges the authorization code, verifies the ID token,
// resolves the local account and issues a session. The caller must have
// already checked the state nonce against the cookie.
func (s *SSOService) HandleCallback(ctx context.Context, providerName, code, userAgent, ip string) (*AuthResponse, error) {
	provider, ok := s.providers[providerName]
	if !ok {
		return nil, models.ErrNotFound
	}

	token, err := provider.oauth.Exchange(ctx, code)
	if err != nil {
		s.logger.Error("failed to exchange authorization code",
			slog.String("provider", providerName),
			slog.Any("error", err))
		return nil, models.ErrUnauthorized
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		s.logger.Error("token response missing id_token",
			slog.String("provider", providerName))
		return nil, models.ErrUnauthorized
	}

	idToken, err := provider.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		s.logger.Error("failed to verify id_token",
			slog.String("provider", providerName),
			slog.Any("error", err))
		return nil, models.ErrUnauthorized
	}

	var claims struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		s.logger.Error("failed to decode id_token claims",
			slog.String("provider", providerName),
			slog.Any("error", err))
		return nil, models.ErrUnauthorized
	}

	user, err := s.resolveLocalUser(ctx, providerName, claims.Sub, claims.Email, claims.EmailVerified, claims.Name, claims.Picture)
	if err != nil {
		return nil, err
	}

	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "sso_login",
		UserID:    user.ID,
		IPAddress: ip,
		Success:   true,
	})

	return s.auth.issueSession(ctx, user, userAgent, ip)
}

// Revoke deletes the fast-store refresh token, immediately invalidating
// refresh for the user's SSO session. Session rows are revoked separately.
func (s *SSOService) Revoke(ctx context.Context, userID string) error {
	return s.refreshStore.Delete(ctx, userID)
}

// DashboardURL is the post-login redirect destination.
func (s *SSOService) DashboardURL() string {
	return s.dashboardURL
}

// ErrorURL is the generic failure redirect. Provider error detail stays in
// the server logs.
func (s *SSOService) ErrorURL() string {
	return s.errorURL
}

// resolveLocalUser matches by provider subject first, then by email, and
// creates a new account when neither matches.
func (s *SSOService) resolveLocalUser(ctx context.Context, provider, subject, email string, emailVerified bool, name, picture string) (*models.User, error) {
	user, err := s.repo.GetBySSOSubject(ctx, provider, subject)
	if err == nil {
		s.refreshProfile(ctx, user, name, picture)
		return user, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to look up SSO subject", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if email != "" {
		user, err = s.repo.GetByEmail(ctx, normalizeEmail(email))
		if err == nil {
			if err := s.repo.LinkSSOIdentity(ctx, user.ID, provider, subject); err != nil {
				s.logger.Error("failed to link SSO identity",
					slog.String("user_id", user.ID),
					slog.Any("error", err))
				return nil, models.ErrInternalServer
			}
			user.SSOProvider = provider
			user.SSOSubject = subject
			user.IsVerified = true
			s.refreshProfile(ctx, user, name, picture)
			return user, nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("failed to look up user by email", slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
	}

	created, err := s.repo.Create(ctx, &models.User{
		Email:       normalizeEmail(email),
		Name:        name,
		AvatarURL:   picture,
		IsVerified:  emailVerified,
		SSOProvider: provider,
		SSOSubject:  subject,
	})
	if err != nil {
		s.logger.Error("failed to create SSO user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return created, nil
}

// refreshProfile mirrors the provider's current name and picture onto the
// local account on every login. A write failure only logs: the login itself
// still proceeds with the stored profile.
func (s *SSOService) refreshProfile(ctx context.Context, user *models.User, name, picture string) {
	if name == "" && picture == "" {
		return
	}
	if name == user.Name && picture == user.AvatarURL {
		return
	}
	if err := s.repo.RefreshSSOProfile(ctx, user.ID, name, picture); err != nil {
		s.logger.Error("failed to refresh SSO profile",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		return
	}
	if name != "" {
		user.Name = name
	}
	if picture != "" {
		user.AvatarURL = picture
	}
}
