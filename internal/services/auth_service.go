package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pslattery/gatehouse/internal/auth"
	"github.com/pslattery/gatehouse/internal/models"
	pkgauth "github.com/pslattery/gatehouse/pkg/auth"
	pkglogger "github.com/pslattery/gatehouse/pkg/logger"
)

// RefreshTokenStore mirrors SSO refresh tokens in the fast store so they
// can be revoked server-side.
type RefreshTokenStore interface {
	Save(ctx context.Context, userID, token string) error
	Get(ctx context.Context, userID string) (string, error)
	Rotate(ctx context.Context, userID, presented, next string) error
	Delete(ctx context.Context, userID string) error
}

// AuthService handles registration, verification, login and the credential
// recovery flows.
// AccountDeletionRepository persists the write-once deletion audit records
type AccountDeletionRepository interface {
	Create(ctx context.Context, record *models.AccountDeletion) (*models.AccountDeletion, error)
}

type AuthService struct {
	repo            UserRepository
	deletions       AccountDeletionRepository
	sessions        *SessionService
	tm              *auth.TokenManager
	totp            *auth.TOTPManager
	email           EmailService
	sms             SMSService
	refreshStore    RefreshTokenStore
	magicLinkBase   string
	otpExpiry       time.Duration
	magicLinkExpiry time.Duration
	mobileOTPWindow time.Duration
	mobileOTPMax    int
	logger          *slog.Logger
	auditLogger     *pkglogger.AuditLogger
	now             func() time.Time
}

// AuthServiceConfig bundles the construction parameters.
type AuthServiceConfig struct {
	MagicLinkBase   string
	OTPExpiry       time.Duration
	MagicLinkExpiry time.Duration
	MobileOTPWindow time.Duration
	MobileOTPMax    int
}

func NewAuthService(
	repo UserRepository,
	deletions AccountDeletionRepository,
	sessions *SessionService,
	tm *auth.TokenManager,
	totp *auth.TOTPManager,
	email EmailService,
	sms SMSService,
	refreshStore RefreshTokenStore,
	cfg AuthServiceConfig,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *AuthService {
	return &AuthService{
		repo:            repo,
		deletions:       deletions,
		sessions:        sessions,
		tm:              tm,
		totp:            totp,
		email:           email,
		sms:             sms,
		refreshStore:    refreshStore,
		magicLinkBase:   cfg.MagicLinkBase,
		otpExpiry:       cfg.OTPExpiry,
		magicLinkExpiry: cfg.MagicLinkExpiry,
		mobileOTPWindow: cfg.MobileOTPWindow,
		mobileOTPMax:    cfg.MobileOTPMax,
		logger:          logger,
		auditLogger:     auditLogger,
		now:             time.Now,
	}
}

// AuthResponse represents the response from auth operations that issue a
// token pair.
type AuthResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	User         *UserResponse `json:"user"`
}

// RefreshResponse carries the outcome of a token refresh. RefreshToken is
// empty unless the refresh token itself was rotated.
type RefreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// RegisterRequest carries the registration inputs. Exactly one of Email or
// Mobile must be set; the handler validates shape before the service runs.
type RegisterRequest struct {
	Email    string
	Mobile   string
	Username string
	Password string
	Name     string
}

// Register creates an unverified account and dispatches a one-time code to
// the supplied contact point. Registering an address that already belongs
// to an unverified account reissues the code instead of failing.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*UserResponse, error) {
	req.Email = normalizeEmail(req.Email)

	user, existed, err := s.findOrCreateForOTP(ctx, req)
	if err != nil {
		return nil, err
	}

	code, err := s.issueOTP(ctx, user)
	if err != nil {
		return nil, err
	}

	if err := s.dispatchOTP(ctx, user, code); err != nil {
		// Roll back the account only if this flow created it
		if !existed {
			if delErr := s.repo.Delete(ctx, user.ID); delErr != nil {
				s.logger.Error("failed to roll back user after delivery failure",
					slog.String("user_id", user.ID),
					slog.Any("error", delErr))
			}
		}
		return nil, models.ErrNotificationFailed
	}

	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "register",
		UserID:    user.ID,
		Success:   true,
	})

	return ToUserResponse(user), nil
}

// RequestOTP issues a fresh one-time code for an existing identity, or for
// mobile identities creates the account on first issuance.
func (s *AuthService) RequestOTP(ctx context.Context, email, mobile string) error {
	email = normalizeEmail(email)

	var user *models.User
	var existed = true
	var err error

	switch {
	case email != "":
		user, err = s.repo.GetByEmail(ctx, email)
	case mobile != "":
		user, err = s.repo.GetByMobile(ctx, mobile)
		if errors.Is(err, models.ErrNotFound) {
			user, err = s.repo.Create(ctx, &models.User{Mobile: mobile})
			existed = false
		}
	default:
		return models.ErrBadRequest
	}
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to resolve identity for OTP", slog.Any("error", err))
		return models.ErrInternalServer
	}

	code, err := s.issueOTP(ctx, user)
	if err != nil {
		return err
	}

	if err := s.dispatchOTP(ctx, user, code); err != nil {
		if !existed {
			if delErr := s.repo.Delete(ctx, user.ID); delErr != nil {
				s.logger.Error("failed to roll back user after delivery failure",
					slog.String("user_id", user.ID),
					slog.Any("error", delErr))
			}
		}
		return models.ErrNotificationFailed
	}

	return nil
}

// VerifyAccount checks the code for a verification flow: it flips the
// verified flag and issues the first session.
func (s *AuthService) VerifyAccount(ctx context.Context, identifier, code, userAgent, ip string) (*AuthResponse, error) {
	user, err := s.lookupIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}

	if user.IsVerified {
		return nil, models.ErrAlreadyVerified
	}

	if err := s.checkStoredOTP(user, code); err != nil {
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "verify_failed",
			UserID:        user.ID,
			FailureReason: "invalid_code",
			Success:       false,
		})
		return nil, err
	}

	if err := s.repo.MarkVerified(ctx, user.ID); err != nil {
		s.logger.Error("failed to mark user verified",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	user.IsVerified = true
	user.OTP = ""
	user.OTPExpiresAt = nil

	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "verify",
		UserID:    user.ID,
		Success:   true,
	})

	return s.issueSession(ctx, user, userAgent, ip)
}

// LoginWithOTP authenticates via a one-time code. Unverified accounts
// become verified as a side effect, since the code proves control of the
// contact point.
func (s *AuthService) LoginWithOTP(ctx context.Context, identifier, code, userAgent, ip string) (*AuthResponse, error) {
	user, err := s.lookupIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}

	if err := s.checkStoredOTP(user, code); err != nil {
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			UserID:        user.ID,
			FailureReason: "invalid_code",
			Success:       false,
		})
		return nil, err
	}

	if err := s.repo.MarkVerified(ctx, user.ID); err != nil {
		s.logger.Error("failed to clear OTP after login",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	user.IsVerified = true
	user.OTP = ""
	user.OTPExpiresAt = nil

	return s.issueSession(ctx, user, userAgent, ip)
}

// Login authenticates with a password. Identifier may be an email, mobile
// number or username. When two-factor is enabled a valid authenticator code
// is required.
func (s *AuthService) Login(ctx context.Context, identifier, password, twoFACode, userAgent, ip string) (*AuthResponse, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, models.ErrUnauthorized
	}

	user, err := s.repo.GetByIdentifier(ctx, strings.ToLower(identifier))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
				EventType:     "login_failed",
				FailureReason: "invalid_credentials",
				Success:       false,
			})
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get user by identifier", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if !user.HasPassword() {
		return nil, models.ErrUnauthorized
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			UserID:        user.ID,
			FailureReason: "invalid_credentials",
			Success:       false,
		})
		return nil, models.ErrUnauthorized
	}

	if !user.IsVerified {
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			UserID:        user.ID,
			FailureReason: "not_verified",
			Success:       false,
		})
		return nil, models.ErrNotVerified
	}

	if user.Is2FAEnabled {
		if err := s.checkTwoFACode(user, twoFACode); err != nil {
			s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
				EventType:     "login_failed",
				UserID:        user.ID,
				FailureReason: "invalid_2fa_code",
				Success:       false,
			})
			return nil, err
		}
	}

	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login",
		UserID:    user.ID,
		IPAddress: ip,
		Success:   true,
	})

	return s.issueSession(ctx, user, userAgent, ip)
}

// ForgotPassword issues a reset code to the account's email.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return models.ErrInternalServer
	}

	code, err := s.issueOTP(ctx, user)
	if err != nil {
		return err
	}

	if err := s.email.SendOTPEmail(ctx, user.Email, code); err != nil {
		return models.ErrNotificationFailed
	}

	return nil
}

// ResetPassword rewrites the password hash. The stored reset code must be
// presented and unexpired; a reset is never allowed on password alone.
func (s *AuthService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	email = normalizeEmail(email)

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.checkStoredOTP(user, code); err != nil {
		return err
	}

	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return models.ErrBadRequest
	}

	hash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.repo.UpdatePassword(ctx, user.ID, hash); err != nil {
		s.logger.Error("failed to update password",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.auditLogger.LogPasswordChange(user.ID, "", true)

	return nil
}

// ChangePassword rewrites the password hash for an authenticated user. The
// current password must be presented and verified first.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to get user", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if !user.HasPassword() {
		return models.ErrUnauthorized
	}
	if err := pkgauth.ComparePassword(user.PasswordHash, currentPassword); err != nil {
		s.auditLogger.LogPasswordChange(user.ID, "", false)
		return models.ErrUnauthorized
	}

	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return models.ErrBadRequest
	}

	hash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.repo.UpdatePassword(ctx, user.ID, hash); err != nil {
		s.logger.Error("failed to update password",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.auditLogger.LogPasswordChange(user.ID, "", true)

	return nil
}

// Refresh exchanges a valid refresh token for a new access token. For
// SSO-backed accounts the refresh token itself is rotated against the fast
// store; password-login accounts keep their refresh token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*RefreshResponse, error) {
	claims, err := s.tm.ValidateToken(refreshToken, models.TokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get user for refresh", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	accessToken, err := s.tm.GenerateAccessToken(user)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	resp := &RefreshResponse{AccessToken: accessToken}

	if user.SSOProvider != "" {
		next, err := s.tm.GenerateRefreshToken(user)
		if err != nil {
			s.logger.Error("failed to generate refresh token", slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		if err := s.refreshStore.Rotate(ctx, user.ID, refreshToken, next); err != nil {
			if errors.Is(err, models.ErrUnauthorized) {
				// Presented token was already rotated out or revoked
				return nil, models.ErrUnauthorized
			}
			s.logger.Error("failed to rotate refresh token", slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		resp.RefreshToken = next
	}

	return resp, nil
}

// Logout revokes the server-side refresh mirror and optionally the current
// session row. It never fails: a missing or undecodable token still results
// in the handler clearing cookies.
func (s *AuthService) Logout(ctx context.Context, claims *models.TokenClaims, sessionID string) {
	if claims == nil {
		return
	}

	if err := s.refreshStore.Delete(ctx, claims.UserID); err != nil {
		s.logger.Warn("failed to delete refresh token mirror",
			slog.String("user_id", claims.UserID),
			slog.Any("error", err))
	}

	if sessionID != "" {
		if err := s.sessions.Revoke(ctx, claims.UserID, sessionID); err != nil {
			s.logger.Warn("failed to revoke session on logout",
				slog.String("user_id", claims.UserID),
				slog.Any("error", err))
		}
	}

	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "logout",
		UserID:    claims.UserID,
		Success:   true,
	})
}

// RequestMagicLink issues a single-use login link to the account's email.
func (s *AuthService) RequestMagicLink(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return models.ErrInternalServer
	}

	token, err := pkgauth.GenerateMagicLinkToken()
	if err != nil {
		s.logger.Error("failed to generate magic link token", slog.Any("error", err))
		return models.ErrInternalServer
	}

	expiresAt := s.now().Add(s.magicLinkExpiry)
	if err := s.repo.SetMagicLink(ctx, user.ID, token, expiresAt); err != nil {
		s.logger.Error("failed to store magic link",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	link := fmt.Sprintf("%s/auth/magic-link?token=%s", strings.TrimSuffix(s.magicLinkBase, "/"), token)
	if err := s.email.SendMagicLinkEmail(ctx, user.Email, link); err != nil {
		return models.ErrNotificationFailed
	}

	return nil
}

// RedeemMagicLink authenticates a single-use link. A redeemed or expired
// link always fails, and redemption is irreversible.
func (s *AuthService) RedeemMagicLink(ctx context.Context, token, userAgent, ip string) (*AuthResponse, error) {
	if token == "" {
		return nil, models.ErrLinkInvalidOrExpired
	}

	user, err := s.repo.GetByMagicLink(ctx, token)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrLinkInvalidOrExpired
		}
		s.logger.Error("failed to look up magic link", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if user.MagicLinkUsed || user.MagicLinkExpiresAt == nil || s.now().After(*user.MagicLinkExpiresAt) {
		return nil, models.ErrLinkInvalidOrExpired
	}

	// MarkMagicLinkUsed only succeeds while the used flag is still false,
	// so two concurrent redemptions cannot both win.
	if err := s.repo.MarkMagicLinkUsed(ctx, user.ID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrLinkInvalidOrExpired
		}
		s.logger.Error("failed to consume magic link",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if !user.IsVerified {
		if err := s.repo.MarkVerified(ctx, user.ID); err != nil {
			s.logger.Error("failed to mark user verified",
				slog.String("user_id", user.ID),
				slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		user.IsVerified = true
	}

	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "magic_link_login",
		UserID:    user.ID,
		Success:   true,
	})

	return s.issueSession(ctx, user, userAgent, ip)
}

// DeleteAccount verifies the password, writes the audit record, then
// removes the user. The audit row is written first so a crash between the
// two steps never loses the trail.
func (s *AuthService) DeleteAccount(ctx context.Context, userID, password, reason string) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to get user", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if user.HasPassword() {
		if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
			return models.ErrUnauthorized
		}
	}

	if _, err := s.deletions.Create(ctx, &models.AccountDeletion{
		UserID: user.ID,
		Email:  user.Identity(),
		Reason: reason,
	}); err != nil {
		s.logger.Error("failed to write account deletion record",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.sessions.RevokeAll(ctx, user.ID); err != nil {
		s.logger.Warn("failed to revoke sessions during account deletion",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
	}
	if err := s.refreshStore.Delete(ctx, user.ID); err != nil {
		s.logger.Warn("failed to delete refresh token mirror",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
	}

	if err := s.repo.Delete(ctx, user.ID); err != nil {
		s.logger.Error("failed to delete user",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "account_deleted",
		UserID:    user.ID,
		Success:   true,
	})

	return nil
}

// findOrCreateForOTP resolves the target account for registration. An
// existing verified account is a conflict; an unverified one is reused.
func (s *AuthService) findOrCreateForOTP(ctx context.Context, req RegisterRequest) (*models.User, bool, error) {
	var existing *models.User
	var err error

	if req.Email != "" {
		existing, err = s.repo.GetByEmail(ctx, req.Email)
	} else {
		existing, err = s.repo.GetByMobile(ctx, req.Mobile)
	}

	if err == nil {
		if existing.IsVerified {
			return nil, false, models.ErrConflict
		}
		return existing, true, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check existing user", slog.Any("error", err))
		return nil, false, models.ErrInternalServer
	}

	user := &models.User{
		Email:    req.Email,
		Mobile:   req.Mobile,
		Username: req.Username,
		Name:     req.Name,
	}
	if req.Password != "" {
		if err := pkgauth.ValidatePassword(req.Password); err != nil {
			return nil, false, models.ErrBadRequest
		}
		hash, err := pkgauth.HashPassword(req.Password)
		if err != nil {
			s.logger.Error("failed to hash password", slog.Any("error", err))
			return nil, false, models.ErrInternalServer
		}
		user.PasswordHash = hash
	}

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			// Unique violation on username (or a concurrent signup)
			return nil, false, models.ErrConflict
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, false, models.ErrInternalServer
	}

	return created, false, nil
}

// issueOTP generates and stores a fresh code, enforcing the mobile issuance
// window.
func (s *AuthService) issueOTP(ctx context.Context, user *models.User) (string, error) {
	now := s.now()

	attempts := 1
	if user.Mobile != "" && user.Email == "" {
		if user.LastOTPRequestAt != nil && now.Sub(*user.LastOTPRequestAt) < s.mobileOTPWindow {
			if user.OTPAttempts >= s.mobileOTPMax {
				remaining := s.mobileOTPWindow - now.Sub(*user.LastOTPRequestAt)
				minutes := int(remaining.Minutes()) + 1
				return "", &models.OTPRateLimitError{RetryAfterMinutes: minutes}
			}
			attempts = user.OTPAttempts + 1
		}
	}

	code, err := pkgauth.GenerateOTP()
	if err != nil {
		s.logger.Error("failed to generate OTP", slog.Any("error", err))
		return "", models.ErrInternalServer
	}

	expiresAt := now.Add(s.otpExpiry)
	if err := s.repo.SetOTP(ctx, user.ID, code, expiresAt, attempts, now); err != nil {
		s.logger.Error("failed to store OTP",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		return "", models.ErrInternalServer
	}

	user.OTP = code
	user.OTPExpiresAt = &expiresAt
	user.OTPAttempts = attempts
	user.LastOTPRequestAt = &now

	return code, nil
}

func (s *AuthService) dispatchOTP(ctx context.Context, user *models.User, code string) error {
	if user.Email != "" {
		return s.email.SendOTPEmail(ctx, user.Email, code)
	}
	return s.sms.SendOTP(ctx, user.Mobile, code)
}

// checkStoredOTP compares the presented code against the stored one.
func (s *AuthService) checkStoredOTP(user *models.User, code string) error {
	if user.OTP == "" || user.OTPExpiresAt == nil {
		return models.ErrInvalidCode
	}
	if s.now().After(*user.OTPExpiresAt) {
		return models.ErrCodeExpired
	}
	if user.OTP != code {
		return models.ErrInvalidCode
	}
	return nil
}

func (s *AuthService) checkTwoFACode(user *models.User, code string) error {
	if len(user.TOTPSecretEnc) == 0 || len(user.TOTPSecretNonce) == 0 {
		return models.ErrTwoFANotEnrolled
	}
	if code == "" {
		return models.ErrInvalidTwoFACode
	}

	secret, err := s.totp.DecryptSecret(user.TOTPSecretEnc, user.TOTPSecretNonce)
	if err != nil {
		s.logger.Error("failed to decrypt TOTP secret",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	valid, err := s.totp.ValidateCode(secret, code)
	if err != nil || !valid {
		return models.ErrInvalidTwoFACode
	}
	return nil
}

// issueSession generates the token pair, records the session and updates
// last-login. For SSO-backed accounts the refresh token is mirrored in the
// fast store.
func (s *AuthService) issueSession(ctx context.Context, user *models.User, userAgent, ip string) (*AuthResponse, error) {
	accessToken, err := s.tm.GenerateAccessToken(user)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	refreshToken, err := s.tm.GenerateRefreshToken(user)
	if err != nil {
		s.logger.Error("failed to generate refresh token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if user.SSOProvider != "" {
		if err := s.refreshStore.Save(ctx, user.ID, refreshToken); err != nil {
			s.logger.Error("failed to mirror refresh token",
				slog.String("user_id", user.ID),
				slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
	}

	if _, err := s.sessions.Record(ctx, user.ID, userAgent, ip); err != nil {
		s.logger.Warn("failed to record session",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
	}

	if err := s.repo.UpdateLastLogin(ctx, user.ID, s.now()); err != nil {
		s.logger.Warn("failed to update last login",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
	}

	return &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         ToUserResponse(user),
	}, nil
}

func (s *AuthService) lookupIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if identifier == "" {
		return nil, models.ErrNotFound
	}

	user, err := s.repo.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get user by identifier", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
