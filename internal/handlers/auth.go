package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/pslattery/gatehouse/internal/auth"
	"github.com/pslattery/gatehouse/internal/models"
	"github.com/pslattery/gatehouse/internal/services"
	pkghttp "github.com/pslattery/gatehouse/pkg/http"
)

// AuthServiceInterface defines the interface for the authentication flows
type AuthServiceInterface interface {
	Register(ctx context.Context, req services.RegisterRequest) (*services.UserResponse, error)
	RequestOTP(ctx context.Context, email, mobile string) error
	VerifyAccount(ctx context.Context, identifier, code, userAgent, ip string) (*services.AuthResponse, error)
	LoginWithOTP(ctx context.Context, identifier, code, userAgent, ip string) (*services.AuthResponse, error)
	Login(ctx context.Context, identifier, password, twoFACode, userAgent, ip string) (*services.AuthResponse, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email, code, newPassword string) error
	Refresh(ctx context.Context, refreshToken string) (*services.RefreshResponse, error)
	Logout(ctx context.Context, claims *models.TokenClaims, sessionID string)
	RequestMagicLink(ctx context.Context, email string) error
	RedeemMagicLink(ctx context.Context, token, userAgent, ip string) (*services.AuthResponse, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service  AuthServiceInterface
	tm       *auth.TokenManager
	cookies  auth.CookieConfig
	ipConfig *pkghttp.IPConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, tm *auth.TokenManager, cookies auth.CookieConfig, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		tm:       tm,
		cookies:  cookies,
		ipConfig: ipConfig,
	}
}

// Request DTOs

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Email    string `json:"email" validate:"omitempty,email"`
	Mobile   string `json:"mobile" validate:"omitempty,e164"`
	Username string `json:"username" validate:"omitempty,min=3,max=32"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"omitempty,max=100"`
}

// OTPRequest represents the request body for requesting a one-time code
type OTPRequest struct {
	Email  string `json:"email" validate:"omitempty,email"`
	Mobile string `json:"mobile" validate:"omitempty,e164"`
}

// VerifyRequest represents the request body for account verification
type VerifyRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Code       string `json:"code" validate:"required,len=6,numeric"`
}

// LoginRequest represents the request body for password login
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
	TwoFACode  string `json:"two_fa_code" validate:"omitempty,len=6,numeric"`
}

// OTPLoginRequest represents the request body for one-time-code login
type OTPLoginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Code       string `json:"code" validate:"required,len=6,numeric"`
}

// ForgotPasswordRequest represents the request body for a reset code
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest represents the request body for a password reset
type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Code        string `json:"code" validate:"required,len=6,numeric"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// MagicLinkRequest represents the request body for requesting a magic link
type MagicLinkRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// LogoutRequest optionally names the session row to revoke
type LogoutRequest struct {
	SessionID string `json:"session_id"`
}

// Register handles account registration
// @Summary Register a new account
// @Accept json
// @Param request body RegisterRequest true "Register request"
// @Produce json
// @Success 201 {object} services.UserResponse
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 409 {object} pkghttp.ErrorResponse
// @Failure 500 {object} pkghttp.ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if req.Email == "" && req.Mobile == "" {
		pkghttp.WriteBadRequest(w, "Either email or mobile is required")
		return
	}
	if req.Email != "" && req.Mobile != "" {
		pkghttp.WriteBadRequest(w, "Provide either email or mobile, not both")
		return
	}
	if req.Email != "" && strings.TrimSpace(req.Username) == "" {
		pkghttp.WriteBadRequest(w, "Username is required when registering with email")
		return
	}

	user, err := h.service.Register(r.Context(), services.RegisterRequest{
		Email:    req.Email,
		Mobile:   req.Mobile,
		Username: strings.TrimSpace(req.Username),
		Password: req.Password,
		Name:     strings.TrimSpace(req.Name),
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "An account with this identity already exists")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Password does not meet requirements")
		case errors.Is(err, models.ErrRateLimitExceeded):
			writeOTPRateLimit(w, err)
		case errors.Is(err, models.ErrNotificationFailed):
			pkghttp.WriteError(w, http.StatusBadGateway, "notification_failed", "Could not deliver the verification code")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
}

// RequestOTP issues a fresh one-time code to an email or mobile identity
// @Summary Request a one-time code
// @Accept json
// @Param request body OTPRequest true "OTP request"
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 429 {object} pkghttp.ErrorResponse
// @Router /auth/otp [post]
func (h *AuthHandler) RequestOTP(w http.ResponseWriter, r *http.Request) {
	var req OTPRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if (req.Email == "") == (req.Mobile == "") {
		pkghttp.WriteBadRequest(w, "Provide exactly one of email or mobile")
		return
	}

	if err := h.service.RequestOTP(r.Context(), req.Email, req.Mobile); err != nil {
		switch {
		case errors.Is(err, models.ErrRateLimitExceeded):
			writeOTPRateLimit(w, err)
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Account not found")
		case errors.Is(err, models.ErrNotificationFailed):
			pkghttp.WriteError(w, http.StatusBadGateway, "notification_failed", "Could not deliver the verification code")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Verification code sent",
	})
}

// Verify confirms a pending account with its one-time code and signs the
// caller in
// @Summary Verify a new account
// @Accept json
// @Param request body VerifyRequest true "Verify request"
// @Produce json
// @Success 200 {object} services.AuthResponse
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 409 {object} pkghttp.ErrorResponse
// @Router /auth/verify [post]
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	authResp, err := h.service.VerifyAccount(r.Context(), req.Identifier, req.Code,
		r.Header.Get("User-Agent"), pkghttp.ExtractClientIP(r, h.ipConfig))
	if err != nil {
		switch {
		case errors.Is(err, models.ErrAlreadyVerified):
			pkghttp.WriteConflict(w, "Account is already verified")
		case errors.Is(err, models.ErrInvalidCode):
			pkghttp.WriteBadRequest(w, "Invalid verification code")
		case errors.Is(err, models.ErrCodeExpired):
			pkghttp.WriteBadRequest(w, "Verification code has expired")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Account not found")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	h.writeAuthResponse(w, authResp)
}

// Login handles password login
// @Summary Password login
// @Accept json
// @Param request body LoginRequest true "Login request"
// @Produce json
// @Success 200 {object} services.AuthResponse
// @Failure 401 {object} pkghttp.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	authResp, err := h.service.Login(r.Context(), req.Identifier, req.Password, req.TwoFACode,
		r.Header.Get("User-Agent"), pkghttp.ExtractClientIP(r, h.ipConfig))
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotVerified):
			pkghttp.WriteError(w, http.StatusUnauthorized, "not_verified", "Account is not verified")
		case errors.Is(err, models.ErrInvalidTwoFACode), errors.Is(err, models.ErrTwoFANotEnrolled):
			pkghttp.WriteError(w, http.StatusUnauthorized, "invalid_2fa_code", "Invalid two-factor code")
		case errors.Is(err, models.ErrUnauthorized):
			pkghttp.WriteUnauthorized(w, "Authentication failed")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	h.writeAuthResponse(w, authResp)
}

// LoginOTP handles one-time-code login. A first successful code login also
// verifies the account.
// @Summary One-time-code login
// @Accept json
// @Param request body OTPLoginRequest true "OTP login request"
// @Produce json
// @Success 200 {object} services.AuthResponse
// @Failure 400 {object} pkghttp.ErrorResponse
// @Router /auth/login/otp [post]
func (h *AuthHandler) LoginOTP(w http.ResponseWriter, r *http.Request) {
	var req OTPLoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	authResp, err := h.service.LoginWithOTP(r.Context(), req.Identifier, req.Code,
		r.Header.Get("User-Agent"), pkghttp.ExtractClientIP(r, h.ipConfig))
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidCode):
			pkghttp.WriteBadRequest(w, "Invalid verification code")
		case errors.Is(err, models.ErrCodeExpired):
			pkghttp.WriteBadRequest(w, "Verification code has expired")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Account not found")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	h.writeAuthResponse(w, authResp)
}

// ForgotPassword issues a password reset code
// @Summary Request a password reset code
// @Accept json
// @Param request body ForgotPasswordRequest true "Forgot password request"
// @Produce json
// @Success 200 {object} map[string]string
// @Router /auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	// A missing account gets the same response as a real one so the
	// endpoint does not reveal which addresses are registered.
	if err := h.service.ForgotPassword(r.Context(), req.Email); err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteInternalError(w, "Internal server error")
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"message": "If the address is registered, a reset code has been sent",
	})
}

// ResetPassword sets a new password after code verification
// @Summary Reset password
// @Accept json
// @Param request body ResetPasswordRequest true "Reset password request"
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 400 {object} pkghttp.ErrorResponse
// @Router /auth/reset-password [post]
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.Email, req.Code, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidCode):
			pkghttp.WriteBadRequest(w, "Invalid verification code")
		case errors.Is(err, models.ErrCodeExpired):
			pkghttp.WriteBadRequest(w, "Verification code has expired")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Password does not meet requirements")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Account not found")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Password has been reset",
	})
}

// Refresh exchanges a valid refresh token for a new access token
// @Summary Refresh access token
// @Produce json
// @Success 200 {object} services.RefreshResponse
// @Failure 401 {object} pkghttp.ErrorResponse
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshToken, err := auth.GetCookie(r, auth.RefreshTokenCookie)
	if err != nil || refreshToken == "" {
		pkghttp.WriteUnauthorized(w, "Missing refresh token")
		return
	}

	resp, err := h.service.Refresh(r.Context(), refreshToken)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrTokenExpired),
			errors.Is(err, models.ErrTokenMalformed),
			errors.Is(err, models.ErrTokenTypeMismatch),
			errors.Is(err, models.ErrUnauthorized):
			auth.ClearTokenCookies(w, h.cookies)
			pkghttp.WriteUnauthorized(w, "Authentication failed")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	if resp.RefreshToken != "" {
		auth.SetTokenCookies(w, resp.AccessToken, resp.RefreshToken, h.cookies)
	} else {
		auth.SetAccessTokenCookie(w, resp.AccessToken, h.cookies)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// Logout clears the token cookies. It succeeds even when the access token
// is missing or invalid.
// @Summary Logout
// @Produce json
// @Success 200 {object} map[string]string
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req LogoutRequest
	if r.Body != nil {
		// A missing or malformed body is fine
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	var claims *models.TokenClaims
	if token, err := auth.GetCookie(r, auth.AccessTokenCookie); err == nil && token != "" {
		claims, _ = h.tm.ValidateToken(token, models.TokenTypeAccess)
	}

	h.service.Logout(r.Context(), claims, req.SessionID)
	auth.ClearTokenCookies(w, h.cookies)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Logged out",
	})
}

// RequestMagicLink emails a single-use login link
// @Summary Request a magic link
// @Accept json
// @Param request body MagicLinkRequest true "Magic link request"
// @Produce json
// @Success 200 {object} map[string]string
// @Router /auth/magic-link [post]
func (h *AuthHandler) RequestMagicLink(w http.ResponseWriter, r *http.Request) {
	var req MagicLinkRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.RequestMagicLink(r.Context(), req.Email); err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			// Same response as success, so the endpoint does not reveal
			// which addresses are registered
		case errors.Is(err, models.ErrNotificationFailed):
			pkghttp.WriteError(w, http.StatusBadGateway, "notification_failed", "Could not deliver the magic link")
			return
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"message": "If the address is registered, a login link has been sent",
	})
}

// RedeemMagicLink consumes a single-use login link
// @Summary Redeem a magic link
// @Param token query string true "Magic link token"
// @Produce json
// @Success 200 {object} services.AuthResponse
// @Failure 401 {object} pkghttp.ErrorResponse
// @Router /auth/magic-link [get]
func (h *AuthHandler) RedeemMagicLink(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		pkghttp.WriteBadRequest(w, "Missing token")
		return
	}

	authResp, err := h.service.RedeemMagicLink(r.Context(), token,
		r.Header.Get("User-Agent"), pkghttp.ExtractClientIP(r, h.ipConfig))
	if err != nil {
		if errors.Is(err, models.ErrLinkInvalidOrExpired) {
			pkghttp.WriteUnauthorized(w, "Invalid or expired link")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	h.writeAuthResponse(w, authResp)
}

// writeAuthResponse sets the token cookies and writes the session payload.
func (h *AuthHandler) writeAuthResponse(w http.ResponseWriter, resp *services.AuthResponse) {
	auth.SetTokenCookies(w, resp.AccessToken, resp.RefreshToken, h.cookies)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// writeOTPRateLimit surfaces the retry hint when the mobile OTP budget is
// exhausted.
func writeOTPRateLimit(w http.ResponseWriter, err error) {
	var rateErr *models.OTPRateLimitError
	if errors.As(err, &rateErr) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error":             "rate_limit_exceeded",
			"message":           "Too many verification codes requested",
			"retryAfterMinutes": rateErr.RetryAfterMinutes,
		})
		return
	}
	pkghttp.WriteTooManyRequests(w, "Too many requests. Please try again later.")
}
