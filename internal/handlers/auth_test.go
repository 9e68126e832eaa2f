package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pslattery/gatehouse/internal/auth"
	"github.com/pslattery/gatehouse/internal/models"
	"github.com/pslattery/gatehouse/internal/services"
)

func newTestAuthHandler(service *MockAuthService) *AuthHandler {
	tm := auth.NewTokenManager(
		"test-access-secret-test-access-secret",
		"test-refresh-secret-test-refresh-secret",
		time.Hour,
		7*24*time.Hour,
	)
	return NewAuthHandler(service, tm, auth.CookieConfig{}, nil)
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler(w, r)
	return w
}

func cookieValue(t *testing.T, w *httptest.ResponseRecorder, name string) string {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// ============================================================================
// Register Tests
// ============================================================================

func TestAuthHandler_Register_Success(t *testing.T) {
	service := &MockAuthService{
		RegisterFunc: func(ctx context.Context, req services.RegisterRequest) (*services.UserResponse, error) {
			return &services.UserResponse{ID: "user123", Email: req.Email}, nil
		},
	}
	handler := newTestAuthHandler(service)

	w := postJSON(t, handler.Register, "/auth/register", map[string]string{
		"email":    "user@example.com",
		"username": "newuser",
		"password": "SecurePassword123!",
	})

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp services.UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "user123", resp.ID)
}

func TestAuthHandler_Register_RequiresContactPoint(t *testing.T) {
	handler := newTestAuthHandler(&MockAuthService{})

	w := postJSON(t, handler.Register, "/auth/register", map[string]string{
		"password": "SecurePassword123!",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandler_Register_RejectsBothContactPoints(t *testing.T) {
	handler := newTestAuthHandler(&MockAuthService{})

	w := postJSON(t, handler.Register, "/auth/register", map[string]string{
		"email":    "user@example.com",
		"mobile":   "+15551234567",
		"password": "SecurePassword123!",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandler_Register_EmailRequiresUsername(t *testing.T) {
	called := false
	service := &MockAuthService{
		RegisterFunc: func(ctx context.Context, req services.RegisterRequest) (*services.UserResponse, error) {
			called = true
			return &services.UserResponse{ID: "user123"}, nil
		},
	}
	handler := newTestAuthHandler(service)

	w := postJSON(t, handler.Register, "/auth/register", map[string]string{
		"email":    "user@example.com",
		"password": "SecurePassword123!",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, called)
}

func TestAuthHandler_Register_MobileDoesNotRequireUsername(t *testing.T) {
	service := &MockAuthService{
		RegisterFunc: func(ctx context.Context, req services.RegisterRequest) (*services.UserResponse, error) {
			return &services.UserResponse{ID: "user123", Mobile: req.Mobile}, nil
		},
	}
	handler := newTestAuthHandler(service)

	w := postJSON(t, handler.Register, "/auth/register", map[string]string{
		"mobile":   "+15551234567",
		"password": "SecurePassword123!",
	})

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestAuthHandler_Register_Conflict(t *testing.T) {
	service := &MockAuthService{
		RegisterFunc: func(ctx context.Context, req services.RegisterRequest) (*services.UserResponse, error) {
			return nil, models.ErrConflict
		},
	}
	handler := newTestAuthHandler(service)

	w := postJSON(t, handler.Register, "/auth/register", map[string]string{
		"email":    "user@example.com",
		"username": "newuser",
		"password": "SecurePassword123!",
	})

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAuthHandler_Register_ShortPassword(t *testing.T) {
	handler := newTestAuthHandler(&MockAuthService{})

	w := postJSON(t, handler.Register, "/auth/register", map[string]string{
		"email":    "user@example.com",
		"password": "short",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// ============================================================================
// RequestOTP Tests
// ============================================================================

func TestAuthHandler_RequestOTP_MobileRateLimited(t *testing.T) {
	service := &MockAuthService{
		RequestOTPFunc: func(ctx context.Context, email, mobile string) error {
			return &models.OTPRateLimitError{RetryAfterMinutes: 37}
		},
	}
	handler := newTestAuthHandler(service)

	w := postJSON(t, handler.RequestOTP, "/auth/otp", map[string]string{
		"mobile": "+15551234567",
	})

	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, float64(37), resp["retryAfterMinutes"])
}

func TestAuthHandler_RequestOTP_ExactlyOneIdentity(t *testing.T) {
	handler := newTestAuthHandler(&MockAuthService{})

	w := postJSON(t, handler.RequestOTP, "/auth/otp", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(t, handler.RequestOTP, "/auth/otp", map[string]string{
		"email":  "user@example.com",
		"mobile": "+15551234567",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// ============================================================================
// Verify Tests
// ============================================================================

func TestAuthHandler_Verify_SetsTokenCookies(t *testing.T) {
	service := &MockAuthService{
		VerifyAccountFunc: func(ctx context.Context, identifier, code, userAgent, ip string) (*services.AuthResponse, error) {
			return &services.AuthResponse{
				AccessToken:  "access-token",
				RefreshToken: "refresh-token",
				User:         &services.UserResponse{ID: "user123", IsVerified: true},
			}, nil
		},
	}
	handler := newTestAuthHandler(service)

	w := postJSON(t, handler.Verify, "/auth/verify", map[string]string{
		"identifier": "user@example.com",
		"code":       "123456",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "access-token", cookieValue(t, w, auth.AccessTokenCookie))
	assert.Equal(t, "refresh-token", cookieValue(t, w, auth.RefreshTokenCookie))
}

func TestAuthHandler_Verify_AlreadyVerified(t *testing.T) {
	service := &MockAuthService{
		VerifyAccountFunc: func(ctx context.Context, identifier, code, userAgent, ip string) (*services.AuthResponse, error) {
			return nil, models.ErrAlreadyVerified
		},
	}
	handler := newTestAuthHandler(service)

	w := postJSON(t, handler.Verify, "/auth/verify", map[string]string{
		"identifier": "user@example.com",
		"code":       "123456",
	})

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAuthHandler_Verify_RejectsNonNumericCode(t *testing.T) {
	handler := newTestAuthHandler(&MockAuthService{})

	w := postJSON(t, handler.Verify, "/auth/verify", map[string]string{
		"identifier": "user@example.com",
		"code":       "abc123",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// ============================================================================
// Login Tests
// ============================================================================

func TestAuthHandler_Login_Success(t *testing.T) {
	service := &MockAuthService{
		LoginFunc: func(ctx context.Context, identifier, password, twoFACode, userAgent, ip string) (*services.AuthResponse, error) {
			return &services.AuthResponse{
				AccessToken:  "access-token",
				RefreshToken: "refresh-token",
				User:         &services.UserResponse{ID: "user123"},
			}, nil
		},
	}
	handler := newTestAuthHandler(service)

	w := postJSON(t, handler.Login, "/auth/login", map[string]string{
		"identifier": "user@example.com",
		"password":   "SecurePassword123!",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, cookieValue(t, w, auth.AccessTokenCookie))
}

func TestAuthHandler_Login_NotVerified(t *testing.T) {
	service := &MockAuthService{
		LoginFunc: func(ctx context.Context, identifier, password, twoFACode, userAgent, ip string) (*services.AuthResponse, error) {
			return nil, models.ErrNotVerified
		},
	}
	handler := newTestAuthHandler(service)

	w := postJSON(t, handler.Login, "/auth/login", map[string]string{
		"identifier": "user@example.com",
		"password":   "SecurePassword123!",
	})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "not_verified")
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	service := &MockAuthService{
		LoginFunc: func(ctx context.Context, identifier, password, twoFACode, userAgent, ip string) (*services.AuthResponse, error) {
			return nil, models.ErrUnauthorized
		},
	}
	handler := newTestAuthHandler(service)

	w := postJSON(t, handler.Login, "/auth/login", map[string]string{
		"identifier": "user@example.com",
		"password":   "WrongPassword1!",
	})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, cookieValue(t, w, auth.AccessTokenCookie))
}

// ============================================================================
// Refresh Tests
// ============================================================================

func TestAuthHandler_Refresh_FromCookie(t *testing.T) {
	var presented string
	service := &MockAuthService{
		RefreshFunc: func(ctx context.Context, refreshToken string) (*services.RefreshResponse, error) {
			presented = refreshToken
			return &services.RefreshResponse{AccessToken: "new-access"}, nil
		},
	}
	handler := newTestAuthHandler(service)

	r := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	r.AddCookie(&http.Cookie{Name: auth.RefreshTokenCookie, Value: "old-refresh"})
	w := httptest.NewRecorder()
	handler.Refresh(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "old-refresh", presented)
	assert.Equal(t, "new-access", cookieValue(t, w, auth.AccessTokenCookie))
	assert.Empty(t, cookieValue(t, w, auth.RefreshTokenCookie), "no rotation on the password path")
}

func TestAuthHandler_Refresh_RotatedPair(t *testing.T) {
	service := &MockAuthService{
		RefreshFunc: func(ctx context.Context, refreshToken string) (*services.RefreshResponse, error) {
			return &services.RefreshResponse{AccessToken: "new-access", RefreshToken: "new-refresh"}, nil
		},
	}
	handler := newTestAuthHandler(service)

	r := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	r.AddCookie(&http.Cookie{Name: auth.RefreshTokenCookie, Value: "old-refresh"})
	w := httptest.NewRecorder()
	handler.Refresh(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "new-refresh", cookieValue(t, w, auth.RefreshTokenCookie))
}

func TestAuthHandler_Refresh_MissingCookie(t *testing.T) {
	handler := newTestAuthHandler(&MockAuthService{})

	r := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	w := httptest.NewRecorder()
	handler.Refresh(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandler_Refresh_ExpiredClearsCookies(t *testing.T) {
	service := &MockAuthService{
		RefreshFunc: func(ctx context.Context, refreshToken string) (*services.RefreshResponse, error) {
			return nil, models.ErrTokenExpired
		},
	}
	handler := newTestAuthHandler(service)

	r := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	r.AddCookie(&http.Cookie{Name: auth.RefreshTokenCookie, Value: "stale"})
	w := httptest.NewRecorder()
	handler.Refresh(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.AccessTokenCookie || c.Name == auth.RefreshTokenCookie {
			assert.Negative(t, c.MaxAge)
		}
	}
}

// ============================================================================
// Logout Tests
// ============================================================================

func TestAuthHandler_Logout_AlwaysSucceeds(t *testing.T) {
	handler := newTestAuthHandler(&MockAuthService{})

	// No cookies, no body
	r := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	w := httptest.NewRecorder()
	handler.Logout(w, r)

	assert.Equal(t, http.StatusOK, w.Code)

	cleared := 0
	for _, c := range w.Result().Cookies() {
		if (c.Name == auth.AccessTokenCookie || c.Name == auth.RefreshTokenCookie) && c.MaxAge < 0 {
			cleared++
		}
	}
	assert.Equal(t, 2, cleared)
}

func TestAuthHandler_Logout_PassesClaims(t *testing.T) {
	var gotClaims *models.TokenClaims
	service := &MockAuthService{
		LogoutFunc: func(ctx context.Context, claims *models.TokenClaims, sessionID string) {
			gotClaims = claims
		},
	}
	handler := newTestAuthHandler(service)

	accessToken, err := handler.tm.GenerateAccessToken(&models.User{ID: "user123", Email: "user@example.com"})
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	r.AddCookie(&http.Cookie{Name: auth.AccessTokenCookie, Value: accessToken})
	w := httptest.NewRecorder()
	handler.Logout(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, gotClaims)
	assert.Equal(t, "user123", gotClaims.UserID)
}

// ============================================================================
// Magic Link Tests
// ============================================================================

func TestAuthHandler_RequestMagicLink_UnknownEmailLooksIdentical(t *testing.T) {
	service := &MockAuthService{
		RequestMagicLinkFunc: func(ctx context.Context, email string) error {
			return models.ErrNotFound
		},
	}
	handler := newTestAuthHandler(service)

	w := postJSON(t, handler.RequestMagicLink, "/auth/magic-link", map[string]string{
		"email": "nobody@example.com",
	})

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthHandler_RedeemMagicLink_Success(t *testing.T) {
	service := &MockAuthService{
		RedeemMagicLinkFunc: func(ctx context.Context, token, userAgent, ip string) (*services.AuthResponse, error) {
			assert.Equal(t, "tok123", token)
			return &services.AuthResponse{
				AccessToken:  "access-token",
				RefreshToken: "refresh-token",
				User:         &services.UserResponse{ID: "user123"},
			}, nil
		},
	}
	handler := newTestAuthHandler(service)

	r := httptest.NewRequest(http.MethodGet, "/auth/magic-link?token=tok123", nil)
	w := httptest.NewRecorder()
	handler.RedeemMagicLink(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, cookieValue(t, w, auth.AccessTokenCookie))
}

func TestAuthHandler_RedeemMagicLink_InvalidOrExpired(t *testing.T) {
	service := &MockAuthService{
		RedeemMagicLinkFunc: func(ctx context.Context, token, userAgent, ip string) (*services.AuthResponse, error) {
			return nil, models.ErrLinkInvalidOrExpired
		},
	}
	handler := newTestAuthHandler(service)

	r := httptest.NewRequest(http.MethodGet, "/auth/magic-link?token=used", nil)
	w := httptest.NewRecorder()
	handler.RedeemMagicLink(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// ============================================================================
// Password Recovery Tests
// ============================================================================

func TestAuthHandler_ForgotPassword_UnknownEmailLooksIdentical(t *testing.T) {
	service := &MockAuthService{
		ForgotPasswordFunc: func(ctx context.Context, email string) error {
			return models.ErrNotFound
		},
	}
	handler := newTestAuthHandler(service)

	w := postJSON(t, handler.ForgotPassword, "/auth/forgot-password", map[string]string{
		"email": "nobody@example.com",
	})

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthHandler_ResetPassword_InvalidCode(t *testing.T) {
	service := &MockAuthService{
		ResetPasswordFunc: func(ctx context.Context, email, code, newPassword string) error {
			return models.ErrInvalidCode
		},
	}
	handler := newTestAuthHandler(service)

	w := postJSON(t, handler.ResetPassword, "/auth/reset-password", map[string]string{
		"email":        "user@example.com",
		"code":         "123456",
		"new_password": "NewSecurePass123!",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandler_ResetPassword_RequiresCode(t *testing.T) {
	handler := newTestAuthHandler(&MockAuthService{})

	w := postJSON(t, handler.ResetPassword, "/auth/reset-password", map[string]string{
		"email":        "user@example.com",
		"new_password": "NewSecurePass123!",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
