package handlers

import (
	"context"

	"github.com/pslattery/gatehouse/internal/models"
	"github.com/pslattery/gatehouse/internal/services"
)

// Mock services for handler tests. Each mock uses function fields so tests
// only wire the calls they care about.

// MockAuthService implements AuthServiceInterface
type MockAuthService struct {
	RegisterFunc         func(ctx context.Context, req services.RegisterRequest) (*services.UserResponse, error)
	RequestOTPFunc       func(ctx context.Context, email, mobile string) error
	VerifyAccountFunc    func(ctx context.Context, identifier, code, userAgent, ip string) (*services.AuthResponse, error)
	LoginWithOTPFunc     func(ctx context.Context, identifier, code, userAgent, ip string) (*services.AuthResponse, error)
	LoginFunc            func(ctx context.Context, identifier, password, twoFACode, userAgent, ip string) (*services.AuthResponse, error)
	ForgotPasswordFunc   func(ctx context.Context, email string) error
	ResetPasswordFunc    func(ctx context.Context, email, code, newPassword string) error
	RefreshFunc          func(ctx context.Context, refreshToken string) (*services.RefreshResponse, error)
	LogoutFunc           func(ctx context.Context, claims *models.TokenClaims, sessionID string)
	RequestMagicLinkFunc func(ctx context.Context, email string) error
	RedeemMagicLinkFunc  func(ctx context.Context, token, userAgent, ip string) (*services.AuthResponse, error)
}

func (m *MockAuthService) Register(ctx context.Context, req services.RegisterRequest) (*services.UserResponse, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, req)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAuthService) RequestOTP(ctx context.Context, email, mobile string) error {
	if m.RequestOTPFunc != nil {
		return m.RequestOTPFunc(ctx, email, mobile)
	}
	return nil
}

func (m *MockAuthService) VerifyAccount(ctx context.Context, identifier, code, userAgent, ip string) (*services.AuthResponse, error) {
	if m.VerifyAccountFunc != nil {
		return m.VerifyAccountFunc(ctx, identifier, code, userAgent, ip)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAuthService) LoginWithOTP(ctx context.Context, identifier, code, userAgent, ip string) (*services.AuthResponse, error) {
	if m.LoginWithOTPFunc != nil {
		return m.LoginWithOTPFunc(ctx, identifier, code, userAgent, ip)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAuthService) Login(ctx context.Context, identifier, password, twoFACode, userAgent, ip string) (*services.AuthResponse, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, identifier, password, twoFACode, userAgent, ip)
	}
	return nil, models.ErrUnauthorized
}

func (m *MockAuthService) ForgotPassword(ctx context.Context, email string) error {
	if m.ForgotPasswordFunc != nil {
		return m.ForgotPasswordFunc(ctx, email)
	}
	return nil
}

func (m *MockAuthService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	if m.ResetPasswordFunc != nil {
		return m.ResetPasswordFunc(ctx, email, code, newPassword)
	}
	return nil
}

func (m *MockAuthService) Refresh(ctx context.Context, refreshToken string) (*services.RefreshResponse, error) {
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, refreshToken)
	}
	return nil, models.ErrUnauthorized
}

func (m *MockAuthService) Logout(ctx context.Context, claims *models.TokenClaims, sessionID string) {
	if m.LogoutFunc != nil {
		m.LogoutFunc(ctx, claims, sessionID)
	}
}

func (m *MockAuthService) RequestMagicLink(ctx context.Context, email string) error {
	if m.RequestMagicLinkFunc != nil {
		return m.RequestMagicLinkFunc(ctx, email)
	}
	return nil
}

func (m *MockAuthService) RedeemMagicLink(ctx context.Context, token, userAgent, ip string) (*services.AuthResponse, error) {
	if m.RedeemMagicLinkFunc != nil {
		return m.RedeemMagicLinkFunc(ctx, token, userAgent, ip)
	}
	return nil, models.ErrLinkInvalidOrExpired
}

// MockUserService implements UserServiceInterface
type MockUserService struct {
	GetProfileFunc    func(ctx context.Context, userID string) (*services.UserResponse, error)
	UpdateProfileFunc func(ctx context.Context, userID, name, username, avatarURL string) (*services.UserResponse, error)
	ListFunc          func(ctx context.Context, limit, offset int) (*services.UserListResponse, error)
}

func (m *MockUserService) GetProfile(ctx context.Context, userID string) (*services.UserResponse, error) {
	if m.GetProfileFunc != nil {
		return m.GetProfileFunc(ctx, userID)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserService) UpdateProfile(ctx context.Context, userID, name, username, avatarURL string) (*services.UserResponse, error) {
	if m.UpdateProfileFunc != nil {
		return m.UpdateProfileFunc(ctx, userID, name, username, avatarURL)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserService) List(ctx context.Context, limit, offset int) (*services.UserListResponse, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	return &services.UserListResponse{Users: []*services.UserSummaryResponse{}}, nil
}

// MockAccountService implements AccountSecurityInterface
type MockAccountService struct {
	DeleteAccountFunc  func(ctx context.Context, userID, password, reason string) error
	ChangePasswordFunc func(ctx context.Context, userID, currentPassword, newPassword string) error
}

func (m *MockAccountService) DeleteAccount(ctx context.Context, userID, password, reason string) error {
	if m.DeleteAccountFunc != nil {
		return m.DeleteAccountFunc(ctx, userID, password, reason)
	}
	return nil
}

func (m *MockAccountService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if m.ChangePasswordFunc != nil {
		return m.ChangePasswordFunc(ctx, userID, currentPassword, newPassword)
	}
	return nil
}

// MockSessionService implements SessionServiceInterface
type MockSessionService struct {
	ListFunc      func(ctx context.Context, userID string) ([]*services.SessionResponse, error)
	RevokeFunc    func(ctx context.Context, userID, sessionID string) error
	RevokeAllFunc func(ctx context.Context, userID string) error
}

func (m *MockSessionService) List(ctx context.Context, userID string) ([]*services.SessionResponse, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, userID)
	}
	return []*services.SessionResponse{}, nil
}

func (m *MockSessionService) Revoke(ctx context.Context, userID, sessionID string) error {
	if m.RevokeFunc != nil {
		return m.RevokeFunc(ctx, userID, sessionID)
	}
	return nil
}

func (m *MockSessionService) RevokeAll(ctx context.Context, userID string) error {
	if m.RevokeAllFunc != nil {
		return m.RevokeAllFunc(ctx, userID)
	}
	return nil
}

// MockTwoFactorService implements TwoFactorServiceInterface
type MockTwoFactorService struct {
	EnableFunc  func(ctx context.Context, userID string) (*services.TwoFASetupResponse, error)
	ConfirmFunc func(ctx context.Context, userID, code string) error
	DisableFunc func(ctx context.Context, userID, code string) error
}

func (m *MockTwoFactorService) Enable(ctx context.Context, userID string) (*services.TwoFASetupResponse, error) {
	if m.EnableFunc != nil {
		return m.EnableFunc(ctx, userID)
	}
	return nil, models.ErrInternalServer
}

func (m *MockTwoFactorService) Confirm(ctx context.Context, userID, code string) error {
	if m.ConfirmFunc != nil {
		return m.ConfirmFunc(ctx, userID, code)
	}
	return nil
}

func (m *MockTwoFactorService) Disable(ctx context.Context, userID, code string) error {
	if m.DisableFunc != nil {
		return m.DisableFunc(ctx, userID, code)
	}
	return nil
}

// MockSSOService implements SSOServiceInterface
type MockSSOService struct {
	GenerateStateFunc  func() (string, error)
	AuthCodeURLFunc    func(providerName, state string) (string, error)
	HandleCallbackFunc func(ctx context.Context, providerName, code, userAgent, ip string) (*services.AuthResponse, error)
	Dashboard          string
	ErrorPage          string
}

func (m *MockSSOService) GenerateState() (string, error) {
	if m.GenerateStateFunc != nil {
		return m.GenerateStateFunc()
	}
	return "test-state", nil
}

func (m *MockSSOService) AuthCodeURL(providerName, state string) (string, error) {
	if m.AuthCodeURLFunc != nil {
		return m.AuthCodeURLFunc(providerName, state)
	}
	return "https://provider.example.com/authorize?state=" + state, nil
}

func (m *MockSSOService) HandleCallback(ctx context.Context, providerName, code, userAgent, ip string) (*services.AuthResponse, error) {
	if m.HandleCallbackFunc != nil {
		return m.HandleCallbackFunc(ctx, providerName, code, userAgent, ip)
	}
	return nil, models.ErrUnauthorized
}

func (m *MockSSOService) DashboardURL() string {
	if m.Dashboard != "" {
		return m.Dashboard
	}
	return "http://localhost:3000/dashboard"
}

func (m *MockSSOService) ErrorURL() string {
	if m.ErrorPage != "" {
		return m.ErrorPage
	}
	return "http://localhost:3000/auth/error"
}
