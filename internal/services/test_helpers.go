package services

import (
	"context"
	"time"

	"github.com/pslattery/gatehouse/internal/models"
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByIDFunc           func(ctx context.Context, id string) (*models.User, error)
	GetByEmailFunc        func(ctx context.Context, email string) (*models.User, error)
	GetByMobileFunc       func(ctx context.Context, mobile string) (*models.User, error)
	GetByIdentifierFunc   func(ctx context.Context, identifier string) (*models.User, error)
	GetByMagicLinkFunc    func(ctx context.Context, token string) (*models.User, error)
	GetBySSOSubjectFunc   func(ctx context.Context, provider, subject string) (*models.User, error)
	CreateFunc            func(ctx context.Context, user *models.User) (*models.User, error)
	DeleteFunc            func(ctx context.Context, id string) error
	ListFunc              func(ctx context.Context, limit, offset int) ([]*models.UserSummary, error)
	CountFunc             func(ctx context.Context) (int, error)
	SetOTPFunc            func(ctx context.Context, id, otp string, expiresAt time.Time, attempts int, requestedAt time.Time) error
	ClearOTPFunc          func(ctx context.Context, id string) error
	MarkVerifiedFunc      func(ctx context.Context, id string) error
	SetMagicLinkFunc      func(ctx context.Context, id, token string, expiresAt time.Time) error
	MarkMagicLinkUsedFunc func(ctx context.Context, id string) error
	UpdatePasswordFunc    func(ctx context.Context, id, passwordHash string) error
	UpdateProfileFunc     func(ctx context.Context, id string, name, username, avatarURL string) error
	SetTwoFASecretFunc    func(ctx context.Context, id string, secretEnc, nonce []byte) error
	ActivateTwoFAFunc     func(ctx context.Context, id string) error
	DisableTwoFAFunc      func(ctx context.Context, id string) error
	LinkSSOIdentityFunc   func(ctx context.Context, id, provider, subject string) error
	RefreshSSOProfileFunc func(ctx context.Context, id, name, avatarURL string) error
	UpdateLastLoginFunc   func(ctx context.Context, id string, at time.Time) error
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByMobile(ctx context.Context, mobile string) (*models.User, error) {
	if m.GetByMobileFunc != nil {
		return m.GetByMobileFunc(ctx, mobile)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	if m.GetByIdentifierFunc != nil {
		return m.GetByIdentifierFunc(ctx, identifier)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByMagicLink(ctx context.Context, token string) (*models.User, error) {
	if m.GetByMagicLinkFunc != nil {
		return m.GetByMagicLinkFunc(ctx, token)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetBySSOSubject(ctx context.Context, provider, subject string) (*models.User, error) {
	if m.GetBySSOSubjectFunc != nil {
		return m.GetBySSOSubjectFunc(ctx, provider, subject)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockUserRepository) List(ctx context.Context, limit, offset int) ([]*models.UserSummary, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	return []*models.UserSummary{}, nil
}

func (m *MockUserRepository) Count(ctx context.Context) (int, error) {
	if m.CountFunc != nil {
		return m.CountFunc(ctx)
	}
	return 0, nil
}

func (m *MockUserRepository) SetOTP(ctx context.Context, id, otp string, expiresAt time.Time, attempts int, requestedAt time.Time) error {
	if m.SetOTPFunc != nil {
		return m.SetOTPFunc(ctx, id, otp, expiresAt, attempts, requestedAt)
	}
	return nil
}

func (m *MockUserRepository) ClearOTP(ctx context.Context, id string) error {
	if m.ClearOTPFunc != nil {
		return m.ClearOTPFunc(ctx, id)
	}
	return nil
}

func (m *MockUserRepository) MarkVerified(ctx context.Context, id string) error {
	if m.MarkVerifiedFunc != nil {
		return m.MarkVerifiedFunc(ctx, id)
	}
	return nil
}

func (m *MockUserRepository) SetMagicLink(ctx context.Context, id, token string, expiresAt time.Time) error {
	if m.SetMagicLinkFunc != nil {
		return m.SetMagicLinkFunc(ctx, id, token, expiresAt)
	}
	return nil
}

func (m *MockUserRepository) MarkMagicLinkUsed(ctx context.Context, id string) error {
	if m.MarkMagicLinkUsedFunc != nil {
		return m.MarkMagicLinkUsedFunc(ctx, id)
	}
	return nil
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	if m.UpdatePasswordFunc != nil {
		return m.UpdatePasswordFunc(ctx, id, passwordHash)
	}
	return nil
}

func (m *MockUserRepository) UpdateProfile(ctx context.Context, id string, name, username, avatarURL string) error {
	if m.UpdateProfileFunc != nil {
		return m.UpdateProfileFunc(ctx, id, name, username, avatarURL)
	}
	return nil
}

func (m *MockUserRepository) SetTwoFASecret(ctx context.Context, id string, secretEnc, nonce []byte) error {
	if m.SetTwoFASecretFunc != nil {
		return m.SetTwoFASecretFunc(ctx, id, secretEnc, nonce)
	}
	return nil
}

func (m *MockUserRepository) ActivateTwoFA(ctx context.Context, id string) error {
	if m.ActivateTwoFAFunc != nil {
		return m.ActivateTwoFAFunc(ctx, id)
	}
	return nil
}

func (m *MockUserRepository) DisableTwoFA(ctx context.Context, id string) error {
	if m.DisableTwoFAFunc != nil {
		return m.DisableTwoFAFunc(ctx, id)
	}
	return nil
}

func (m *MockUserRepository) LinkSSOIdentity(ctx context.Context, id, provider, subject string) error {
	if m.LinkSSOIdentityFunc != nil {
		return m.LinkSSOIdentityFunc(ctx, id, provider, subject)
	}
	return nil
}

func (m *MockUserRepository) RefreshSSOProfile(ctx context.Context, id, name, avatarURL string) error {
	if m.RefreshSSOProfileFunc != nil {
		return m.RefreshSSOProfileFunc(ctx, id, name, avatarURL)
	}
	return nil
}

func (m *MockUserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	if m.UpdateLastLoginFunc != nil {
		return m.UpdateLastLoginFunc(ctx, id, at)
	}
	return nil
}

// MockSessionRepository implements SessionRepository for testing
type MockSessionRepository struct {
	CreateFunc          func(ctx context.Context, session *models.Session) (*models.Session, error)
	ListByUserFunc      func(ctx context.Context, userID string) ([]*models.Session, error)
	RevokeFunc          func(ctx context.Context, userID, sessionID string) error
	RevokeAllByUserFunc func(ctx context.Context, userID string) error
}

func (m *MockSessionRepository) Create(ctx context.Context, session *models.Session) (*models.Session, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, session)
	}
	session.ID = "session_123"
	session.IsActive = true
	session.CreatedAt = time.Now()
	return session, nil
}

func (m *MockSessionRepository) ListByUser(ctx context.Context, userID string) ([]*models.Session, error) {
	if m.ListByUserFunc != nil {
		return m.ListByUserFunc(ctx, userID)
	}
	return []*models.Session{}, nil
}

func (m *MockSessionRepository) Revoke(ctx context.Context, userID, sessionID string) error {
	if m.RevokeFunc != nil {
		return m.RevokeFunc(ctx, userID, sessionID)
	}
	return nil
}

func (m *MockSessionRepository) RevokeAllByUser(ctx context.Context, userID string) error {
	if m.RevokeAllByUserFunc != nil {
		return m.RevokeAllByUserFunc(ctx, userID)
	}
	return nil
}

// MockAccountDeletionRepository implements AccountDeletionRepository for testing
type MockAccountDeletionRepository struct {
	CreateFunc func(ctx context.Context, record *models.AccountDeletion) (*models.AccountDeletion, error)
}

func (m *MockAccountDeletionRepository) Create(ctx context.Context, record *models.AccountDeletion) (*models.AccountDeletion, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, record)
	}
	record.ID = "deletion_123"
	record.DeletedAt = time.Now()
	return record, nil
}

// MockEmailService implements EmailService for testing
type MockEmailService struct {
	SendOTPEmailFunc       func(ctx context.Context, email, code string) error
	SendMagicLinkEmailFunc func(ctx context.Context, email, link string) error
}

func (m *MockEmailService) SendOTPEmail(ctx context.Context, email, code string) error {
	if m.SendOTPEmailFunc != nil {
		return m.SendOTPEmailFunc(ctx, email, code)
	}
	return nil
}

func (m *MockEmailService) SendMagicLinkEmail(ctx context.Context, email, link string) error {
	if m.SendMagicLinkEmailFunc != nil {
		return m.SendMagicLinkEmailFunc(ctx, email, link)
	}
	return nil
}

// MockSMSService implements SMSService for testing
type MockSMSService struct {
	SendOTPFunc func(ctx context.Context, mobile, code string) error
}

func (m *MockSMSService) SendOTP(ctx context.Context, mobile, code string) error {
	if m.SendOTPFunc != nil {
		return m.SendOTPFunc(ctx, mobile, code)
	}
	return nil
}

// MockLocationService implements LocationService for testing
type MockLocationService struct {
	LookupFunc func(ctx context.Context, ip string) string
}

func (m *MockLocationService) Lookup(ctx context.Context, ip string) string {
	if m.LookupFunc != nil {
		return m.LookupFunc(ctx, ip)
	}
	return UnknownLocation
}

// MockRefreshTokenStore implements RefreshTokenStore for testing
type MockRefreshTokenStore struct {
	SaveFunc   func(ctx context.Context, userID, token string) error
	GetFunc    func(ctx context.Context, userID string) (string, error)
	RotateFunc func(ctx context.Context, userID, presented, next string) error
	DeleteFunc func(ctx context.Context, userID string) error
}

func (m *MockRefreshTokenStore) Save(ctx context.Context, userID, token string) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, userID, token)
	}
	return nil
}

func (m *MockRefreshTokenStore) Get(ctx context.Context, userID string) (string, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, userID)
	}
	return "", models.ErrNotFound
}

func (m *MockRefreshTokenStore) Rotate(ctx context.Context, userID, presented, next string) error {
	if m.RotateFunc != nil {
		return m.RotateFunc(ctx, userID, presented, next)
	}
	return nil
}

func (m *MockRefreshTokenStore) Delete(ctx context.Context, userID string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, userID)
	}
	return nil
}

// MockRateLimitBackend implements RateLimitBackend for testing
type MockRateLimitBackend struct {
	AllowFunc func(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error)
}

func (m *MockRateLimitBackend) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error) {
	if m.AllowFunc != nil {
		return m.AllowFunc(ctx, key, limit, window)
	}
	return &models.RateLimitResult{Allowed: true, Limit: limit, Remaining: limit - 1}, nil
}
