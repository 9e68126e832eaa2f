package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/pslattery/gatehouse/internal/models"
)

// UserRepository defines the persistence operations for user accounts
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByMobile(ctx context.Context, mobile string) (*models.User, error)
	GetByIdentifier(ctx context.Context, identifier string) (*models.User, error)
	GetByMagicLink(ctx context.Context, token string) (*models.User, error)
	GetBySSOSubject(ctx context.Context, provider, subject string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, limit, offset int) ([]*models.UserSummary, error)
	Count(ctx context.Context) (int, error)
	SetOTP(ctx context.Context, id, otp string, expiresAt time.Time, attempts int, requestedAt time.Time) error
	ClearOTP(ctx context.Context, id string) error
	MarkVerified(ctx context.Context, id string) error
	SetMagicLink(ctx context.Context, id, token string, expiresAt time.Time) error
	MarkMagicLinkUsed(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateProfile(ctx context.Context, id string, name, username, avatarURL string) error
	SetTwoFASecret(ctx context.Context, id string, secretEnc, nonce []byte) error
	ActivateTwoFA(ctx context.Context, id string) error
	DisableTwoFA(ctx context.Context, id string) error
	LinkSSOIdentity(ctx context.Context, id, provider, subject string) error
	RefreshSSOProfile(ctx context.Context, id, name, avatarURL string) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}

// UserService handles profile and user listing logic
type UserService struct {
	repo   UserRepository
	logger *slog.Logger
}

func NewUserService(repo UserRepository, logger *slog.Logger) *UserService {
	return &UserService{
		repo:   repo,
		logger: logger,
	}
}

// UserResponse represents a user in the HTTP response
type UserResponse struct {
	ID           string `json:"id"`
	Email        string `json:"email,omitempty"`
	Mobile       string `json:"mobile,omitempty"`
	Username     string `json:"username,omitempty"`
	Name         string `json:"name"`
	AvatarURL    string `json:"avatar_url,omitempty"`
	IsVerified   bool   `json:"is_verified"`
	Is2FAEnabled bool   `json:"is_2fa_enabled"`
	SSOProvider  string `json:"sso_provider,omitempty"`
	LastLoginAt  string `json:"last_login_at,omitempty"`
	CreatedAt    string `json:"created_at"`
}

// UserSummaryResponse is the projection returned by user listings
type UserSummaryResponse struct {
	ID         string `json:"id"`
	Email      string `json:"email,omitempty"`
	Mobile     string `json:"mobile,omitempty"`
	Username   string `json:"username,omitempty"`
	Name       string `json:"name"`
	AvatarURL  string `json:"avatar_url,omitempty"`
	IsVerified bool   `json:"is_verified"`
	CreatedAt  string `json:"created_at"`
}

// UserListResponse carries one page of users plus the total count
type UserListResponse struct {
	Users  []*UserSummaryResponse `json:"users"`
	Total  int                    `json:"total"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
}

// GetProfile returns the caller's own profile.
func (s *UserService) GetProfile(ctx context.Context, userID string) (*UserResponse, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get user", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return ToUserResponse(user), nil
}

// UpdateProfile applies the mutable profile fields and returns the result.
// A username collision maps to ErrConflict.
func (s *UserService) UpdateProfile(ctx context.Context, userID, name, username, avatarURL string) (*UserResponse, error) {
	if err := s.repo.UpdateProfile(ctx, userID, name, username, avatarURL); err != nil {
		if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrConflict) {
			return nil, err
		}
		s.logger.Error("failed to update profile", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return s.GetProfile(ctx, userID)
}

// List returns a page of user summaries with the total count.
func (s *UserService) List(ctx context.Context, limit, offset int) (*UserListResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	users, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		s.logger.Error("failed to list users", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	total, err := s.repo.Count(ctx)
	if err != nil {
		s.logger.Error("failed to count users", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	summaries := make([]*UserSummaryResponse, 0, len(users))
	for _, u := range users {
		summaries = append(summaries, &UserSummaryResponse{
			ID:         u.ID,
			Email:      u.Email,
			Mobile:     u.Mobile,
			Username:   u.Username,
			Name:       u.Name,
			AvatarURL:  u.AvatarURL,
			IsVerified: u.IsVerified,
			CreatedAt:  u.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	return &UserListResponse{
		Users:  summaries,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}, nil
}

// ToUserResponse converts a user model to its response form. Credential and
// one-time-code fields never leave the service layer.
func ToUserResponse(user *models.User) *UserResponse {
	resp := &UserResponse{
		ID:           user.ID,
		Email:        user.Email,
		Mobile:       user.Mobile,
		Username:     user.Username,
		Name:         user.Name,
		AvatarURL:    user.AvatarURL,
		IsVerified:   user.IsVerified,
		Is2FAEnabled: user.Is2FAEnabled,
		SSOProvider:  user.SSOProvider,
		CreatedAt:    user.CreatedAt.UTC().Format(time.RFC3339),
	}
	if user.LastLoginAt != nil {
		resp.LastLoginAt = user.LastLoginAt.UTC().Format(time.RFC3339)
	}
	return resp
}
