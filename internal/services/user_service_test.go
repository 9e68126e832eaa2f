package services

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pslattery/gatehouse/internal/models"
)

// ============================================================================
// GetProfile Tests
// ============================================================================

func TestUserService_GetProfile_Success(t *testing.T) {
	lastLogin := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	mockRepo := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return &models.User{
				ID:           id,
				Email:        "user@example.com",
				Username:     "alice",
				Name:         "Alice",
				IsVerified:   true,
				Is2FAEnabled: true,
				LastLoginAt:  &lastLogin,
				CreatedAt:    lastLogin.Add(-24 * time.Hour),
			}, nil
		},
	}
	service := NewUserService(mockRepo, slog.Default())

	resp, err := service.GetProfile(context.Background(), "user123")

	require.NoError(t, err)
	assert.Equal(t, "user123", resp.ID)
	assert.Equal(t, "user@example.com", resp.Email)
	assert.True(t, resp.Is2FAEnabled)
	assert.Equal(t, "2026-01-15T10:30:00Z", resp.LastLoginAt)
}

func TestUserService_GetProfile_NotFound(t *testing.T) {
	mockRepo := &MockUserRepository{}
	service := NewUserService(mockRepo, slog.Default())

	resp, err := service.GetProfile(context.Background(), "missing")

	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Nil(t, resp)
}

// ============================================================================
// UpdateProfile Tests
// ============================================================================

func TestUserService_UpdateProfile_Success(t *testing.T) {
	var updatedName string
	mockRepo := &MockUserRepository{
		UpdateProfileFunc: func(ctx context.Context, id string, name, username, avatarURL string) error {
			updatedName = name
			return nil
		},
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return &models.User{ID: id, Email: "user@example.com", Name: "Alice B"}, nil
		},
	}
	service := NewUserService(mockRepo, slog.Default())

	resp, err := service.UpdateProfile(context.Background(), "user123", "Alice B", "aliceb", "")

	require.NoError(t, err)
	assert.Equal(t, "Alice B", updatedName)
	assert.Equal(t, "Alice B", resp.Name)
}

func TestUserService_UpdateProfile_UsernameConflict(t *testing.T) {
	mockRepo := &MockUserRepository{
		UpdateProfileFunc: func(ctx context.Context, id string, name, username, avatarURL string) error {
			return models.ErrConflict
		},
	}
	service := NewUserService(mockRepo, slog.Default())

	resp, err := service.UpdateProfile(context.Background(), "user123", "Alice", "taken", "")

	assert.ErrorIs(t, err, models.ErrConflict)
	assert.Nil(t, resp)
}

// ============================================================================
// List Tests
// ============================================================================

func TestUserService_List_Success(t *testing.T) {
	now := time.Now()
	mockRepo := &MockUserRepository{
		ListFunc: func(ctx context.Context, limit, offset int) ([]*models.UserSummary, error) {
			return []*models.UserSummary{
				{ID: "user1", Email: "a@example.com", Name: "A", IsVerified: true, CreatedAt: now},
				{ID: "user2", Mobile: "+15551234567", Name: "B", CreatedAt: now},
			}, nil
		},
		CountFunc: func(ctx context.Context) (int, error) {
			return 42, nil
		},
	}
	service := NewUserService(mockRepo, slog.Default())

	resp, err := service.List(context.Background(), 20, 0)

	require.NoError(t, err)
	require.Len(t, resp.Users, 2)
	assert.Equal(t, 42, resp.Total)
	assert.Equal(t, 20, resp.Limit)
	assert.Equal(t, "+15551234567", resp.Users[1].Mobile)
}

func TestUserService_List_ClampsPageSize(t *testing.T) {
	var usedLimit, usedOffset int
	mockRepo := &MockUserRepository{
		ListFunc: func(ctx context.Context, limit, offset int) ([]*models.UserSummary, error) {
			usedLimit = limit
			usedOffset = offset
			return nil, nil
		},
		CountFunc: func(ctx context.Context) (int, error) {
			return 0, nil
		},
	}
	service := NewUserService(mockRepo, slog.Default())

	_, err := service.List(context.Background(), 5000, -10)

	require.NoError(t, err)
	assert.Equal(t, 20, usedLimit)
	assert.Equal(t, 0, usedOffset)
}

func TestUserService_List_RepositoryError(t *testing.T) {
	mockRepo := &MockUserRepository{
		ListFunc: func(ctx context.Context, limit, offset int) ([]*models.UserSummary, error) {
			return nil, errors.New("connection refused")
		},
	}
	service := NewUserService(mockRepo, slog.Default())

	resp, err := service.List(context.Background(), 20, 0)

	assert.ErrorIs(t, err, models.ErrInternalServer)
	assert.Nil(t, resp)
}
