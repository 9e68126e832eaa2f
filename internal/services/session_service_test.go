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
// Record Tests
// ============================================================================

func TestSessionService_Record_DesktopUserAgent(t *testing.T) {
	mockRepo := &MockSessionRepository{}
	mockLocation := &MockLocationService{
		LookupFunc: func(ctx context.Context, ip string) string {
			return "Dublin, Leinster, Ireland"
		},
	}
	service := NewSessionService(mockRepo, mockLocation, slog.Default())

	var created *models.Session
	mockRepo.CreateFunc = func(ctx context.Context, session *models.Session) (*models.Session, error) {
		created = session
		session.ID = "session123"
		return session, nil
	}

	ua := "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	session, err := service.Record(context.Background(), "user123", ua, "203.0.113.1")

	require.NoError(t, err)
	assert.Equal(t, "session123", session.ID)
	assert.Equal(t, "Desktop", created.Device)
	assert.Contains(t, created.OS, "Windows")
	assert.Contains(t, created.Browser, "Chrome")
	assert.Equal(t, "Dublin, Leinster, Ireland", created.Location)
}

func TestSessionService_Record_MobileUserAgent(t *testing.T) {
	mockRepo := &MockSessionRepository{}
	service := NewSessionService(mockRepo, &MockLocationService{}, slog.Default())

	var created *models.Session
	mockRepo.CreateFunc = func(ctx context.Context, session *models.Session) (*models.Session, error) {
		created = session
		return session, nil
	}

	ua := "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	_, err := service.Record(context.Background(), "user123", ua, "203.0.113.1")

	require.NoError(t, err)
	assert.Equal(t, "Mobile", created.Device)
}

func TestSessionService_Record_EmptyUserAgentDefaults(t *testing.T) {
	mockRepo := &MockSessionRepository{}
	service := NewSessionService(mockRepo, &MockLocationService{}, slog.Default())

	var created *models.Session
	mockRepo.CreateFunc = func(ctx context.Context, session *models.Session) (*models.Session, error) {
		created = session
		return session, nil
	}

	_, err := service.Record(context.Background(), "user123", "", "")

	require.NoError(t, err)
	assert.Equal(t, "Unknown", created.Device)
	assert.Equal(t, "Unknown", created.OS)
	assert.Equal(t, "Unknown", created.Browser)
	assert.Equal(t, UnknownLocation, created.Location)
}

func TestSessionService_Record_RepositoryError(t *testing.T) {
	mockRepo := &MockSessionRepository{
		CreateFunc: func(ctx context.Context, session *models.Session) (*models.Session, error) {
			return nil, errors.New("connection refused")
		},
	}
	service := NewSessionService(mockRepo, &MockLocationService{}, slog.Default())

	session, err := service.Record(context.Background(), "user123", "", "")

	assert.ErrorIs(t, err, models.ErrInternalServer)
	assert.Nil(t, session)
}

// ============================================================================
// List Tests
// ============================================================================

func TestSessionService_List_Success(t *testing.T) {
	now := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	mockRepo := &MockSessionRepository{
		ListByUserFunc: func(ctx context.Context, userID string) ([]*models.Session, error) {
			return []*models.Session{
				{ID: "session2", UserID: userID, Device: "Mobile", OS: "iOS 17.0", Browser: "Safari", Location: UnknownLocation, IsActive: true, CreatedAt: now},
				{ID: "session1", UserID: userID, Device: "Desktop", OS: "Windows 10", Browser: "Chrome 120", Location: "Dublin, Ireland", IsActive: false, CreatedAt: now.Add(-time.Hour)},
			}, nil
		},
	}
	service := NewSessionService(mockRepo, &MockLocationService{}, slog.Default())

	sessions, err := service.List(context.Background(), "user123")

	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "session2", sessions[0].ID)
	assert.Equal(t, "2026-01-15T10:30:00Z", sessions[0].CreatedAt)
	assert.True(t, sessions[0].IsActive)
}

func TestSessionService_List_ExcludesRevokedSessions(t *testing.T) {
	now := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	mockRepo := &MockSessionRepository{
		ListByUserFunc: func(ctx context.Context, userID string) ([]*models.Session, error) {
			return []*models.Session{
				{ID: "current", UserID: userID, Device: "Desktop", OS: "Linux", Browser: "Firefox", Location: "Dublin, Ireland", IsActive: true, CreatedAt: now},
				{ID: "revoked", UserID: userID, Device: "Mobile", OS: "Android 14", Browser: "Chrome 120", Location: "Dublin, Ireland", IsActive: false, CreatedAt: now.Add(-time.Hour)},
			}, nil
		},
	}
	service := NewSessionService(mockRepo, &MockLocationService{}, slog.Default())

	sessions, err := service.List(context.Background(), "user123")

	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "current", sessions[0].ID)
}

func TestSessionService_List_Empty(t *testing.T) {
	mockRepo := &MockSessionRepository{
		ListByUserFunc: func(ctx context.Context, userID string) ([]*models.Session, error) {
			return []*models.Session{}, nil
		},
	}
	service := NewSessionService(mockRepo, &MockLocationService{}, slog.Default())

	sessions, err := service.List(context.Background(), "user123")

	require.NoError(t, err)
	assert.Empty(t, sessions)
}

// ============================================================================
// Revoke Tests
// ============================================================================

func TestSessionService_Revoke_NotFoundIsNoOp(t *testing.T) {
	mockRepo := &MockSessionRepository{
		RevokeFunc: func(ctx context.Context, userID, sessionID string) error {
			return models.ErrNotFound
		},
	}
	service := NewSessionService(mockRepo, &MockLocationService{}, slog.Default())

	err := service.Revoke(context.Background(), "user123", "session999")

	assert.NoError(t, err, "revoking a missing or foreign session is silent")
}

func TestSessionService_Revoke_RepositoryError(t *testing.T) {
	mockRepo := &MockSessionRepository{
		RevokeFunc: func(ctx context.Context, userID, sessionID string) error {
			return errors.New("connection refused")
		},
	}
	service := NewSessionService(mockRepo, &MockLocationService{}, slog.Default())

	err := service.Revoke(context.Background(), "user123", "session123")

	assert.ErrorIs(t, err, models.ErrInternalServer)
}

func TestSessionService_RevokeAll_Success(t *testing.T) {
	var revokedUser string
	mockRepo := &MockSessionRepository{
		RevokeAllByUserFunc: func(ctx context.Context, userID string) error {
			revokedUser = userID
			return nil
		},
	}
	service := NewSessionService(mockRepo, &MockLocationService{}, slog.Default())

	err := service.RevokeAll(context.Background(), "user123")

	require.NoError(t, err)
	assert.Equal(t, "user123", revokedUser)
}
