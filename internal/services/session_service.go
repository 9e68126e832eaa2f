package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mssola/useragent"

	"github.com/pslattery/gatehouse/internal/models"
)

// SessionRepository defines the persistence operations the session service needs
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) (*models.Session, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Session, error)
	Revoke(ctx context.Context, userID, sessionID string) error
	RevokeAllByUser(ctx context.Context, userID string) error
}

// SessionService records logins and manages the per-user session list
type SessionService struct {
	repo     SessionRepository
	location LocationService
	logger   *slog.Logger
}

func NewSessionService(repo SessionRepository, location LocationService, logger *slog.Logger) *SessionService {
	return &SessionService{
		repo:     repo,
		location: location,
		logger:   logger,
	}
}

// SessionResponse represents a session in the HTTP response
type SessionResponse struct {
	ID        string `json:"id"`
	Device    string `json:"device"`
	OS        string `json:"os"`
	Browser   string `json:"browser"`
	Location  string `json:"location"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
}

// Record creates a session row for a successful login. Unparseable user
// agents fall back to "Unknown" fields and geolocation failures fall back
// to UnknownLocation; recording never blocks the login itself.
func (s *SessionService) Record(ctx context.Context, userID, userAgentString, ip string) (*models.Session, error) {
	session := &models.Session{
		UserID:   userID,
		Device:   "Unknown",
		OS:       "Unknown",
		Browser:  "Unknown",
		Location: s.location.Lookup(ctx, ip),
	}

	if userAgentString != "" {
		ua := useragent.New(userAgentString)

		if ua.Mobile() {
			session.Device = "Mobile"
		} else if ua.Bot() {
			session.Device = "Bot"
		} else {
			session.Device = "Desktop"
		}
		if osInfo := ua.OSInfo(); osInfo.Name != "" {
			session.OS = osInfo.Name
			if osInfo.Version != "" {
				session.OS = osInfo.Name + " " + osInfo.Version
			}
		}
		if name, version := ua.Browser(); name != "" {
			session.Browser = name
			if version != "" {
				session.Browser = name + " " + version
			}
		}
	}

	created, err := s.repo.Create(ctx, session)
	if err != nil {
		s.logger.Error("failed to record session",
			slog.String("user_id", userID),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return created, nil
}

// List returns the user's active sessions, newest first. A revoked session
// disappears from the listing immediately.
func (s *SessionService) List(ctx context.Context, userID string) ([]*SessionResponse, error) {
	sessions, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list sessions",
			slog.String("user_id", userID),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	responses := make([]*SessionResponse, 0, len(sessions))
	for _, session := range sessions {
		if !session.IsActive {
			continue
		}
		responses = append(responses, toSessionResponse(session))
	}
	return responses, nil
}

// Revoke marks one of the user's sessions inactive. Revoking a session that
// is already inactive or belongs to another user is silently a no-op.
func (s *SessionService) Revoke(ctx context.Context, userID, sessionID string) error {
	if err := s.repo.Revoke(ctx, userID, sessionID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		s.logger.Error("failed to revoke session",
			slog.String("user_id", userID),
			slog.String("session_id", sessionID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}
	return nil
}

// RevokeAll marks every session for the user inactive.
func (s *SessionService) RevokeAll(ctx context.Context, userID string) error {
	if err := s.repo.RevokeAllByUser(ctx, userID); err != nil {
		s.logger.Error("failed to revoke sessions",
			slog.String("user_id", userID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}
	return nil
}

func toSessionResponse(session *models.Session) *SessionResponse {
	return &SessionResponse{
		ID:        session.ID,
		Device:    session.Device,
		OS:        session.OS,
		Browser:   session.Browser,
		Location:  session.Location,
		IsActive:  session.IsActive,
		CreatedAt: session.CreatedAt.UTC().Format(time.RFC3339),
	}
}
