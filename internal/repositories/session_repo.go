package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pslattery/gatehouse/internal/database"
	"github.com/pslattery/gatehouse/internal/models"
)

type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{pool: db.Pool}
}

func (r *SessionRepository) Create(ctx context.Context, session *models.Session) (*models.Session, error) {
	session.ID = uuid.New().String()
	session.IsActive = true
	session.CreatedAt = time.Now()

	query := `
		INSERT INTO user_sessions (id, user_id, device, os, browser, location, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		session.ID, session.UserID, session.Device, session.OS,
		session.Browser, session.Location, session.IsActive, session.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return session, nil
}

// ListByUser returns the user's active sessions, newest first. Revoked
// rows stay in the table for the cleanup job but never appear in listings.
func (r *SessionRepository) ListByUser(ctx context.Context, userID string) ([]*models.Session, error) {
	query := `
		SELECT id, user_id, device, os, browser, location, is_active, created_at
		FROM user_sessions WHERE user_id = $1 AND is_active = TRUE
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]*models.Session, 0)
	for rows.Next() {
		var s models.Session
		if err := rows.Scan(&s.ID, &s.UserID, &s.Device, &s.OS, &s.Browser, &s.Location, &s.IsActive, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return sessions, nil
}

// Revoke marks one of the user's sessions inactive. Scoping by user_id means
// a caller can only revoke their own sessions. Revoking an already inactive
// session is a no-op.
func (r *SessionRepository) Revoke(ctx context.Context, userID, sessionID string) error {
	query := `
		UPDATE user_sessions SET is_active = FALSE
		WHERE id = $1 AND user_id = $2
	`
	_, err := r.pool.Exec(ctx, query, sessionID, userID)
	if err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}

// RevokeAllByUser marks every session for the user inactive.
func (r *SessionRepository) RevokeAllByUser(ctx context.Context, userID string) error {
	query := `UPDATE user_sessions SET is_active = FALSE WHERE user_id = $1`
	_, err := r.pool.Exec(ctx, query, userID)
	if err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}

// DeleteInactiveBefore removes inactive session rows older than the cutoff.
// Used by the background cleanup job.
func (r *SessionRepository) DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM user_sessions WHERE is_active = FALSE AND created_at < $1`
	result, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
