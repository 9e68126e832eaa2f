package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/pslattery/gatehouse/internal/repositories"
)

// Revoked sessions older than this are removed entirely.
const inactiveSessionRetention = 30 * 24 * time.Hour

// CleanupManager periodically clears expired one-time credentials and
// removes long-revoked session rows.
type CleanupManager struct {
	userRepo    *repositories.UserRepository
	sessionRepo *repositories.SessionRepository
	logger      *slog.Logger
	interval    time.Duration
	stopCh      chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(
	userRepo *repositories.UserRepository,
	sessionRepo *repositories.SessionRepository,
	logger *slog.Logger,
	interval time.Duration,
) *CleanupManager {
	return &CleanupManager{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		logger:      logger,
		interval:    interval,
		stopCh:      make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cm.logger.Info("starting credential cleanup")

	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	now := time.Now()

	cleared, err := cm.userRepo.PurgeExpiredCredentials(cleanupCtx, now)
	if err != nil {
		cm.logger.Error("failed to purge expired credentials", slog.Any("error", err))
	} else if cleared > 0 {
		cm.logger.Info("expired credentials cleared", slog.Int64("rows_updated", cleared))
	}

	deleted, err := cm.sessionRepo.DeleteInactiveBefore(cleanupCtx, now.Add(-inactiveSessionRetention))
	if err != nil {
		cm.logger.Error("failed to delete inactive sessions", slog.Any("error", err))
	} else if deleted > 0 {
		cm.logger.Info("inactive sessions deleted", slog.Int64("rows_deleted", deleted))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
