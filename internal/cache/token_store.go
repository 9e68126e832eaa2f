package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pslattery/gatehouse/internal/models"
)

const refreshTokenKeyPrefix = "refresh_token:"

// RefreshTokenStore mirrors the current refresh token for SSO-initiated
// sessions. One token per user: issuing a new one replaces the old, and
// rotation only succeeds when the presented token is the stored one.
type RefreshTokenStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRefreshTokenStore(client *redis.Client, ttl time.Duration) *RefreshTokenStore {
	return &RefreshTokenStore{
		client: client,
		ttl:    ttl,
	}
}

func refreshTokenKey(userID string) string {
	return refreshTokenKeyPrefix + userID
}

// Save stores the refresh token for the user, replacing any previous one.
func (s *RefreshTokenStore) Save(ctx context.Context, userID, token string) error {
	if err := s.client.Set(ctx, refreshTokenKey(userID), token, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}
	return nil
}

// Get returns the stored refresh token for the user.
// Returns models.ErrNotFound when no token is stored.
func (s *RefreshTokenStore) Get(ctx context.Context, userID string) (string, error) {
	token, err := s.client.Get(ctx, refreshTokenKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", models.ErrNotFound
		}
		return "", fmt.Errorf("failed to read refresh token: %w", err)
	}
	return token, nil
}

// Rotate atomically swaps the stored token for a new one, but only when the
// presented token matches the stored value exactly. A mismatch means the
// presented token was already rotated out and must be rejected.
func (s *RefreshTokenStore) Rotate(ctx context.Context, userID, presented, next string) error {
	key := refreshTokenKey(userID)

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		stored, err := tx.Get(ctx, key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return models.ErrUnauthorized
			}
			return err
		}
		if stored != presented {
			return models.ErrUnauthorized
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, s.ttl)
			return nil
		})
		return err
	}, key)

	if err != nil {
		if errors.Is(err, models.ErrUnauthorized) {
			return models.ErrUnauthorized
		}
		return fmt.Errorf("failed to rotate refresh token: %w", err)
	}
	return nil
}

// Delete removes the stored token. Deleting an absent token is not an error.
func (s *RefreshTokenStore) Delete(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, refreshTokenKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete refresh token: %w", err)
	}
	return nil
}
