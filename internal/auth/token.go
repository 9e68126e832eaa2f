package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/pslattery/gatehouse/internal/models"
)

// TokenManager issues and verifies the access/refresh token pair. Access and
// refresh tokens are signed with distinct secrets so compromise of one
// cannot forge the other.
type TokenManager struct {
	accessSecret       []byte
	refreshSecret      []byte
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
	now                func() time.Time
}

// NewTokenManager creates a new TokenManager
func NewTokenManager(accessSecret, refreshSecret string, accessExpiry, refreshExpiry time.Duration) *TokenManager {
	return &TokenManager{
		accessSecret:       []byte(accessSecret),
		refreshSecret:      []byte(refreshSecret),
		accessTokenExpiry:  accessExpiry,
		refreshTokenExpiry: refreshExpiry,
		now:                time.Now,
	}
}

func (tm *TokenManager) secretFor(tokenType string) []byte {
	if tokenType == models.TokenTypeRefresh {
		return tm.refreshSecret
	}
	return tm.accessSecret
}

// GenerateAccessToken creates a short-lived access token carrying the user's
// identity plus username and display name for client convenience.
func (tm *TokenManager) GenerateAccessToken(user *models.User) (string, error) {
	now := tm.now()
	claims := &models.TokenClaims{
		Type:     models.TokenTypeAccess,
		UserID:   user.ID,
		Email:    user.Email,
		Mobile:   user.Mobile,
		Username: user.Username,
		Name:     user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.accessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.accessSecret)
	if err != nil {
		return "", err
	}
	return signed, nil
}

// GenerateRefreshToken creates a long-lived refresh token carrying only the
// identity fields.
func (tm *TokenManager) GenerateRefreshToken(user *models.User) (string, error) {
	now := tm.now()
	claims := &models.TokenClaims{
		Type:   models.TokenTypeRefresh,
		UserID: user.ID,
		Email:  user.Email,
		Mobile: user.Mobile,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.refreshTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.refreshSecret)
	if err != nil {
		return "", err
	}
	return signed, nil
}

// ValidateToken verifies signature, expiry and the type discriminator.
// Returns ErrTokenExpired, ErrTokenMalformed or ErrTokenTypeMismatch.
func (tm *TokenManager) ValidateToken(tokenString, expectedType string) (*models.TokenClaims, error) {
	claims, err := tm.parseWithSecret(tokenString, tm.secretFor(expectedType))
	if err != nil {
		if errors.Is(err, models.ErrTokenExpired) {
			return nil, err
		}
		// A token of the other kind fails the signature check before the
		// type check ever runs. Re-parse with the other secret so callers
		// see a type mismatch instead of a generic malformed error. No
		// claims are ever returned from this path.
		if other, otherErr := tm.parseWithSecret(tokenString, tm.otherSecret(expectedType)); otherErr == nil && other.Type != expectedType {
			return nil, models.ErrTokenTypeMismatch
		}
		return nil, models.ErrTokenMalformed
	}

	if claims.Type != expectedType {
		return nil, models.ErrTokenTypeMismatch
	}

	return claims, nil
}

func (tm *TokenManager) parseWithSecret(tokenString string, secret []byte) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, models.ErrTokenMalformed
		}
		return secret, nil
	}, jwt.WithTimeFunc(tm.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, models.ErrTokenExpired
		}
		return nil, models.ErrTokenMalformed
	}
	if !token.Valid {
		return nil, models.ErrTokenMalformed
	}
	return claims, nil
}

func (tm *TokenManager) otherSecret(expectedType string) []byte {
	if expectedType == models.TokenTypeRefresh {
		return tm.accessSecret
	}
	return tm.refreshSecret
}
