package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/pslattery/gatehouse/internal/auth"
	"github.com/pslattery/gatehouse/internal/models"
)

// TwoFactorService manages authenticator-app enrollment
type TwoFactorService struct {
	repo   UserRepository
	totp   *auth.TOTPManager
	logger *slog.Logger
}

func NewTwoFactorService(repo UserRepository, totp *auth.TOTPManager, logger *slog.Logger) *TwoFactorService {
	return &TwoFactorService{
		repo:   repo,
		totp:   totp,
		logger: logger,
	}
}

// TwoFASetupResponse carries what the client needs to configure an
// authenticator app. The plain secret is returned exactly once, at
// enrollment.
type TwoFASetupResponse struct {
	Secret string `json:"secret"`
	QRCode string `json:"qr_code"`
}

// Enable provisions a TOTP secret for the account. The factor stays off
// until Confirm checks a code produced from this secret, so a user who
// never finishes configuring an authenticator app can still log in.
// Re-provisioning before confirmation replaces the pending secret.
func (s *TwoFactorService) Enable(ctx context.Context, userID string) (*TwoFASetupResponse, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get user", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	encrypted, nonce, secret, qrCode, err := s.totp.GenerateSecretWithQR(user.Identity())
	if err != nil {
		s.logger.Error("failed to provision TOTP secret",
			slog.String("user_id", userID),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.repo.SetTwoFASecret(ctx, userID, encrypted, nonce); err != nil {
		s.logger.Error("failed to store TOTP secret",
			slog.String("user_id", userID),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return &TwoFASetupResponse{
		Secret: secret,
		QRCode: qrCode,
	}, nil
}

// Confirm activates the factor once the user proves their authenticator
// app holds the provisioned secret.
func (s *TwoFactorService) Confirm(ctx context.Context, userID, code string) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to get user", slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if len(user.TOTPSecretEnc) == 0 {
		return models.ErrTwoFANotEnrolled
	}

	secret, err := s.totp.DecryptSecret(user.TOTPSecretEnc, user.TOTPSecretNonce)
	if err != nil {
		s.logger.Error("failed to decrypt TOTP secret",
			slog.String("user_id", userID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	valid, err := s.totp.ValidateCode(secret, code)
	if err != nil || !valid {
		return models.ErrInvalidTwoFACode
	}

	if err := s.repo.ActivateTwoFA(ctx, userID); err != nil {
		s.logger.Error("failed to activate two-factor",
			slog.String("user_id", userID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	return nil
}

// Disable turns the factor off. A valid current code is required so a
// stolen session alone cannot weaken the account.
func (s *TwoFactorService) Disable(ctx context.Context, userID, code string) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to get user", slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if !user.Is2FAEnabled || len(user.TOTPSecretEnc) == 0 {
		return models.ErrTwoFANotEnrolled
	}

	secret, err := s.totp.DecryptSecret(user.TOTPSecretEnc, user.TOTPSecretNonce)
	if err != nil {
		s.logger.Error("failed to decrypt TOTP secret",
			slog.String("user_id", userID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	valid, err := s.totp.ValidateCode(secret, code)
	if err != nil || !valid {
		return models.ErrInvalidTwoFACode
	}

	if err := s.repo.DisableTwoFA(ctx, userID); err != nil {
		s.logger.Error("failed to disable two-factor",
			slog.String("user_id", userID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	return nil
}
