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

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{pool: db.Pool}
}

const userColumns = `id, email, mobile, username, password_hash, name, avatar_url,
		is_verified, is_2fa_enabled, totp_secret_enc, totp_secret_nonce,
		sso_provider, sso_subject,
		otp, otp_expires_at, magic_link, magic_link_expires_at, magic_link_used,
		otp_attempts, last_otp_request_at, last_login_at, created_at, updated_at`

// rowScanner interface for scanning user rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanUserRow handles nullable fields and populates a User model from a database row
func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User
	var email, mobile, username, passwordHash, avatarURL *string
	var ssoProvider, ssoSubject, otp, magicLink *string

	err := scanner.Scan(
		&user.ID, &email, &mobile, &username, &passwordHash, &user.Name, &avatarURL,
		&user.IsVerified, &user.Is2FAEnabled, &user.TOTPSecretEnc, &user.TOTPSecretNonce,
		&ssoProvider, &ssoSubject,
		&otp, &user.OTPExpiresAt, &magicLink, &user.MagicLinkExpiresAt, &user.MagicLinkUsed,
		&user.OTPAttempts, &user.LastOTPRequestAt, &user.LastLoginAt,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	setIfPresent := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setIfPresent(&user.Email, email)
	setIfPresent(&user.Mobile, mobile)
	setIfPresent(&user.Username, username)
	setIfPresent(&user.PasswordHash, passwordHash)
	setIfPresent(&user.AvatarURL, avatarURL)
	setIfPresent(&user.SSOProvider, ssoProvider)
	setIfPresent(&user.SSOSubject, ssoSubject)
	setIfPresent(&user.OTP, otp)
	setIfPresent(&user.MagicLink, magicLink)

	return &user, nil
}

// nullable converts an empty string to a SQL NULL
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *UserRepository) getBy(ctx context.Context, where string, args ...interface{}) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where
	return scanUserRow(r.pool.QueryRow(ctx, query, args...))
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getBy(ctx, `id = $1`, id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getBy(ctx, `email = $1`, email)
}

func (r *UserRepository) GetByMobile(ctx context.Context, mobile string) (*models.User, error) {
	return r.getBy(ctx, `mobile = $1`, mobile)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getBy(ctx, `username = $1`, username)
}

// GetByIdentifier resolves a login identifier against email, mobile and
// username in one query.
func (r *UserRepository) GetByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	return r.getBy(ctx, `email = $1 OR mobile = $1 OR username = $1`, identifier)
}

func (r *UserRepository) GetByMagicLink(ctx context.Context, token string) (*models.User, error) {
	return r.getBy(ctx, `magic_link = $1`, token)
}

func (r *UserRepository) GetBySSOSubject(ctx context.Context, provider, subject string) (*models.User, error) {
	return r.getBy(ctx, `sso_provider = $1 AND sso_subject = $2`, provider, subject)
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = uuid.New().String()

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	query := `
		INSERT INTO users (id, email, mobile, username, password_hash, name, avatar_url,
			is_verified, otp, otp_expires_at, otp_attempts, last_otp_request_at,
			sso_provider, sso_subject, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING ` + userColumns

	created, err := scanUserRow(r.pool.QueryRow(ctx, query,
		user.ID, nullable(user.Email), nullable(user.Mobile), nullable(user.Username),
		nullable(user.PasswordHash), user.Name, nullable(user.AvatarURL),
		user.IsVerified, nullable(user.OTP), user.OTPExpiresAt,
		user.OTPAttempts, user.LastOTPRequestAt,
		nullable(user.SSOProvider), nullable(user.SSOSubject),
		user.CreatedAt, user.UpdatedAt,
	))
	if err != nil {
		return nil, err
	}

	return created, nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// List returns a page of user summaries ordered by creation time.
// Sensitive columns are never selected.
func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]*models.UserSummary, error) {
	query := `
		SELECT id, email, mobile, username, name, avatar_url, is_verified, created_at
		FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2
	`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	summaries := make([]*models.UserSummary, 0)
	for rows.Next() {
		var s models.UserSummary
		var email, mobile, username, avatarURL *string
		if err := rows.Scan(&s.ID, &email, &mobile, &username, &s.Name, &avatarURL, &s.IsVerified, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		if email != nil {
			s.Email = *email
		}
		if mobile != nil {
			s.Mobile = *mobile
		}
		if username != nil {
			s.Username = *username
		}
		if avatarURL != nil {
			s.AvatarURL = *avatarURL
		}
		summaries = append(summaries, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return summaries, nil
}

func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

// SetOTP stores a fresh one-time code and bumps the issuance counters.
func (r *UserRepository) SetOTP(ctx context.Context, id, otp string, expiresAt time.Time, attempts int, requestedAt time.Time) error {
	query := `
		UPDATE users
		SET otp = $2, otp_expires_at = $3, otp_attempts = $4, last_otp_request_at = $5, updated_at = NOW()
		WHERE id = $1
	`
	return r.exec(ctx, query, id, otp, expiresAt, attempts, requestedAt)
}

// ClearOTP discards any stored one-time code.
func (r *UserRepository) ClearOTP(ctx context.Context, id string) error {
	query := `
		UPDATE users SET otp = NULL, otp_expires_at = NULL, updated_at = NOW()
		WHERE id = $1
	`
	return r.exec(ctx, query, id)
}

// MarkVerified flips the verification flag and clears the consumed code.
func (r *UserRepository) MarkVerified(ctx context.Context, id string) error {
	query := `
		UPDATE users
		SET is_verified = TRUE, otp = NULL, otp_expires_at = NULL, updated_at = NOW()
		WHERE id = $1
	`
	return r.exec(ctx, query, id)
}

// SetMagicLink stores a fresh link token, resetting the used flag.
func (r *UserRepository) SetMagicLink(ctx context.Context, id, token string, expiresAt time.Time) error {
	query := `
		UPDATE users
		SET magic_link = $2, magic_link_expires_at = $3, magic_link_used = FALSE, updated_at = NOW()
		WHERE id = $1
	`
	return r.exec(ctx, query, id, token, expiresAt)
}

// MarkMagicLinkUsed consumes the link. The link is single-use: the update
// only applies while the used flag is still false, so a second redemption
// reports not found.
func (r *UserRepository) MarkMagicLinkUsed(ctx context.Context, id string) error {
	query := `
		UPDATE users SET magic_link_used = TRUE, updated_at = NOW()
		WHERE id = $1 AND magic_link_used = FALSE
	`
	return r.exec(ctx, query, id)
}

// UpdatePassword replaces the stored hash and clears the consumed reset code.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query := `
		UPDATE users
		SET password_hash = $2, otp = NULL, otp_expires_at = NULL, updated_at = NOW()
		WHERE id = $1
	`
	return r.exec(ctx, query, id, passwordHash)
}

// UpdateProfile applies the mutable profile fields.
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, name, username, avatarURL string) error {
	query := `
		UPDATE users
		SET name = $2, username = $3, avatar_url = $4, updated_at = NOW()
		WHERE id = $1
	`
	return r.exec(ctx, query, id, name, nullable(username), nullable(avatarURL))
}

// SetTwoFASecret stores the encrypted TOTP secret without enabling the
// factor. The factor only starts gating logins once ActivateTwoFA runs.
func (r *UserRepository) SetTwoFASecret(ctx context.Context, id string, secretEnc, nonce []byte) error {
	query := `
		UPDATE users
		SET is_2fa_enabled = FALSE, totp_secret_enc = $2, totp_secret_nonce = $3, updated_at = NOW()
		WHERE id = $1
	`
	return r.exec(ctx, query, id, secretEnc, nonce)
}

// ActivateTwoFA turns the factor on for an account with a stored secret.
func (r *UserRepository) ActivateTwoFA(ctx context.Context, id string) error {
	query := `
		UPDATE users
		SET is_2fa_enabled = TRUE, updated_at = NOW()
		WHERE id = $1
	`
	return r.exec(ctx, query, id)
}

// DisableTwoFA clears the factor and discards the stored secret.
func (r *UserRepository) DisableTwoFA(ctx context.Context, id string) error {
	query := `
		UPDATE users
		SET is_2fa_enabled = FALSE, totp_secret_enc = NULL, totp_secret_nonce = NULL, updated_at = NOW()
		WHERE id = $1
	`
	return r.exec(ctx, query, id)
}

// RefreshSSOProfile overwrites name and avatar with the values the
// identity provider reported on this login. Empty claims leave the
// stored values in place.
func (r *UserRepository) RefreshSSOProfile(ctx context.Context, id, name, avatarURL string) error {
	query := `
		UPDATE users
		SET name = COALESCE(NULLIF($2, ''), name),
		    avatar_url = COALESCE(NULLIF($3, ''), avatar_url),
		    updated_at = NOW()
		WHERE id = $1
	`
	return r.exec(ctx, query, id, name, avatarURL)
}

// LinkSSOIdentity attaches a provider identity to an existing account.
func (r *UserRepository) LinkSSOIdentity(ctx context.Context, id, provider, subject string) error {
	query := `
		UPDATE users
		SET sso_provider = $2, sso_subject = $3, is_verified = TRUE, updated_at = NOW()
		WHERE id = $1
	`
	return r.exec(ctx, query, id, provider, subject)
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE users SET last_login_at = $2, updated_at = NOW() WHERE id = $1`
	return r.exec(ctx, query, id, at)
}

// PurgeExpiredCredentials clears OTPs and magic links whose expiry has
// passed. Used by the background cleanup job.
func (r *UserRepository) PurgeExpiredCredentials(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE users
		SET otp = CASE WHEN otp_expires_at < $1 THEN NULL ELSE otp END,
		    otp_expires_at = CASE WHEN otp_expires_at < $1 THEN NULL ELSE otp_expires_at END,
		    magic_link = CASE WHEN magic_link_expires_at < $1 THEN NULL ELSE magic_link END,
		    magic_link_expires_at = CASE WHEN magic_link_expires_at < $1 THEN NULL ELSE magic_link_expires_at END
		WHERE otp_expires_at < $1 OR magic_link_expires_at < $1
	`
	result, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}

func (r *UserRepository) exec(ctx context.Context, query string, args ...interface{}) error {
	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
