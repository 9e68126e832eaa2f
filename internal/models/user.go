package models

import (
	"time"
)

type User struct {
	ID           string
	Email        string // empty = NULL (mobile-only accounts)
	Mobile       string // E.164, empty = NULL
	Username     string // empty = NULL
	PasswordHash string // empty = NULL for SSO-only or pre-verification accounts
	Name         string
	AvatarURL    string
	IsVerified   bool

	// Two-factor state. The TOTP secret is stored AES-GCM encrypted.
	Is2FAEnabled    bool
	TOTPSecretEnc   []byte
	TOTPSecretNonce []byte

	// SSO identity, set on first provider callback.
	SSOProvider string
	SSOSubject  string

	// One-time code state: OTP and OTPExpiresAt are both empty or both set.
	OTP          string
	OTPExpiresAt *time.Time

	// Magic-link state. A used link never authenticates again.
	MagicLink          string
	MagicLinkExpiresAt *time.Time
	MagicLinkUsed      bool

	// Mobile OTP issuance bookkeeping.
	OTPAttempts      int
	LastOTPRequestAt *time.Time

	LastLoginAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserSummary is the projection returned by user listings. It carries no
// credential or one-time-code fields.
type UserSummary struct {
	ID         string
	Email      string
	Mobile     string
	Username   string
	Name       string
	AvatarURL  string
	IsVerified bool
	CreatedAt  time.Time
}

// HasPassword reports whether the account can authenticate with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// OTPValid reports whether a stored OTP exists and has not expired at now.
func (u *User) OTPValid(now time.Time) bool {
	return u.OTP != "" && u.OTPExpiresAt != nil && !now.After(*u.OTPExpiresAt)
}

// Identity returns the user's primary contact identity, preferring email.
func (u *User) Identity() string {
	if u.Email != "" {
		return u.Email
	}
	return u.Mobile
}
