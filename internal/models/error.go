package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Token verification errors
	ErrTokenExpired      = errors.New("token has expired")
	ErrTokenMalformed    = errors.New("token is malformed")
	ErrTokenTypeMismatch = errors.New("token type mismatch")

	// One-time credential errors
	ErrInvalidCode          = errors.New("invalid verification code")
	ErrCodeExpired          = errors.New("verification code has expired")
	ErrAlreadyVerified      = errors.New("account is already verified")
	ErrLinkInvalidOrExpired = errors.New("invalid or expired magic link")

	// Account state errors
	ErrNotVerified      = errors.New("account is not verified")
	ErrInvalidTwoFACode = errors.New("invalid two-factor code")
	ErrTwoFANotEnrolled = errors.New("two-factor authentication not enrolled")

	// Delivery and limit errors
	ErrRateLimitExceeded  = errors.New("rate limit exceeded")
	ErrNotificationFailed = errors.New("failed to deliver notification")
)

// OTPRateLimitError reports how long a mobile identity must wait before the
// next one-time code can be issued. Matches ErrRateLimitExceeded under
// errors.Is.
type OTPRateLimitError struct {
	RetryAfterMinutes int
}

func (e *OTPRateLimitError) Error() string {
	return "too many verification codes requested"
}

func (e *OTPRateLimitError) Is(target error) bool {
	return target == ErrRateLimitExceeded
}
