package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// Token type discriminator values carried in the "type" claim. A refresh
// token must never pass validation where an access token is expected, and
// vice versa.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// TokenClaims is the signed payload for both token kinds. Access tokens
// additionally carry username and display name for client convenience;
// refresh tokens carry only the identity fields.
type TokenClaims struct {
	Type     string `json:"type"`
	UserID   string `json:"user_id"`
	Email    string `json:"email,omitempty"`
	Mobile   string `json:"mobile,omitempty"`
	Username string `json:"username,omitempty"`
	Name     string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// RateLimitResult reports the outcome of a fixed-window rate limit check.
type RateLimitResult struct {
	Allowed           bool
	Limit             int
	Remaining         int
	RetryAfterSeconds int
}
