package models

import "time"

// Session records one successful login. Rows are immutable except for
// IsActive, which transitions true to false exactly once on revocation.
type Session struct {
	ID        string
	UserID    string
	Device    string
	OS        string
	Browser   string
	Location  string
	IsActive  bool
	CreatedAt time.Time
}
