package models

import "time"

// AccountDeletion is a write-once audit record preserved after the owning
// user row is deleted.
type AccountDeletion struct {
	ID        string
	UserID    string
	Email     string
	Reason    string
	DeletedAt time.Time
}
