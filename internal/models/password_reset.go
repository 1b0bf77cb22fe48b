package models

import "time"

// PasswordResetToken is a single-use, short-lived credential reset grant.
// Only the SHA-256 hash of the token value is stored.
type PasswordResetToken struct {
	ID        string
	AccountID string
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// Usable reports whether the token can still be consumed at the given
// instant.
func (t *PasswordResetToken) Usable(now time.Time) bool {
	return t.UsedAt == nil && t.ExpiresAt.After(now)
}
