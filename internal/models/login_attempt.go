package models

import "time"

// Failure reason tags recorded on login attempts (audit-only, never
// returned to callers).
const (
	FailureInvalidLoginFormat = "invalid_login_format"
	FailureUnknownLoginNumber = "unknown_login_number"
	FailureRoleMismatch       = "role_mismatch"
	FailureAccountInactive    = "account_inactive"
	FailureAccountLocked      = "account_locked"
	FailureInvalidPassword    = "invalid_password"
)

// LoginAttempt is an append-only audit record of a single login attempt.
// Rows are inserted for every attempt, including ones whose login
// identifier never resolved to an account.
type LoginAttempt struct {
	ID            string
	AccountID     *string // nil when the login number resolved to no account
	LoginInput    string  // the identifier exactly as submitted
	IPAddress     string
	UserAgent     string
	Success       bool
	FailureReason *string
	AttemptTime   time.Time
}

// LockoutStatus is the result of a lockout policy check.
type LockoutStatus struct {
	IsLocked          bool
	LockUntil         *time.Time
	RemainingAttempts int
}
