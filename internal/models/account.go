package models

import (
	"time"
)

// Account roles. "both" accounts may establish a session under either
// the admin or the pco context.
const (
	RoleAdmin = "admin"
	RolePCO   = "pco"
	RoleBoth  = "both"
)

// Account statuses
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Account is one login-capable identity: an office administrator, a field
// technician (PCO), or someone acting as both.
type Account struct {
	ID                  string
	LoginNumber         int // unique numeric suffix of the login identifier
	Name                string
	Email               string
	Role                string // "admin", "pco", "both"
	Status              string // "active", "inactive"
	PasswordHash        string
	FailedLoginAttempts int        // denormalized failure counter
	LockedUntil         *time.Time // set while the account is locked
	AccountLockedAt     *time.Time // when the current lock was applied
	PasswordChangedAt   *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// PermitsRole reports whether the account may log in under the given
// role context.
func (a *Account) PermitsRole(roleContext string) bool {
	if a.Role == RoleBoth {
		return roleContext == RoleAdmin || roleContext == RolePCO
	}
	return a.Role == roleContext
}
