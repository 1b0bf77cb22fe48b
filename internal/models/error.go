package models

import (
	"errors"
	"time"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Login pipeline errors
	ErrInvalidLoginFormat = errors.New("invalid login identifier format")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account is temporarily locked")

	// Authentication middleware errors, one per rejection branch
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenMalformed = errors.New("token malformed")
	ErrSessionExpired = errors.New("session expired or revoked")

	// Password reset errors
	ErrInvalidOrExpiredToken = errors.New("reset token invalid or expired")
)

// AccountLockedError carries the unlock timestamp for a locked account.
// It matches ErrAccountLocked under errors.Is.
type AccountLockedError struct {
	LockUntil time.Time
}

func (e *AccountLockedError) Error() string {
	return "account is temporarily locked"
}

func (e *AccountLockedError) Is(target error) bool {
	return target == ErrAccountLocked
}

// InvalidCredentialsError reports how many attempts remain before lockout.
// It matches ErrInvalidCredentials under errors.Is.
type InvalidCredentialsError struct {
	RemainingAttempts int
}

func (e *InvalidCredentialsError) Error() string {
	return "invalid credentials"
}

func (e *InvalidCredentialsError) Is(target error) bool {
	return target == ErrInvalidCredentials
}
