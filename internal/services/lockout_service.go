package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/pestopshq/pestops/internal/config"
	"github.com/pestopshq/pestops/internal/models"
)

// LoginAttemptRepository defines the interface for the attempt audit trail
type LoginAttemptRepository interface {
	Record(ctx context.Context, attempt *models.LoginAttempt) error
	CountRecentFailures(ctx context.Context, accountID string, since time.Time) (int, error)
	CountRecentFailuresByIP(ctx context.Context, ipAddress string, since time.Time) (int, error)
	ListRecent(ctx context.Context, accountID string, limit int) ([]*models.LoginAttempt, error)
}

// ipFailureAlertThreshold is the windowed per-IP failure count, across all
// accounts, at which a credential-stuffing warning is logged. Deliberately
// above the per-account lock threshold: single-account brute force locks
// long before this fires.
const ipFailureAlertThreshold = 10

// LockoutService implements the progressive lockout policy: failed attempts
// within a trailing window lock the account for a fixed duration. It is the
// only component that transitions lock state, and the attempt recorder is
// the only place the failure counter moves upward.
type LockoutService struct {
	accounts AccountRepository
	attempts LoginAttemptRepository
	config   config.LockoutConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewLockoutService creates a new LockoutService
func NewLockoutService(accounts AccountRepository, attempts LoginAttemptRepository, cfg config.LockoutConfig, logger *slog.Logger) *LockoutService {
	return &LockoutService{
		accounts: accounts,
		attempts: attempts,
		config:   cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Check reports the lock state for a login number. A number that resolves to
// no account reports not-locked with a full budget: lock state must never
// leak account existence.
func (s *LockoutService) Check(ctx context.Context, loginNumber int) (*models.LockoutStatus, error) {
	account, err := s.accounts.GetByLoginNumber(ctx, loginNumber)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return &models.LockoutStatus{RemainingAttempts: s.config.MaxFailedAttempts}, nil
		}
		return nil, err
	}

	return s.CheckAccount(ctx, account)
}

// CheckAccount evaluates the lock state of a resolved account:
// live lock -> locked; expired lock -> clear it and report a full budget;
// otherwise count failures in the window and lock on threshold. The account's
// in-memory lock fields are updated to mirror whatever was written.
func (s *LockoutService) CheckAccount(ctx context.Context, account *models.Account) (*models.LockoutStatus, error) {
	now := s.now()

	if account.LockedUntil != nil {
		if account.LockedUntil.After(now) {
			return &models.LockoutStatus{IsLocked: true, LockUntil: account.LockedUntil}, nil
		}

		// Lock has passed: counter and both lock fields clear together.
		if err := s.accounts.ClearExpiredLock(ctx, account.ID); err != nil {
			return nil, err
		}
		account.LockedUntil = nil
		account.AccountLockedAt = nil
		account.FailedLoginAttempts = 0

		return &models.LockoutStatus{RemainingAttempts: s.config.MaxFailedAttempts}, nil
	}

	count, err := s.failureCount(ctx, account, now)
	if err != nil {
		return nil, err
	}

	if count >= s.config.MaxFailedAttempts {
		return s.applyLock(ctx, account, now, count)
	}

	return &models.LockoutStatus{RemainingAttempts: s.config.MaxFailedAttempts - count}, nil
}

// RecordFailure appends a failed attempt, bumps the counter, and re-evaluates
// the threshold. The returned status is what the login response reports, so
// this must complete before the caller responds.
func (s *LockoutService) RecordFailure(ctx context.Context, account *models.Account, attempt *models.LoginAttempt) (*models.LockoutStatus, error) {
	if err := s.attempts.Record(ctx, attempt); err != nil {
		return nil, err
	}
	s.noteIPFailureVolume(ctx, attempt)

	newCount, err := s.accounts.IncrementFailedAttempts(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	account.FailedLoginAttempts = newCount

	now := s.now()
	count, err := s.failureCount(ctx, account, now)
	if err != nil {
		return nil, err
	}

	if count >= s.config.MaxFailedAttempts {
		return s.applyLock(ctx, account, now, count)
	}

	return &models.LockoutStatus{RemainingAttempts: s.config.MaxFailedAttempts - count}, nil
}

// RecordLockedFailure appends an attempt made against an already-locked
// account. The counter still moves, but no lock transition is attempted: the
// existing lock stands as-is.
func (s *LockoutService) RecordLockedFailure(ctx context.Context, account *models.Account, attempt *models.LoginAttempt) error {
	if err := s.attempts.Record(ctx, attempt); err != nil {
		return err
	}
	s.noteIPFailureVolume(ctx, attempt)

	_, err := s.accounts.IncrementFailedAttempts(ctx, account.ID)
	return err
}

// RecordUnresolved appends an attempt whose identifier never resolved to an
// account (malformed format or unknown login number). There is no counter to
// move, but the row keeps brute-force probing visible.
func (s *LockoutService) RecordUnresolved(ctx context.Context, attempt *models.LoginAttempt) error {
	if err := s.attempts.Record(ctx, attempt); err != nil {
		return err
	}
	s.noteIPFailureVolume(ctx, attempt)
	return nil
}

// noteIPFailureVolume flags source IPs whose windowed failure count, summed
// over every account they touched, crosses the alert threshold. Per-account
// lockout never sees distributed probing; this is the cross-account view.
// Best-effort: a count error must not turn into a login error.
func (s *LockoutService) noteIPFailureVolume(ctx context.Context, attempt *models.LoginAttempt) {
	if attempt.IPAddress == "" {
		return
	}

	since := s.now().Add(-s.config.AttemptWindow)
	count, err := s.attempts.CountRecentFailuresByIP(ctx, attempt.IPAddress, since)
	if err != nil || count < ipFailureAlertThreshold {
		return
	}

	s.logger.Warn("high login failure volume from single ip",
		slog.String("ip_address", attempt.IPAddress),
		slog.Int("failed_attempts", count),
		slog.Duration("window", s.config.AttemptWindow))
}

// RecordSuccess appends the successful attempt and fully absolves prior
// failures: counter and lock fields clear in one statement.
func (s *LockoutService) RecordSuccess(ctx context.Context, accountID string, attempt *models.LoginAttempt) error {
	if err := s.attempts.Record(ctx, attempt); err != nil {
		return err
	}

	return s.accounts.RecordLoginSuccess(ctx, accountID)
}

// Unlock force-clears an account's lock, admin-initiated.
func (s *LockoutService) Unlock(ctx context.Context, loginNumber int) (*models.Account, error) {
	account, err := s.accounts.GetByLoginNumber(ctx, loginNumber)
	if err != nil {
		return nil, err
	}

	if err := s.accounts.Unlock(ctx, account.ID); err != nil {
		return nil, err
	}

	s.logger.Info("account unlocked",
		slog.String("account_id", account.ID),
		slog.Int("login_number", account.LoginNumber))

	return account, nil
}

// History returns the newest attempt rows for an account, for the support
// tooling view.
func (s *LockoutService) History(ctx context.Context, accountID string, limit int) ([]*models.LoginAttempt, error) {
	return s.attempts.ListRecent(ctx, accountID, limit)
}

// Status resolves an account and evaluates its lock state in one call, for
// the admin support endpoint. Unlike Check, an unknown login number is an
// error here: the caller is staff, not an anonymous prober.
func (s *LockoutService) Status(ctx context.Context, loginNumber int) (*models.Account, *models.LockoutStatus, error) {
	account, err := s.accounts.GetByLoginNumber(ctx, loginNumber)
	if err != nil {
		return nil, nil, err
	}

	status, err := s.CheckAccount(ctx, account)
	if err != nil {
		return nil, nil, err
	}

	return account, status, nil
}

// failureCount takes the larger of the denormalized counter and a fresh
// window query. The two drift under concurrency; the max is the defensive
// hedge.
func (s *LockoutService) failureCount(ctx context.Context, account *models.Account, now time.Time) (int, error) {
	windowCount, err := s.attempts.CountRecentFailures(ctx, account.ID, now.Add(-s.config.AttemptWindow))
	if err != nil {
		return 0, err
	}

	count := account.FailedLoginAttempts
	if windowCount > count {
		count = windowCount
	}
	return count, nil
}

// applyLock transitions the account to locked via a conditional UPDATE. Two
// requests racing past the threshold both land here; the condition picks a
// single winner and the loser still reports locked.
func (s *LockoutService) applyLock(ctx context.Context, account *models.Account, now time.Time, count int) (*models.LockoutStatus, error) {
	until := now.Add(s.config.LockDuration)

	applied, err := s.accounts.LockIfUnlocked(ctx, account.ID, until)
	if err != nil {
		return nil, err
	}

	if applied {
		account.LockedUntil = &until
		account.AccountLockedAt = &now
		s.logger.Warn("account locked",
			slog.String("account_id", account.ID),
			slog.Int("failed_attempts", count),
			slog.Time("locked_until", until))
	}

	return &models.LockoutStatus{IsLocked: true, LockUntil: &until}, nil
}
