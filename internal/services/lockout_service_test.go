package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pestopshq/pestops/internal/config"
	"github.com/pestopshq/pestops/internal/models"
)

func testLockoutConfig() config.LockoutConfig {
	return config.LockoutConfig{
		MaxFailedAttempts: 5,
		AttemptWindow:     15 * time.Minute,
		LockDuration:      15 * time.Minute,
	}
}

func newLockoutService(accounts *MockAccountRepository, attempts *MockLoginAttemptRepository) *LockoutService {
	return NewLockoutService(accounts, attempts, testLockoutConfig(), discardLogger())
}

func failedAttempt(account *models.Account) *models.LoginAttempt {
	reason := models.FailureInvalidPassword
	return &models.LoginAttempt{
		AccountID:     &account.ID,
		LoginInput:    "pco67890",
		IPAddress:     "203.0.113.9",
		UserAgent:     "test",
		Success:       false,
		FailureReason: &reason,
		AttemptTime:   time.Now(),
	}
}

func TestLockoutService_Check_UnknownNumber(t *testing.T) {
	// Lock state must not reveal whether a login number exists.
	svc := newLockoutService(&MockAccountRepository{}, &MockLoginAttemptRepository{})

	status, err := svc.Check(context.Background(), 99999)
	require.NoError(t, err)

	assert.False(t, status.IsLocked)
	assert.Equal(t, 5, status.RemainingAttempts)
}

func TestLockoutService_CheckAccount_LiveLock(t *testing.T) {
	account := NewTestAccountLocked("acct-1", 67890, models.RolePCO, 10*time.Minute)
	svc := newLockoutService(&MockAccountRepository{}, &MockLoginAttemptRepository{})

	status, err := svc.CheckAccount(context.Background(), account)
	require.NoError(t, err)

	assert.True(t, status.IsLocked)
	require.NotNil(t, status.LockUntil)
	assert.Equal(t, *account.LockedUntil, *status.LockUntil)
}

func TestLockoutService_CheckAccount_ExpiredLockClears(t *testing.T) {
	account := NewTestAccountLocked("acct-1", 67890, models.RolePCO, -1*time.Minute)
	account.FailedLoginAttempts = 5

	cleared := false
	accounts := &MockAccountRepository{
		ClearExpiredLockFunc: func(ctx context.Context, id string) error {
			cleared = true
			assert.Equal(t, "acct-1", id)
			return nil
		},
	}
	svc := newLockoutService(accounts, &MockLoginAttemptRepository{})

	status, err := svc.CheckAccount(context.Background(), account)
	require.NoError(t, err)

	assert.True(t, cleared)
	assert.False(t, status.IsLocked)
	assert.Equal(t, 5, status.RemainingAttempts)

	// Counter and both lock fields clear together.
	assert.Nil(t, account.LockedUntil)
	assert.Nil(t, account.AccountLockedAt)
	assert.Zero(t, account.FailedLoginAttempts)
}

func TestLockoutService_CheckAccount_TakesMaxOfCounts(t *testing.T) {
	// Denormalized counter says 2, window query says 4: the larger wins.
	account := NewTestAccount("acct-1", 67890, models.RolePCO)
	account.FailedLoginAttempts = 2

	attempts := &MockLoginAttemptRepository{
		CountRecentFailuresFunc: func(ctx context.Context, accountID string, since time.Time) (int, error) {
			return 4, nil
		},
	}
	svc := newLockoutService(&MockAccountRepository{}, attempts)

	status, err := svc.CheckAccount(context.Background(), account)
	require.NoError(t, err)

	assert.False(t, status.IsLocked)
	assert.Equal(t, 1, status.RemainingAttempts)
}

func TestLockoutService_CheckAccount_ThresholdLocks(t *testing.T) {
	account := NewTestAccount("acct-1", 67890, models.RolePCO)
	account.FailedLoginAttempts = 5

	var lockedUntil time.Time
	accounts := &MockAccountRepository{
		LockIfUnlockedFunc: func(ctx context.Context, id string, until time.Time) (bool, error) {
			lockedUntil = until
			return true, nil
		},
	}
	svc := newLockoutService(accounts, &MockLoginAttemptRepository{})

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	status, err := svc.CheckAccount(context.Background(), account)
	require.NoError(t, err)

	assert.True(t, status.IsLocked)
	assert.Equal(t, base.Add(15*time.Minute), lockedUntil)
	assert.Equal(t, base.Add(15*time.Minute), *status.LockUntil)
}

func TestLockoutService_RecordFailure_BelowThreshold(t *testing.T) {
	account := NewTestAccount("acct-1", 67890, models.RolePCO)

	accounts := &MockAccountRepository{
		IncrementFailedAttemptsFunc: func(ctx context.Context, id string) (int, error) {
			return 3, nil
		},
	}
	attempts := &MockLoginAttemptRepository{}
	svc := newLockoutService(accounts, attempts)

	status, err := svc.RecordFailure(context.Background(), account, failedAttempt(account))
	require.NoError(t, err)

	assert.False(t, status.IsLocked)
	assert.Equal(t, 2, status.RemainingAttempts)
	assert.Len(t, attempts.Recorded, 1)
	assert.Equal(t, 3, account.FailedLoginAttempts)
}

func TestLockoutService_RecordFailure_CrossesThreshold(t *testing.T) {
	account := NewTestAccount("acct-1", 67890, models.RolePCO)

	lockApplied := false
	accounts := &MockAccountRepository{
		IncrementFailedAttemptsFunc: func(ctx context.Context, id string) (int, error) {
			return 5, nil
		},
		LockIfUnlockedFunc: func(ctx context.Context, id string, until time.Time) (bool, error) {
			lockApplied = true
			return true, nil
		},
	}
	svc := newLockoutService(accounts, &MockLoginAttemptRepository{})

	status, err := svc.RecordFailure(context.Background(), account, failedAttempt(account))
	require.NoError(t, err)

	assert.True(t, lockApplied)
	assert.True(t, status.IsLocked)
	require.NotNil(t, status.LockUntil)
	assert.NotNil(t, account.LockedUntil)
}

func TestLockoutService_RecordFailure_RaceLoserStillReportsLocked(t *testing.T) {
	// Two requests cross the threshold together; the conditional update lets
	// only one write the lock, but both must answer "locked".
	account := NewTestAccount("acct-1", 67890, models.RolePCO)

	accounts := &MockAccountRepository{
		IncrementFailedAttemptsFunc: func(ctx context.Context, id string) (int, error) {
			return 6, nil
		},
		LockIfUnlockedFunc: func(ctx context.Context, id string, until time.Time) (bool, error) {
			return false, nil
		},
	}
	svc := newLockoutService(accounts, &MockLoginAttemptRepository{})

	status, err := svc.RecordFailure(context.Background(), account, failedAttempt(account))
	require.NoError(t, err)

	assert.True(t, status.IsLocked)
	// The loser did not write, so the account's in-memory lock stays unset.
	assert.Nil(t, account.LockedUntil)
}

func TestLockoutService_RecordSuccess_AbsolvesFailures(t *testing.T) {
	resetCalled := false
	accounts := &MockAccountRepository{
		RecordLoginSuccessFunc: func(ctx context.Context, id string) error {
			resetCalled = true
			assert.Equal(t, "acct-1", id)
			return nil
		},
	}
	attempts := &MockLoginAttemptRepository{}
	svc := newLockoutService(accounts, attempts)

	attempt := &models.LoginAttempt{Success: true}
	require.NoError(t, svc.RecordSuccess(context.Background(), "acct-1", attempt))

	assert.True(t, resetCalled)
	assert.Len(t, attempts.Recorded, 1)
	assert.True(t, attempts.Recorded[0].Success)
}

func TestLockoutService_RecordUnresolved_InsertsRowOnly(t *testing.T) {
	incremented := false
	accounts := &MockAccountRepository{
		IncrementFailedAttemptsFunc: func(ctx context.Context, id string) (int, error) {
			incremented = true
			return 0, nil
		},
	}
	attempts := &MockLoginAttemptRepository{}
	svc := newLockoutService(accounts, attempts)

	reason := models.FailureUnknownLoginNumber
	attempt := &models.LoginAttempt{LoginInput: "pco424242", FailureReason: &reason}
	require.NoError(t, svc.RecordUnresolved(context.Background(), attempt))

	assert.False(t, incremented)
	assert.Len(t, attempts.Recorded, 1)
	assert.Nil(t, attempts.Recorded[0].AccountID)
}

func TestLockoutService_RecordFailure_ChecksIPVolume(t *testing.T) {
	account := NewTestAccount("acct-1", 67890, models.RolePCO)
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	var gotIP string
	var gotSince time.Time
	attempts := &MockLoginAttemptRepository{
		CountRecentFailuresByIPFunc: func(ctx context.Context, ip string, since time.Time) (int, error) {
			gotIP = ip
			gotSince = since
			return ipFailureAlertThreshold, nil
		},
	}
	svc := newLockoutService(&MockAccountRepository{}, attempts)
	svc.now = func() time.Time { return base }

	_, err := svc.RecordFailure(context.Background(), account, failedAttempt(account))
	require.NoError(t, err)

	assert.Equal(t, "203.0.113.9", gotIP)
	assert.Equal(t, base.Add(-15*time.Minute), gotSince)
}

func TestLockoutService_RecordUnresolved_ChecksIPVolume(t *testing.T) {
	// Distributed probing never trips a per-account lock; the unresolved path
	// still has to feed the per-IP volume check.
	counted := false
	attempts := &MockLoginAttemptRepository{
		CountRecentFailuresByIPFunc: func(ctx context.Context, ip string, since time.Time) (int, error) {
			counted = true
			assert.Equal(t, "203.0.113.50", ip)
			return 1, nil
		},
	}
	svc := newLockoutService(&MockAccountRepository{}, attempts)

	reason := models.FailureUnknownLoginNumber
	attempt := &models.LoginAttempt{
		LoginInput:    "pco424242",
		IPAddress:     "203.0.113.50",
		FailureReason: &reason,
	}
	require.NoError(t, svc.RecordUnresolved(context.Background(), attempt))
	assert.True(t, counted)
}

func TestLockoutService_RecordFailure_IPVolumeErrorIgnored(t *testing.T) {
	account := NewTestAccount("acct-1", 67890, models.RolePCO)
	attempts := &MockLoginAttemptRepository{
		CountRecentFailuresByIPFunc: func(ctx context.Context, ip string, since time.Time) (int, error) {
			return 0, assert.AnError
		},
	}
	svc := newLockoutService(&MockAccountRepository{}, attempts)

	status, err := svc.RecordFailure(context.Background(), account, failedAttempt(account))
	require.NoError(t, err)
	assert.Equal(t, 4, status.RemainingAttempts)
}

func TestLockoutService_Unlock(t *testing.T) {
	account := NewTestAccountLocked("acct-1", 67890, models.RolePCO, 10*time.Minute)

	unlocked := false
	accounts := &MockAccountRepository{
		GetByLoginNumberFunc: func(ctx context.Context, loginNumber int) (*models.Account, error) {
			assert.Equal(t, 67890, loginNumber)
			return account, nil
		},
		UnlockFunc: func(ctx context.Context, id string) error {
			unlocked = true
			return nil
		},
	}
	svc := newLockoutService(accounts, &MockLoginAttemptRepository{})

	got, err := svc.Unlock(context.Background(), 67890)
	require.NoError(t, err)
	assert.True(t, unlocked)
	assert.Equal(t, account.ID, got.ID)
}

func TestLockoutService_Unlock_UnknownNumber(t *testing.T) {
	svc := newLockoutService(&MockAccountRepository{}, &MockLoginAttemptRepository{})

	_, err := svc.Unlock(context.Background(), 404404)
	assert.ErrorIs(t, err, models.ErrNotFound)
}
