package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pestopshq/pestops/internal/models"
)

func newTestLockoutHandler(lockout LockoutServiceInterface, sessions SessionListerInterface) *LockoutHandler {
	return NewLockoutHandler(lockout, sessions, testLogger())
}

func TestLockoutHandler_Status_BadParam(t *testing.T) {
	h := newTestLockoutHandler(&MockLockoutService{}, &MockSessionLister{})

	for _, query := range []string{"", "login_number=abc", "login_number=-3"} {
		req := httptest.NewRequest(http.MethodGet, "/auth/lockout-status?"+query, nil)
		rec := httptest.NewRecorder()
		h.Status(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
}

func TestLockoutHandler_Status_UnknownAccount(t *testing.T) {
	h := newTestLockoutHandler(&MockLockoutService{}, &MockSessionLister{})

	req := httptest.NewRequest(http.MethodGet, "/auth/lockout-status?login_number=99999", nil)
	rec := httptest.NewRecorder()
	h.Status(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLockoutHandler_Status_LockedAccount(t *testing.T) {
	lockUntil := time.Now().Add(10 * time.Minute)
	reason := models.FailureInvalidPassword

	account := &models.Account{
		ID:                  "acct-1",
		LoginNumber:         12345,
		Name:                "Dana Vega",
		Role:                models.RoleBoth,
		Status:              models.StatusActive,
		FailedLoginAttempts: 5,
	}
	lockout := &MockLockoutService{
		StatusFunc: func(ctx context.Context, loginNumber int) (*models.Account, *models.LockoutStatus, error) {
			assert.Equal(t, 12345, loginNumber)
			return account, &models.LockoutStatus{IsLocked: true, LockUntil: &lockUntil}, nil
		},
		HistoryFunc: func(ctx context.Context, accountID string, limit int) ([]*models.LoginAttempt, error) {
			assert.Equal(t, "acct-1", accountID)
			return []*models.LoginAttempt{
				{AttemptTime: time.Now(), Success: false, FailureReason: &reason, IPAddress: "203.0.113.9"},
			}, nil
		},
	}
	sessions := &MockSessionLister{
		ListActiveFunc: func(ctx context.Context, accountID string) ([]*models.Session, error) {
			return []*models.Session{
				{ID: "sess-1", AccountID: accountID, RoleContext: models.RolePCO, LastActivity: time.Now(), ExpiresAt: time.Now().Add(time.Hour)},
			}, nil
		},
	}
	h := newTestLockoutHandler(lockout, sessions)

	req := httptest.NewRequest(http.MethodGet, "/auth/lockout-status?login_number=12345", nil)
	rec := httptest.NewRecorder()
	h.Status(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)

	assert.Equal(t, true, body["is_locked"])
	assert.NotEmpty(t, body["lock_until"])
	assert.Equal(t, float64(5), body["failed_attempts"])

	accountBody := body["account"].(map[string]interface{})
	assert.Equal(t, float64(12345), accountBody["login_number"])

	attempts := body["recent_attempts"].([]interface{})
	require.Len(t, attempts, 1)
	assert.Equal(t, models.FailureInvalidPassword, attempts[0].(map[string]interface{})["failure_reason"])

	active := body["active_sessions"].([]interface{})
	require.Len(t, active, 1)
	session := active[0].(map[string]interface{})
	assert.Equal(t, models.RolePCO, session["role_context"])
	assert.NotEmpty(t, session["last_activity"])
}

func TestLockoutHandler_Status_UnlockedAccountEmptyLists(t *testing.T) {
	account := &models.Account{ID: "acct-1", LoginNumber: 12345, Status: models.StatusActive}
	lockout := &MockLockoutService{
		StatusFunc: func(ctx context.Context, loginNumber int) (*models.Account, *models.LockoutStatus, error) {
			return account, &models.LockoutStatus{RemainingAttempts: 5}, nil
		},
	}
	h := newTestLockoutHandler(lockout, &MockSessionLister{})

	req := httptest.NewRequest(http.MethodGet, "/auth/lockout-status?login_number=12345", nil)
	rec := httptest.NewRecorder()
	h.Status(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)

	assert.Equal(t, false, body["is_locked"])
	assert.NotContains(t, body, "lock_until")
	assert.Equal(t, float64(5), body["remaining_attempts"])
	// Empty history and sessions marshal as [], not null.
	assert.Equal(t, []interface{}{}, body["recent_attempts"])
	assert.Equal(t, []interface{}{}, body["active_sessions"])
}

func TestLockoutHandler_Unlock(t *testing.T) {
	var unlocked int
	lockout := &MockLockoutService{
		UnlockFunc: func(ctx context.Context, loginNumber int) (*models.Account, error) {
			unlocked = loginNumber
			return &models.Account{ID: "acct-1", LoginNumber: loginNumber}, nil
		},
	}
	h := newTestLockoutHandler(lockout, &MockSessionLister{})

	rec := postJSON(t, h.Unlock, "/auth/unlock-account", map[string]int{"login_number": 12345})

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 12345, unlocked)
}

func TestLockoutHandler_Unlock_UnknownAccount(t *testing.T) {
	h := newTestLockoutHandler(&MockLockoutService{}, &MockSessionLister{})

	rec := postJSON(t, h.Unlock, "/auth/unlock-account", map[string]int{"login_number": 99999})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLockoutHandler_Unlock_BadBody(t *testing.T) {
	h := newTestLockoutHandler(&MockLockoutService{}, &MockSessionLister{})

	rec := postJSON(t, h.Unlock, "/auth/unlock-account", map[string]int{"login_number": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
