package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/pestopshq/pestops/internal/models"
	pkghttp "github.com/pestopshq/pestops/pkg/http"
)

// historyLimit caps how many attempt rows the status view returns.
const historyLimit = 20

// LockoutServiceInterface defines the lockout operations the handler needs
type LockoutServiceInterface interface {
	Status(ctx context.Context, loginNumber int) (*models.Account, *models.LockoutStatus, error)
	Unlock(ctx context.Context, loginNumber int) (*models.Account, error)
	History(ctx context.Context, accountID string, limit int) ([]*models.LoginAttempt, error)
}

// SessionListerInterface exposes the live sessions for the support view
type SessionListerInterface interface {
	ListActive(ctx context.Context, accountID string) ([]*models.Session, error)
}

// LockoutHandler handles the admin support endpoints: inspecting an
// account's lock state and force-unlocking it. Both sit behind admin auth,
// so unlike the login surface they may acknowledge account existence.
type LockoutHandler struct {
	lockout  LockoutServiceInterface
	sessions SessionListerInterface
	logger   *slog.Logger
}

// NewLockoutHandler creates a new LockoutHandler
func NewLockoutHandler(lockout LockoutServiceInterface, sessions SessionListerInterface, logger *slog.Logger) *LockoutHandler {
	return &LockoutHandler{
		lockout:  lockout,
		sessions: sessions,
		logger:   logger,
	}
}

// UnlockAccountRequest is the force-unlock request body
type UnlockAccountRequest struct {
	LoginNumber int `json:"login_number" validate:"required,gt=0"`
}

// LockoutAccountSummary identifies the account under inspection
type LockoutAccountSummary struct {
	ID          string `json:"id"`
	LoginNumber int    `json:"login_number"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	Status      string `json:"status"`
}

// AttemptSummary is one row of recent login history
type AttemptSummary struct {
	AttemptTime   time.Time `json:"attempt_time"`
	Success       bool      `json:"success"`
	FailureReason *string   `json:"failure_reason,omitempty"`
	IPAddress     string    `json:"ip_address"`
}

// SessionSummary is one live session in the support view
type SessionSummary struct {
	RoleContext  string    `json:"role_context"`
	IPAddress    string    `json:"ip_address"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// LockoutStatusResponse is the full support view for one account
type LockoutStatusResponse struct {
	Account           LockoutAccountSummary `json:"account"`
	IsLocked          bool                  `json:"is_locked"`
	LockUntil         *time.Time            `json:"lock_until,omitempty"`
	RemainingAttempts int                   `json:"remaining_attempts"`
	FailedAttempts    int                   `json:"failed_attempts"`
	RecentAttempts    []AttemptSummary      `json:"recent_attempts"`
	ActiveSessions    []SessionSummary      `json:"active_sessions"`
}

// Status handles GET /auth/lockout-status?login_number=N
func (h *LockoutHandler) Status(w http.ResponseWriter, r *http.Request) {
	loginNumber, err := strconv.Atoi(r.URL.Query().Get("login_number"))
	if err != nil || loginNumber <= 0 {
		pkghttp.WriteBadRequest(w, "login_number must be a positive integer")
		return
	}

	account, status, err := h.lockout.Status(r.Context(), loginNumber)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Account not found")
			return
		}
		h.logger.Error("failed to evaluate lockout status", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	attempts, err := h.lockout.History(r.Context(), account.ID, historyLimit)
	if err != nil {
		h.logger.Error("failed to load attempt history", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	sessions, err := h.sessions.ListActive(r.Context(), account.ID)
	if err != nil {
		h.logger.Error("failed to load active sessions", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	resp := LockoutStatusResponse{
		Account: LockoutAccountSummary{
			ID:          account.ID,
			LoginNumber: account.LoginNumber,
			Name:        account.Name,
			Role:        account.Role,
			Status:      account.Status,
		},
		IsLocked:          status.IsLocked,
		LockUntil:         status.LockUntil,
		RemainingAttempts: status.RemainingAttempts,
		FailedAttempts:    account.FailedLoginAttempts,
		RecentAttempts:    make([]AttemptSummary, 0, len(attempts)),
		ActiveSessions:    make([]SessionSummary, 0, len(sessions)),
	}
	for _, a := range attempts {
		resp.RecentAttempts = append(resp.RecentAttempts, AttemptSummary{
			AttemptTime:   a.AttemptTime,
			Success:       a.Success,
			FailureReason: a.FailureReason,
			IPAddress:     a.IPAddress,
		})
	}
	for _, s := range sessions {
		resp.ActiveSessions = append(resp.ActiveSessions, SessionSummary{
			RoleContext:  s.RoleContext,
			IPAddress:    s.IPAddress,
			CreatedAt:    s.CreatedAt,
			LastActivity: s.LastActivity,
			ExpiresAt:    s.ExpiresAt,
		})
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// Unlock handles POST /auth/unlock-account. Clears the lock and the failure
// counter without waiting out the lock window.
func (h *LockoutHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	var req UnlockAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if _, err := h.lockout.Unlock(r.Context(), req.LoginNumber); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Account not found")
			return
		}
		h.logger.Error("failed to unlock account", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
