package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/pestopshq/pestops/internal/auth"
	"github.com/pestopshq/pestops/internal/models"
	"github.com/pestopshq/pestops/internal/services"
	pkgauth "github.com/pestopshq/pestops/pkg/auth"
	pkghttp "github.com/pestopshq/pestops/pkg/http"
)

// AuthServiceInterface defines the authentication operations the handler needs
type AuthServiceInterface interface {
	Login(ctx context.Context, loginID, password, ipAddress, userAgent string) (*services.LoginResponse, error)
	Logout(ctx context.Context, principal *auth.Principal) error
	ChangePassword(ctx context.Context, principal *auth.Principal, currentPassword, newPassword, ipAddress string) error
}

// PasswordResetServiceInterface defines the reset-flow operations the handler needs
type PasswordResetServiceInterface interface {
	RequestReset(ctx context.Context, loginNumber int) error
	VerifyToken(ctx context.Context, plaintext string) (*services.ResetTokenInfo, error)
	ResetPassword(ctx context.Context, plaintext, newPassword string) error
}

// AuthHandler handles the authentication endpoints
type AuthHandler struct {
	authService  AuthServiceInterface
	resetService PasswordResetServiceInterface
	ipConfig     *pkghttp.IPConfig
	logger       *slog.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService AuthServiceInterface, resetService PasswordResetServiceInterface, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		resetService: resetService,
		ipConfig:     ipConfig,
		logger:       logger,
	}
}

// LoginRequest is the login request body. The login identifier is a string,
// not a number: it may carry a role prefix ("a12345") or surrounding
// whitespace, and parsing it is the service's job.
type LoginRequest struct {
	LoginID  string `json:"login_id" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=128"`
}

// ChangePasswordRequest is the authenticated password-change request body
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required,max=128"`
	NewPassword     string `json:"new_password" validate:"required,max=128"`
}

// ForgotPasswordRequest is the reset-request body
type ForgotPasswordRequest struct {
	LoginNumber int `json:"login_number" validate:"required,gt=0"`
}

// ResetPasswordRequest carries the emailed token and the replacement password
type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,max=128"`
}

// ValidateResponse echoes the authenticated principal back to the client
type ValidateResponse struct {
	AccountID   string `json:"account_id"`
	LoginNumber int    `json:"login_number"`
	Name        string `json:"name"`
	RoleContext string `json:"role_context"`
}

// accountLockedResponse is the 423 body. lock_until is authoritative;
// minutes_remaining is a convenience for display.
type accountLockedResponse struct {
	Error            string    `json:"error"`
	Message          string    `json:"message"`
	LockUntil        time.Time `json:"lock_until"`
	MinutesRemaining int       `json:"minutes_remaining"`
}

// invalidCredentialsResponse is the 401 body. remaining_attempts is present
// only when the failure consumed an attempt against an identified account.
type invalidCredentialsResponse struct {
	Error             string `json:"error"`
	Message           string `json:"message"`
	RemainingAttempts *int   `json:"remaining_attempts,omitempty"`
}

const invalidCredentialsMessage = "Invalid login number or password"

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)
	resp, err := h.authService.Login(r.Context(), req.LoginID, req.Password, ipAddress, r.UserAgent())
	if err != nil {
		h.writeLoginError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// writeLoginError maps the login error taxonomy onto the wire. The typed
// errors must be checked before the bare sentinel: a wrong password matches
// ErrInvalidCredentials too, but carries a remaining-attempts count that an
// unknown login number deliberately does not.
func (h *AuthHandler) writeLoginError(w http.ResponseWriter, err error) {
	var locked *models.AccountLockedError
	var invalid *models.InvalidCredentialsError

	switch {
	case errors.Is(err, models.ErrInvalidLoginFormat):
		pkghttp.WriteError(w, http.StatusBadRequest, pkghttp.CodeInvalidLoginFormat,
			"Login ID must be a login number with an optional role prefix")

	case errors.As(err, &locked):
		minutes := int(math.Ceil(time.Until(locked.LockUntil).Minutes()))
		if minutes < 0 {
			minutes = 0
		}
		pkghttp.WriteJSON(w, http.StatusLocked, accountLockedResponse{
			Error:            pkghttp.CodeAccountLocked,
			Message:          "Account temporarily locked due to repeated failed login attempts",
			LockUntil:        locked.LockUntil,
			MinutesRemaining: minutes,
		})

	case errors.As(err, &invalid):
		remaining := invalid.RemainingAttempts
		pkghttp.WriteJSON(w, http.StatusUnauthorized, invalidCredentialsResponse{
			Error:             pkghttp.CodeInvalidCredentials,
			Message:           invalidCredentialsMessage,
			RemainingAttempts: &remaining,
		})

	case errors.Is(err, models.ErrInvalidCredentials):
		pkghttp.WriteJSON(w, http.StatusUnauthorized, invalidCredentialsResponse{
			Error:   pkghttp.CodeInvalidCredentials,
			Message: invalidCredentialsMessage,
		})

	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

// Logout handles POST /auth/logout. Revokes the caller's session only.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	principal := auth.GetPrincipalFromContext(r)
	if principal == nil {
		pkghttp.WriteUnauthorized(w, pkghttp.CodeNoToken, "Authentication required")
		return
	}

	if err := h.authService.Logout(r.Context(), principal); err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Validate handles GET /auth/validate. Reaching the handler at all means the
// middleware accepted the token and found a live session; this just echoes
// who the caller is.
func (h *AuthHandler) Validate(w http.ResponseWriter, r *http.Request) {
	principal := auth.GetPrincipalFromContext(r)
	if principal == nil {
		pkghttp.WriteUnauthorized(w, pkghttp.CodeNoToken, "Authentication required")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, ValidateResponse{
		AccountID:   principal.AccountID,
		LoginNumber: principal.LoginNumber,
		Name:        principal.Name,
		RoleContext: principal.RoleContext,
	})
}

// ChangePassword handles POST /auth/change-password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	principal := auth.GetPrincipalFromContext(r)
	if principal == nil {
		pkghttp.WriteUnauthorized(w, pkghttp.CodeNoToken, "Authentication required")
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)
	if err := h.authService.ChangePassword(r.Context(), principal, req.CurrentPassword, req.NewPassword, ipAddress); err != nil {
		var pwErr *pkgauth.PasswordValidationError
		switch {
		case errors.Is(err, models.ErrInvalidCredentials):
			pkghttp.WriteUnauthorized(w, pkghttp.CodeInvalidCredentials, "Current password is incorrect")
		case errors.Is(err, models.ErrUnauthorized):
			pkghttp.WriteUnauthorized(w, pkghttp.CodeNoToken, "Authentication required")
		case errors.As(err, &pwErr):
			pkghttp.WriteBadRequest(w, pwErr.Error())
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ForgotPassword handles POST /auth/forgot-password. The 202 body is the
// same whether or not the login number exists.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.resetService.RequestReset(r.Context(), req.LoginNumber); err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusAccepted, map[string]string{
		"message": "If that login number exists, a reset link has been sent to the email on file",
	})
}

// VerifyResetToken handles GET /auth/verify-reset-token?token=...
// Non-consuming: clients call this before showing the reset form.
func (h *AuthHandler) VerifyResetToken(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		pkghttp.WriteBadRequest(w, "Missing token parameter")
		return
	}

	info, err := h.resetService.VerifyToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, models.ErrInvalidOrExpiredToken) {
			pkghttp.WriteError(w, http.StatusBadRequest, pkghttp.CodeResetTokenInvalid,
				"Reset link is invalid or has expired")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, info)
}

// ResetPassword handles POST /auth/reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.resetService.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		var pwErr *pkgauth.PasswordValidationError
		switch {
		case errors.Is(err, models.ErrInvalidOrExpiredToken):
			pkghttp.WriteError(w, http.StatusBadRequest, pkghttp.CodeResetTokenInvalid,
				"Reset link is invalid or has expired")
		case errors.As(err, &pwErr):
			pkghttp.WriteBadRequest(w, pwErr.Error())
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
