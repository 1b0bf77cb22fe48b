package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pestopshq/pestops/internal/auth"
	"github.com/pestopshq/pestops/internal/models"
	pkgauth "github.com/pestopshq/pestops/pkg/auth"
	pkglogger "github.com/pestopshq/pestops/pkg/logger"
)

// AccountRepository defines the interface for account persistence
type AccountRepository interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByLoginNumber(ctx context.Context, loginNumber int) (*models.Account, error)
	IncrementFailedAttempts(ctx context.Context, id string) (int, error)
	LockIfUnlocked(ctx context.Context, id string, until time.Time) (bool, error)
	ClearExpiredLock(ctx context.Context, id string) error
	RecordLoginSuccess(ctx context.Context, id string) error
	Unlock(ctx context.Context, id string) error
	UpdatePasswordHash(ctx context.Context, id string, passwordHash string) error
	UpdatePasswordHashTx(ctx context.Context, tx pgx.Tx, id string, passwordHash string) error
}

// AuthService orchestrates the login pipeline: parse, lockout gate,
// credential compare, attempt recording, session + token issuance.
type AuthService struct {
	accounts    AccountRepository
	lockout     *LockoutService
	sessions    *SessionService
	tm          *auth.TokenManager
	timing      *auth.TimingDelay
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	now         func() time.Time
}

// NewAuthService creates a new AuthService
func NewAuthService(accounts AccountRepository, lockout *LockoutService, sessions *SessionService, tm *auth.TokenManager, timing *auth.TimingDelay, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *AuthService {
	return &AuthService{
		accounts:    accounts,
		lockout:     lockout,
		sessions:    sessions,
		tm:          tm,
		timing:      timing,
		logger:      logger,
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

// AccountResponse represents an account in the HTTP response
type AccountResponse struct {
	ID          string `json:"id"`
	LoginNumber int    `json:"login_number"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	RoleContext string `json:"role_context"`
}

// LoginResponse represents the response from a successful login
type LoginResponse struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	Account   *AccountResponse `json:"account"`
}

// Login runs one login attempt end to end. The lockout gate is consulted
// before the credential is ever compared, every outcome lands in the attempt
// log, and all failures are padded to a common timing floor.
//
// Failure returns are drawn from the login error taxonomy:
// ErrInvalidLoginFormat, InvalidCredentialsError (which deliberately covers
// unknown numbers, role mismatches, and inactive accounts alike), and
// AccountLockedError.
func (s *AuthService) Login(ctx context.Context, loginID, password, ipAddress, userAgent string) (*LoginResponse, error) {
	start := s.now()

	parsed, err := auth.ParseLoginID(loginID)
	if err != nil {
		s.recordUnresolved(ctx, loginID, ipAddress, userAgent, models.FailureInvalidLoginFormat)
		s.timing.PadFailure(start)
		return nil, models.ErrInvalidLoginFormat
	}

	account, err := s.accounts.GetByLoginNumber(ctx, parsed.LoginNumber)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Burn the same hashing cost a wrong password would, so unassigned
			// numbers are not enumerable by timing.
			pkgauth.CompareDummy(password)
			s.recordUnresolved(ctx, parsed.Canonical, ipAddress, userAgent, models.FailureUnknownLoginNumber)
			s.timing.PadFailure(start)
			return nil, models.ErrInvalidCredentials
		}
		s.logger.Error("failed to look up account", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	// Lockout gate before any credential work. An infrastructure failure here
	// rejects the login: never guess at lock state.
	status, err := s.lockout.CheckAccount(ctx, account)
	if err != nil {
		s.logger.Error("lockout check failed", slog.String("account_id", account.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if status.IsLocked {
		if err := s.lockout.RecordLockedFailure(ctx, account, s.newAttempt(account, parsed.Canonical, ipAddress, userAgent, models.FailureAccountLocked)); err != nil {
			s.logger.Error("failed to record locked attempt", slog.Any("error", err))
		}
		s.audit("login_failed", account.ID, parsed.Canonical, ipAddress, userAgent, models.FailureAccountLocked)
		s.timing.PadFailure(start)
		return nil, &models.AccountLockedError{LockUntil: *status.LockUntil}
	}

	if !account.PermitsRole(parsed.RoleHint) {
		return nil, s.failCredentials(ctx, start, account, parsed.Canonical, ipAddress, userAgent, models.FailureRoleMismatch)
	}

	if account.Status != models.StatusActive {
		return nil, s.failCredentials(ctx, start, account, parsed.Canonical, ipAddress, userAgent, models.FailureAccountInactive)
	}

	if err := pkgauth.ComparePassword(account.PasswordHash, password); err != nil {
		return nil, s.failCredentials(ctx, start, account, parsed.Canonical, ipAddress, userAgent, models.FailureInvalidPassword)
	}

	// Success: the attempt row and the counter reset land before the
	// session is issued.
	if err := s.lockout.RecordSuccess(ctx, account.ID, s.successAttempt(account, parsed.Canonical, ipAddress, userAgent)); err != nil {
		s.logger.Error("failed to record successful attempt", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	session, err := s.sessions.Create(ctx, account, parsed.RoleHint, ipAddress, userAgent)
	if err != nil {
		s.logger.Error("failed to create session", slog.String("account_id", account.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	token, expiresAt, err := s.tm.Issue(account.ID, session.ID)
	if err != nil {
		s.logger.Error("failed to issue token", slog.String("account_id", account.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("login succeeded",
		slog.String("account_id", account.ID),
		slog.String("role_context", parsed.RoleHint))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		AccountID: account.ID,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Success:   true,
	})

	return &LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Account: &AccountResponse{
			ID:          account.ID,
			LoginNumber: account.LoginNumber,
			Name:        account.Name,
			Email:       account.Email,
			Role:        account.Role,
			RoleContext: parsed.RoleHint,
		},
	}, nil
}

// Logout revokes the caller's session only. Idempotent.
func (s *AuthService) Logout(ctx context.Context, principal *auth.Principal) error {
	if err := s.sessions.Revoke(ctx, principal.SessionID); err != nil {
		s.logger.Error("failed to revoke session", slog.String("account_id", principal.AccountID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("logged out", slog.String("account_id", principal.AccountID))
	return nil
}

// ChangePassword rotates the credential after re-verifying the current one,
// then revokes every session except the caller's.
func (s *AuthService) ChangePassword(ctx context.Context, principal *auth.Principal, currentPassword, newPassword, ipAddress string) error {
	account, err := s.accounts.GetByID(ctx, principal.AccountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrUnauthorized
		}
		return models.ErrInternalServer
	}

	if err := pkgauth.ComparePassword(account.PasswordHash, currentPassword); err != nil {
		s.auditLogger.LogPasswordChange("password_change", account.ID, ipAddress, false)
		return models.ErrInvalidCredentials
	}

	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return err
	}

	hash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.accounts.UpdatePasswordHash(ctx, account.ID, hash); err != nil {
		s.logger.Error("failed to update password hash", slog.String("account_id", account.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.sessions.RevokeAllExcept(ctx, account.ID, principal.SessionID); err != nil {
		s.logger.Error("failed to revoke other sessions", slog.String("account_id", account.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.auditLogger.LogPasswordChange("password_change", account.ID, ipAddress, true)
	return nil
}

// failCredentials is the shared wrong-credential exit: record the failure,
// re-evaluate lockout (the response body reports the result), pad timing,
// and answer with the same InvalidCredentials shape regardless of cause.
func (s *AuthService) failCredentials(ctx context.Context, start time.Time, account *models.Account, loginInput, ipAddress, userAgent, reason string) error {
	status, err := s.lockout.RecordFailure(ctx, account, s.newAttempt(account, loginInput, ipAddress, userAgent, reason))
	if err != nil {
		s.logger.Error("failed to record login failure", slog.String("account_id", account.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.audit("login_failed", account.ID, loginInput, ipAddress, userAgent, reason)
	s.timing.PadFailure(start)

	if status.IsLocked {
		return &models.AccountLockedError{LockUntil: *status.LockUntil}
	}
	return &models.InvalidCredentialsError{RemainingAttempts: status.RemainingAttempts}
}

func (s *AuthService) recordUnresolved(ctx context.Context, loginInput, ipAddress, userAgent, reason string) {
	attempt := &models.LoginAttempt{
		LoginInput:    loginInput,
		IPAddress:     ipAddress,
		UserAgent:     userAgent,
		Success:       false,
		FailureReason: &reason,
		AttemptTime:   s.now(),
	}
	if err := s.lockout.RecordUnresolved(ctx, attempt); err != nil {
		s.logger.Error("failed to record unresolved attempt", slog.Any("error", err))
	}
	s.audit("login_failed", "", loginInput, ipAddress, userAgent, reason)
}

func (s *AuthService) newAttempt(account *models.Account, loginInput, ipAddress, userAgent, reason string) *models.LoginAttempt {
	return &models.LoginAttempt{
		AccountID:     &account.ID,
		LoginInput:    loginInput,
		IPAddress:     ipAddress,
		UserAgent:     userAgent,
		Success:       false,
		FailureReason: &reason,
		AttemptTime:   s.now(),
	}
}

func (s *AuthService) successAttempt(account *models.Account, loginInput, ipAddress, userAgent string) *models.LoginAttempt {
	return &models.LoginAttempt{
		AccountID:   &account.ID,
		LoginInput:  loginInput,
		IPAddress:   ipAddress,
		UserAgent:   userAgent,
		Success:     true,
		AttemptTime: s.now(),
	}
}

func (s *AuthService) audit(eventType, accountID, loginInput, ipAddress, userAgent, reason string) {
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:     eventType,
		AccountID:     accountID,
		LoginInput:    loginInput,
		IPAddress:     ipAddress,
		UserAgent:     userAgent,
		Success:       false,
		FailureReason: reason,
	})
}
