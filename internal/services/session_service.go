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
)

// SessionRepository defines the interface for session persistence
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	Touch(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
	DeleteAllForAccount(ctx context.Context, accountID string) (int64, error)
	DeleteAllForAccountTx(ctx context.Context, tx pgx.Tx, accountID string) (int64, error)
	DeleteAllExcept(ctx context.Context, accountID, keepSessionID string) (int64, error)
	ListForAccount(ctx context.Context, accountID string) ([]*models.Session, error)
}

// SessionService manages server-side session rows: the revocable half of the
// dual-validated token scheme. Expiry is absolute from creation; activity
// never extends it.
type SessionService struct {
	sessions SessionRepository
	accounts AccountRepository
	lifetime time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewSessionService creates a new SessionService
func NewSessionService(sessions SessionRepository, accounts AccountRepository, lifetime time.Duration, logger *slog.Logger) *SessionService {
	return &SessionService{
		sessions: sessions,
		accounts: accounts,
		lifetime: lifetime,
		logger:   logger,
		now:      time.Now,
	}
}

// Create establishes a new session for the account under the given role
// context. The id is opaque and unguessable; expiry is fixed at creation.
func (s *SessionService) Create(ctx context.Context, account *models.Account, roleContext, ipAddress, userAgent string) (*models.Session, error) {
	id, err := pkgauth.GenerateSessionID()
	if err != nil {
		return nil, err
	}

	now := s.now()
	session := &models.Session{
		ID:           id,
		AccountID:    account.ID,
		RoleContext:  roleContext,
		IPAddress:    ipAddress,
		UserAgent:    userAgent,
		ExpiresAt:    now.Add(s.lifetime),
		LastActivity: now,
		CreatedAt:    now,
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	return session, nil
}

// Validate implements auth.SessionValidator. A session is good iff the row
// exists, is unexpired, and the owning account is still active. Validity
// refreshes last_activity but deliberately never moves expires_at.
func (s *SessionService) Validate(ctx context.Context, sessionID string) (*auth.Principal, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrSessionExpired
		}
		return nil, err
	}

	now := s.now()
	if !session.ExpiresAt.After(now) {
		// Expired rows are lazily removed; the sweeper handles the rest.
		if err := s.sessions.Delete(ctx, sessionID); err != nil {
			s.logger.Warn("failed to remove expired session", slog.Any("error", err))
		}
		return nil, models.ErrSessionExpired
	}

	account, err := s.accounts.GetByID(ctx, session.AccountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrSessionExpired
		}
		return nil, err
	}

	if account.Status != models.StatusActive {
		return nil, models.ErrSessionExpired
	}

	// Activity is a liveness signal for auditing only; losing a touch is not
	// worth failing the request.
	if err := s.sessions.Touch(ctx, sessionID, now); err != nil {
		s.logger.Warn("failed to touch session", slog.Any("error", err))
	}

	return &auth.Principal{
		AccountID:   account.ID,
		SessionID:   session.ID,
		LoginNumber: account.LoginNumber,
		Name:        account.Name,
		RoleContext: session.RoleContext,
	}, nil
}

// Revoke deletes a session. Idempotent: revoking a session that is already
// gone is not an error.
func (s *SessionService) Revoke(ctx context.Context, sessionID string) error {
	return s.sessions.Delete(ctx, sessionID)
}

// RevokeAllExcept revokes every other session for the account. Used after an
// authenticated password change so the caller keeps working.
func (s *SessionService) RevokeAllExcept(ctx context.Context, accountID, keepSessionID string) error {
	revoked, err := s.sessions.DeleteAllExcept(ctx, accountID, keepSessionID)
	if err != nil {
		return err
	}

	if revoked > 0 {
		s.logger.Info("revoked other sessions",
			slog.String("account_id", accountID),
			slog.Int64("count", revoked))
	}
	return nil
}

// RevokeAll revokes every session for the account.
func (s *SessionService) RevokeAll(ctx context.Context, accountID string) error {
	revoked, err := s.sessions.DeleteAllForAccount(ctx, accountID)
	if err != nil {
		return err
	}

	if revoked > 0 {
		s.logger.Info("revoked all sessions",
			slog.String("account_id", accountID),
			slog.Int64("count", revoked))
	}
	return nil
}

// ListActive returns the live sessions for an account, for the support
// tooling view.
func (s *SessionService) ListActive(ctx context.Context, accountID string) ([]*models.Session, error) {
	return s.sessions.ListForAccount(ctx, accountID)
}
