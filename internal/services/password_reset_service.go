package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pestopshq/pestops/internal/models"
	pkgauth "github.com/pestopshq/pestops/pkg/auth"
	pkglogger "github.com/pestopshq/pestops/pkg/logger"
)

// PasswordResetRepository defines the interface for reset token persistence
type PasswordResetRepository interface {
	Create(ctx context.Context, token *models.PasswordResetToken) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error)
	ConsumeTx(ctx context.Context, tx pgx.Tx, tokenHash string) (*models.PasswordResetToken, error)
	InvalidateAllForAccount(ctx context.Context, accountID string) error
}

// TxRunner runs a function inside a single database transaction
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(pgx.Tx) error) error
}

// PasswordResetService implements the forgot-password flow: single-use,
// short-lived tokens whose consumption atomically rotates the credential and
// revokes every session for the account.
type PasswordResetService struct {
	accounts    AccountRepository
	sessions    SessionRepository
	tokens      PasswordResetRepository
	tx          TxRunner
	email       EmailService
	tokenTTL    time.Duration
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	now         func() time.Time
}

// NewPasswordResetService creates a new PasswordResetService
func NewPasswordResetService(accounts AccountRepository, sessions SessionRepository, tokens PasswordResetRepository, tx TxRunner, email EmailService, tokenTTL time.Duration, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *PasswordResetService {
	return &PasswordResetService{
		accounts:    accounts,
		sessions:    sessions,
		tokens:      tokens,
		tx:          tx,
		email:       email,
		tokenTTL:    tokenTTL,
		logger:      logger,
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

// ResetTokenInfo is the minimal display data returned by VerifyToken, enough
// to pre-fill a reset form without exposing account internals.
type ResetTokenInfo struct {
	Name        string    `json:"name"`
	LoginNumber int       `json:"login_number"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// RequestReset issues a reset token for the login number and mails the link.
// It reports success whether or not the number resolves to an account: the
// response shape must never reveal existence. Email delivery is
// fire-and-forget; the persisted token stays usable via support either way.
func (s *PasswordResetService) RequestReset(ctx context.Context, loginNumber int) error {
	account, err := s.accounts.GetByLoginNumber(ctx, loginNumber)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("password reset requested for unknown login number")
			return nil
		}
		s.logger.Error("failed to look up account for reset", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if account.Status != models.StatusActive {
		s.logger.Info("password reset requested for inactive account", slog.String("account_id", account.ID))
		return nil
	}

	plaintext, err := pkgauth.GenerateResetToken()
	if err != nil {
		s.logger.Error("failed to generate reset token", slog.Any("error", err))
		return models.ErrInternalServer
	}

	// A fresh token retires any outstanding predecessors.
	if err := s.tokens.InvalidateAllForAccount(ctx, account.ID); err != nil {
		s.logger.Error("failed to invalidate prior reset tokens", slog.String("account_id", account.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	token := &models.PasswordResetToken{
		AccountID: account.ID,
		TokenHash: hashResetToken(plaintext),
		ExpiresAt: s.now().Add(s.tokenTTL),
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		s.logger.Error("failed to store reset token", slog.String("account_id", account.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.email.SendPasswordResetEmail(ctx, account.Email, account.Name, plaintext, token.ExpiresAt); err != nil {
		s.logger.Error("failed to send reset email", slog.String("account_id", account.ID), slog.Any("error", err))
	}

	s.auditLogger.LogAccountAction("password_reset_requested", account.ID, "", nil)
	return nil
}

// VerifyToken checks a presented token without consuming it, so clients can
// validate before showing the reset form.
func (s *PasswordResetService) VerifyToken(ctx context.Context, plaintext string) (*ResetTokenInfo, error) {
	token, err := s.tokens.GetByTokenHash(ctx, hashResetToken(plaintext))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrInvalidOrExpiredToken
		}
		return nil, models.ErrInternalServer
	}

	if !token.Usable(s.now()) {
		return nil, models.ErrInvalidOrExpiredToken
	}

	account, err := s.accounts.GetByID(ctx, token.AccountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrInvalidOrExpiredToken
		}
		return nil, models.ErrInternalServer
	}

	return &ResetTokenInfo{
		Name:        account.Name,
		LoginNumber: account.LoginNumber,
		ExpiresAt:   token.ExpiresAt,
	}, nil
}

// ResetPassword consumes the token and rotates the credential. Consume,
// rotation, and revocation of every session commit in one transaction: a
// second use of the same token fails with no partial mutation.
func (s *PasswordResetService) ResetPassword(ctx context.Context, plaintext, newPassword string) error {
	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return err
	}

	hash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	var accountID string
	err = s.tx.WithTransaction(ctx, func(tx pgx.Tx) error {
		token, err := s.tokens.ConsumeTx(ctx, tx, hashResetToken(plaintext))
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return models.ErrInvalidOrExpiredToken
			}
			return err
		}
		accountID = token.AccountID

		if err := s.accounts.UpdatePasswordHashTx(ctx, tx, token.AccountID, hash); err != nil {
			return err
		}

		_, err = s.sessions.DeleteAllForAccountTx(ctx, tx, token.AccountID)
		return err
	})
	if err != nil {
		if errors.Is(err, models.ErrInvalidOrExpiredToken) {
			return models.ErrInvalidOrExpiredToken
		}
		s.logger.Error("password reset transaction failed", slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.auditLogger.LogPasswordChange("password_reset", accountID, "", true)
	return nil
}

// hashResetToken maps a plaintext token to its stored form. Only the hash is
// persisted; a database leak exposes no usable tokens.
func hashResetToken(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}
