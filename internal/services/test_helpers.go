package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pestopshq/pestops/internal/models"
	pkglogger "github.com/pestopshq/pestops/pkg/logger"
)

// MockAccountRepository implements AccountRepository for testing
type MockAccountRepository struct {
	GetByIDFunc                 func(ctx context.Context, id string) (*models.Account, error)
	GetByLoginNumberFunc        func(ctx context.Context, loginNumber int) (*models.Account, error)
	IncrementFailedAttemptsFunc func(ctx context.Context, id string) (int, error)
	LockIfUnlockedFunc          func(ctx context.Context, id string, until time.Time) (bool, error)
	ClearExpiredLockFunc        func(ctx context.Context, id string) error
	RecordLoginSuccessFunc      func(ctx context.Context, id string) error
	UnlockFunc                  func(ctx context.Context, id string) error
	UpdatePasswordHashFunc      func(ctx context.Context, id string, passwordHash string) error
	UpdatePasswordHashTxFunc    func(ctx context.Context, tx pgx.Tx, id string, passwordHash string) error
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) GetByLoginNumber(ctx context.Context, loginNumber int) (*models.Account, error) {
	if m.GetByLoginNumberFunc != nil {
		return m.GetByLoginNumberFunc(ctx, loginNumber)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) IncrementFailedAttempts(ctx context.Context, id string) (int, error) {
	if m.IncrementFailedAttemptsFunc != nil {
		return m.IncrementFailedAttemptsFunc(ctx, id)
	}
	return 1, nil
}

func (m *MockAccountRepository) LockIfUnlocked(ctx context.Context, id string, until time.Time) (bool, error) {
	if m.LockIfUnlockedFunc != nil {
		return m.LockIfUnlockedFunc(ctx, id, until)
	}
	return true, nil
}

func (m *MockAccountRepository) ClearExpiredLock(ctx context.Context, id string) error {
	if m.ClearExpiredLockFunc != nil {
		return m.ClearExpiredLockFunc(ctx, id)
	}
	return nil
}

func (m *MockAccountRepository) RecordLoginSuccess(ctx context.Context, id string) error {
	if m.RecordLoginSuccessFunc != nil {
		return m.RecordLoginSuccessFunc(ctx, id)
	}
	return nil
}

func (m *MockAccountRepository) Unlock(ctx context.Context, id string) error {
	if m.UnlockFunc != nil {
		return m.UnlockFunc(ctx, id)
	}
	return nil
}

func (m *MockAccountRepository) UpdatePasswordHash(ctx context.Context, id string, passwordHash string) error {
	if m.UpdatePasswordHashFunc != nil {
		return m.UpdatePasswordHashFunc(ctx, id, passwordHash)
	}
	return nil
}

func (m *MockAccountRepository) UpdatePasswordHashTx(ctx context.Context, tx pgx.Tx, id string, passwordHash string) error {
	if m.UpdatePasswordHashTxFunc != nil {
		return m.UpdatePasswordHashTxFunc(ctx, tx, id, passwordHash)
	}
	return nil
}

// MockLoginAttemptRepository implements LoginAttemptRepository for testing
type MockLoginAttemptRepository struct {
	RecordFunc                  func(ctx context.Context, attempt *models.LoginAttempt) error
	CountRecentFailuresFunc     func(ctx context.Context, accountID string, since time.Time) (int, error)
	CountRecentFailuresByIPFunc func(ctx context.Context, ipAddress string, since time.Time) (int, error)
	ListRecentFunc              func(ctx context.Context, accountID string, limit int) ([]*models.LoginAttempt, error)
	Recorded                    []*models.LoginAttempt
}

func (m *MockLoginAttemptRepository) Record(ctx context.Context, attempt *models.LoginAttempt) error {
	if m.RecordFunc != nil {
		return m.RecordFunc(ctx, attempt)
	}
	m.Recorded = append(m.Recorded, attempt)
	return nil
}

func (m *MockLoginAttemptRepository) CountRecentFailures(ctx context.Context, accountID string, since time.Time) (int, error) {
	if m.CountRecentFailuresFunc != nil {
		return m.CountRecentFailuresFunc(ctx, accountID, since)
	}
	return 0, nil
}

func (m *MockLoginAttemptRepository) CountRecentFailuresByIP(ctx context.Context, ipAddress string, since time.Time) (int, error) {
	if m.CountRecentFailuresByIPFunc != nil {
		return m.CountRecentFailuresByIPFunc(ctx, ipAddress, since)
	}
	return 0, nil
}

func (m *MockLoginAttemptRepository) ListRecent(ctx context.Context, accountID string, limit int) ([]*models.LoginAttempt, error) {
	if m.ListRecentFunc != nil {
		return m.ListRecentFunc(ctx, accountID, limit)
	}
	return []*models.LoginAttempt{}, nil
}

// MockSessionRepository implements SessionRepository for testing
type MockSessionRepository struct {
	CreateFunc                func(ctx context.Context, session *models.Session) error
	GetByIDFunc               func(ctx context.Context, id string) (*models.Session, error)
	TouchFunc                 func(ctx context.Context, id string, at time.Time) error
	DeleteFunc                func(ctx context.Context, id string) error
	DeleteAllForAccountFunc   func(ctx context.Context, accountID string) (int64, error)
	DeleteAllForAccountTxFunc func(ctx context.Context, tx pgx.Tx, accountID string) (int64, error)
	DeleteAllExceptFunc       func(ctx context.Context, accountID, keepSessionID string) (int64, error)
	ListForAccountFunc        func(ctx context.Context, accountID string) ([]*models.Session, error)
	Created                   []*models.Session
}

func (m *MockSessionRepository) Create(ctx context.Context, session *models.Session) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, session)
	}
	m.Created = append(m.Created, session)
	return nil
}

func (m *MockSessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockSessionRepository) Touch(ctx context.Context, id string, at time.Time) error {
	if m.TouchFunc != nil {
		return m.TouchFunc(ctx, id, at)
	}
	return nil
}

func (m *MockSessionRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockSessionRepository) DeleteAllForAccount(ctx context.Context, accountID string) (int64, error) {
	if m.DeleteAllForAccountFunc != nil {
		return m.DeleteAllForAccountFunc(ctx, accountID)
	}
	return 0, nil
}

func (m *MockSessionRepository) DeleteAllForAccountTx(ctx context.Context, tx pgx.Tx, accountID string) (int64, error) {
	if m.DeleteAllForAccountTxFunc != nil {
		return m.DeleteAllForAccountTxFunc(ctx, tx, accountID)
	}
	return 0, nil
}

func (m *MockSessionRepository) DeleteAllExcept(ctx context.Context, accountID, keepSessionID string) (int64, error) {
	if m.DeleteAllExceptFunc != nil {
		return m.DeleteAllExceptFunc(ctx, accountID, keepSessionID)
	}
	return 0, nil
}

func (m *MockSessionRepository) ListForAccount(ctx context.Context, accountID string) ([]*models.Session, error) {
	if m.ListForAccountFunc != nil {
		return m.ListForAccountFunc(ctx, accountID)
	}
	return []*models.Session{}, nil
}

// MockPasswordResetRepository implements PasswordResetRepository for testing
type MockPasswordResetRepository struct {
	CreateFunc                  func(ctx context.Context, token *models.PasswordResetToken) error
	GetByTokenHashFunc          func(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error)
	ConsumeTxFunc               func(ctx context.Context, tx pgx.Tx, tokenHash string) (*models.PasswordResetToken, error)
	InvalidateAllForAccountFunc func(ctx context.Context, accountID string) error
	CreatedTokens               []*models.PasswordResetToken
}

func (m *MockPasswordResetRepository) Create(ctx context.Context, token *models.PasswordResetToken) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, token)
	}
	m.CreatedTokens = append(m.CreatedTokens, token)
	return nil
}

func (m *MockPasswordResetRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error) {
	if m.GetByTokenHashFunc != nil {
		return m.GetByTokenHashFunc(ctx, tokenHash)
	}
	return nil, models.ErrNotFound
}

func (m *MockPasswordResetRepository) ConsumeTx(ctx context.Context, tx pgx.Tx, tokenHash string) (*models.PasswordResetToken, error) {
	if m.ConsumeTxFunc != nil {
		return m.ConsumeTxFunc(ctx, tx, tokenHash)
	}
	return nil, models.ErrNotFound
}

func (m *MockPasswordResetRepository) InvalidateAllForAccount(ctx context.Context, accountID string) error {
	if m.InvalidateAllForAccountFunc != nil {
		return m.InvalidateAllForAccountFunc(ctx, accountID)
	}
	return nil
}

// MockTxRunner implements TxRunner for testing; the callback runs with a nil
// transaction since mock repositories never touch it
type MockTxRunner struct {
	WithTransactionFunc func(ctx context.Context, fn func(pgx.Tx) error) error
}

func (m *MockTxRunner) WithTransaction(ctx context.Context, fn func(pgx.Tx) error) error {
	if m.WithTransactionFunc != nil {
		return m.WithTransactionFunc(ctx, fn)
	}
	return fn(nil)
}

// MockEmailService implements EmailService for testing
type MockEmailService struct {
	SendPasswordResetEmailFunc func(ctx context.Context, email, name, token string, expiresAt time.Time) error
	SentTokens                 []string
}

func (m *MockEmailService) SendPasswordResetEmail(ctx context.Context, email, name, token string, expiresAt time.Time) error {
	if m.SendPasswordResetEmailFunc != nil {
		return m.SendPasswordResetEmailFunc(ctx, email, name, token, expiresAt)
	}
	m.SentTokens = append(m.SentTokens, token)
	return nil
}

// NewTestAccount creates an active account for tests
func NewTestAccount(id string, loginNumber int, role string) *models.Account {
	now := time.Now()
	return &models.Account{
		ID:          id,
		LoginNumber: loginNumber,
		Name:        "Test Account",
		Email:       "test@example.com",
		Role:        role,
		Status:      models.StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NewTestAccountLocked creates an account locked for the given duration
func NewTestAccountLocked(id string, loginNumber int, role string, lockedFor time.Duration) *models.Account {
	account := NewTestAccount(id, loginNumber, role)
	until := time.Now().Add(lockedFor)
	lockedAt := time.Now()
	account.LockedUntil = &until
	account.AccountLockedAt = &lockedAt
	return account
}

// discardLogger returns a logger that drops everything
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// discardAuditLogger returns an audit logger backed by the discard logger
func discardAuditLogger() *pkglogger.AuditLogger {
	return pkglogger.NewAuditLogger(discardLogger())
}
