package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pestopshq/pestops/internal/database"
	"github.com/pestopshq/pestops/internal/models"
)

const accountColumns = `id, login_number, name, email, role, status, password_hash,
	failed_login_attempts, locked_until, account_locked_at, password_changed_at,
	created_at, updated_at`

type AccountRepository struct {
	db *database.DB
}

func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// rowScanner interface for scanning account rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanAccountRow handles nullable fields and populates an Account model from a database row
func scanAccountRow(scanner rowScanner) (*models.Account, error) {
	var account models.Account
	var lockedUntil, accountLockedAt, passwordChangedAt *time.Time

	err := scanner.Scan(
		&account.ID, &account.LoginNumber, &account.Name, &account.Email,
		&account.Role, &account.Status, &account.PasswordHash,
		&account.FailedLoginAttempts, &lockedUntil, &accountLockedAt, &passwordChangedAt,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	account.LockedUntil = lockedUntil
	account.AccountLockedAt = accountLockedAt
	account.PasswordChangedAt = passwordChangedAt

	return &account, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	return scanAccountRow(r.db.Pool.QueryRow(ctx, query, id))
}

// GetByLoginNumber resolves the numeric suffix of a login identifier to an
// account. models.ErrNotFound means the number is unassigned.
func (r *AccountRepository) GetByLoginNumber(ctx context.Context, loginNumber int) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE login_number = $1`

	return scanAccountRow(r.db.Pool.QueryRow(ctx, query, loginNumber))
}

func (r *AccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	account.ID = uuid.New().String()

	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now

	if account.Status == "" {
		account.Status = models.StatusActive
	}

	query := `
		INSERT INTO accounts (id, login_number, name, email, role, status, password_hash, password_changed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + accountColumns

	return scanAccountRow(r.db.Pool.QueryRow(ctx, query,
		account.ID, account.LoginNumber, account.Name, account.Email,
		account.Role, account.Status, account.PasswordHash,
		account.PasswordChangedAt, account.CreatedAt, account.UpdatedAt,
	))
}

// IncrementFailedAttempts bumps the denormalized failure counter in a single
// statement and returns the new value. Concurrent failures each get a
// distinct count because the increment happens row-locked in the database,
// not read-modify-write in Go.
func (r *AccountRepository) IncrementFailedAttempts(ctx context.Context, id string) (int, error) {
	query := `
		UPDATE accounts
		SET failed_login_attempts = failed_login_attempts + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING failed_login_attempts
	`

	var count int
	if err := r.db.Pool.QueryRow(ctx, query, id).Scan(&count); err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

// LockIfUnlocked applies a lock only when no live lock exists. Two requests
// racing past the threshold both call this; the WHERE clause guarantees a
// single winner and the loser sees lockApplied=false.
func (r *AccountRepository) LockIfUnlocked(ctx context.Context, id string, until time.Time) (bool, error) {
	query := `
		UPDATE accounts
		SET locked_until = $2, account_locked_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND (locked_until IS NULL OR locked_until <= NOW())
	`

	result, err := r.db.Pool.Exec(ctx, query, id, until)
	if err != nil {
		return false, database.MapPostgresError(err)
	}
	return result.RowsAffected() > 0, nil
}

// ClearExpiredLock lazily clears a lock that has passed its expiry, along
// with the failure counter. The condition keeps it a no-op against a lock
// that is still live.
func (r *AccountRepository) ClearExpiredLock(ctx context.Context, id string) error {
	query := `
		UPDATE accounts
		SET locked_until = NULL, account_locked_at = NULL, failed_login_attempts = 0, updated_at = NOW()
		WHERE id = $1 AND locked_until IS NOT NULL AND locked_until <= NOW()
	`

	_, err := r.db.Pool.Exec(ctx, query, id)
	return database.MapPostgresError(err)
}

// RecordLoginSuccess resets the failure counter and any lock bookkeeping in
// one statement after a successful authentication.
func (r *AccountRepository) RecordLoginSuccess(ctx context.Context, id string) error {
	query := `
		UPDATE accounts
		SET failed_login_attempts = 0, locked_until = NULL, account_locked_at = NULL, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Unlock clears a lock unconditionally. Admin-initiated, unlike
// ClearExpiredLock which only touches expired locks.
func (r *AccountRepository) Unlock(ctx context.Context, id string) error {
	query := `
		UPDATE accounts
		SET locked_until = NULL, account_locked_at = NULL, failed_login_attempts = 0, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *AccountRepository) UpdatePasswordHash(ctx context.Context, id string, passwordHash string) error {
	query := `
		UPDATE accounts
		SET password_hash = $2, password_changed_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.Pool.Exec(ctx, query, id, passwordHash)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// UpdatePasswordHashTx is the transactional variant used by the reset flow,
// where the hash rotation must commit atomically with the token consume and
// session revocation.
func (r *AccountRepository) UpdatePasswordHashTx(ctx context.Context, tx pgx.Tx, id string, passwordHash string) error {
	query := `
		UPDATE accounts
		SET password_hash = $2, password_changed_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`

	result, err := tx.Exec(ctx, query, id, passwordHash)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`

	return scanAccountRow(r.db.Pool.QueryRow(ctx, query, email))
}

func (r *AccountRepository) List(ctx context.Context, limit, offset int) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY login_number LIMIT $1 OFFSET $2`

	rows, err := r.db.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]*models.Account, 0)
	for rows.Next() {
		account, err := scanAccountRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return accounts, nil
}
