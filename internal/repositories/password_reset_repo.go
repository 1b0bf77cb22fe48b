package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pestopshq/pestops/internal/database"
	"github.com/pestopshq/pestops/internal/models"
)

// PasswordResetRepository handles database operations for single-use
// password reset tokens. Only token hashes are ever stored.
type PasswordResetRepository struct {
	db *database.DB
}

// NewPasswordResetRepository creates a new PasswordResetRepository
func NewPasswordResetRepository(db *database.DB) *PasswordResetRepository {
	return &PasswordResetRepository{db: db}
}

func (r *PasswordResetRepository) Create(ctx context.Context, token *models.PasswordResetToken) error {
	if token.ID == "" {
		token.ID = uuid.New().String()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO password_reset_tokens (id, account_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		token.ID, token.AccountID, token.TokenHash, token.ExpiresAt, token.CreatedAt,
	)

	return database.MapPostgresError(err)
}

// GetByTokenHash looks up a reset token by the hash of its presented value.
// models.ErrNotFound covers both "never issued" and "already pruned".
func (r *PasswordResetRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error) {
	query := `
		SELECT id, account_id, token_hash, expires_at, used_at, created_at
		FROM password_reset_tokens WHERE token_hash = $1
	`

	var token models.PasswordResetToken
	err := r.db.Pool.QueryRow(ctx, query, tokenHash).Scan(
		&token.ID, &token.AccountID, &token.TokenHash,
		&token.ExpiresAt, &token.UsedAt, &token.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &token, nil
}

// ConsumeTx marks a token used inside a transaction. The WHERE clause makes
// consumption conditional: an already-used or expired token updates zero
// rows, so two racing resets with the same token get exactly one winner.
func (r *PasswordResetRepository) ConsumeTx(ctx context.Context, tx pgx.Tx, tokenHash string) (*models.PasswordResetToken, error) {
	query := `
		UPDATE password_reset_tokens
		SET used_at = NOW()
		WHERE token_hash = $1 AND used_at IS NULL AND expires_at > NOW()
		RETURNING id, account_id, token_hash, expires_at, used_at, created_at
	`

	var token models.PasswordResetToken
	err := tx.QueryRow(ctx, query, tokenHash).Scan(
		&token.ID, &token.AccountID, &token.TokenHash,
		&token.ExpiresAt, &token.UsedAt, &token.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &token, nil
}

// InvalidateAllForAccount marks every outstanding token for an account as
// used. Issuing a fresh token retires its predecessors.
func (r *PasswordResetRepository) InvalidateAllForAccount(ctx context.Context, accountID string) error {
	query := `
		UPDATE password_reset_tokens
		SET used_at = NOW()
		WHERE account_id = $1 AND used_at IS NULL
	`

	_, err := r.db.Pool.Exec(ctx, query, accountID)
	return database.MapPostgresError(err)
}

// DeleteExpired prunes tokens that are past expiry or already consumed, and
// returns how many were removed.
func (r *PasswordResetRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM password_reset_tokens WHERE expires_at <= NOW() OR used_at IS NOT NULL`

	result, err := r.db.Pool.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
