package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pestopshq/pestops/internal/database"
	"github.com/pestopshq/pestops/internal/models"
)

// LoginAttemptRepository handles database operations for the append-only
// login attempt audit trail.
type LoginAttemptRepository struct {
	db *database.DB
}

// NewLoginAttemptRepository creates a new LoginAttemptRepository
func NewLoginAttemptRepository(db *database.DB) *LoginAttemptRepository {
	return &LoginAttemptRepository{db: db}
}

// Record inserts a login attempt row. account_id stays NULL when the
// identifier never resolved to an account.
func (r *LoginAttemptRepository) Record(ctx context.Context, attempt *models.LoginAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.New().String()
	}
	if attempt.AttemptTime.IsZero() {
		attempt.AttemptTime = time.Now()
	}

	query := `
		INSERT INTO login_attempts (id, account_id, login_input, ip_address, user_agent, success, failure_reason, attempt_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		attempt.ID,
		attempt.AccountID,
		attempt.LoginInput,
		attempt.IPAddress,
		attempt.UserAgent,
		attempt.Success,
		attempt.FailureReason,
		attempt.AttemptTime,
	)

	return err
}

// CountRecentFailures returns the number of failed attempts attributed to
// an account since the given instant. This is the window-scoped count the
// lockout policy compares against the denormalized counter.
func (r *LoginAttemptRepository) CountRecentFailures(ctx context.Context, accountID string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM login_attempts
		WHERE account_id = $1 AND success = false AND attempt_time >= $2
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, accountID, since).Scan(&count)
	return count, err
}

// CountRecentFailuresByIP returns the number of failed attempts from an IP
// within a time window, regardless of which accounts were targeted.
func (r *LoginAttemptRepository) CountRecentFailuresByIP(ctx context.Context, ipAddress string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM login_attempts
		WHERE ip_address = $1 AND success = false AND attempt_time >= $2
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, ipAddress, since).Scan(&count)
	return count, err
}

// ListRecent returns the newest attempts for an account, most recent first.
func (r *LoginAttemptRepository) ListRecent(ctx context.Context, accountID string, limit int) ([]*models.LoginAttempt, error) {
	query := `
		SELECT id, account_id, login_input, ip_address, user_agent, success, failure_reason, attempt_time
		FROM login_attempts
		WHERE account_id = $1
		ORDER BY attempt_time DESC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query login attempts: %w", err)
	}
	defer rows.Close()

	attempts := make([]*models.LoginAttempt, 0)
	for rows.Next() {
		var attempt models.LoginAttempt
		err := rows.Scan(
			&attempt.ID, &attempt.AccountID, &attempt.LoginInput,
			&attempt.IPAddress, &attempt.UserAgent, &attempt.Success,
			&attempt.FailureReason, &attempt.AttemptTime,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan login attempt: %w", err)
		}
		attempts = append(attempts, &attempt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return attempts, nil
}

// DeleteOlderThan prunes audit rows past the retention horizon and returns
// how many were removed.
func (r *LoginAttemptRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM login_attempts WHERE attempt_time < $1`

	result, err := r.db.Pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
