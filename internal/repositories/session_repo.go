package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pestopshq/pestops/internal/database"
	"github.com/pestopshq/pestops/internal/models"
)

// SessionRepository handles database operations for live sessions. The rows
// here are the revocation authority for bearer tokens.
type SessionRepository struct {
	db *database.DB
}

// NewSessionRepository creates a new SessionRepository
func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (id, account_id, role_context, ip_address, user_agent, expires_at, last_activity, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		session.ID,
		session.AccountID,
		session.RoleContext,
		session.IPAddress,
		session.UserAgent,
		session.ExpiresAt,
		session.LastActivity,
		session.CreatedAt,
	)

	return database.MapPostgresError(err)
}

func (r *SessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	query := `
		SELECT id, account_id, role_context, ip_address, user_agent, expires_at, last_activity, created_at
		FROM sessions WHERE id = $1
	`

	var session models.Session
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&session.ID, &session.AccountID, &session.RoleContext,
		&session.IPAddress, &session.UserAgent,
		&session.ExpiresAt, &session.LastActivity, &session.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &session, nil
}

// Touch records activity on a session. It deliberately never moves
// expires_at: session lifetime is absolute from creation.
func (r *SessionRepository) Touch(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE sessions SET last_activity = $2 WHERE id = $1`

	_, err := r.db.Pool.Exec(ctx, query, id, at)
	return database.MapPostgresError(err)
}

// Delete removes a session. Deleting an already-gone session is not an
// error, so logout stays idempotent.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM sessions WHERE id = $1`

	_, err := r.db.Pool.Exec(ctx, query, id)
	return database.MapPostgresError(err)
}

// DeleteAllForAccount revokes every session belonging to an account and
// returns how many were removed.
func (r *SessionRepository) DeleteAllForAccount(ctx context.Context, accountID string) (int64, error) {
	query := `DELETE FROM sessions WHERE account_id = $1`

	result, err := r.db.Pool.Exec(ctx, query, accountID)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}

// DeleteAllForAccountTx is the transactional variant used by the reset flow.
func (r *SessionRepository) DeleteAllForAccountTx(ctx context.Context, tx pgx.Tx, accountID string) (int64, error) {
	query := `DELETE FROM sessions WHERE account_id = $1`

	result, err := tx.Exec(ctx, query, accountID)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}

// DeleteAllExcept revokes every other session for the account, keeping the
// one the caller is currently using. Used after an authenticated password
// change.
func (r *SessionRepository) DeleteAllExcept(ctx context.Context, accountID, keepSessionID string) (int64, error) {
	query := `DELETE FROM sessions WHERE account_id = $1 AND id != $2`

	result, err := r.db.Pool.Exec(ctx, query, accountID, keepSessionID)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}

// ListForAccount returns the live sessions for an account, newest first.
func (r *SessionRepository) ListForAccount(ctx context.Context, accountID string) ([]*models.Session, error) {
	query := `
		SELECT id, account_id, role_context, ip_address, user_agent, expires_at, last_activity, created_at
		FROM sessions
		WHERE account_id = $1 AND expires_at > NOW()
		ORDER BY created_at DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]*models.Session, 0)
	for rows.Next() {
		var session models.Session
		err := rows.Scan(
			&session.ID, &session.AccountID, &session.RoleContext,
			&session.IPAddress, &session.UserAgent,
			&session.ExpiresAt, &session.LastActivity, &session.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, &session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return sessions, nil
}

// DeleteExpired removes sessions past their absolute expiry and returns how
// many were swept.
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM sessions WHERE expires_at <= NOW()`

	result, err := r.db.Pool.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
