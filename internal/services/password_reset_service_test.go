package services

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/pestopshq/pestops/internal/models"
)

func newResetService(accounts *MockAccountRepository, sessions *MockSessionRepository, tokens *MockPasswordResetRepository, email *MockEmailService) *PasswordResetService {
	return NewPasswordResetService(accounts, sessions, tokens, &MockTxRunner{}, email, time.Hour, discardLogger(), discardAuditLogger())
}

func TestPasswordResetService_RequestReset_UnknownNumberGenericSuccess(t *testing.T) {
	tokens := &MockPasswordResetRepository{}
	email := &MockEmailService{}
	svc := newResetService(&MockAccountRepository{}, &MockSessionRepository{}, tokens, email)

	// Unknown numbers succeed with no token and no email: the response shape
	// never reveals account existence.
	require.NoError(t, svc.RequestReset(context.Background(), 424242))
	assert.Empty(t, tokens.CreatedTokens)
	assert.Empty(t, email.SentTokens)
}

func TestPasswordResetService_RequestReset_InactiveAccountGenericSuccess(t *testing.T) {
	account := NewTestAccount("acct-1", 12345, models.RoleAdmin)
	account.Status = models.StatusInactive

	tokens := &MockPasswordResetRepository{}
	accounts := &MockAccountRepository{
		GetByLoginNumberFunc: func(ctx context.Context, n int) (*models.Account, error) {
			return account, nil
		},
	}
	svc := newResetService(accounts, &MockSessionRepository{}, tokens, &MockEmailService{})

	require.NoError(t, svc.RequestReset(context.Background(), 12345))
	assert.Empty(t, tokens.CreatedTokens)
}

func TestPasswordResetService_RequestReset_IssuesHashedToken(t *testing.T) {
	account := NewTestAccount("acct-1", 12345, models.RoleAdmin)

	invalidated := false
	accounts := &MockAccountRepository{
		GetByLoginNumberFunc: func(ctx context.Context, n int) (*models.Account, error) {
			return account, nil
		},
	}
	tokens := &MockPasswordResetRepository{
		InvalidateAllForAccountFunc: func(ctx context.Context, accountID string) error {
			invalidated = true
			return nil
		},
	}
	email := &MockEmailService{}
	svc := newResetService(accounts, &MockSessionRepository{}, tokens, email)

	require.NoError(t, svc.RequestReset(context.Background(), 12345))

	assert.True(t, invalidated, "a fresh token retires its predecessors")
	require.Len(t, tokens.CreatedTokens, 1)
	require.Len(t, email.SentTokens, 1)

	stored := tokens.CreatedTokens[0]
	mailed := email.SentTokens[0]

	// The mailed plaintext never equals the stored value; only its hash is
	// persisted, and hashing the plaintext reproduces it.
	assert.NotEqual(t, mailed, stored.TokenHash)
	assert.Equal(t, hashResetToken(mailed), stored.TokenHash)
	assert.WithinDuration(t, time.Now().Add(time.Hour), stored.ExpiresAt, 5*time.Second)
}

func TestPasswordResetService_RequestReset_EmailFailureStillSucceeds(t *testing.T) {
	account := NewTestAccount("acct-1", 12345, models.RoleAdmin)
	accounts := &MockAccountRepository{
		GetByLoginNumberFunc: func(ctx context.Context, n int) (*models.Account, error) {
			return account, nil
		},
	}
	tokens := &MockPasswordResetRepository{}
	email := &MockEmailService{
		SendPasswordResetEmailFunc: func(ctx context.Context, email, name, token string, expiresAt time.Time) error {
			return models.ErrInternalServer
		},
	}
	svc := newResetService(accounts, &MockSessionRepository{}, tokens, email)

	// The token is already persisted and remains usable via support.
	require.NoError(t, svc.RequestReset(context.Background(), 12345))
	assert.Len(t, tokens.CreatedTokens, 1)
}

func TestPasswordResetService_VerifyToken(t *testing.T) {
	account := NewTestAccount("acct-1", 12345, models.RoleAdmin)
	account.Name = "Dana Vega"
	plaintext := "the-reset-token"

	tokens := &MockPasswordResetRepository{
		GetByTokenHashFunc: func(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error) {
			if tokenHash == hashResetToken(plaintext) {
				return &models.PasswordResetToken{
					AccountID: "acct-1",
					TokenHash: tokenHash,
					ExpiresAt: time.Now().Add(30 * time.Minute),
				}, nil
			}
			return nil, models.ErrNotFound
		},
	}
	accounts := &MockAccountRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Account, error) {
			return account, nil
		},
	}
	svc := newResetService(accounts, &MockSessionRepository{}, tokens, &MockEmailService{})

	info, err := svc.VerifyToken(context.Background(), plaintext)
	require.NoError(t, err)
	assert.Equal(t, "Dana Vega", info.Name)
	assert.Equal(t, 12345, info.LoginNumber)

	_, err = svc.VerifyToken(context.Background(), "some-other-token")
	assert.ErrorIs(t, err, models.ErrInvalidOrExpiredToken)
}

func TestPasswordResetService_VerifyToken_ExpiredOrUsed(t *testing.T) {
	used := time.Now().Add(-time.Minute)
	cases := map[string]*models.PasswordResetToken{
		"expired": {AccountID: "acct-1", ExpiresAt: time.Now().Add(-time.Minute)},
		"used":    {AccountID: "acct-1", ExpiresAt: time.Now().Add(time.Hour), UsedAt: &used},
	}

	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			tokens := &MockPasswordResetRepository{
				GetByTokenHashFunc: func(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error) {
					return token, nil
				},
			}
			svc := newResetService(&MockAccountRepository{}, &MockSessionRepository{}, tokens, &MockEmailService{})

			_, err := svc.VerifyToken(context.Background(), "whatever")
			assert.ErrorIs(t, err, models.ErrInvalidOrExpiredToken)
		})
	}
}

func TestPasswordResetService_ResetPassword_Success(t *testing.T) {
	plaintext := "the-reset-token"

	var newHash string
	var revokedAccount string
	tokens := &MockPasswordResetRepository{
		ConsumeTxFunc: func(ctx context.Context, tx pgx.Tx, tokenHash string) (*models.PasswordResetToken, error) {
			assert.Equal(t, hashResetToken(plaintext), tokenHash)
			now := time.Now()
			return &models.PasswordResetToken{AccountID: "acct-1", TokenHash: tokenHash, ExpiresAt: now.Add(time.Hour), UsedAt: &now}, nil
		},
	}
	accounts := &MockAccountRepository{
		UpdatePasswordHashTxFunc: func(ctx context.Context, tx pgx.Tx, id, hash string) error {
			newHash = hash
			return nil
		},
	}
	sessions := &MockSessionRepository{
		DeleteAllForAccountTxFunc: func(ctx context.Context, tx pgx.Tx, accountID string) (int64, error) {
			revokedAccount = accountID
			return 2, nil
		},
	}
	svc := newResetService(accounts, sessions, tokens, &MockEmailService{})

	require.NoError(t, svc.ResetPassword(context.Background(), plaintext, "New-password1!"))

	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(newHash), []byte("New-password1!")))
	// Every session goes, including the one that asked for the reset.
	assert.Equal(t, "acct-1", revokedAccount)
}

func TestPasswordResetService_ResetPassword_SingleUse(t *testing.T) {
	// The conditional consume matches zero rows on a second use; nothing else
	// in the transaction may run.
	rotated := false
	tokens := &MockPasswordResetRepository{
		ConsumeTxFunc: func(ctx context.Context, tx pgx.Tx, tokenHash string) (*models.PasswordResetToken, error) {
			return nil, models.ErrNotFound
		},
	}
	accounts := &MockAccountRepository{
		UpdatePasswordHashTxFunc: func(ctx context.Context, tx pgx.Tx, id, hash string) error {
			rotated = true
			return nil
		},
	}
	svc := newResetService(accounts, &MockSessionRepository{}, tokens, &MockEmailService{})

	err := svc.ResetPassword(context.Background(), "already-used", "New-password1!")
	assert.ErrorIs(t, err, models.ErrInvalidOrExpiredToken)
	assert.False(t, rotated)
}

func TestPasswordResetService_ResetPassword_WeakPassword(t *testing.T) {
	consumed := false
	tokens := &MockPasswordResetRepository{
		ConsumeTxFunc: func(ctx context.Context, tx pgx.Tx, tokenHash string) (*models.PasswordResetToken, error) {
			consumed = true
			return nil, models.ErrNotFound
		},
	}
	svc := newResetService(&MockAccountRepository{}, &MockSessionRepository{}, tokens, &MockEmailService{})

	err := svc.ResetPassword(context.Background(), "the-token", "weak")
	assert.Error(t, err)
	assert.False(t, consumed, "a weak password must not burn the token")
}

func TestPasswordResetService_ResetPassword_RotationFailureRollsBack(t *testing.T) {
	// Any failure inside the transaction leaves no partial mutation; the
	// caller sees a server error, not a consumed token.
	tokens := &MockPasswordResetRepository{
		ConsumeTxFunc: func(ctx context.Context, tx pgx.Tx, tokenHash string) (*models.PasswordResetToken, error) {
			now := time.Now()
			return &models.PasswordResetToken{AccountID: "acct-1", ExpiresAt: now.Add(time.Hour), UsedAt: &now}, nil
		},
	}
	accounts := &MockAccountRepository{
		UpdatePasswordHashTxFunc: func(ctx context.Context, tx pgx.Tx, id, hash string) error {
			return models.ErrInternalServer
		},
	}
	svc := newResetService(accounts, &MockSessionRepository{}, tokens, &MockEmailService{})

	err := svc.ResetPassword(context.Background(), "the-token", "New-password1!")
	assert.ErrorIs(t, err, models.ErrInternalServer)
}
