package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pestopshq/pestops/internal/models"
)

const testSecret = "unit-test-secret-with-enough-length"

func TestTokenManager_IssueAndVerify(t *testing.T) {
	tm := NewTokenManager(testSecret, 24*time.Hour)

	token, expiresAt, err := tm.Issue("acct-1", "sess-1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), expiresAt, 5*time.Second)

	claims, err := tm.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "acct-1", claims.AccountID)
	assert.Equal(t, "sess-1", claims.SessionID)
}

func TestTokenManager_Verify_Expired(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tm := NewTokenManager(testSecret, 1*time.Hour)
	tm.now = func() time.Time { return base }

	token, _, err := tm.Issue("acct-1", "sess-1")
	require.NoError(t, err)

	// Just before expiry: valid
	tm.now = func() time.Time { return base.Add(59 * time.Minute) }
	_, err = tm.Verify(token)
	assert.NoError(t, err)

	// Just after expiry: the specific expired error, not malformed
	tm.now = func() time.Time { return base.Add(61 * time.Minute) }
	_, err = tm.Verify(token)
	assert.ErrorIs(t, err, models.ErrTokenExpired)
}

func TestTokenManager_Verify_Malformed(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Hour)

	cases := []string{
		"",
		"not-a-jwt",
		"aaaa.bbbb.cccc",
	}
	for _, tok := range cases {
		_, err := tm.Verify(tok)
		assert.ErrorIs(t, err, models.ErrTokenMalformed)
	}
}

func TestTokenManager_Verify_WrongSecret(t *testing.T) {
	issuer := NewTokenManager(testSecret, time.Hour)
	verifier := NewTokenManager("a-completely-different-secret-value", time.Hour)

	token, _, err := issuer.Issue("acct-1", "sess-1")
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, models.ErrTokenMalformed)
}

func TestTokenManager_Verify_MissingSessionClaim(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Hour)

	token, _, err := tm.Issue("acct-1", "")
	require.NoError(t, err)

	_, err = tm.Verify(token)
	assert.ErrorIs(t, err, models.ErrTokenMalformed)
}
