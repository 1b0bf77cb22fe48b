package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pestopshq/pestops/internal/models"
)

// TokenManager mints and verifies signed bearer tokens. A token is proof of
// recent authentication only; the session row it references is the revocable
// authority, checked separately by the middleware.
type TokenManager struct {
	secret   string
	lifetime time.Duration
	now      func() time.Time
}

// NewTokenManager creates a new TokenManager. The lifetime should match the
// session's absolute lifetime so a token never outlives its session.
func NewTokenManager(secret string, lifetime time.Duration) *TokenManager {
	return &TokenManager{
		secret:   secret,
		lifetime: lifetime,
		now:      time.Now,
	}
}

// Issue creates a signed token carrying exactly {accountID, sessionID} plus
// the standard temporal claims. It returns the token and its expiry.
func (tm *TokenManager) Issue(accountID, sessionID string) (string, time.Time, error) {
	now := tm.now()
	expiresAt := now.Add(tm.lifetime)

	claims := &models.AccessClaims{
		AccountID: accountID,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(tm.secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, expiresAt, nil
}

// Verify checks signature and temporal claims only. It never consults the
// session store: a verified token for a revoked session is rejected later
// by the middleware's session check.
//
// Returns models.ErrTokenExpired or models.ErrTokenMalformed; the two are
// distinct stable failures because clients react differently to each.
func (tm *TokenManager) Verify(tokenString string) (*models.AccessClaims, error) {
	claims := &models.AccessClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(tm.secret), nil
	}, jwt.WithTimeFunc(func() time.Time { return tm.now() }))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, models.ErrTokenExpired
		}
		return nil, models.ErrTokenMalformed
	}

	if !token.Valid {
		return nil, models.ErrTokenMalformed
	}

	if claims.AccountID == "" || claims.SessionID == "" {
		return nil, models.ErrTokenMalformed
	}

	return claims, nil
}
