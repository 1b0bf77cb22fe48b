package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/pestopshq/pestops/internal/models"
	pkghttp "github.com/pestopshq/pestops/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// PrincipalContextKey is the key for storing the authenticated principal in context
	PrincipalContextKey contextKey = "principal"
)

// Principal is the authenticated caller attached to a request once both the
// signed token and its referenced session have been validated.
type Principal struct {
	AccountID   string
	SessionID   string
	LoginNumber int
	Name        string
	RoleContext string // "admin" or "pco" for this session
}

// SessionValidator checks that the session referenced by a verified token is
// still live, refreshes its last-activity timestamp, and returns the
// principal for it.
type SessionValidator interface {
	Validate(ctx context.Context, sessionID string) (*Principal, error)
}

// RequireAuth rejects any request that does not carry a verified token
// referencing a live session. Every rejection branch has its own stable
// error code so clients can tell "log in again" apart from "token garbage"
// apart from "session revoked elsewhere".
func RequireAuth(tm *TokenManager, sessions SessionValidator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, code, err := authenticate(r, tm, sessions)
			if err != nil {
				if code == pkghttp.CodeInternal {
					pkghttp.WriteInternalError(w, "Internal server error")
					return
				}
				pkghttp.WriteUnauthorized(w, code, "Authentication required")
				return
			}

			ctx := context.WithValue(r.Context(), PrincipalContextKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth attempts the same pipeline as RequireAuth but swallows every
// failure and proceeds unauthenticated. Used by endpoints that behave
// differently for anonymous vs. authenticated callers.
func OptionalAuth(tm *TokenManager, sessions SessionValidator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, _, err := authenticate(r, tm, sessions)
			if err == nil && principal != nil {
				r = r.WithContext(context.WithValue(r.Context(), PrincipalContextKey, principal))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin enforces that the session was established under the admin
// role context. Must be used after RequireAuth.
func RequireAdmin() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := GetPrincipalFromContext(r)
			if principal == nil {
				pkghttp.WriteUnauthorized(w, pkghttp.CodeNoToken, "Authentication required")
				return
			}

			if principal.RoleContext != models.RoleAdmin {
				pkghttp.WriteForbidden(w, "Admin access required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// authenticate runs the per-request state machine:
// no token -> NO_TOKEN; bad signature/shape -> TOKEN_MALFORMED; past exp ->
// TOKEN_EXPIRED; verified but session dead -> SESSION_EXPIRED; store failure
// -> internal (never presented as an auth decision).
func authenticate(r *http.Request, tm *TokenManager, sessions SessionValidator) (*Principal, string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, pkghttp.CodeNoToken, models.ErrUnauthorized
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, pkghttp.CodeTokenMalformed, models.ErrTokenMalformed
	}

	claims, err := tm.Verify(parts[1])
	if err != nil {
		if errors.Is(err, models.ErrTokenExpired) {
			return nil, pkghttp.CodeTokenExpired, err
		}
		return nil, pkghttp.CodeTokenMalformed, models.ErrTokenMalformed
	}

	principal, err := sessions.Validate(r.Context(), claims.SessionID)
	if err != nil {
		if errors.Is(err, models.ErrSessionExpired) {
			return nil, pkghttp.CodeSessionExpired, err
		}
		return nil, pkghttp.CodeInternal, models.ErrInternalServer
	}

	// The session must belong to the account the token was minted for.
	if principal.AccountID != claims.AccountID {
		return nil, pkghttp.CodeSessionExpired, models.ErrSessionExpired
	}

	return principal, "", nil
}

// GetPrincipalFromContext extracts the authenticated principal from request context
func GetPrincipalFromContext(r *http.Request) *Principal {
	principal, ok := r.Context().Value(PrincipalContextKey).(*Principal)
	if !ok {
		return nil
	}
	return principal
}
