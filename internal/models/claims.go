package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims is the payload of a signed bearer token. The token carries
// no authority on its own: the referenced session row must also exist and
// be live before a request is authorized.
type AccessClaims struct {
	AccountID string `json:"account_id"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}
