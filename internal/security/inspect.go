package security

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenInfo is what the client can read from a bearer token without the signing key.
type TokenInfo struct {
	UserID    string
	Role      string
	ExpiresAt time.Time // zero when the token carries no exp
}

// Inspect decodes a JWT without verifying its signature. The backend remains the authority;
// the client only uses this to skip restoring a session whose token has visibly expired.
// Returns ErrInvalidToken for tokens that are not JWTs.
func Inspect(tokenString string) (*TokenInfo, error) {
	claims := &AccessClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, ErrInvalidToken
	}
	info := &TokenInfo{UserID: claims.UserID, Role: claims.Role}
	if info.UserID == "" {
		info.UserID = claims.Subject
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info, nil
}

// Expired reports whether token is a JWT whose exp is at or before now.
// Opaque tokens and JWTs without exp are never considered expired.
func Expired(tokenString string, now time.Time) bool {
	info, err := Inspect(tokenString)
	if err != nil || info.ExpiresAt.IsZero() {
		return false
	}
	return !info.ExpiresAt.After(now)
}
