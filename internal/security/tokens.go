// Package security holds the client's token inspection, store key derivation and the
// HS256 issuer and password hasher used by the local fake backend.
package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed or fails validation.
	ErrInvalidToken = errors.New("invalid token")
)

// AccessClaims holds the JWT claims issued at login: the user id and role.
type AccessClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

// TokenIssuer issues and validates HS256 access tokens with a shared secret.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	nowF   func() time.Time
}

// NewTokenIssuer returns a TokenIssuer. ttl <= 0 defaults to 24h.
func NewTokenIssuer(secret []byte, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenIssuer{secret: secret, ttl: ttl, nowF: time.Now}
}

// Issue signs an access token for userID with role. Returns the token and its expiry.
func (p *TokenIssuer) Issue(userID, role string) (token string, expiresAt time.Time, err error) {
	if len(p.secret) == 0 {
		return "", time.Time{}, ErrInvalidToken
	}
	now := p.nowF().UTC()
	expiresAt = now.Add(p.ttl)
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID: userID,
		Role:   role,
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	return token, expiresAt, err
}

// Validate parses and verifies token (signature, exp). Returns the claims or ErrInvalidToken.
func (p *TokenIssuer) Validate(tokenString string) (*AccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); ok {
			return p.secret, nil
		}
		return nil, ErrInvalidToken
	}, jwt.WithTimeFunc(p.nowF), jwt.WithExpirationRequired())
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
