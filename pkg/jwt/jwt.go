// Package jwt inspects session tokens issued by the companion backend.
// The client never holds the signing key, so tokens are decoded without
// verification and only used to decide whether a stored session is stale.
package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims are the fields the backend puts in its tokens.
type Claims struct {
	jwt.RegisteredClaims
}

// Inspect decodes a token without checking its signature.
func Inspect(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, _, err := jwt.NewParser().ParseUnverified(tokenString, claims)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// CheckExpiry returns ErrExpiredToken when the token's exp is at or before now.
// Tokens without an exp claim never expire.
func CheckExpiry(tokenString string, now time.Time) (*Claims, error) {
	claims, err := Inspect(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.ExpiresAt != nil && !now.Before(claims.ExpiresAt.Time) {
		return claims, ErrExpiredToken
	}
	return claims, nil
}
