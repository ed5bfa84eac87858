package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backendToken(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	signed, err := token.SignedString([]byte("backend-only-secret"))
	require.NoError(t, err)
	return signed
}

func TestInspectReadsSubjectWithoutKey(t *testing.T) {
	now := time.Now()
	claims, err := CheckExpiry(backendToken(t, "42", now.Add(time.Hour)), now)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
}

func TestExpiredToken(t *testing.T) {
	now := time.Now()
	_, err := CheckExpiry(backendToken(t, "42", now.Add(-time.Minute)), now)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestGarbageToken(t *testing.T) {
	_, err := Inspect("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
