package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/require"
)

var (
	t0     = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	secret = []byte("test-secret")
)

func hsToken(t *testing.T, key []byte, claims Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func sessionClaims(id, subject string, ttl time.Duration) Claims {
	c := Claims{RegisteredClaims: jwt.RegisteredClaims{
		ID:       id,
		Subject:  subject,
		IssuedAt: jwt.NewNumericDate(t0),
	}}
	if ttl > 0 {
		c.ExpiresAt = jwt.NewNumericDate(t0.Add(ttl))
	}
	return c
}

func newSource(t *testing.T) (*TokenSource, *testclock.Clock) {
	t.Helper()
	clk := testclock.NewClock(t0)
	v, err := NewVerifier(VerifierConfig{Secret: secret}, clk)
	require.NoError(t, err)
	src := NewTokenSource(v, clk, nil)
	t.Cleanup(src.Close)
	return src, clk
}
