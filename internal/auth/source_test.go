package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syntrixbase/feedwatch/internal/feed"
)

func receive(t *testing.T, ch <-chan feed.Authorization) feed.Authorization {
	t.Helper()
	select {
	case a, ok := <-ch:
		require.True(t, ok, "channel closed")
		return a
	case <-time.After(2 * time.Second):
		t.Fatal("no authorization received")
		return feed.Authorization{}
	}
}

func TestAuthorizations_StartsWithCurrentState(t *testing.T) {
	src, _ := newSource(t)

	ch, err := src.Authorizations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, feed.Authorization{}, receive(t, ch))
}

func TestSetToken_EmitsAuthenticatedSession(t *testing.T) {
	src, _ := newSource(t)
	ch, err := src.Authorizations(context.Background())
	require.NoError(t, err)
	receive(t, ch)

	token := hsToken(t, secret, sessionClaims("jti-1", "user-1", time.Hour))
	require.NoError(t, src.SetToken(token))

	got := receive(t, ch)
	assert.True(t, got.Authenticated)
	assert.Equal(t, "jti-1", got.SessionID)
	assert.Equal(t, "user-1", got.Subject)
	assert.Equal(t, token, got.Token)
	assert.Equal(t, got, src.Current())
}

func TestSetToken_SameTokenIsNoOp(t *testing.T) {
	src, _ := newSource(t)
	token := hsToken(t, secret, sessionClaims("jti-1", "u", time.Hour))
	require.NoError(t, src.SetToken(token))

	ch, err := src.Authorizations(context.Background())
	require.NoError(t, err)
	receive(t, ch)

	require.NoError(t, src.SetToken(token))
	select {
	case a := <-ch:
		t.Fatalf("unexpected transition %+v", a)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSetToken_GeneratesSessionWithoutJTI(t *testing.T) {
	src, _ := newSource(t)
	require.NoError(t, src.SetToken(hsToken(t, secret, sessionClaims("", "u", time.Hour))))
	first := src.Current().SessionID
	assert.NotEmpty(t, first)

	require.NoError(t, src.SetToken(hsToken(t, secret, sessionClaims("", "v", time.Hour))))
	assert.NotEqual(t, first, src.Current().SessionID)
}

func TestSetToken_InvalidKeepsState(t *testing.T) {
	src, _ := newSource(t)
	require.NoError(t, src.SetToken(hsToken(t, secret, sessionClaims("jti-1", "u", time.Hour))))

	err := src.SetToken(hsToken(t, []byte("wrong"), sessionClaims("jti-2", "u", time.Hour)))
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Equal(t, "jti-1", src.Current().SessionID)
}

func TestClear(t *testing.T) {
	src, _ := newSource(t)
	require.NoError(t, src.SetToken(hsToken(t, secret, sessionClaims("jti-1", "u", time.Hour))))

	ch, err := src.Authorizations(context.Background())
	require.NoError(t, err)
	receive(t, ch)

	src.Clear()
	assert.False(t, receive(t, ch).Authenticated)

	// Clearing an unauthenticated source emits nothing.
	src.Clear()
	select {
	case a := <-ch:
		t.Fatalf("unexpected transition %+v", a)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestExpiry_EndsSession(t *testing.T) {
	src, clk := newSource(t)
	require.NoError(t, src.SetToken(hsToken(t, secret, sessionClaims("jti-1", "u", time.Minute))))

	ch, err := src.Authorizations(context.Background())
	require.NoError(t, err)
	assert.True(t, receive(t, ch).Authenticated)

	clk.Advance(time.Minute)

	got := receive(t, ch)
	assert.False(t, got.Authenticated)
	assert.False(t, src.Current().Authenticated)
}

func TestExpiry_ReplacedTokenNotExpiredByOldTimer(t *testing.T) {
	src, clk := newSource(t)
	require.NoError(t, src.SetToken(hsToken(t, secret, sessionClaims("old", "u", time.Minute))))
	require.NoError(t, src.SetToken(hsToken(t, secret, sessionClaims("new", "u", time.Hour))))

	clk.Advance(2 * time.Minute)
	time.Sleep(20 * time.Millisecond)

	assert.True(t, src.Current().Authenticated)
	assert.Equal(t, "new", src.Current().SessionID)
}

func TestAuthorizations_ConflatesForSlowConsumer(t *testing.T) {
	src, _ := newSource(t)
	ch, err := src.Authorizations(context.Background())
	require.NoError(t, err)

	require.NoError(t, src.SetToken(hsToken(t, secret, sessionClaims("a", "u", time.Hour))))
	require.NoError(t, src.SetToken(hsToken(t, secret, sessionClaims("b", "u", time.Hour))))

	assert.Equal(t, "b", receive(t, ch).SessionID)
}

func TestAuthorizations_ClosedOnContextDone(t *testing.T) {
	src, _ := newSource(t)
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := src.Authorizations(ctx)
	require.NoError(t, err)
	receive(t, ch)

	cancel()
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestClose(t *testing.T) {
	src, _ := newSource(t)
	ch, err := src.Authorizations(context.Background())
	require.NoError(t, err)
	receive(t, ch)

	src.Close()
	src.Close()

	_, ok := <-ch
	assert.False(t, ok)

	_, err = src.Authorizations(context.Background())
	assert.ErrorIs(t, err, feed.ErrClosed)
	assert.ErrorIs(t, src.SetToken(hsToken(t, secret, sessionClaims("a", "u", time.Hour))), feed.ErrClosed)
}
