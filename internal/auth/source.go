// Package auth turns session tokens into poller authorization transitions.
//
// A TokenSource holds the current session. SetToken verifies a JWT and
// starts an authenticated session identified by the token's jti; Clear and
// token expiry end it. Consumers obtained through Authorizations see the
// latest state only: a slow consumer skips intermediate states.
package auth

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/syntrixbase/feedwatch/internal/feed"
)

// TokenSource implements feed.AuthorizationSource.
type TokenSource struct {
	verifier *Verifier
	clock    clock.Clock
	logger   *slog.Logger

	mu      sync.Mutex
	current feed.Authorization
	expiry  clock.Timer
	seq     uint64
	subs    map[chan feed.Authorization]struct{}
	closed  bool
	done    chan struct{}
}

var _ feed.AuthorizationSource = (*TokenSource)(nil)

// NewTokenSource creates an unauthenticated source. A nil clock uses the
// wall clock.
func NewTokenSource(verifier *Verifier, clk clock.Clock, logger *slog.Logger) *TokenSource {
	if clk == nil {
		clk = clock.WallClock
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenSource{
		verifier: verifier,
		clock:    clk,
		logger:   logger.With("component", "auth"),
		subs:     make(map[chan feed.Authorization]struct{}),
		done:     make(chan struct{}),
	}
}

// SetToken verifies token and starts an authenticated session. An invalid
// token leaves the current state untouched. Setting the token of the
// current session again is a no-op.
func (s *TokenSource) SetToken(token string) error {
	claims, err := s.verifier.Verify(token)
	if err != nil {
		return err
	}

	session := claims.ID
	if session == "" {
		session = uuid.New().String()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return feed.ErrClosed
	}
	if s.current.Authenticated && s.current.Token == token {
		return nil
	}

	s.stopExpiryLocked()
	if exp := claims.expiry(); !exp.IsZero() {
		seq := s.seq
		s.expiry = s.clock.AfterFunc(exp.Sub(s.clock.Now()), func() { s.expire(seq) })
	}

	s.setLocked(feed.Authorization{
		Authenticated: true,
		SessionID:     session,
		Subject:       claims.subject(),
		Token:         token,
	})
	s.logger.Info("Session authenticated", "session", session, "subject", claims.subject(), "expires_at", claims.expiry())
	return nil
}

// Clear ends the current session.
func (s *TokenSource) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.current.Authenticated {
		return
	}
	s.stopExpiryLocked()
	s.logger.Info("Session cleared", "session", s.current.SessionID)
	s.setLocked(feed.Authorization{})
}

func (s *TokenSource) expire(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || seq != s.seq || !s.current.Authenticated {
		return
	}
	s.logger.Info("Session token expired", "session", s.current.SessionID)
	s.expiry = nil
	s.setLocked(feed.Authorization{})
}

// Current returns the current authorization state.
func (s *TokenSource) Current() feed.Authorization {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Authorizations returns a channel that immediately carries the current
// state and then every later transition. The channel is closed when ctx
// is done or the source is closed.
func (s *TokenSource) Authorizations(ctx context.Context) (<-chan feed.Authorization, error) {
	ch := make(chan feed.Authorization, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, feed.ErrClosed
	}
	s.subs[ch] = struct{}{}
	ch <- s.current
	s.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-s.done:
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[ch]; ok {
			delete(s.subs, ch)
			close(ch)
		}
	}()
	return ch, nil
}

// Close ends every subscription.
func (s *TokenSource) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
	s.stopExpiryLocked()
	for ch := range s.subs {
		delete(s.subs, ch)
		close(ch)
	}
}

func (s *TokenSource) stopExpiryLocked() {
	s.seq++
	if s.expiry != nil {
		s.expiry.Stop()
		s.expiry = nil
	}
}

// setLocked records the new state and replaces whatever undelivered state
// each subscriber still holds.
func (s *TokenSource) setLocked(auth feed.Authorization) {
	s.current = auth
	for ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- auth
	}
}
