package core

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/syntrixbase/feedwatch/internal/feed"
	"github.com/syntrixbase/feedwatch/internal/poller/internal/publisher"
)

func withParcelsFilter() publisher.Option {
	return publisher.WithFilter(`change.collection == "parcels"`)
}

type slowFeed struct {
	delay       time.Duration
	calls       atomic.Int32
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (f *slowFeed) GetChangesSince(ctx context.Context, since time.Time) (*feed.ChangeSet, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxInFlight.Load()
		if n <= m || f.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}
	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	ts := since.Add(time.Second)
	return &feed.ChangeSet{SourceDateTime: &ts}, nil
}

type chanSource struct {
	ch chan feed.Authorization
}

func (s *chanSource) Authorizations(context.Context) (<-chan feed.Authorization, error) {
	return s.ch, nil
}

type tokenFeed struct {
	mu   sync.Mutex
	auth feed.Authorization
}

func (f *tokenFeed) SetAuthorization(auth feed.Authorization) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auth = auth
}

func (f *tokenFeed) GetChangesSince(context.Context, time.Time) (*feed.ChangeSet, error) {
	return nil, nil
}

// credentialFeed is a scripted feed that records forwarded tokens.
type credentialFeed struct {
	*fakeFeed

	mu  sync.Mutex
	got []string
}

func (f *credentialFeed) SetAuthorization(auth feed.Authorization) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, auth.Token)
}

func (f *credentialFeed) tokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.got...)
}
