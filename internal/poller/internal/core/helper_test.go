package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/syntrixbase/feedwatch/internal/feed"
	"github.com/syntrixbase/feedwatch/internal/poller/config"
)

const testInterval = 10 * time.Second

var (
	t0 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 = t0.Add(time.Minute)
	t2 = t0.Add(2 * time.Minute)

	errTimeout = errors.New("deadline exceeded")
)

type fetchResult struct {
	cs  *feed.ChangeSet
	err error
}

// fakeFeed is a scripted ChangeFeedService. When gated is set every call
// blocks until a result is sent on release.
type fakeFeed struct {
	mu      sync.Mutex
	since   []time.Time
	results []fetchResult

	gated   bool
	release chan fetchResult
	entered chan struct{}

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeFeed(results ...fetchResult) *fakeFeed {
	return &fakeFeed{results: results}
}

func newGatedFeed() *fakeFeed {
	return &fakeFeed{
		gated:   true,
		release: make(chan fetchResult),
		entered: make(chan struct{}, 16),
	}
}

func (f *fakeFeed) GetChangesSince(ctx context.Context, since time.Time) (*feed.ChangeSet, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxInFlight.Load()
		if n <= m || f.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}

	f.mu.Lock()
	f.since = append(f.since, since)
	var r fetchResult
	if len(f.results) > 0 {
		r = f.results[0]
		f.results = f.results[1:]
	}
	f.mu.Unlock()

	if f.gated {
		f.entered <- struct{}{}
		select {
		case r = <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return r.cs, r.err
}

func (f *fakeFeed) calls() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.since...)
}

type mockAvailability struct {
	mock.Mock
	entered atomic.Int32
}

func (m *mockAvailability) HasTrackableCollections(ctx context.Context) (bool, error) {
	m.entered.Add(1)
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func availableAlways(ok bool, err error) *mockAvailability {
	m := &mockAvailability{}
	m.On("HasTrackableCollections", mock.Anything).Return(ok, err)
	return m
}

func newTestPoller(t *testing.T, f feed.ChangeFeedService, a feed.AvailabilityService) (*Poller, *testclock.Clock) {
	t.Helper()
	clk := testclock.NewClock(t0)
	cfg := config.DefaultConfig()
	cfg.Interval = testInterval
	cfg.FetchTimeout = 5 * time.Second
	cfg.AvailabilityTimeout = 5 * time.Second

	p, err := New(cfg, Dependencies{Feed: f, Availability: a, Clock: clk}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p, clk
}

func changeSetAt(ts time.Time, collections ...string) *feed.ChangeSet {
	cs := &feed.ChangeSet{SourceDateTime: &ts}
	for _, c := range collections {
		cs.Changes = append(cs.Changes, feed.Change{Collection: c, Operation: feed.OperationUpdate, Timestamp: ts})
	}
	return cs
}

func authorized(session string) feed.Authorization {
	return feed.Authorization{Authenticated: true, SessionID: session, Subject: "tester"}
}

func unauthorized() feed.Authorization {
	return feed.Authorization{}
}

func waitState(t *testing.T, p *Poller, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return p.State() == want }, 2*time.Second, time.Millisecond,
		"state never became %s (is %s)", want, p.State())
}

// tick moves the test clock past one interval once a timer is pending.
func tick(t *testing.T, clk *testclock.Clock) {
	t.Helper()
	require.NoError(t, clk.WaitAdvance(testInterval, 2*time.Second, 1))
}

type setRecorder struct {
	mu   sync.Mutex
	sets []*feed.ChangeSet
}

func (r *setRecorder) handle(cs *feed.ChangeSet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sets = append(r.sets, cs)
}

func (r *setRecorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sets)
}
