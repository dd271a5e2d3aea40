// Package core implements the watermark change-feed poller.
package core

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/juju/clock"

	"github.com/syntrixbase/feedwatch/internal/feed"
	"github.com/syntrixbase/feedwatch/internal/poller/config"
	"github.com/syntrixbase/feedwatch/internal/poller/internal/health"
	"github.com/syntrixbase/feedwatch/internal/poller/internal/publisher"
)

// Dependencies are the collaborators a Poller consumes.
type Dependencies struct {
	Feed         feed.ChangeFeedService
	Availability feed.AvailabilityService
	// Clock drives the scheduler. Defaults to clock.WallClock.
	Clock clock.Clock
}

// Poller keeps a client in sync with a change feed.
//
// All polling state (state, pending timer, watermark, authorization and the
// session generation) lives under mu. The only call made without mu held
// that can suspend is the change-feed fetch itself.
type Poller struct {
	cfg    config.Config
	feed   feed.ChangeFeedService
	avail  feed.AvailabilityService
	clock  clock.Clock
	pub    *publisher.Publisher
	health *health.Checker
	logger *slog.Logger

	// ctx is the parent of every collaborator call; cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	state      State
	timer      clock.Timer
	timerSeq   uint64
	watermark  time.Time
	authorized bool
	session    string
	subject    string
	generation uint64
	enabled    bool
	closed     bool

	// wg tracks fetch cycles and availability queries.
	wg sync.WaitGroup
}

// New creates a stopped, unauthorized Poller.
func New(cfg config.Config, deps Dependencies, logger *slog.Logger) (*Poller, error) {
	if deps.Feed == nil {
		return nil, errors.New("poller: change feed service is required")
	}
	if deps.Availability == nil {
		return nil, errors.New("poller: availability service is required")
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.WallClock
	}

	pub, err := publisher.New(cfg.Subscriber.QueueLimit, logger)
	if err != nil {
		return nil, err
	}

	checker := health.NewChecker(logger)
	pub.OnSubscriberCount(checker.SetSubscriberCount)

	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		cfg:    cfg,
		feed:   deps.Feed,
		avail:  deps.Availability,
		clock:  clk,
		pub:    pub,
		health: checker,
		logger: logger.With("component", "poller"),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Subscribe registers a change-set handler.
func (p *Poller) Subscribe(name string, handler publisher.Handler, opts ...publisher.Option) (*publisher.Subscription, error) {
	return p.pub.Subscribe(name, handler, opts...)
}

// State returns the current polling state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Watermark returns the current watermark. The zero time means undefined.
func (p *Poller) Watermark() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.watermark
}

// Authorized reports whether the current session is authorized.
func (p *Poller) Authorized() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.authorized
}

// Health returns the poller's health checker.
func (p *Poller) Health() *health.Checker {
	return p.health
}

// Close stops polling, cancels in-flight collaborator calls, waits for them
// and closes the publisher. It is safe to call more than once.
func (p *Poller) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.enabled = false
	p.generation++
	p.disarmLocked()
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
	p.pub.Close()

	p.mu.Lock()
	p.setStateLocked(Stopped)
	p.mu.Unlock()

	p.logger.Info("poller closed")
	return nil
}

func (p *Poller) setStateLocked(s State) {
	p.state = s
	p.health.SetState(s.String())
}
