package core

import (
	"context"
	"fmt"
	"time"

	"github.com/syntrixbase/feedwatch/internal/feed"
)

// HandleAuthorization applies an authorization transition.
//
// Every transition stops polling and starts a new session generation. On an
// authenticated transition the watermark is reset to the session start and
// the availability query runs in the background; its answer is applied only
// if no other transition happened meanwhile. Repeating the current
// authorization is a no-op.
//
// A new session id for the same subject while authenticated is a credential
// refresh: collaborators get the new token, polling and the watermark are
// left as they are.
func (p *Poller) HandleAuthorization(auth feed.Authorization) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	if auth.Authenticated == p.authorized && (!auth.Authenticated || auth.SessionID == p.session) {
		return
	}
	if auth.Authenticated && p.authorized && auth.Subject == p.subject {
		p.session = auth.SessionID
		p.forwardAuthorizationLocked(auth)
		p.logger.Debug("session credentials refreshed",
			"session", auth.SessionID,
			"subject", auth.Subject,
		)
		return
	}

	p.generation++
	generation := p.generation
	p.enabled = false
	p.disarmLocked()
	p.authorized = auth.Authenticated
	p.session = auth.SessionID
	p.subject = auth.Subject

	// Collaborators that forward credentials see the new session before any
	// call made on its behalf.
	p.forwardAuthorizationLocked(auth)

	if !auth.Authenticated {
		p.watermark = time.Time{}
		p.health.SetWatermark(p.watermark)
		p.logger.Info("session ended, polling stopped", "state", p.state)
		return
	}

	p.watermark = sessionStart(p.cfg.StartMode, p.clock.Now())
	p.health.SetWatermark(p.watermark)
	p.logger.Info("session authorized, checking availability",
		"session", auth.SessionID,
		"subject", auth.Subject,
		"watermark", p.watermark,
	)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.checkAvailability(generation)
	}()
}

func (p *Poller) forwardAuthorizationLocked(auth feed.Authorization) {
	for _, c := range []interface{}{p.feed, p.avail} {
		if ta, ok := c.(feed.TokenAware); ok {
			ta.SetAuthorization(auth)
		}
	}
}

// checkAvailability asks whether anything is worth tracking and enables
// polling for the session identified by generation.
func (p *Poller) checkAvailability(generation uint64) {
	ok, err := p.queryAvailability()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || generation != p.generation {
		p.health.RecordStale()
		p.logger.Debug("discarding availability result from an ended session", "available", ok)
		return
	}
	if err != nil {
		p.logger.Warn("availability query failed, polling stays stopped", "error", err)
		return
	}
	if !ok {
		p.logger.Info("no trackable collections, polling stays stopped")
		return
	}

	p.enabled = true
	p.armLocked()
	p.logger.Info("polling started", "interval", p.cfg.Interval)
}

func (p *Poller) queryAvailability() (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = fmt.Errorf("availability service panicked: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.AvailabilityTimeout)
	defer cancel()
	return p.avail.HasTrackableCollections(ctx)
}

// Run feeds authorization transitions from source into HandleAuthorization
// until ctx is done or the source closes its channel.
func (p *Poller) Run(ctx context.Context, source feed.AuthorizationSource) error {
	ch, err := source.Authorizations(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to authorization source: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case auth, ok := <-ch:
			if !ok {
				return nil
			}
			p.HandleAuthorization(auth)
		}
	}
}
