package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/syntrixbase/feedwatch/internal/feed"
)

// runFetchCycle performs one GetChangesSince call with the watermark
// captured when the cycle started. Failures stay here; the deferred
// completion always runs and rearms while polling is enabled.
func (p *Poller) runFetchCycle(generation uint64, since time.Time) {
	defer p.completeCycle()

	cs, err := p.fetch(since)
	if err != nil {
		p.health.RecordError(err)
		p.logger.Warn("fetch failed, watermark unchanged", "since", since, "error", err)
		return
	}
	if cs == nil {
		p.health.RecordEmpty()
		p.logger.Debug("no changes", "since", since)
		return
	}

	if cs.ID == "" {
		cs.ID = uuid.NewString()
	}

	p.mu.Lock()
	if generation != p.generation {
		p.mu.Unlock()
		p.health.RecordStale()
		p.logger.Debug("discarding change set from an ended session", "change_set", cs.ID)
		return
	}
	if cs.SourceDateTime != nil {
		next, ok := advance(p.watermark, *cs.SourceDateTime)
		if !ok {
			p.logger.Warn("change set is older than the watermark, not advancing",
				"watermark", p.watermark,
				"source_date_time", *cs.SourceDateTime,
			)
		}
		p.watermark = next
		p.health.SetWatermark(next)
	}
	p.mu.Unlock()

	p.health.RecordChangeSet()
	p.logger.Debug("change set received",
		"change_set", cs.ID,
		"changes", len(cs.Changes),
		"collections", cs.Collections(),
	)
	p.pub.Publish(cs)
}

// fetch calls the change feed, converting a collaborator panic into an error.
func (p *Poller) fetch(since time.Time) (cs *feed.ChangeSet, err error) {
	defer func() {
		if r := recover(); r != nil {
			cs = nil
			err = fmt.Errorf("change feed panicked: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.FetchTimeout)
	defer cancel()
	return p.feed.GetChangesSince(ctx, since)
}

// completeCycle moves InFlight back to Stopped and rearms if the session
// still wants polling.
func (p *Poller) completeCycle() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.setStateLocked(Stopped)
	if p.enabled && p.authorized {
		p.armLocked()
	}
}
