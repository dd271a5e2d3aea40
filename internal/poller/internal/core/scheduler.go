package core

// Arm schedules a one-shot wake-up after the polling interval when the
// poller is Stopped. It is a no-op while Armed or InFlight, and after Close.
func (p *Poller) Arm() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.armLocked()
}

// Disarm cancels a pending wake-up. An in-flight fetch is not interrupted;
// the poller stays InFlight until that cycle completes and then stops
// unless polling has been enabled again in the meantime.
func (p *Poller) Disarm() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disarmLocked()
}

func (p *Poller) armLocked() bool {
	if p.closed || p.state != Stopped {
		return false
	}

	p.timerSeq++
	seq := p.timerSeq
	p.timer = p.clock.AfterFunc(p.cfg.Interval, func() {
		p.fire(seq)
	})
	p.setStateLocked(Armed)
	p.logger.Debug("armed", "interval", p.cfg.Interval)
	return true
}

func (p *Poller) disarmLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	// Invalidate a wake-up whose callback is already running.
	p.timerSeq++
	if p.state == Armed {
		p.setStateLocked(Stopped)
	}
}

// fire is the timer callback. It runs one fetch cycle if the wake-up is the
// one currently armed; anything else is a spurious wake-up and is ignored.
func (p *Poller) fire(seq uint64) {
	p.mu.Lock()
	if p.closed || p.state != Armed || seq != p.timerSeq {
		p.mu.Unlock()
		p.health.RecordSpuriousWakeup()
		p.logger.Debug("ignoring spurious wake-up")
		return
	}
	p.timer = nil
	p.setStateLocked(InFlight)
	since := p.watermark
	generation := p.generation
	p.wg.Add(1)
	p.mu.Unlock()

	defer p.wg.Done()
	p.runFetchCycle(generation, since)
}
