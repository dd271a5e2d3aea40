package logging

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/juju/clock"
)

// maxRepeatKeys bounds the number of distinct records remembered before
// expired entries are pruned.
const maxRepeatKeys = 1024

// RepeatFilter suppresses records identical to one already written within
// window. The next identical record after the window passes and carries the
// number of suppressed copies as repeated_count. Identity is level, message,
// attributes and the attributes/groups bound through WithAttrs/WithGroup;
// the timestamp is ignored.
//
// Handlers derived with WithAttrs/WithGroup share the window state.
type RepeatFilter struct {
	handler slog.Handler
	scope   string
	state   *repeatState
}

type repeatState struct {
	mu     sync.Mutex
	clock  clock.Clock
	window time.Duration
	seen   map[uint64]*repeatEntry
}

type repeatEntry struct {
	since      time.Time
	suppressed int
}

// NewRepeatFilter wraps handler. A nil clk uses the wall clock.
func NewRepeatFilter(handler slog.Handler, window time.Duration, clk clock.Clock) *RepeatFilter {
	if clk == nil {
		clk = clock.WallClock
	}
	return &RepeatFilter{
		handler: handler,
		state: &repeatState{
			clock:  clk,
			window: window,
			seen:   make(map[uint64]*repeatEntry),
		},
	}
}

func (h *RepeatFilter) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *RepeatFilter) Handle(ctx context.Context, r slog.Record) error {
	key := h.hash(r)
	s := h.state

	s.mu.Lock()
	now := s.clock.Now()
	entry, ok := s.seen[key]
	if ok && now.Sub(entry.since) < s.window {
		entry.suppressed++
		s.mu.Unlock()
		return nil
	}
	suppressed := 0
	if ok {
		suppressed = entry.suppressed
	}
	s.seen[key] = &repeatEntry{since: now}
	if len(s.seen) > maxRepeatKeys {
		s.pruneLocked(now)
	}
	s.mu.Unlock()

	if suppressed > 0 {
		r = r.Clone()
		r.AddAttrs(slog.Int("repeated_count", suppressed))
	}
	return h.handler.Handle(ctx, r)
}

func (s *repeatState) pruneLocked(now time.Time) {
	for k, e := range s.seen {
		if now.Sub(e.since) >= s.window {
			delete(s.seen, k)
		}
	}
}

func (h *RepeatFilter) hash(r slog.Record) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(h.scope)
	_, _ = d.WriteString(r.Level.String())
	_, _ = d.WriteString("|")
	_, _ = d.WriteString(r.Message)
	r.Attrs(func(a slog.Attr) bool {
		_, _ = d.WriteString("|")
		_, _ = d.WriteString(a.String())
		return true
	})
	return d.Sum64()
}

func (h *RepeatFilter) WithAttrs(attrs []slog.Attr) slog.Handler {
	scope := h.scope
	for _, a := range attrs {
		scope += a.String() + ";"
	}
	return &RepeatFilter{handler: h.handler.WithAttrs(attrs), scope: scope, state: h.state}
}

func (h *RepeatFilter) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &RepeatFilter{
		handler: h.handler.WithGroup(name),
		scope:   h.scope + "group:" + name + ";",
		state:   h.state,
	}
}

// Close forgets all remembered records.
func (h *RepeatFilter) Close() error {
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	h.state.seen = make(map[uint64]*repeatEntry)
	return nil
}
