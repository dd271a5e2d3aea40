package feed

import (
	"sync"
	"time"
)

// Boundary remembers which changes were already handed out at the current
// watermark millisecond. Sources query inclusively (updated >= since), so
// that documents sharing the watermark's millisecond are not skipped, and
// use Boundary to drop the ones that were delivered before.
//
// A source widens its page by Delivered(collection, since) so that a page
// full of already-delivered documents still makes progress.
type Boundary struct {
	mu   sync.Mutex
	at   time.Time
	keys map[string]map[string]struct{}
}

// Delivered returns the number of changes of collection already handed out
// at since. It is zero unless since is the remembered boundary.
func (b *Boundary) Delivered(collection string, since time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.matchesLocked(since) {
		return 0
	}
	return len(b.keys[collection])
}

// Filter removes the changes already handed out at since from changes.
func (b *Boundary) Filter(since time.Time, changes []Change) []Change {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.matchesLocked(since) || len(b.keys) == 0 {
		return changes
	}
	out := changes[:0:0]
	for _, c := range changes {
		if _, ok := b.keys[c.Collection][c.Key]; ok {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Record remembers the changes of cs stamped at its SourceDateTime. When cs
// stays at since, the keys delivered earlier at since are kept as well.
func (b *Boundary) Record(since time.Time, cs *ChangeSet) {
	if cs == nil || cs.SourceDateTime == nil {
		return
	}
	at := cs.SourceDateTime.Truncate(time.Millisecond)

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.matchesLocked(since) || !at.Equal(b.at) {
		b.at = at
		b.keys = make(map[string]map[string]struct{})
	}
	for _, c := range cs.Changes {
		if !c.Timestamp.Truncate(time.Millisecond).Equal(at) {
			continue
		}
		set, ok := b.keys[c.Collection]
		if !ok {
			set = make(map[string]struct{})
			b.keys[c.Collection] = set
		}
		set[c.Key] = struct{}{}
	}
}

func (b *Boundary) matchesLocked(since time.Time) bool {
	return !b.at.IsZero() && b.at.Equal(since.Truncate(time.Millisecond))
}
