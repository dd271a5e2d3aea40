package feed

import "time"

// Batch is one collection's answer to a since-query, in timestamp order.
// Truncated means the source had more changes than it returned.
type Batch struct {
	Changes   []Change
	Truncated bool
}

// Assemble merges per-collection batches into one ChangeSet whose
// SourceDateTime is the latest change timestamp. When any batch is
// truncated, changes after the earliest truncated batch's last timestamp
// are dropped so that the next since-query resumes there without skipping
// the unread remainder. Returns nil when there is nothing to report.
func Assemble(batches ...Batch) *ChangeSet {
	var cutoff time.Time
	total := 0
	for _, b := range batches {
		total += len(b.Changes)
		if !b.Truncated || len(b.Changes) == 0 {
			continue
		}
		last := b.Changes[len(b.Changes)-1].Timestamp
		if cutoff.IsZero() || last.Before(cutoff) {
			cutoff = last
		}
	}

	changes := make([]Change, 0, total)
	var latest time.Time
	for _, b := range batches {
		for _, c := range b.Changes {
			if !cutoff.IsZero() && c.Timestamp.After(cutoff) {
				continue
			}
			if c.Timestamp.After(latest) {
				latest = c.Timestamp
			}
			changes = append(changes, c)
		}
	}

	if len(changes) == 0 {
		return nil
	}
	return &ChangeSet{SourceDateTime: &latest, Changes: changes}
}
