package core

import (
	"time"

	"github.com/syntrixbase/feedwatch/internal/poller/config"
)

// sessionStart returns the watermark a new session starts from.
func sessionStart(mode config.StartMode, now time.Time) time.Time {
	if mode == config.StartFromBeginning {
		return time.Time{}
	}
	return now
}

// advance returns the watermark after observing next. The watermark never
// moves backwards within a session.
func advance(current, next time.Time) (time.Time, bool) {
	if next.Before(current) {
		return current, false
	}
	return next, true
}
