package core

// State is the polling state of a Poller.
//
// At most one of {timer pending, fetch in flight} holds at any instant:
// Armed means a wake-up is pending, InFlight means a fetch cycle runs and
// no wake-up is pending.
type State int

const (
	// Stopped: no wake-up pending, no fetch in flight.
	Stopped State = iota
	// Armed: a wake-up is pending.
	Armed
	// InFlight: a fetch cycle is executing.
	InFlight
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Armed:
		return "armed"
	case InFlight:
		return "in_flight"
	default:
		return "unknown"
	}
}
