package publisher

import (
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/syntrixbase/feedwatch/internal/feed"
	"github.com/syntrixbase/feedwatch/internal/poller/internal/filter"
)

// Subscription is one subscriber's queue and delivery goroutine.
type Subscription struct {
	id      string
	name    string
	handler Handler
	prg     cel.Program
	limit   int
	owner   *Publisher

	mu        sync.Mutex
	queue     []*feed.ChangeSet
	stopped   bool
	drain     bool
	dropped   int
	delivered int
	signal    chan struct{}
	done      chan struct{}
}

func newSubscription(id, name string, handler Handler, prg cel.Program, limit int, owner *Publisher) *Subscription {
	return &Subscription{
		id:      id,
		name:    name,
		handler: handler,
		prg:     prg,
		limit:   limit,
		owner:   owner,
		signal:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// ID returns the subscription id.
func (s *Subscription) ID() string { return s.id }

// Name returns the name given at subscribe time.
func (s *Subscription) Name() string { return s.name }

// Dropped returns how many sets were discarded because the queue was full.
func (s *Subscription) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Delivered returns how many sets reached the handler.
func (s *Subscription) Delivered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delivered
}

// Done is closed once the delivery goroutine has exited.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Unsubscribe removes the subscription. Queued sets are discarded; a handler
// call already in progress finishes. It does not wait for the goroutine; use
// Done for that.
func (s *Subscription) Unsubscribe() {
	s.owner.remove(s.id)
	s.stop(false)
}

func (s *Subscription) enqueue(cs *feed.ChangeSet) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if s.limit > 0 && len(s.queue) >= s.limit {
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.dropped++
		s.owner.logger.Warn("subscriber queue full, dropped oldest change set",
			"subscriber", s.name,
			"limit", s.limit,
			"dropped_total", s.dropped,
		)
	}
	s.queue = append(s.queue, cs)
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *Subscription) stop(drain bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	s.drain = drain
	if !drain {
		s.queue = nil
	}
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// next pops the head of the queue. ok is false once the subscription is
// stopped and nothing is left to deliver.
func (s *Subscription) next() (cs *feed.ChangeSet, ok bool) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 && (!s.stopped || s.drain) {
			cs = s.queue[0]
			s.queue[0] = nil
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return cs, true
		}
		if s.stopped {
			s.mu.Unlock()
			return nil, false
		}
		s.mu.Unlock()
		<-s.signal
	}
}

func (s *Subscription) run() {
	defer close(s.done)
	for {
		cs, ok := s.next()
		if !ok {
			return
		}
		if out := filter.Apply(s.prg, cs); out != nil {
			s.deliver(out)
		}
	}
}

func (s *Subscription) deliver(cs *feed.ChangeSet) {
	defer func() {
		if r := recover(); r != nil {
			s.owner.logger.Error("subscriber handler panicked",
				"subscriber", s.name,
				"change_set", cs.ID,
				"panic", r,
			)
		}
	}()
	s.handler(cs)

	s.mu.Lock()
	s.delivered++
	s.mu.Unlock()
}
