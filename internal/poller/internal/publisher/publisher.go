// Package publisher fans change sets out to in-process subscribers.
//
// Every subscriber owns a FIFO queue and a delivery goroutine. Publish only
// appends to the queues, so it never waits on a subscriber; a slow handler
// grows its own queue and a panicking handler is recovered without affecting
// anyone else.
package publisher

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/uuid"

	"github.com/syntrixbase/feedwatch/internal/feed"
	"github.com/syntrixbase/feedwatch/internal/poller/internal/filter"
)

// Handler receives change sets for one subscriber, in publish order.
type Handler func(cs *feed.ChangeSet)

// Option configures a subscription.
type Option func(*subscribeOptions)

type subscribeOptions struct {
	filter     string
	queueLimit int
	hasLimit   bool
}

// WithFilter delivers only the changes matching a CEL expression over the
// variable "change". Sets left empty by the filter are skipped.
func WithFilter(expr string) Option {
	return func(o *subscribeOptions) {
		o.filter = expr
	}
}

// WithQueueLimit overrides the publisher's default queue limit for one
// subscription. 0 means unbounded.
func WithQueueLimit(n int) Option {
	return func(o *subscribeOptions) {
		o.queueLimit = n
		o.hasLimit = true
	}
}

// Publisher broadcasts change sets to subscribers.
type Publisher struct {
	logger     *slog.Logger
	compiler   *filter.Compiler
	queueLimit int

	mu      sync.RWMutex
	subs    map[string]*Subscription
	closed  bool
	onCount func(n int)
	wg      sync.WaitGroup
}

// New creates a publisher. queueLimit is the default per-subscriber queue
// bound (0 = unbounded).
func New(queueLimit int, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	compiler, err := filter.NewCompiler()
	if err != nil {
		return nil, err
	}
	return &Publisher{
		logger:     logger.With("component", "publisher"),
		compiler:   compiler,
		queueLimit: queueLimit,
		subs:       make(map[string]*Subscription),
	}, nil
}

// Subscribe registers a handler. The name is informational and shows up in logs.
func (p *Publisher) Subscribe(name string, handler Handler, opts ...Option) (*Subscription, error) {
	if handler == nil {
		return nil, fmt.Errorf("subscriber %q: handler is required", name)
	}

	o := subscribeOptions{queueLimit: p.queueLimit}
	for _, opt := range opts {
		opt(&o)
	}
	if o.queueLimit < 0 {
		return nil, fmt.Errorf("subscriber %q: queue limit must not be negative", name)
	}

	var prg cel.Program
	if o.filter != "" {
		var err error
		prg, err = p.compiler.Compile(o.filter)
		if err != nil {
			return nil, fmt.Errorf("subscriber %q: %w", name, err)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, feed.ErrClosed
	}

	sub := newSubscription(uuid.NewString(), name, handler, prg, o.queueLimit, p)
	p.subs[sub.id] = sub

	p.countChangedLocked()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		sub.run()
	}()

	p.logger.Debug("subscriber added", "id", sub.id, "name", name, "filter", o.filter)
	return sub, nil
}

// Publish enqueues cs for every subscriber and returns immediately.
func (p *Publisher) Publish(cs *feed.ChangeSet) {
	if cs == nil {
		return
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	for _, sub := range p.subs {
		sub.enqueue(cs)
	}
}

// OnSubscriberCount registers fn to be called with the number of active
// subscriptions whenever it changes.
func (p *Publisher) OnSubscriberCount(fn func(n int)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onCount = fn
}

// SubscriberCount returns the number of active subscriptions.
func (p *Publisher) SubscriberCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subs)
}

// Close stops accepting change sets, lets every subscriber drain its queue
// and waits for the delivery goroutines to exit.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for _, sub := range p.subs {
		sub.stop(true)
	}
	p.subs = make(map[string]*Subscription)
	p.countChangedLocked()
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Publisher) remove(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.subs[id]; !ok {
		return
	}
	delete(p.subs, id)
	p.countChangedLocked()
}

func (p *Publisher) countChangedLocked() {
	if p.onCount != nil {
		p.onCount(len(p.subs))
	}
}
