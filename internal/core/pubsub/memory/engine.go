// Package memory is an in-process pubsub.Provider. Messages are delivered to
// the consumers subscribed at publish time and are not stored.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/syntrixbase/feedwatch/internal/core/pubsub"
)

// ErrEngineClosed is returned when operating on a closed engine.
var ErrEngineClosed = errors.New("memory pubsub: engine is closed")

var _ pubsub.Provider = (*Engine)(nil)

// Engine routes published messages to matching subscriptions.
type Engine struct {
	mu     sync.RWMutex
	subs   map[*subscription]struct{}
	closed bool
}

type subscription struct {
	pattern string
	msgCh   chan pubsub.Message
	ctx     context.Context
	cancel  context.CancelFunc
}

func New() *Engine {
	return &Engine{subs: make(map[*subscription]struct{})}
}

func (e *Engine) NewPublisher(opts pubsub.PublisherOptions) (pubsub.Publisher, error) {
	if e.IsClosed() {
		return nil, ErrEngineClosed
	}
	return &publisher{engine: e, opts: opts}, nil
}

func (e *Engine) NewConsumer(opts pubsub.ConsumerOptions) (pubsub.Consumer, error) {
	if e.IsClosed() {
		return nil, ErrEngineClosed
	}
	return &consumer{engine: e, opts: opts}, nil
}

// Close ends every subscription. Safe to call more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	for sub := range e.subs {
		sub.cancel()
		close(sub.msgCh)
	}
	e.subs = nil
	return nil
}

func (e *Engine) IsClosed() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.closed
}

// publish blocks until every matching subscription accepted the message, ctx
// is done, or the subscription went away.
func (e *Engine) publish(ctx context.Context, subject string, data []byte) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrEngineClosed
	}

	now := time.Now()
	for sub := range e.subs {
		if !matchSubject(sub.pattern, subject) {
			continue
		}
		msg := &message{
			data:      data,
			subject:   subject,
			timestamp: now,
			delivered: 1,
			sub:       sub,
		}
		select {
		case sub.msgCh <- msg:
		case <-ctx.Done():
			return ctx.Err()
		case <-sub.ctx.Done():
		}
	}
	return nil
}

func (e *Engine) subscribe(ctx context.Context, pattern string, bufSize int) (<-chan pubsub.Message, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrEngineClosed
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		pattern: pattern,
		msgCh:   make(chan pubsub.Message, bufSize),
		ctx:     subCtx,
		cancel:  cancel,
	}
	e.subs[sub] = struct{}{}

	go func() {
		<-subCtx.Done()
		e.unsubscribe(sub)
	}()
	return sub.msgCh, nil
}

func (e *Engine) unsubscribe(sub *subscription) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.subs[sub]; !ok {
		return
	}
	delete(e.subs, sub)
	sub.cancel()
	close(sub.msgCh)
}

type publisher struct {
	engine *Engine
	opts   pubsub.PublisherOptions
}

func (p *publisher) Publish(ctx context.Context, subject string, data []byte) error {
	start := time.Now()
	fullSubject := pubsub.Subject(p.opts.SubjectPrefix, subject)

	err := p.engine.publish(ctx, fullSubject, data)

	if p.opts.OnPublish != nil {
		p.opts.OnPublish(fullSubject, err, time.Since(start))
	}
	return err
}

func (p *publisher) Close() error {
	return nil
}

type consumer struct {
	engine *Engine
	opts   pubsub.ConsumerOptions
}

func (c *consumer) Subscribe(ctx context.Context) (<-chan pubsub.Message, error) {
	pattern := c.opts.FilterSubject
	if pattern == "" {
		pattern = ">"
		if c.opts.StreamName != "" {
			pattern = c.opts.StreamName + ".>"
		}
	}

	bufSize := c.opts.ChannelBufSize
	if bufSize <= 0 {
		bufSize = pubsub.DefaultConsumerOptions().ChannelBufSize
	}
	return c.engine.subscribe(ctx, pattern, bufSize)
}
