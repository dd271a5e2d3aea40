// Package relay republishes poller change sets to a message broker.
//
// Each change set is split by collection and every part is published as one
// JSON message on "<collection>" through a pubsub.Publisher, which prepends
// its subject prefix. Consumers can subscribe to a single collection or to
// "<prefix>.>" for everything.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/syntrixbase/feedwatch/internal/core/pubsub"
	"github.com/syntrixbase/feedwatch/internal/feed"
	"github.com/syntrixbase/feedwatch/internal/poller"
)

const (
	subscriberName        = "relay"
	defaultPublishTimeout = 10 * time.Second
)

// Message is the JSON body of a relayed message.
type Message struct {
	ChangeSetID    string        `json:"changeSetId"`
	SourceDateTime *time.Time    `json:"sourceDateTime,omitempty"`
	Collection     string        `json:"collection"`
	Changes        []feed.Change `json:"changes"`
}

// Relay publishes change sets. It is a poller.Handler.
type Relay struct {
	pub     pubsub.Publisher
	timeout time.Duration
	logger  *slog.Logger

	published atomic.Int64
	failed    atomic.Int64
}

// New returns a relay publishing through pub. A zero timeout uses 10s per
// message.
func New(pub pubsub.Publisher, timeout time.Duration, logger *slog.Logger) *Relay {
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		pub:     pub,
		timeout: timeout,
		logger:  logger.With("component", "relay"),
	}
}

// Attach subscribes the relay to svc. An empty filter relays every change.
func (r *Relay) Attach(svc poller.Service, filter string, queueLimit int) (*poller.Subscription, error) {
	opts := []poller.Option{poller.WithQueueLimit(queueLimit)}
	if filter != "" {
		opts = append(opts, poller.WithFilter(filter))
	}
	return svc.Subscribe(subscriberName, r.Handle, opts...)
}

// Handle publishes cs, one message per collection. A failed collection is
// logged and does not stop the others.
func (r *Relay) Handle(cs *feed.ChangeSet) {
	for _, msg := range Split(cs) {
		if err := r.publish(msg); err != nil {
			r.failed.Add(1)
			r.logger.Warn("Failed to relay changes",
				"changeset", cs.ID,
				"collection", msg.Collection,
				"changes", len(msg.Changes),
				"error", err)
			continue
		}
		r.published.Add(1)
	}
}

func (r *Relay) publish(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	return r.pub.Publish(ctx, SubjectToken(msg.Collection), data)
}

// Published returns the number of messages published.
func (r *Relay) Published() int64 { return r.published.Load() }

// Failed returns the number of messages that could not be published.
func (r *Relay) Failed() int64 { return r.failed.Load() }

// Split groups the changes of cs by collection, in first-seen order.
func Split(cs *feed.ChangeSet) []Message {
	collections := cs.Collections()
	if len(collections) == 0 {
		return nil
	}

	index := make(map[string]int, len(collections))
	out := make([]Message, len(collections))
	for i, name := range collections {
		index[name] = i
		out[i] = Message{
			ChangeSetID:    cs.ID,
			SourceDateTime: cs.SourceDateTime,
			Collection:     name,
		}
	}
	for _, c := range cs.Changes {
		i := index[c.Collection]
		out[i].Changes = append(out[i].Changes, c)
	}
	return out
}

// SubjectToken turns a collection name into a single NATS subject token.
func SubjectToken(collection string) string {
	if collection == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, collection)
}
