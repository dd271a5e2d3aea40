// Package feed defines the change-feed data model and the collaborator
// contracts consumed by the poller.
//
// A change feed is queried by timestamp cursor (the watermark) rather than
// pushed. The poller asks a ChangeFeedService for everything that changed
// since the watermark, advances the watermark from the returned ChangeSet and
// republishes the set to in-process subscribers.
package feed

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrClosed is returned when operating on a closed poller or publisher.
	ErrClosed = errors.New("feed: closed")

	// ErrInvalidFilter is returned when a subscription filter cannot be compiled.
	ErrInvalidFilter = errors.New("feed: invalid filter")
)

// Operation is the kind of mutation a Change describes.
type Operation string

const (
	OperationInsert Operation = "insert"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// Change is a single server-side mutation. The poller never looks inside it.
type Change struct {
	Collection string                 `json:"collection"`
	Operation  Operation              `json:"operation"`
	Key        string                 `json:"key"`
	Data       map[string]interface{} `json:"data,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// ChangeSet is the payload of one successful fetch.
//
// SourceDateTime is the server time the set was computed at and becomes the
// next watermark. A nil SourceDateTime means the watermark does not advance.
type ChangeSet struct {
	ID             string     `json:"id"`
	SourceDateTime *time.Time `json:"sourceDateTime,omitempty"`
	Changes        []Change   `json:"changes"`
}

// Collections returns the distinct collection names in the set, in first-seen order.
func (cs *ChangeSet) Collections() []string {
	if cs == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(cs.Changes))
	var out []string
	for _, c := range cs.Changes {
		if _, ok := seen[c.Collection]; ok {
			continue
		}
		seen[c.Collection] = struct{}{}
		out = append(out, c.Collection)
	}
	return out
}

// Authorization is an authorization state reported by an AuthorizationSource.
type Authorization struct {
	Authenticated bool
	// SessionID identifies the credential. A new SessionID for the same
	// Subject while authenticated is a credential refresh, not a transition.
	SessionID string
	// Subject identifies the principal. A change of Subject while
	// authenticated counts as a transition.
	Subject string
	// Token is the credential collaborators may forward to the server.
	Token string
}

// AvailabilityService reports whether anything is worth tracking for the
// current session.
type AvailabilityService interface {
	// HasTrackableCollections reports whether at least one collection exists
	// that the session may insert, update or delete in. An error is treated
	// as false by callers.
	HasTrackableCollections(ctx context.Context) (bool, error)
}

// ChangeFeedService answers "what changed since".
type ChangeFeedService interface {
	// GetChangesSince returns the changes after since. A nil ChangeSet with
	// a nil error means there are no changes.
	GetChangesSince(ctx context.Context, since time.Time) (*ChangeSet, error)
}

// AuthorizationSource emits authorization transitions.
type AuthorizationSource interface {
	// Authorizations returns a channel of authorization states. The channel
	// is closed when ctx is done.
	Authorizations(ctx context.Context) (<-chan Authorization, error)
}

// TokenAware is implemented by collaborators that forward the session
// credential to the server.
type TokenAware interface {
	SetAuthorization(auth Authorization)
}
