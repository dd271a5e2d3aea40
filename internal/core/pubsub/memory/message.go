package memory

import (
	"sync"
	"time"

	"github.com/syntrixbase/feedwatch/internal/core/pubsub"
)

type message struct {
	data      []byte
	subject   string
	timestamp time.Time
	sub       *subscription

	mu        sync.Mutex
	delivered uint64
	settled   bool
}

func (m *message) Data() []byte    { return m.data }
func (m *message) Subject() string { return m.subject }

func (m *message) Ack() error {
	m.settle()
	return nil
}

func (m *message) Term() error {
	m.settle()
	return nil
}

// Nak requeues the message on its subscription. The message is dropped when
// the subscription buffer is full or the subscription has ended.
func (m *message) Nak() error {
	m.mu.Lock()
	if m.settled {
		m.mu.Unlock()
		return nil
	}
	m.delivered++
	m.mu.Unlock()

	// msgCh may already be closed by unsubscribe.
	defer func() { _ = recover() }()
	select {
	case <-m.sub.ctx.Done():
	case m.sub.msgCh <- m:
	default:
	}
	return nil
}

func (m *message) settle() {
	m.mu.Lock()
	m.settled = true
	m.mu.Unlock()
}

func (m *message) Metadata() (pubsub.MessageMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return pubsub.MessageMetadata{
		NumDelivered: m.delivered,
		Timestamp:    m.timestamp,
		Subject:      m.subject,
	}, nil
}
