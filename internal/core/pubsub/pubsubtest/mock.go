// Package pubsubtest provides in-memory pubsub doubles for tests.
package pubsubtest

import (
	"context"
	"sync"
	"time"

	"github.com/syntrixbase/feedwatch/internal/core/pubsub"
)

// PublishedMessage is a message recorded by MockPublisher.
type PublishedMessage struct {
	Subject string
	Data    []byte
}

var _ pubsub.Publisher = (*MockPublisher)(nil)

// MockPublisher records published messages.
type MockPublisher struct {
	mu       sync.Mutex
	messages []PublishedMessage
	err      error
	failing  map[string]error
	closed   bool
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{failing: make(map[string]error)}
}

func (m *MockPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if err, ok := m.failing[subject]; ok {
		return err
	}
	m.messages = append(m.messages, PublishedMessage{
		Subject: subject,
		Data:    append([]byte(nil), data...),
	})
	return nil
}

func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Messages returns a copy of the recorded messages.
func (m *MockPublisher) Messages() []PublishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PublishedMessage(nil), m.messages...)
}

// SetError makes every Publish fail with err. nil restores normal behavior.
func (m *MockPublisher) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// FailSubject makes Publish fail with err for one subject.
func (m *MockPublisher) FailSubject(subject string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failing[subject] = err
}

func (m *MockPublisher) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

var _ pubsub.Message = (*MockMessage)(nil)

// MockMessage is a pubsub.Message that records how it was settled.
type MockMessage struct {
	subject string
	data    []byte
	sent    time.Time

	mu     sync.Mutex
	acked  bool
	naked  bool
	termed bool
}

func NewMockMessage(subject string, data []byte, sent time.Time) *MockMessage {
	return &MockMessage{subject: subject, data: data, sent: sent}
}

func (m *MockMessage) Data() []byte    { return m.data }
func (m *MockMessage) Subject() string { return m.subject }

func (m *MockMessage) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acked = true
	return nil
}

func (m *MockMessage) Nak() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.naked = true
	return nil
}

func (m *MockMessage) Term() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.termed = true
	return nil
}

func (m *MockMessage) Metadata() (pubsub.MessageMetadata, error) {
	return pubsub.MessageMetadata{NumDelivered: 1, Timestamp: m.sent, Subject: m.subject}, nil
}

func (m *MockMessage) Acked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acked
}

func (m *MockMessage) Naked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.naked
}

func (m *MockMessage) Termed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.termed
}
