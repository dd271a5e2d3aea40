package nats

import (
	"context"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/mock"
)

// mockJetStream covers the JetStream interface the publisher and consumer use.
type mockJetStream struct {
	mock.Mock
}

var _ JetStream = (*mockJetStream)(nil)

func (m *mockJetStream) CreateOrUpdateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error) {
	args := m.Called(ctx, cfg)
	stream, _ := args.Get(0).(jetstream.Stream)
	return stream, args.Error(1)
}

func (m *mockJetStream) CreateOrUpdateConsumer(ctx context.Context, stream string, cfg jetstream.ConsumerConfig) (jetstream.Consumer, error) {
	args := m.Called(ctx, stream, cfg)
	consumer, _ := args.Get(0).(jetstream.Consumer)
	return consumer, args.Error(1)
}

func (m *mockJetStream) Publish(ctx context.Context, subject string, data []byte, _ ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	args := m.Called(ctx, subject, data)
	ack, _ := args.Get(0).(*jetstream.PubAck)
	return ack, args.Error(1)
}

// mockConsumer implements Consume only and hands the registered handler to
// the test.
type mockConsumer struct {
	mock.Mock
	jetstream.Consumer
	handlerCh chan jetstream.MessageHandler
}

func newMockConsumer() *mockConsumer {
	return &mockConsumer{handlerCh: make(chan jetstream.MessageHandler, 1)}
}

func (m *mockConsumer) Consume(handler jetstream.MessageHandler, _ ...jetstream.PullConsumeOpt) (jetstream.ConsumeContext, error) {
	args := m.Called(handler)
	select {
	case m.handlerCh <- handler:
	default:
	}
	cc, _ := args.Get(0).(jetstream.ConsumeContext)
	return cc, args.Error(1)
}

func (m *mockConsumer) handlers() <-chan jetstream.MessageHandler {
	return m.handlerCh
}

type mockConsumeContext struct {
	mock.Mock
	jetstream.ConsumeContext
}

func (m *mockConsumeContext) Stop() {
	m.Called()
}

// mockMsg implements the jetstream.Msg methods a wrapped message forwards to.
type mockMsg struct {
	mock.Mock
	jetstream.Msg
	subject string
	data    []byte
}

func newMockMsg(subject string, data []byte) *mockMsg {
	return &mockMsg{subject: subject, data: data}
}

func (m *mockMsg) Data() []byte    { return m.data }
func (m *mockMsg) Subject() string { return m.subject }
func (m *mockMsg) Ack() error      { return m.Called().Error(0) }
func (m *mockMsg) Nak() error      { return m.Called().Error(0) }
func (m *mockMsg) Term() error     { return m.Called().Error(0) }

func (m *mockMsg) Metadata() (*jetstream.MsgMetadata, error) {
	args := m.Called()
	md, _ := args.Get(0).(*jetstream.MsgMetadata)
	return md, args.Error(1)
}

type fakeConn struct {
	closed int
}

func (c *fakeConn) Close() { c.closed++ }
