package broker_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusdex/matcher/broker"
	"github.com/nimbusdex/matcher/logging"
	"github.com/nimbusdex/matcher/types"
)

// fakeSubscriber is a minimal broker.Subscriber for tests, collecting
// every notification pushed to it.
type fakeSubscriber struct {
	mu     sync.Mutex
	id     int
	kinds  []types.NotificationKind
	ack    bool
	ch     chan []types.Notification
	closed chan struct{}
	got    []types.Notification
}

func newFakeSubscriber(kinds ...types.NotificationKind) *fakeSubscriber {
	return &fakeSubscriber{
		kinds:  kinds,
		ch:     make(chan []types.Notification, 10),
		closed: make(chan struct{}),
	}
}

func (s *fakeSubscriber) Push(val ...types.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, val...)
}
func (s *fakeSubscriber) Closed() <-chan struct{} { return s.closed }
func (s *fakeSubscriber) C() chan<- []types.Notification {
	return s.ch
}
func (s *fakeSubscriber) Types() []types.NotificationKind { return s.kinds }
func (s *fakeSubscriber) SetID(id int)                     { s.id = id }
func (s *fakeSubscriber) ID() int                          { return s.id }
func (s *fakeSubscriber) Ack() bool                        { return s.ack }

func (s *fakeSubscriber) drain(t *testing.T, n int) []types.Notification {
	var out []types.Notification
	deadline := time.After(time.Second)
	for len(out) < n {
		select {
		case batch := <-s.ch:
			out = append(out, batch...)
		case <-deadline:
			t.Fatalf("timed out waiting for %d notifications, got %d", n, len(out))
		}
	}
	return out
}

func testLogger() *logging.Logger {
	return logging.NewLoggerFromEnv("dev")
}

func TestSendRoutesByKind(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b, err := broker.New(ctx, testLogger(), broker.NewDefaultConfig())
	require.NoError(t, err)

	fills := newFakeSubscriber(types.NotifyOrderFilled)
	all := newFakeSubscriber()
	b.SubscribeBatch(fills, all)

	b.Send(types.OrderFilled{OrderID: types.OrderID{1}})
	b.Send(types.OrderCancelled{OrderID: types.OrderID{2}})

	fillGot := fills.drain(t, 1)
	assert.Len(t, fillGot, 1)
	assert.Equal(t, types.NotifyOrderFilled, fillGot[0].Kind())

	allGot := all.drain(t, 2)
	assert.Len(t, allGot, 2)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b, err := broker.New(ctx, testLogger(), broker.NewDefaultConfig())
	require.NoError(t, err)

	sub := newFakeSubscriber(types.NotifyOrderAccepted)
	k := b.Subscribe(sub)
	b.Unsubscribe(k)

	b.Send(types.OrderAccepted{OrderID: types.OrderID{3}})

	select {
	case <-sub.ch:
		t.Fatal("unsubscribed subscriber should not receive notifications")
	case <-time.After(100 * time.Millisecond):
	}
}
