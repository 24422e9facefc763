// Package broker is the in-process publish/subscribe hub of spec.md
// §4.10's supplemented event fan-out: OrderBookActor pushes domain
// notifications here; external observers (an HTTP/WS
// front-end, the order-history exporter named in spec.md §1) subscribe.
// Nothing here ingests events off a socket or file, since notifications
// are generated by this same process, not received from a separate
// chain node.
package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nimbusdex/matcher/logging"
	"github.com/nimbusdex/matcher/types"
)

// Subscriber allows pushing values to subscribers, which can be closed
// out from under the broker at any time.
//go:generate go run github.com/golang/mock/mockgen -destination mocks/subscriber_mock.go -package mocks github.com/nimbusdex/matcher/broker Subscriber
type Subscriber interface {
	Push(val ...types.Notification)
	Closed() <-chan struct{}
	C() chan<- []types.Notification
	Types() []types.NotificationKind
	SetID(id int)
	ID() int
	Ack() bool
}

// I is the public interface other components depend on; named I rather
// than BrokerI since the package name already carries the word "broker".
//go:generate go run github.com/golang/mock/mockgen -destination mocks/broker_mock.go -package mocks github.com/nimbusdex/matcher/broker I
type I interface {
	Send(n types.Notification)
	Subscribe(s Subscriber) int
	SubscribeBatch(subs ...Subscriber)
	Unsubscribe(k int)
}

type subscription struct {
	Subscriber
	required bool
}

// Broker fans out notifications to subscribers, batched per notification
// kind on its own goroutine so a slow subscriber on one kind never
// blocks delivery of another.
type Broker struct {
	ctx context.Context
	mu  sync.Mutex

	tSubs map[types.NotificationKind]map[int]*subscription
	subs  map[int]subscription
	keys  []int

	eChans map[types.NotificationKind]chan []types.Notification

	log  *logging.Logger
	sink *SocketSink // optional republish over a mangos PUB socket, nil if disabled
}

func New(ctx context.Context, log *logging.Logger, config Config) (*Broker, error) {
	log = log.Named(namedLogger)
	log.SetLevel(config.Level)

	var sink *SocketSink
	if config.Socket.Enabled {
		var err error
		sink, err = NewSocketSink(log, &config.Socket)
		if err != nil {
			return nil, fmt.Errorf("failed to initialise socket sink: %w", err)
		}
	}

	return &Broker{
		ctx:    ctx,
		tSubs:  map[types.NotificationKind]map[int]*subscription{},
		subs:   map[int]subscription{},
		keys:   []int{},
		eChans: map[types.NotificationKind]chan []types.Notification{},
		log:    log,
		sink:   sink,
	}, nil
}

// deliverAsync retries a blocked send for up to a second before giving up,
// off the per-kind goroutine so one stuck subscriber can't stall delivery.
func (b *Broker) deliverAsync(sub Subscriber, notifications []types.Notification) {
	timeout := time.NewTimer(time.Second)
	defer func() {
		if !timeout.Stop() {
			<-timeout.C
		}
	}()
	select {
	case <-b.ctx.Done():
	case <-sub.Closed():
	case sub.C() <- notifications:
	case <-timeout.C:
	}
}

// deliver attempts a non-blocking send to sub, falling back to deliverAsync
// on a full buffer. It reports whether sub should be unsubscribed.
func (b *Broker) deliver(sub Subscriber, notifications []types.Notification) bool {
	select {
	case <-b.ctx.Done():
		return false
	case <-sub.Closed():
		return true
	case sub.C() <- notifications:
		return false
	default:
		go b.deliverAsync(sub, notifications)
		return false
	}
}

func (b *Broker) startSending(t types.NotificationKind, evts []types.Notification) {
	b.mu.Lock()
	ch, ok := b.eChans[t]
	if !ok {
		subs := b.getSubsByType(t)
		ln := len(subs) + 1
		ch = make(chan []types.Notification, ln*20+20)
		b.eChans[t] = ch
	}
	b.mu.Unlock()
	ch <- evts
	if ok {
		return
	}
	go func(ch chan []types.Notification, t types.NotificationKind) {
		defer func() {
			b.mu.Lock()
			delete(b.eChans, t)
			close(ch)
			b.mu.Unlock()
		}()
		for {
			select {
			case <-b.ctx.Done():
				return
			case notifications := <-ch:
				b.mu.Lock()
				subs := b.getSubsByType(t)
				b.mu.Unlock()
				unsub := make([]int, 0, len(subs))
				for k, sub := range subs {
					select {
					case <-b.ctx.Done():
						return
					case <-sub.Closed():
						unsub = append(unsub, k)
					default:
						if sub.required {
							sub.Push(notifications...)
						} else if rm := b.deliver(sub, notifications); rm {
							unsub = append(unsub, k)
						}
					}
				}
				if len(unsub) != 0 {
					b.mu.Lock()
					b.rmSubs(unsub...)
					b.mu.Unlock()
				}
			}
		}
	}(ch, t)
}

// Send fans n out to every subscriber registered for its kind (or for
// NotifyAll), and republishes it over the socket sink if one is
// configured.
func (b *Broker) Send(n types.Notification) {
	b.startSending(n.Kind(), []types.Notification{n})
	if b.sink != nil {
		b.sink.Publish(n)
	}
}

func (b *Broker) getSubsByType(t types.NotificationKind) map[int]*subscription {
	subs, ok := b.tSubs[t]
	if !ok {
		subs = b.tSubs[types.NotifyAll]
	}
	cpy := make(map[int]*subscription, len(subs))
	for k, v := range subs {
		cpy[k] = v
	}
	return cpy
}

// Subscribe registers a new subscriber, returning its key.
func (b *Broker) Subscribe(s Subscriber) int {
	b.mu.Lock()
	k := b.subscribe(s)
	b.mu.Unlock()
	return k
}

func (b *Broker) SubscribeBatch(subs ...Subscriber) {
	b.mu.Lock()
	for _, s := range subs {
		k := b.subscribe(s)
		s.SetID(k)
	}
	b.mu.Unlock()
}

func (b *Broker) subscribe(s Subscriber) int {
	k := b.getKey()
	sub := subscription{
		Subscriber: s,
		required:   s.Ack(),
	}
	b.subs[k] = sub
	types_ := s.Types()
	isAll := false
	if len(types_) == 0 {
		isAll = true
		types_ = []types.NotificationKind{types.NotifyAll}
	} else {
		for _, t := range types_ {
			if t == types.NotifyAll {
				types_ = []types.NotificationKind{types.NotifyAll}
				isAll = true
				break
			}
		}
	}
	for _, t := range types_ {
		if _, ok := b.tSubs[t]; !ok {
			b.tSubs[t] = map[int]*subscription{}
			if !isAll {
				for ak, as := range b.tSubs[types.NotifyAll] {
					b.tSubs[t][ak] = as
				}
			}
		}
		b.tSubs[t][k] = &sub
	}
	if isAll {
		for t := range b.tSubs {
			if t != types.NotifyAll {
				b.tSubs[t][k] = &sub
			}
		}
	}
	return k
}

// Unsubscribe removes subscriber k from the broker; it does not change
// the state of the subscriber itself.
func (b *Broker) Unsubscribe(k int) {
	b.mu.Lock()
	b.rmSubs(k)
	b.mu.Unlock()
}

func (b *Broker) getKey() int {
	if len(b.keys) > 0 {
		k := b.keys[0]
		b.keys = b.keys[1:]
		return k
	}
	return len(b.subs) + 1
}

func (b *Broker) rmSubs(keys ...int) {
	for _, k := range keys {
		s, ok := b.subs[k]
		if !ok {
			return
		}
		types_ := s.Types()
		for _, t := range types_ {
			if t == types.NotifyAll {
				types_ = nil
				break
			}
		}
		if len(types_) == 0 {
			for _, v := range b.tSubs {
				delete(v, k)
			}
		} else {
			for _, t := range types_ {
				delete(b.tSubs[t], k)
			}
		}
		delete(b.subs, k)
		b.keys = append(b.keys, k)
	}
}

var _ I = (*Broker)(nil)
