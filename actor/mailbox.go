// Package actor implements the partitioned single-writer state machines
// of spec.md §4.4-4.6 and §9: one goroutine per OrderBookActor and per
// AddressActor, each the sole mutator of its own state, reached only
// through a bounded FIFO mailbox. MatcherActor is the root coordinator
// that creates and routes to them.
package actor

import "context"

// message is implemented by every actor's command type; process runs on
// the owning actor's goroutine, never concurrently with any other
// message to the same actor.
type message[A any] interface {
	process(a A)
}

// Mailbox is a bounded, single-consumer channel of messages for one
// actor. Posting blocks until room is available or ctx is cancelled,
// giving backpressure instead of unbounded queueing (spec.md §5's
// partitioned single-writer model).
type Mailbox[A any] struct {
	ch chan message[A]
}

func NewMailbox[A any](size int) *Mailbox[A] {
	return &Mailbox[A]{ch: make(chan message[A], size)}
}

func (m *Mailbox[A]) post(ctx context.Context, msg message[A]) error {
	select {
	case m.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drains the mailbox on the calling goroutine until ctx is
// cancelled. Each actor's own Run method calls it as
// `Run(ctx, a, a.mailbox)` and is spawned as `go a.Run(ctx)`.
func Run[A any](ctx context.Context, owner A, mb *Mailbox[A]) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-mb.ch:
			msg.process(owner)
		}
	}
}

// call sends req through mb, waits for a reply on a single-use channel,
// and returns it, or ctx's error if cancelled at either step.
func call[A any, Resp any](ctx context.Context, mb *Mailbox[A], build func(reply chan<- Resp) message[A]) (Resp, error) {
	reply := make(chan Resp, 1)
	if err := mb.post(ctx, build(reply)); err != nil {
		var zero Resp
		return zero, err
	}
	select {
	case r := <-reply:
		return r, nil
	case <-ctx.Done():
		var zero Resp
		return zero, ctx.Err()
	}
}
