// Package matching implements the per-asset-pair, in-memory limit order
// book: price-time-priority matching with optional tick-size bucket
// aggregation (spec.md §4.3). It holds no durable state and performs no
// I/O; OrderBookActor is the only caller and owns all mutation.
package matching

import (
	"container/list"

	"github.com/google/btree"

	"github.com/nimbusdex/matcher/num"
	"github.com/nimbusdex/matcher/types"
)

// level is one bucket price on one side of the book: a FIFO queue of
// resting orders, ordered by (timestamp, id) regardless of each order's
// individual price once aggregation folds several prices into one bucket.
type level struct {
	price  *num.Uint
	orders *list.List
}

func newLevel(price *num.Uint) *level {
	return &level{price: price.Clone(), orders: list.New()}
}

// Less implements btree.Item. Both sides' trees are kept in ascending
// price order; bestBid/bestAsk pick the traversal direction instead of
// flipping the comparator (side.go).
func (l *level) Less(other btree.Item) bool {
	return l.price.LT(other.(*level).price)
}

func (l *level) front() *list.Element {
	return l.orders.Front()
}

// insert places lo in time-priority order: entries are kept sorted by
// each order's own Timestamp, and lexicographic OrderID breaks a tie
// between equal timestamps (spec.md §4.3 point 4).
func (l *level) insert(lo *types.LimitOrder) *list.Element {
	for e := l.orders.Front(); e != nil; e = e.Next() {
		cur := e.Value.(*types.LimitOrder)
		if less(lo, cur) {
			return l.orders.InsertBefore(lo, e)
		}
	}
	return l.orders.PushBack(lo)
}

func less(a, b *types.LimitOrder) bool {
	if a.Order.Timestamp != b.Order.Timestamp {
		return a.Order.Timestamp < b.Order.Timestamp
	}
	return a.Order.ID.Less(b.Order.ID)
}

func (l *level) remove(e *list.Element) {
	l.orders.Remove(e)
}

func (l *level) empty() bool {
	return l.orders.Len() == 0
}
