package matching

import (
	"github.com/nimbusdex/matcher/num"
	"github.com/nimbusdex/matcher/types"
)

// Snapshot captures the book's full resting state at the given offset.
// wire.EncodeSnapshot/DecodeSnapshot turn this into the on-disk record of
// spec.md §6; this method only builds the in-memory shape.
func (b *Book) Snapshot(offset uint64) *types.Snapshot {
	return &types.Snapshot{
		Version:     types.SnapshotVersion,
		Pair:        b.Pair,
		Offset:      offset,
		Bids:        levelsToSnapshot(b.bids),
		Asks:        levelsToSnapshot(b.asks),
		LastTrade:   b.lastTrade,
		Aggregation: b.aggregation,
	}
}

func levelsToSnapshot(s *side) []types.SnapshotLevel {
	out := make([]types.SnapshotLevel, 0)
	s.walk(func(l *level) bool {
		entries := make([]*types.LimitOrder, 0, l.orders.Len())
		for e := l.front(); e != nil; e = e.Next() {
			lo := e.Value.(*types.LimitOrder)
			entries = append(entries, &types.LimitOrder{
				Order:           lo.Order,
				AmountRemaining: lo.AmountRemaining.Clone(),
				FeeRemaining:    lo.FeeRemaining.Clone(),
			})
		}
		out = append(out, types.SnapshotLevel{Price: l.price.Clone(), Entries: entries})
		return true
	})
	return out
}

// RestoreFromSnapshot rebuilds a Book from a previously captured
// Snapshot. minFillUnit comes from the pair's current configuration, not
// the snapshot, since it can change between restarts. The book must be
// empty: callers restore once, at startup, before any event is replayed
// (OrderBookActor's restart sequence, spec.md §4.4).
func RestoreFromSnapshot(snap *types.Snapshot, minFillUnit *num.Uint) *Book {
	b := NewBook(snap.Pair, snap.Aggregation, minFillUnit)
	b.lastTrade = snap.LastTrade
	restoreSide(b.bids, snap.Bids, b.index)
	restoreSide(b.asks, snap.Asks, b.index)
	for id, e := range b.index {
		b.orders[id] = e.elem.Value.(*types.LimitOrder)
	}
	return b
}

func restoreSide(s *side, levels []types.SnapshotLevel, index map[types.OrderID]*entry) {
	for _, lvl := range levels {
		l := s.getOrCreate(lvl.Price)
		for _, lo := range lvl.Entries {
			elem := l.orders.PushBack(lo)
			index[lo.Order.ID] = &entry{level: l, elem: elem}
		}
	}
}
