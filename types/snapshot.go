package types

import "github.com/nimbusdex/matcher/num"

// Snapshot is the versioned, self-describing serialization of one pair's
// OrderBook, taken at Offset (replay resumes at Offset+1).
type Snapshot struct {
	Version     uint8
	Pair        AssetPair
	Offset      uint64
	Bids        []SnapshotLevel
	Asks        []SnapshotLevel
	LastTrade   *Trade
	Aggregation TickSize
}

// SnapshotLevel is one bucket price's resting orders, oldest first. Price
// is the bucket projection (spec.md §4.3), not necessarily any single
// entry's own order price.
type SnapshotLevel struct {
	Price   *num.Uint
	Entries []*LimitOrder
}

// SnapshotVersion is bumped whenever the wire layout of Snapshot changes
// incompatibly; wire.DecodeSnapshot dispatches on it.
const SnapshotVersion uint8 = 1
