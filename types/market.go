package types

import "github.com/nimbusdex/matcher/num"

// Trade is one matched fill between an aggressor and a resting order.
type Trade struct {
	BuyOrderID  OrderID
	SellOrderID OrderID
	Pair        AssetPair
	Price       *num.Uint
	Amount      *num.Uint
	Timestamp   uint64
}

// MarketStatus is the published read view of a pair's book, refreshed
// after every event that affects it.
type MarketStatus struct {
	Pair      AssetPair
	LastTrade *Trade
	BestBid   *num.Uint
	BestAsk   *num.Uint
}

// TickSizeKind tags the aggregation mode active for a pair.
type TickSizeKind uint8

const (
	TickSizeDisabled TickSizeKind = iota
	TickSizeEnabled
)

// TickSize is the price-aggregation granularity in effect for a book.
// When Enabled, Ticks is the bucket width in priceAsset smallest units.
type TickSize struct {
	Kind  TickSizeKind
	Ticks *num.Uint
}

func DisabledTickSize() TickSize {
	return TickSize{Kind: TickSizeDisabled}
}

func EnabledTickSize(ticks *num.Uint) TickSize {
	return TickSize{Kind: TickSizeEnabled, Ticks: ticks}
}

func (t TickSize) IsEnabled() bool {
	return t.Kind == TickSizeEnabled && t.Ticks != nil && !t.Ticks.IsZero()
}

// MatchingRule is one entry of a pair's ordered, non-empty rule list: the
// TickSize in effect for every offset >= StartOffset, until superseded by
// a later rule.
type MatchingRule struct {
	StartOffset uint64
	Aggregation TickSize
}

// MatchingRules is the ordered list of MatchingRule for one pair, sorted
// ascending by StartOffset. RuleAt resolves which rule is in effect for a
// given offset: the one with the largest StartOffset <= offset.
type MatchingRules []MatchingRule

// PairSettings is the per-pair configuration OrderBookActor and
// OrderValidator both consult: the matching-rules schedule driving tick
// aggregation, the minimum tradable residual (spec.md §4.3 point 6), and
// how often to snapshot (spec.md §4.4).
type PairSettings struct {
	Rules            MatchingRules
	MinFillUnit      *num.Uint
	SnapshotInterval uint64
}

func (r MatchingRules) RuleAt(offset uint64) TickSize {
	if len(r) == 0 {
		return DisabledTickSize()
	}
	active := r[0].Aggregation
	for _, rule := range r {
		if rule.StartOffset > offset {
			break
		}
		active = rule.Aggregation
	}
	return active
}
