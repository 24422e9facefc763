package matching

import (
	"github.com/nimbusdex/matcher/num"
	"github.com/nimbusdex/matcher/types"
)

// Fill is one matched leg produced by Apply: a single maker/taker
// crossing. OrderBookActor turns each Fill into an ExchangeTransaction and
// a pair of AddressActor notifications.
type Fill struct {
	Trade          types.Trade
	TakerOrder     *types.Order
	MakerOrder     *types.Order
	TakerID        types.OrderID
	MakerID        types.OrderID
	TakerFeeDelta  *num.Uint
	MakerFeeDelta  *num.Uint
	TakerClosed    bool // taker fully filled or dust-closed by this fill
	MakerClosed    bool // maker fully filled or dust-closed by this fill
	MakerDustClose bool // maker closed with a forgiven sub-minimum remainder
}

// ApplyResult summarizes what Apply did to the incoming order itself,
// beyond the Fills already recorded.
type ApplyResult struct {
	Fills          []Fill
	RestingAmount  *num.Uint // nil if the incoming order did not rest
	Resting        bool
	TakerDustClose bool // incoming order closed with a forgiven remainder instead of resting
}

// Book is one asset pair's order book: two sides, a flat index for O(log n)
// cancel-by-id, and the tick-aggregation rule currently in effect. It is
// pure in-memory state; OrderBookActor is its single writer.
type Book struct {
	Pair        types.AssetPair
	bids        *side
	asks        *side
	index       map[types.OrderID]*entry
	orders      map[types.OrderID]*types.LimitOrder
	lastTrade   *types.Trade
	aggregation types.TickSize
	minFillUnit *num.Uint
}

// NewBook constructs an empty book. minFillUnit is the pair's smallest
// tradable residual (spec.md §4.3 point 6); a nil value defaults to 1.
func NewBook(pair types.AssetPair, aggregation types.TickSize, minFillUnit *num.Uint) *Book {
	if minFillUnit == nil {
		minFillUnit = num.NewUint(1)
	}
	return &Book{
		Pair:        pair,
		bids:        newSide(types.Buy),
		asks:        newSide(types.Sell),
		index:       make(map[types.OrderID]*entry),
		orders:      make(map[types.OrderID]*types.LimitOrder),
		aggregation: aggregation,
		minFillUnit: minFillUnit,
	}
}

func (b *Book) sideFor(s types.Side) *side {
	if s == types.Buy {
		return b.bids
	}
	return b.asks
}

// bucket returns the aggregation-projected price an order resting on side
// s is grouped under. Disabled aggregation makes every order its own
// bucket (its literal price).
func (b *Book) bucket(s types.Side, price *num.Uint) *num.Uint {
	if !b.aggregation.IsEnabled() {
		return price.Clone()
	}
	if s == types.Buy {
		return num.FloorBucket(price, b.aggregation.Ticks)
	}
	return num.CeilBucket(price, b.aggregation.Ticks)
}

// feeDeltaForFill returns the additional matcherFee owed by lo for a fill
// of fillAmount, using the cumulative-ceil method so repeated calls across
// an order's partial fills sum exactly to ceil(matcherFee*totalFilled/
// amount), clamped so the running total never exceeds matcherFee (spec.md
// §4.3 point 7, §8 "fee proration idempotence").
func feeDeltaForFill(lo *types.LimitOrder, fillAmount *num.Uint) *num.Uint {
	filledBefore := num.NewUint(0).Sub(lo.Order.Amount, lo.AmountRemaining)
	filledAfter := num.Sum(filledBefore, fillAmount)
	idealCumulative := num.MulDivCeil(lo.Order.MatcherFee, filledAfter, lo.Order.Amount)
	chargedSoFar := num.NewUint(0).Sub(lo.Order.MatcherFee, lo.FeeRemaining)
	if idealCumulative.LTE(chargedSoFar) {
		return num.NewUint(0)
	}
	delta := num.NewUint(0).Sub(idealCumulative, chargedSoFar)
	return num.Min(delta, lo.FeeRemaining)
}

// Apply runs the price-time-priority matching algorithm for an incoming
// order (spec.md §4.3). It never mutates o; all mutable state lives in the
// LimitOrder copies Apply creates and, for makers, already holds in the
// book.
func (b *Book) Apply(o *types.Order) *ApplyResult {
	lo := types.NewLimitOrder(o)
	opposite := b.sideFor(o.Side.Opposite())
	own := b.sideFor(o.Side)

	result := &ApplyResult{}

	for !lo.AmountRemaining.IsZero() {
		l, ok := opposite.best()
		if !ok || !opposite.crosses(l, o.Price) {
			break
		}
		e := l.front()
		maker := e.Value.(*types.LimitOrder)

		fillAmount := num.Min(lo.AmountRemaining, maker.AmountRemaining)
		takerFeeDelta := feeDeltaForFill(lo, fillAmount)
		makerFeeDelta := feeDeltaForFill(maker, fillAmount)

		lo.AmountRemaining = num.NewUint(0).Sub(lo.AmountRemaining, fillAmount)
		lo.FeeRemaining = num.NewUint(0).Sub(lo.FeeRemaining, takerFeeDelta)
		maker.AmountRemaining = num.NewUint(0).Sub(maker.AmountRemaining, fillAmount)
		maker.FeeRemaining = num.NewUint(0).Sub(maker.FeeRemaining, makerFeeDelta)

		fill := Fill{
			Trade: types.Trade{
				Pair:      b.Pair,
				Price:     maker.Order.Price.Clone(),
				Amount:    fillAmount.Clone(),
				Timestamp: o.Timestamp,
			},
			TakerOrder:    o,
			MakerOrder:    maker.Order,
			TakerID:       o.ID,
			MakerID:       maker.Order.ID,
			TakerFeeDelta: takerFeeDelta,
			MakerFeeDelta: makerFeeDelta,
		}
		if o.Side == types.Buy {
			fill.Trade.BuyOrderID, fill.Trade.SellOrderID = o.ID, maker.Order.ID
		} else {
			fill.Trade.BuyOrderID, fill.Trade.SellOrderID = maker.Order.ID, o.ID
		}

		makerClosed := maker.AmountRemaining.IsZero()
		if !makerClosed && maker.AmountRemaining.LT(b.minFillUnit) {
			// sub-minimum remainder left resting would be unfillable; close
			// it out now and forgive the residual rather than leave dust
			// on the book (spec.md §4.3 point 6).
			makerClosed = true
			fill.MakerDustClose = true
			maker.AmountRemaining = num.NewUint(0)
		}
		fill.MakerClosed = makerClosed
		if makerClosed {
			l.remove(e)
			delete(b.index, maker.Order.ID)
			delete(b.orders, maker.Order.ID)
			opposite.dropIfEmpty(l)
		}

		fill.TakerClosed = lo.AmountRemaining.IsZero()
		result.Fills = append(result.Fills, fill)
		b.lastTrade = &fill.Trade
	}

	if !lo.AmountRemaining.IsZero() && lo.AmountRemaining.LT(b.minFillUnit) {
		result.TakerDustClose = true
		lo.AmountRemaining = num.NewUint(0)
	}

	if lo.AmountRemaining.IsZero() {
		return result
	}

	bucketPrice := b.bucket(o.Side, o.Price)
	l := own.getOrCreate(bucketPrice)
	elem := l.insert(lo)
	b.index[o.ID] = &entry{level: l, elem: elem}
	b.orders[o.ID] = lo
	result.Resting = true
	result.RestingAmount = lo.AmountRemaining.Clone()
	return result
}

// Cancel removes a resting order by id, returning its LimitOrder and
// whether it was found. A miss is not an error: the order may already be
// terminal, which callers treat as a no-op (idempotent replay, spec.md
// §8 scenario 6).
func (b *Book) Cancel(id types.OrderID) (*types.LimitOrder, bool) {
	e, ok := b.index[id]
	if !ok {
		return nil, false
	}
	lo := e.elem.Value.(*types.LimitOrder)
	s := b.sideFor(lo.Order.Side)
	e.level.remove(e.elem)
	s.dropIfEmpty(e.level)
	delete(b.index, id)
	delete(b.orders, id)
	return lo, true
}

// Get returns the resting LimitOrder for id, if any.
func (b *Book) Get(id types.OrderID) (*types.LimitOrder, bool) {
	lo, ok := b.orders[id]
	return lo, ok
}

// RestingOrderIDs returns every order id currently resting on either
// side, in no particular order. Used to wind a book down on
// OrderBookDeleted.
func (b *Book) RestingOrderIDs() []types.OrderID {
	out := make([]types.OrderID, 0, len(b.orders))
	for id := range b.orders {
		out = append(out, id)
	}
	return out
}

// BestBid/BestAsk report the current top of book; ok is false when that
// side is empty.
func (b *Book) BestBid() (*num.Uint, bool) {
	l, ok := b.bids.best()
	if !ok {
		return nil, false
	}
	return l.price.Clone(), true
}

func (b *Book) BestAsk() (*num.Uint, bool) {
	l, ok := b.asks.best()
	if !ok {
		return nil, false
	}
	return l.price.Clone(), true
}

// IsCrossed reports whether the book is crossed (best bid >= best ask),
// i.e. whether the invariant "no crossed book after apply" (spec.md §8)
// is currently violated.
func (b *Book) IsCrossed() bool {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if !okBid || !okAsk {
		return false
	}
	return bid.GTE(ask)
}

func (b *Book) IsEmpty() bool {
	return b.bids.isEmpty() && b.asks.isEmpty()
}

// MarketStatus returns the published read view, refreshed by the caller
// after every event affecting the book.
func (b *Book) MarketStatus() types.MarketStatus {
	status := types.MarketStatus{Pair: b.Pair, LastTrade: b.lastTrade}
	if bid, ok := b.BestBid(); ok {
		status.BestBid = bid
	}
	if ask, ok := b.BestAsk(); ok {
		status.BestAsk = ask
	}
	return status
}

// Reaggregate rebuilds both sides' bucket projection under a new TickSize
// without disturbing order identity or time priority (spec.md §4.3 "rule
// transitions"). Orders are re-inserted in (timestamp, id) order so FIFO
// priority within a bucket is preserved exactly as if they had arrived
// under the new rule.
func (b *Book) Reaggregate(newAggregation types.TickSize) {
	if b.aggregation == newAggregation {
		return
	}
	bids := b.bids.all()
	asks := b.asks.all()
	b.aggregation = newAggregation
	b.bids.clear()
	b.asks.clear()
	b.index = make(map[types.OrderID]*entry)
	b.reinsertSorted(types.Buy, bids)
	b.reinsertSorted(types.Sell, asks)
}

func (b *Book) reinsertSorted(s types.Side, orders []*types.LimitOrder) {
	sortByTimeAndID(orders)
	side := b.sideFor(s)
	for _, lo := range orders {
		bucketPrice := b.bucket(s, lo.Order.Price)
		l := side.getOrCreate(bucketPrice)
		elem := l.insert(lo)
		b.index[lo.Order.ID] = &entry{level: l, elem: elem}
	}
}

func sortByTimeAndID(orders []*types.LimitOrder) {
	for i := 1; i < len(orders); i++ {
		for j := i; j > 0 && less(orders[j], orders[j-1]); j-- {
			orders[j], orders[j-1] = orders[j-1], orders[j]
		}
	}
}
