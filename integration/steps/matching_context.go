// Package steps holds godog step definitions for the scenarios listed in
// this module's testable properties: price-time priority, tick-size
// aggregation, and cancel-during-partial-fill, driven directly against
// matching.Book rather than through the network.
package steps

import (
	"fmt"

	"github.com/nimbusdex/matcher/matching"
	"github.com/nimbusdex/matcher/num"
	"github.com/nimbusdex/matcher/types"
)

var pairAW = types.NewAssetPair("A", "W")

// MatchingContext carries the book and the results of the most recent
// Apply across steps within one scenario.
type MatchingContext struct {
	book      *matching.Book
	orders    map[string]*types.Order
	results   map[string]*matching.ApplyResult
	cancelled map[string]*types.LimitOrder
	nextID    byte
}

func NewMatchingContext() *MatchingContext {
	return &MatchingContext{
		orders:    make(map[string]*types.Order),
		results:   make(map[string]*matching.ApplyResult),
		cancelled: make(map[string]*types.LimitOrder),
	}
}

func (c *MatchingContext) EmptyBookWithAggregationDisabled(pair string) error {
	c.book = matching.NewBook(pairAW, types.DisabledTickSize(), nil)
	return nil
}

func (c *MatchingContext) EmptyBookWithTickSize(pair string, ticks uint64) error {
	c.book = matching.NewBook(pairAW, types.EnabledTickSize(num.NewUint(ticks)), nil)
	return nil
}

func (c *MatchingContext) PlacesOrder(ref, side string, amount, price, fee uint64) error {
	c.nextID++
	var s types.Side
	switch side {
	case "sells":
		s = types.Sell
	case "buys":
		s = types.Buy
	default:
		return fmt.Errorf("unknown side %q", side)
	}
	o := &types.Order{
		Owner:      types.PublicKey{c.nextID},
		Pair:       pairAW,
		Side:       s,
		Amount:     num.NewUint(amount),
		Price:      num.NewUint(price),
		MatcherFee: num.NewUint(fee),
		FeeAsset:   pairAW.PriceAsset,
		Timestamp:  uint64(c.nextID),
		Expiration: uint64(c.nextID) + 1000,
		Version:    types.OrderV3,
	}
	o.ID = o.ComputeID()
	o.ID[0] = c.nextID
	c.orders[ref] = o
	c.results[ref] = c.book.Apply(o)
	return nil
}

func (c *MatchingContext) OrderIsCancelled(ref string) error {
	o, ok := c.orders[ref]
	if !ok {
		return fmt.Errorf("no such order %q", ref)
	}
	lo, found := c.book.Cancel(o.ID)
	if !found {
		return fmt.Errorf("order %q was not resting", ref)
	}
	c.cancelled[ref] = lo
	return nil
}

func (c *MatchingContext) OrderIsFullyFilledAtPrice(ref string, amount, price uint64) error {
	o, ok := c.orders[ref]
	if !ok {
		return fmt.Errorf("no such order %q", ref)
	}
	// A maker's fills are recorded in the result of the taker that hit it,
	// so every Apply result of the scenario is searched.
	var total uint64
	for _, res := range c.results {
		for _, f := range res.Fills {
			if f.TakerID == o.ID || f.MakerID == o.ID {
				total += f.Trade.Amount.Uint64()
				if f.Trade.Price.Uint64() != price {
					return fmt.Errorf("order %q filled at %d, expected %d", ref, f.Trade.Price.Uint64(), price)
				}
			}
		}
	}
	if total != amount {
		return fmt.Errorf("order %q filled %d, expected %d", ref, total, amount)
	}
	if _, resting := c.book.Get(o.ID); resting {
		return fmt.Errorf("order %q still resting, expected fully filled", ref)
	}
	return nil
}

func (c *MatchingContext) OrderIsFullyFilled(ref string, amount uint64) error {
	res, ok := c.results[ref]
	if !ok {
		return fmt.Errorf("no such order %q", ref)
	}
	var total uint64
	for _, f := range res.Fills {
		if f.TakerID == c.orders[ref].ID || f.MakerID == c.orders[ref].ID {
			total += f.Trade.Amount.Uint64()
		}
	}
	if total != amount || res.Resting {
		return fmt.Errorf("order %q filled %d (resting=%v), expected fully filled for %d", ref, total, res.Resting, amount)
	}
	return nil
}

func (c *MatchingContext) OrderIsPartiallyFilledWithFeeCharged(ref string, amount, fee uint64) error {
	lo, ok := c.book.Get(c.orders[ref].ID)
	if !ok {
		return fmt.Errorf("order %q not resting on the book", ref)
	}
	filled := num.NewUint(0).Sub(lo.Order.Amount, lo.AmountRemaining)
	if filled.Uint64() != amount {
		return fmt.Errorf("order %q filled %d, expected %d", ref, filled.Uint64(), amount)
	}
	charged := num.NewUint(0).Sub(lo.Order.MatcherFee, lo.FeeRemaining)
	if charged.Uint64() != fee {
		return fmt.Errorf("order %q charged fee %d, expected %d", ref, charged.Uint64(), fee)
	}
	return nil
}

func (c *MatchingContext) OrderIsPartiallyFilled(ref string, amount uint64) error {
	lo, ok := c.book.Get(c.orders[ref].ID)
	if !ok {
		return fmt.Errorf("order %q not resting on the book", ref)
	}
	filled := num.NewUint(0).Sub(lo.Order.Amount, lo.AmountRemaining)
	if filled.Uint64() != amount {
		return fmt.Errorf("order %q filled %d, expected %d", ref, filled.Uint64(), amount)
	}
	return nil
}

func (c *MatchingContext) OrderIsCancelledWithFilledAndFeeCharged(ref string, filled, fee uint64) error {
	if _, found := c.book.Get(c.orders[ref].ID); found {
		return fmt.Errorf("order %q still resting, expected removed by cancel", ref)
	}
	lo, ok := c.cancelled[ref]
	if !ok {
		return fmt.Errorf("order %q was not cancelled", ref)
	}
	if got := num.NewUint(0).Sub(lo.Order.Amount, lo.AmountRemaining).Uint64(); got != filled {
		return fmt.Errorf("order %q filled %d at cancel, expected %d", ref, got, filled)
	}
	if got := num.NewUint(0).Sub(lo.Order.MatcherFee, lo.FeeRemaining).Uint64(); got != fee {
		return fmt.Errorf("order %q charged fee %d at cancel, expected %d", ref, got, fee)
	}
	return nil
}

func (c *MatchingContext) BestAskRemainingAmountIs(amount uint64) error {
	if _, ok := c.book.BestAsk(); !ok {
		return fmt.Errorf("no resting ask")
	}
	for _, o := range c.orders {
		lo, ok := c.book.Get(o.ID)
		if ok && lo.Order.Side == types.Sell && lo.AmountRemaining.Uint64() == amount {
			return nil
		}
	}
	return fmt.Errorf("no resting ask with remaining amount %d", amount)
}

func (c *MatchingContext) ThereIsNoBestBid() error {
	if _, ok := c.book.BestBid(); ok {
		return fmt.Errorf("expected no best bid")
	}
	return nil
}

func (c *MatchingContext) OrderBookIsEmpty(pair string) error {
	if !c.book.IsEmpty() {
		return fmt.Errorf("book not empty")
	}
	return nil
}
