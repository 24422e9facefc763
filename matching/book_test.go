package matching_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusdex/matcher/matching"
	"github.com/nimbusdex/matcher/num"
	"github.com/nimbusdex/matcher/types"
)

var pairAW = types.NewAssetPair("A", "W")

func mkOrder(id byte, side types.Side, amount, price, fee uint64, ts uint64) *types.Order {
	o := &types.Order{
		Owner:      types.PublicKey{id},
		Pair:       pairAW,
		Side:       side,
		Amount:     num.NewUint(amount),
		Price:      num.NewUint(price),
		MatcherFee: num.NewUint(fee),
		FeeAsset:   pairAW.PriceAsset,
		Timestamp:  ts,
		Expiration: ts + 1000,
		Version:    types.OrderV3,
	}
	o.ID = o.ComputeID()
	o.ID[0] = id // force distinct, deterministic ids for tie-break tests
	return o
}

func TestSimpleCross(t *testing.T) {
	b := matching.NewBook(pairAW, types.DisabledTickSize(), nil)

	s1 := mkOrder(1, types.Sell, 100, 2e8, 300000, 1)
	res1 := b.Apply(s1)
	assert.True(t, res1.Resting)
	assert.Empty(t, res1.Fills)

	b1 := mkOrder(2, types.Buy, 60, 3e8, 300000, 2)
	res2 := b.Apply(b1)

	require.Len(t, res2.Fills, 1)
	fill := res2.Fills[0]
	assert.True(t, fill.Trade.Amount.EQUint64(60))
	assert.True(t, fill.Trade.Price.EQUint64(2e8))
	assert.True(t, fill.TakerClosed)
	assert.False(t, fill.MakerClosed)
	assert.Equal(t, uint64(300000), fill.TakerFeeDelta.Uint64())
	assert.Equal(t, uint64(180000), fill.MakerFeeDelta.Uint64())

	ask, ok := b.BestAsk()
	require.True(t, ok)
	assert.True(t, ask.EQUint64(2e8))
	lo, ok := b.Get(s1.ID)
	require.True(t, ok)
	assert.True(t, lo.AmountRemaining.EQUint64(40))

	_, ok = b.BestBid()
	assert.False(t, ok)
	assert.False(t, b.IsCrossed())
}

func TestTickSizeAggregation(t *testing.T) {
	agg := types.EnabledTickSize(num.NewUint(100))
	b := matching.NewBook(pairAW, agg, nil)

	s1 := mkOrder(1, types.Sell, 10, 205, 1000, 1)
	s2 := mkOrder(2, types.Sell, 10, 250, 1000, 2)
	b.Apply(s1)
	b.Apply(s2)

	buy := mkOrder(3, types.Buy, 15, 300, 1500, 3)
	res := b.Apply(buy)

	require.Len(t, res.Fills, 2)
	assert.True(t, res.Fills[0].Trade.Amount.EQUint64(10))
	assert.True(t, res.Fills[0].Trade.Price.EQUint64(205))
	assert.True(t, res.Fills[0].MakerClosed)
	assert.True(t, res.Fills[1].Trade.Amount.EQUint64(5))
	assert.True(t, res.Fills[1].Trade.Price.EQUint64(250))
	assert.False(t, res.Fills[1].MakerClosed)
	assert.True(t, res.Fills[1].TakerClosed)

	lo, ok := b.Get(s2.ID)
	require.True(t, ok)
	assert.True(t, lo.AmountRemaining.EQUint64(5))
}

func TestCancelDuringPartial(t *testing.T) {
	b := matching.NewBook(pairAW, types.DisabledTickSize(), nil)
	s1 := mkOrder(1, types.Sell, 100, 2e8, 300000, 1)
	b.Apply(s1)
	b1 := mkOrder(2, types.Buy, 60, 3e8, 300000, 2)
	b.Apply(b1)

	lo, ok := b.Cancel(s1.ID)
	require.True(t, ok)
	assert.True(t, lo.AmountRemaining.EQUint64(40))
	assert.True(t, b.IsEmpty())

	_, ok = b.Cancel(s1.ID)
	assert.False(t, ok)
}

func TestReplayDeterminism(t *testing.T) {
	run := func() *matching.Book {
		b := matching.NewBook(pairAW, types.DisabledTickSize(), nil)
		b.Apply(mkOrder(1, types.Sell, 100, 2e8, 300000, 1))
		b.Apply(mkOrder(2, types.Buy, 60, 3e8, 300000, 2))
		b.Cancel(mkOrder(1, types.Sell, 100, 2e8, 300000, 1).ID)
		return b
	}
	a := run()
	c := run()
	assert.Equal(t, a.IsEmpty(), c.IsEmpty())
	assert.Equal(t, a.MarketStatus(), c.MarketStatus())
}

func TestPriceTimePriority(t *testing.T) {
	b := matching.NewBook(pairAW, types.DisabledTickSize(), nil)
	s1 := mkOrder(1, types.Sell, 10, 1e8, 0, 1)
	s2 := mkOrder(2, types.Sell, 10, 1e8, 0, 2)
	b.Apply(s1)
	b.Apply(s2)

	buy := mkOrder(3, types.Buy, 10, 1e8, 0, 3)
	res := b.Apply(buy)
	require.Len(t, res.Fills, 1)
	assert.Equal(t, s1.ID, res.Fills[0].MakerID)
}

func TestSnapshotRoundTrip(t *testing.T) {
	b := matching.NewBook(pairAW, types.DisabledTickSize(), nil)
	b.Apply(mkOrder(1, types.Sell, 100, 2e8, 300000, 1))
	snap := b.Snapshot(1)

	restored := matching.RestoreFromSnapshot(snap, nil)
	ask, ok := restored.BestAsk()
	require.True(t, ok)
	assert.True(t, ask.EQUint64(2e8))
}
