package actor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusdex/matcher/blockchain/stub"
	"github.com/nimbusdex/matcher/broadcaster"
	"github.com/nimbusdex/matcher/broker"
	"github.com/nimbusdex/matcher/num"
	"github.com/nimbusdex/matcher/store"
	"github.com/nimbusdex/matcher/types"
)

func newTestOrderBookActor(t *testing.T, ctx context.Context, chain *stub.Chain, settings types.PairSettings) (*OrderBookActor, *store.OrderDB, *AddressRegistry) {
	kv, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	orderDB := store.NewOrderDB(kv)
	snapshots := store.NewSnapshotStore(kv)
	log := testLogger()
	brk, err := broker.New(ctx, log, broker.NewDefaultConfig())
	require.NoError(t, err)
	txs := broadcaster.New(chain, log)
	addresses := NewAddressRegistry(ctx, chain, log)

	ob := NewOrderBookActor(testPair, settings, orderDB, snapshots, addresses, txs, brk, log)
	go ob.Run(ctx)
	return ob, orderDB, addresses
}

func defaultTestSettings() types.PairSettings {
	return types.PairSettings{
		Rules:       types.MatchingRules{{StartOffset: 0, Aggregation: types.DisabledTickSize()}},
		MinFillUnit: num.NewUint(1),
	}
}

func TestOrderBookActorMatchesAndSettles(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chain := stub.New()
	chain.SetBalance(types.PublicKey{1}, testPair.AmountAsset, num.NewUint(10_000))
	chain.SetBalance(types.PublicKey{2}, testPair.PriceAsset, num.NewUint(10_000))

	ob, orderDB, addresses := newTestOrderBookActor(t, ctx, chain, defaultTestSettings())

	sellOrder := mkTestOrder(1, types.Sell, 100, 2e8, 1000)
	sellOrder.FeeAsset = testPair.AmountAsset
	require.NoError(t, addresses.GetOrCreate(sellOrder.Owner).PlaceCheck(ctx, sellOrder))
	result, err := ob.ApplyEvent(ctx, types.QueueEventWithMeta{
		Offset: 1, Timestamp: 1, Event: types.PlaceOrderEvent(sellOrder, "r1"),
	})
	require.NoError(t, err)
	assert.Equal(t, types.StatusAccepted, result.Status.Kind)

	buyOrder := mkTestOrder(2, types.Buy, 60, 3e8, 600)
	require.NoError(t, addresses.GetOrCreate(buyOrder.Owner).PlaceCheck(ctx, buyOrder))
	result2, err := ob.ApplyEvent(ctx, types.QueueEventWithMeta{
		Offset: 2, Timestamp: 2, Event: types.PlaceOrderEvent(buyOrder, "r2"),
	})
	require.NoError(t, err)
	require.Len(t, result2.Fills, 1)
	assert.Equal(t, types.StatusFilled, result2.Status.Kind)
	assert.Equal(t, uint64(60), result2.Status.Filled.Uint64())

	status, _, _, found, err := orderDB.Get(sellOrder.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, types.StatusPartiallyFilled, status.Kind)
	assert.Equal(t, uint64(60), status.Filled.Uint64())

	dup, err := ob.ApplyEvent(ctx, types.QueueEventWithMeta{
		Offset: 2, Timestamp: 2, Event: types.PlaceOrderEvent(buyOrder, "r2"),
	})
	require.NoError(t, err)
	assert.True(t, dup.Duplicate)

	buyerBal, err := addresses.GetOrCreate(buyOrder.Owner).QueryBalance(ctx, testPair.PriceAsset)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), buyerBal.Uint64())
}

func TestOrderBookActorCancelRejectsWrongOwner(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chain := stub.New()
	chain.SetBalance(types.PublicKey{1}, testPair.AmountAsset, num.NewUint(10_000))

	ob, orderDB, addresses := newTestOrderBookActor(t, ctx, chain, defaultTestSettings())

	sellOrder := mkTestOrder(1, types.Sell, 100, 2e8, 1000)
	sellOrder.FeeAsset = testPair.AmountAsset
	require.NoError(t, addresses.GetOrCreate(sellOrder.Owner).PlaceCheck(ctx, sellOrder))
	_, err := ob.ApplyEvent(ctx, types.QueueEventWithMeta{
		Offset: 1, Timestamp: 1, Event: types.PlaceOrderEvent(sellOrder, "r1"),
	})
	require.NoError(t, err)

	_, err = ob.ApplyEvent(ctx, types.QueueEventWithMeta{
		Offset: 2, Timestamp: 2,
		Event: types.CancelOrderEvent(sellOrder.ID, types.PublicKey{9}, testPair, "c1"),
	})
	require.Error(t, err)

	status, _, _, found, err := orderDB.Get(sellOrder.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, types.StatusAccepted, status.Kind)
}

func TestOrderBookActorCancelReleasesReservation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chain := stub.New()
	chain.SetBalance(types.PublicKey{1}, testPair.AmountAsset, num.NewUint(10_000))

	ob, orderDB, addresses := newTestOrderBookActor(t, ctx, chain, defaultTestSettings())

	sellOrder := mkTestOrder(1, types.Sell, 100, 2e8, 1000)
	sellOrder.FeeAsset = testPair.AmountAsset
	require.NoError(t, addresses.GetOrCreate(sellOrder.Owner).PlaceCheck(ctx, sellOrder))
	_, err := ob.ApplyEvent(ctx, types.QueueEventWithMeta{
		Offset: 1, Timestamp: 1, Event: types.PlaceOrderEvent(sellOrder, "r1"),
	})
	require.NoError(t, err)

	_, err = ob.ApplyEvent(ctx, types.QueueEventWithMeta{
		Offset: 2, Timestamp: 2,
		Event: types.CancelOrderEvent(sellOrder.ID, sellOrder.Owner, testPair, "c1"),
	})
	require.NoError(t, err)

	status, _, _, found, err := orderDB.Get(sellOrder.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, types.StatusCancelled, status.Kind)

	bal, err := addresses.GetOrCreate(sellOrder.Owner).QueryBalance(ctx, testPair.AmountAsset)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), bal.Uint64())
}

func TestOrderBookActorSnapshotRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chain := stub.New()
	chain.SetBalance(types.PublicKey{1}, testPair.AmountAsset, num.NewUint(10_000))

	settings := defaultTestSettings()
	settings.SnapshotInterval = 1
	ob, _, addresses := newTestOrderBookActor(t, ctx, chain, settings)

	sellOrder := mkTestOrder(1, types.Sell, 100, 2e8, 1000)
	sellOrder.FeeAsset = testPair.AmountAsset
	require.NoError(t, addresses.GetOrCreate(sellOrder.Owner).PlaceCheck(ctx, sellOrder))
	_, err := ob.ApplyEvent(ctx, types.QueueEventWithMeta{
		Offset: 1, Timestamp: 1, Event: types.PlaceOrderEvent(sellOrder, "r1"),
	})
	require.NoError(t, err)

	snap, err := ob.GetSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), snap.Offset)
	require.Len(t, snap.Asks, 1)
	assert.True(t, snap.Asks[0].Entries[0].AmountRemaining.EQUint64(100))
}
