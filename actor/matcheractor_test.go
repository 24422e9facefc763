package actor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusdex/matcher/blockchain/stub"
	"github.com/nimbusdex/matcher/broadcaster"
	"github.com/nimbusdex/matcher/broker"
	"github.com/nimbusdex/matcher/eventqueue/local"
	"github.com/nimbusdex/matcher/num"
	"github.com/nimbusdex/matcher/store"
	"github.com/nimbusdex/matcher/types"
)

func newTestMatcherActor(t *testing.T, ctx context.Context, chain *stub.Chain) *MatcherActor {
	kv, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	queue, err := local.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = queue.Close(time.Second) })

	log := testLogger()
	brk, err := broker.New(ctx, log, broker.NewDefaultConfig())
	require.NoError(t, err)
	txs := broadcaster.New(chain, log)

	pairs := store.NewAssetPairRegistry(kv)
	orderDB := store.NewOrderDB(kv)
	snapshots := store.NewSnapshotStore(kv)

	cfg := PairConfig{
		Default: defaultTestSettings(),
		Pairs:   map[types.AssetPair]types.PairSettings{},
	}

	return NewMatcherActor(chain, queue, pairs, orderDB, snapshots, txs, brk, cfg, log)
}

func waitForStatus(t *testing.T, m *MatcherActor, want Status) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.Status() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("matcher did not reach status %v, still %v", want, m.Status())
}

func mkTestOrderTS(owner byte, side types.Side, amount, price, fee uint64, ts uint64) *types.Order {
	o := &types.Order{
		Owner:      types.PublicKey{owner},
		Pair:       testPair,
		Side:       side,
		Amount:     num.NewUint(amount),
		Price:      num.NewUint(price),
		MatcherFee: num.NewUint(fee),
		FeeAsset:   testPair.PriceAsset,
		Timestamp:  ts,
		Expiration: ts + 1000,
		Version:    types.OrderV3,
	}
	o.ID = o.ComputeID()
	return o
}

func TestMatcherActorStartsReadyOnEmptyQueue(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := newTestMatcherActor(t, ctx, stub.New())
	require.NoError(t, m.Start(ctx))
	waitForStatus(t, m, StatusReady)
}

func TestMatcherActorRejectsPlaceOrderWhileStarting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := newTestMatcherActor(t, ctx, stub.New())
	assert.Equal(t, StatusStarting, m.Status())

	o := mkTestOrderTS(1, types.Buy, 10, 100, 1, 1)
	err := m.PlaceOrder(ctx, o, "req-1")
	assert.Error(t, err)
}

func TestMatcherActorPlaceOrderAppendsAndMatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chain := stub.New()
	chain.SetBalance(types.PublicKey{1}, testPair.AmountAsset, num.NewUint(10_000))
	chain.SetBalance(types.PublicKey{1}, testPair.PriceAsset, num.NewUint(300_000))
	chain.SetBalance(types.PublicKey{2}, testPair.PriceAsset, num.NewUint(1_000_000))

	m := newTestMatcherActor(t, ctx, chain)
	require.NoError(t, m.Start(ctx))
	waitForStatus(t, m, StatusReady)

	sell := mkTestOrderTS(1, types.Sell, 100, 2e8, 300000, 1)
	require.NoError(t, m.PlaceOrder(ctx, sell, "sell-1"))

	buy := mkTestOrderTS(2, types.Buy, 60, 3e8, 300000, 2)
	require.NoError(t, m.PlaceOrder(ctx, buy, "buy-1"))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		status, _, _, found, err := m.OrderByID(buy.ID)
		require.NoError(t, err)
		if found && status.Kind == types.StatusFilled {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("buy order did not reach Filled status")
}

func TestMatcherActorCancelRejectsWhileStarting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := newTestMatcherActor(t, ctx, stub.New())
	err := m.Cancel(ctx, types.OrderID{1}, types.PublicKey{1}, testPair, "cancel-1")
	assert.Error(t, err)
}

func TestMatcherActorSnapshotUnknownPairNotFound(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := newTestMatcherActor(t, ctx, stub.New())
	require.NoError(t, m.Start(ctx))
	waitForStatus(t, m, StatusReady)

	_, found, err := m.Snapshot(ctx, testPair)
	require.NoError(t, err)
	assert.False(t, found)
}
