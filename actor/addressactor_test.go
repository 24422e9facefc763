package actor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusdex/matcher/blockchain/stub"
	"github.com/nimbusdex/matcher/core/apperrors"
	"github.com/nimbusdex/matcher/logging"
	"github.com/nimbusdex/matcher/num"
	"github.com/nimbusdex/matcher/types"
)

var testPair = types.NewAssetPair("A", "W")

func testLogger() *logging.Logger {
	return logging.NewLoggerFromEnv("dev")
}

func mkTestOrder(owner byte, side types.Side, amount, price, fee uint64) *types.Order {
	o := &types.Order{
		Owner:      types.PublicKey{owner},
		Pair:       testPair,
		Side:       side,
		Amount:     num.NewUint(amount),
		Price:      num.NewUint(price),
		MatcherFee: num.NewUint(fee),
		FeeAsset:   testPair.PriceAsset,
		Timestamp:  1,
		Expiration: 1000,
		Version:    types.OrderV3,
	}
	o.ID = o.ComputeID()
	return o
}

func startAddressActor(t *testing.T, chain *stub.Chain) (*AddressActor, context.Context) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	a := NewAddressActor(types.PublicKey{1}, chain, testLogger())
	go a.Run(ctx)
	return a, ctx
}

func TestPlaceCheckReservesBuyCost(t *testing.T) {
	chain := stub.New()
	chain.SetBalance(types.PublicKey{1}, testPair.PriceAsset, num.NewUint(1_000_000))
	a, ctx := startAddressActor(t, chain)

	o := mkTestOrder(1, types.Buy, 100, 2e8, 1000)
	require.NoError(t, a.PlaceCheck(ctx, o))

	bal, err := a.QueryBalance(ctx, testPair.PriceAsset)
	require.NoError(t, err)
	// cost = ceil(100*2e8/1e8) = 200, plus fee 1000
	assert.Equal(t, uint64(200+1000), bal.Uint64())
}

func TestPlaceCheckRejectsInsufficientBalance(t *testing.T) {
	chain := stub.New()
	chain.SetBalance(types.PublicKey{1}, testPair.PriceAsset, num.NewUint(100))
	a, ctx := startAddressActor(t, chain)

	o := mkTestOrder(1, types.Buy, 100, 2e8, 1000)
	err := a.PlaceCheck(ctx, o)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindInsufficientBalance))
}

func TestApplyFillReleasesProportionally(t *testing.T) {
	chain := stub.New()
	chain.SetBalance(types.PublicKey{1}, testPair.PriceAsset, num.NewUint(1_000_000))
	a, ctx := startAddressActor(t, chain)

	o := mkTestOrder(1, types.Buy, 100, 2e8, 1000)
	require.NoError(t, a.PlaceCheck(ctx, o))

	// half-filled: cost released should be ceil(50*2e8/1e8) = 100
	require.NoError(t, a.ApplyFill(ctx, o.ID, num.NewUint(50), num.NewUint(500), false))
	bal, err := a.QueryBalance(ctx, testPair.PriceAsset)
	require.NoError(t, err)
	assert.Equal(t, uint64(100+500), bal.Uint64())

	require.NoError(t, a.ApplyFill(ctx, o.ID, num.NewUint(50), num.NewUint(500), true))
	bal, err = a.QueryBalance(ctx, testPair.PriceAsset)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), bal.Uint64())
}

func TestApplyCancelReleasesReservation(t *testing.T) {
	chain := stub.New()
	chain.SetBalance(types.PublicKey{1}, testPair.AmountAsset, num.NewUint(2000))
	a, ctx := startAddressActor(t, chain)

	o := mkTestOrder(1, types.Sell, 100, 2e8, 1000)
	o.FeeAsset = testPair.AmountAsset
	require.NoError(t, a.PlaceCheck(ctx, o))

	require.NoError(t, a.ApplyCancel(ctx, o.ID))
	bal, err := a.QueryBalance(ctx, testPair.AmountAsset)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), bal.Uint64())
}
